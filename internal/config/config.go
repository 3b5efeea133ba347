package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/order-intake/internal/ocr"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB
	DefaultRulesDir    = "rules"
	DefaultEnvFile     = ".env"

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix is prepended to every environment variable.
	EnvPrefix = "ORDER_INTAKE"

	minSessionKeyLen = 32
)

// Config holds all configuration for the order intake tool
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Storage
	RulesDirectory    string
	DocumentDirectory string // PDFs readable through MCP tools

	// Admin and sessions
	AdminPassword string // empty disables the admin panel
	SessionKey    []byte
	SecureCookies bool

	// Extraction
	MaxFileSize int64
	OCR         ocr.Config

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:              ModeServer,
		Host:              DefaultHost,
		Port:              DefaultPort,
		RulesDirectory:    filepath.Join(currentDir, DefaultRulesDir),
		DocumentDirectory: currentDir,
		MaxFileSize:       DefaultMaxFileSize,
		OCR: ocr.Config{
			Pdftoppm:  ocr.DefaultPdftoppm,
			Tesseract: ocr.DefaultTesseract,
			Language:  ocr.DefaultLanguage,
			DPI:       ocr.DefaultDPI,
		},
		Version:    "1.0.0",
		ServerName: "order-intake",
		LogLevel:   DefaultLogLevel,
	}
}

// LoadFromFlags reads .env, environment variables and command line flags,
// in increasing order of precedence, and returns a validated configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	if err := populateConfigFromViper(cfg); err != nil {
		return nil, err
	}

	for _, dir := range []*string{&cfg.RulesDirectory, &cfg.DocumentDirectory} {
		if *dir == "" {
			continue
		}
		if expanded, err := filepath.Abs(*dir); err == nil {
			*dir = expanded
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads variables from the env file without overriding ones
// already set. A missing file is not an error.
func loadDotEnv() error {
	path := os.Getenv(EnvPrefix + "_ENV_FILE")
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("rules_dir", cfg.RulesDirectory)
	viper.SetDefault("doc_dir", cfg.DocumentDirectory)
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("max_file_size", cfg.MaxFileSize)
	viper.SetDefault("admin_password", "")
	viper.SetDefault("session_key", "")
	viper.SetDefault("secure_cookies", false)
	viper.SetDefault("ocr_pdftoppm", cfg.OCR.Pdftoppm)
	viper.SetDefault("ocr_tesseract", cfg.OCR.Tesseract)
	viper.SetDefault("ocr_lang", cfg.OCR.Language)
	viper.SetDefault("ocr_dpi", cfg.OCR.DPI)
	viper.SetDefault("ocr_tessdata", cfg.OCR.TessdataDir)
	viper.SetDefault("ocr_max_pages", cfg.OCR.MaxPages)
}

// defineCommandLineFlags sets up all command line flags. Secrets are only
// read from the environment.
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'server' for the web UI, 'stdio' for MCP standard I/O")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("rules-dir", cfg.RulesDirectory, "Directory holding one <customer>.json rule file per customer")
	pflag.String("doc-dir", cfg.DocumentDirectory, "Directory of PDF files readable through MCP tools")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF upload size in bytes")
	pflag.Bool("secure-cookies", false, "Mark session cookies Secure (serve over HTTPS)")
	pflag.String("ocr-lang", cfg.OCR.Language, "Tesseract language list")
	pflag.Int("ocr-dpi", cfg.OCR.DPI, "Rasterisation DPI for OCR")
	pflag.Int("ocr-max-pages", cfg.OCR.MaxPages, "Maximum pages to OCR (0 = all)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("host", pflag.Lookup("host"))
	_ = viper.BindPFlag("port", pflag.Lookup("port"))
	_ = viper.BindPFlag("rules_dir", pflag.Lookup("rules-dir"))
	_ = viper.BindPFlag("doc_dir", pflag.Lookup("doc-dir"))
	_ = viper.BindPFlag("log_level", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("max_file_size", pflag.Lookup("maxfilesize"))
	_ = viper.BindPFlag("secure_cookies", pflag.Lookup("secure-cookies"))
	_ = viper.BindPFlag("ocr_lang", pflag.Lookup("ocr-lang"))
	_ = viper.BindPFlag("ocr_dpi", pflag.Lookup("ocr-dpi"))
	_ = viper.BindPFlag("ocr_max_pages", pflag.Lookup("ocr-max-pages"))
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOrder Intake - extract purchase order fields from PDFs with per-customer rules\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # web UI on 127.0.0.1:8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --rules-dir=/srv/rules --port=9000 # custom rules directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --doc-dir=/srv/inbox  # MCP tools over stdio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables (also read from .env):\n")
		fmt.Fprintf(os.Stderr, "  %s_MODE            Run mode\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_HOST            Server host\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_PORT            Server port\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_RULES_DIR       Rules directory\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_DOC_DIR         MCP document directory\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_LOG_LEVEL       Log level\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_MAX_FILE_SIZE   Maximum upload size\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_ADMIN_PASSWORD  Admin panel password (unset disables the panel)\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_SESSION_KEY     Hex session signing key, at least 32 bytes\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_OCR_TESSDATA    Tesseract tessdata directory\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_ENV_FILE        Path of the .env file\n", EnvPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) error {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.RulesDirectory = viper.GetString("rules_dir")
	cfg.DocumentDirectory = viper.GetString("doc_dir")
	cfg.LogLevel = viper.GetString("log_level")
	cfg.MaxFileSize = viper.GetInt64("max_file_size")
	cfg.AdminPassword = viper.GetString("admin_password")
	cfg.SecureCookies = viper.GetBool("secure_cookies")
	cfg.OCR.Pdftoppm = viper.GetString("ocr_pdftoppm")
	cfg.OCR.Tesseract = viper.GetString("ocr_tesseract")
	cfg.OCR.Language = viper.GetString("ocr_lang")
	cfg.OCR.DPI = viper.GetInt("ocr_dpi")
	cfg.OCR.TessdataDir = viper.GetString("ocr_tessdata")
	cfg.OCR.MaxPages = viper.GetInt("ocr_max_pages")

	if raw := viper.GetString("session_key"); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return fmt.Errorf("session key must be hex encoded: %w", err)
		}
		cfg.SessionKey = key
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.RulesDirectory == "" {
		return errors.New("rules directory cannot be empty")
	}
	if err := ensureDir(c.RulesDirectory, "rules"); err != nil {
		return err
	}

	if c.Mode == ModeStdio {
		if c.DocumentDirectory == "" {
			return errors.New("document directory cannot be empty in stdio mode")
		}
		if err := ensureDir(c.DocumentDirectory, "document"); err != nil {
			return err
		}
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.OCR.DPI <= 0 {
		return errors.New("OCR DPI must be positive")
	}
	if c.OCR.MaxPages < 0 {
		return errors.New("OCR max pages cannot be negative")
	}

	if len(c.SessionKey) > 0 && len(c.SessionKey) < minSessionKeyLen {
		return fmt.Errorf("session key must be at least %d bytes", minSessionKeyLen)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

func ensureDir(dir, what string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create %s directory %s: %w", what, dir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access %s directory %s: %w", what, dir, err)
	}
	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// AdminEnabled reports whether an admin password is configured
func (c *Config) AdminEnabled() bool {
	return c.AdminPassword != ""
}

// String returns a string representation of the configuration. Secrets are
// never included.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, RulesDirectory: %s, LogLevel: %s, MaxFileSize: %d, Admin: %t}",
		c.Mode, c.Host, c.Port, c.RulesDirectory, c.LogLevel, c.MaxFileSize, c.AdminEnabled())
}

// IsServerMode returns true when running the HTTP web UI
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true when serving MCP over standard I/O
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
