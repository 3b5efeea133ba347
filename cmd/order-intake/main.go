package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"github.com/a3tai/order-intake/internal/auth"
	"github.com/a3tai/order-intake/internal/config"
	"github.com/a3tai/order-intake/internal/export"
	"github.com/a3tai/order-intake/internal/intake"
	"github.com/a3tai/order-intake/internal/mcp"
	"github.com/a3tai/order-intake/internal/metrics"
	"github.com/a3tai/order-intake/internal/ocr"
	"github.com/a3tai/order-intake/internal/pdf"
	"github.com/a3tai/order-intake/internal/rules"
	"github.com/a3tai/order-intake/internal/web"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const shutdownTimeout = 15 * time.Second

// setupLogging builds the process logger. In stdio mode everything goes to
// stderr so stdout stays reserved for the MCP protocol.
func setupLogging(cfg *config.Config, stdout, stderr io.Writer) *log.Logger {
	logger := &log.Logger{
		Level:      log.ParseLevel(cfg.LogLevel),
		TimeFormat: "15:04:05.000",
	}

	if cfg.IsStdioMode() {
		logger.Writer = &log.IOWriter{Writer: stderr}
	} else {
		logger.Writer = &log.ConsoleWriter{
			Writer:      stdout,
			ColorOutput: true,
		}
	}
	return logger
}

// app holds the wired services shared by both front ends.
type app struct {
	store   *rules.Store
	intake  *intake.Service
	editor  *rules.Editor
	metrics *metrics.Metrics
}

func newApp(cfg *config.Config, logger *log.Logger) (*app, error) {
	store, err := rules.NewStore(cfg.RulesDirectory, logger)
	if err != nil {
		return nil, err
	}

	seeded, err := store.Seed(rules.SampleRules())
	if err != nil {
		return nil, fmt.Errorf("seed rules: %w", err)
	}
	if seeded {
		logger.Info().Str("customer", rules.DefaultCustomer).Msg("created sample rules")
	}

	m := metrics.New()
	engine := ocr.NewEngine(cfg.OCR, logger)
	text := pdf.NewExtractor(cfg.MaxFileSize, engine, logger)

	return &app{
		store:   store,
		intake:  intake.NewService(store, text, m, logger),
		editor:  rules.NewEditor(store),
		metrics: m,
	}, nil
}

func newWebServer(cfg *config.Config, a *app, logger *log.Logger) (*web.Server, error) {
	manager, err := auth.NewManager(cfg.AdminPassword, cfg.SessionKey, cfg.SecureCookies, logger)
	if err != nil {
		return nil, err
	}
	if !manager.Enabled() {
		logger.Warn().Msg("no admin password configured, rule editing is disabled")
	}

	return web.New(cfg.Address(), web.Deps{
		Intake:        a.intake,
		Editor:        a.editor,
		Exporter:      export.NewExporter(logger),
		Auth:          manager,
		Metrics:       a.metrics,
		Logger:        logger,
		MaxUploadSize: cfg.MaxFileSize,
		Version:       cfg.Version,
	})
}

// runServerMode serves the web UI until a signal arrives
func runServerMode(cfg *config.Config, a *app, logger *log.Logger) error {
	srv, err := newWebServer(cfg, a, logger)
	if err != nil {
		return err
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.Start()
	}()

	select {
	case sig := <-signalCh:
		logger.Info().Str("signal", sig.String()).Msg("Initiating graceful shutdown...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
		return <-serverErrCh

	case err := <-serverErrCh:
		return err
	}
}

// runStdioMode serves MCP on stdin/stdout; the parent process controls our
// lifecycle
func runStdioMode(ctx context.Context, cfg *config.Config, a *app, logger *log.Logger) error {
	server, err := mcp.NewServer(cfg, a.intake, logger)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}
	return server.Run(ctx)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion(os.Stdout)
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger := setupLogging(cfg, os.Stdout, os.Stderr)
	logger.Debug().Str("config", cfg.String()).Msg("Starting with configuration")

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		err = runServerMode(cfg, a, logger)
	} else {
		err = runStdioMode(ctx, cfg, a, logger)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Server error")
		cancel()
		os.Exit(1)
	}

	logger.Info().Msg("Server stopped successfully")
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Order Intake\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
