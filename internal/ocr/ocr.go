// Package ocr renders PDF pages to images with pdftoppm and recognises them
// with tesseract.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"
)

const (
	DefaultPdftoppm  = "pdftoppm"
	DefaultTesseract = "tesseract"
	DefaultLanguage  = "eng+chi_tra"
	DefaultDPI       = 300
)

// ErrNoPages is returned when rendering produced no page images.
var ErrNoPages = errors.New("pdftoppm produced no page images")

// Config selects the external binaries and recognition settings.
type Config struct {
	Pdftoppm    string `mapstructure:"pdftoppm"`
	Tesseract   string `mapstructure:"tesseract"`
	Language    string `mapstructure:"language"`
	DPI         int    `mapstructure:"dpi"`
	TessdataDir string `mapstructure:"tessdata_dir"`
	MaxPages    int    `mapstructure:"max_pages"`
}

// Result is the recognised text of a document.
type Result struct {
	Text     string
	Pages    int
	Warnings []string
	Duration time.Duration
}

// Engine runs the OCR pipeline.
type Engine struct {
	cfg    Config
	runner Runner
	logger *log.Logger
}

// NewEngine fills in defaults and returns an engine that executes real
// binaries. Use WithRunner to substitute them.
func NewEngine(cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = DefaultPdftoppm
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = DefaultTesseract
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	return &Engine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner returns a copy of e that runs commands through r.
func (e *Engine) WithRunner(r Runner) *Engine {
	cp := *e
	cp.runner = r
	return &cp
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// RecognizePDF OCRs every page of the PDF held in data. Each page's text is
// followed by a newline. Pages that fail recognition are skipped with a
// warning; failure to render the document at all is returned as an error.
func (e *Engine) RecognizePDF(ctx context.Context, data []byte) (*Result, error) {
	start := time.Now()
	res := &Result{}

	tmpDir, err := os.MkdirTemp("", "order-intake-ocr-*")
	if err != nil {
		return res, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn().Err(err).Str("dir", tmpDir).Msg("failed to remove OCR temp dir")
		}
	}()

	input := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return res, fmt.Errorf("write temp pdf: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	_, stderr, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", input, prefix)
	if err != nil {
		return res, fmt.Errorf("pdftoppm: %w%s", err, stderrSuffix(stderr))
	}

	images, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(images)
	if e.cfg.MaxPages > 0 && len(images) > e.cfg.MaxPages {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("OCR limited to the first %d of %d pages", e.cfg.MaxPages, len(images)))
		images = images[:e.cfg.MaxPages]
	}
	if len(images) == 0 {
		return res, ErrNoPages
	}

	var b strings.Builder
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			res.Text = b.String()
			res.Pages = i
			res.Duration = time.Since(start)
			return res, err
		}
		txt, err := e.recognizeImage(ctx, img)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %v", i+1, err))
			continue
		}
		b.WriteString(txt)
		b.WriteString("\n")
	}

	res.Text = b.String()
	res.Pages = len(images)
	res.Duration = time.Since(start)

	e.logger.Debug().
		Int("pages", res.Pages).
		Int("chars", len(res.Text)).
		Int("warnings", len(res.Warnings)).
		Dur("duration", res.Duration).
		Msg("ocr finished")

	return res, nil
}

func (e *Engine) recognizeImage(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Language}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, stderr, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w%s", err, stderrSuffix(stderr))
	}
	return string(out), nil
}

func stderrSuffix(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		return ""
	}
	return ": " + truncate(s, 512)
}
