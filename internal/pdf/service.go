// Package pdf turns uploaded PDF bytes into text, reading the embedded text
// layer first and falling back to OCR for scanned documents.
package pdf

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"github.com/a3tai/order-intake/internal/ocr"
)

// Recognizer OCRs a whole PDF.
type Recognizer interface {
	RecognizePDF(ctx context.Context, data []byte) (*ocr.Result, error)
}

// Extractor coordinates validation, the text layer reader and OCR.
type Extractor struct {
	validator *Validator
	ocr       Recognizer
	logger    *log.Logger
}

// NewExtractor creates an extractor. A nil recognizer disables the OCR
// fallback.
func NewExtractor(maxFileSize int64, recognizer Recognizer, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &Extractor{
		validator: NewValidator(maxFileSize),
		ocr:       recognizer,
		logger:    logger,
	}
}

// Extract returns the document text. The embedded text layer wins whenever
// it contains anything but whitespace; otherwise OCR output is appended to
// it. OCR failures never fail the call, they become warnings. Only data
// that is not an acceptable PDF upload returns an error.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*ExtractionResult, error) {
	start := time.Now()

	info, err := e.validator.Validate(data)
	if err != nil {
		return nil, err
	}

	res := &ExtractionResult{
		Method:   MethodNone,
		Pages:    info.Pages,
		Warnings: append([]string(nil), info.Warnings...),
	}

	text, pages, warnings, err := readText(data)
	res.Warnings = append(res.Warnings, warnings...)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("text layer: %v", err))
	}
	if pages > res.Pages {
		res.Pages = pages
	}
	res.Text = text

	if !isBlank(text) {
		res.Method = MethodText
		res.Duration = time.Since(start)
		e.logResult(res)
		return res, nil
	}

	if e.ocr == nil {
		res.Warnings = append(res.Warnings, "OCR fallback is disabled")
		res.Duration = time.Since(start)
		e.logResult(res)
		return res, nil
	}

	ocrRes, err := e.ocr.RecognizePDF(ctx, data)
	if ocrRes != nil {
		res.Warnings = append(res.Warnings, ocrRes.Warnings...)
		res.Text += ocrRes.Text
		if ocrRes.Pages > res.Pages {
			res.Pages = ocrRes.Pages
		}
	}
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("OCR failed: %v", err))
	} else {
		res.Method = MethodOCR
	}

	res.Duration = time.Since(start)
	e.logResult(res)
	return res, nil
}

func (e *Extractor) logResult(res *ExtractionResult) {
	e.logger.Info().
		Str("method", res.Method).
		Int("pages", res.Pages).
		Int("chars", len(res.Text)).
		Int("warnings", len(res.Warnings)).
		Dur("duration", res.Duration).
		Msg("text extracted")
}
