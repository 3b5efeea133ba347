package pdf

import (
	"errors"
	"time"
)

// Extraction methods reported in ExtractionResult.Method.
const (
	MethodText = "pdf-text"
	MethodOCR  = "pdf-ocr"
	MethodNone = "none"
)

var (
	// ErrEmptyDocument is returned for zero-length uploads.
	ErrEmptyDocument = errors.New("document is empty")
	// ErrTooLarge is returned when a document exceeds the size limit.
	ErrTooLarge = errors.New("document too large")
	// ErrNotPDF is returned when the data does not start with a PDF header.
	ErrNotPDF = errors.New("document is not a PDF")
)

// ExtractionResult is the text of a document and how it was obtained.
// Warnings collect non-fatal failures such as an OCR pass that could not
// run; Text holds whatever was recovered regardless.
type ExtractionResult struct {
	Text     string        `json:"text"`
	Pages    int           `json:"pages"`
	Method   string        `json:"method"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Blank reports whether no usable text was recovered.
func (r *ExtractionResult) Blank() bool {
	return r == nil || isBlank(r.Text)
}

// DocumentInfo is what the validator learned about a document.
type DocumentInfo struct {
	Size     int64
	Pages    int
	Warnings []string
}
