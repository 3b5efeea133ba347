// Package intake runs the order extraction flow: load the customer's rules,
// pull text from the PDF, apply the rules and lay the results out as a table.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/phuslu/log"

	"github.com/a3tai/order-intake/internal/extract"
	"github.com/a3tai/order-intake/internal/metrics"
	"github.com/a3tai/order-intake/internal/pdf"
	"github.com/a3tai/order-intake/internal/rules"
)

// PreviewLimit is the number of characters of extracted text shown back to
// the user.
const PreviewLimit = 1000

const previewEllipsis = "\n...\n"

// ErrNoText is returned when neither the text layer nor OCR produced any
// text. The result still carries the warnings explaining why.
var ErrNoText = errors.New("no text could be extracted from the document")

// TextExtractor turns PDF bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (*pdf.ExtractionResult, error)
}

// OrderResult is everything the review screen needs.
type OrderResult struct {
	Customer string         `json:"customer"`
	Text     string         `json:"-"`
	Preview  string         `json:"preview"`
	Method   string         `json:"method"`
	Pages    int            `json:"pages"`
	Warnings []string       `json:"warnings,omitempty"`
	Fields   extract.Fields `json:"fields"`
	Table    *extract.Table `json:"table"`
	Rules    *rules.RuleSet `json:"-"`
}

// Service wires the rule store to the text and field extractors.
type Service struct {
	store   *rules.Store
	text    TextExtractor
	metrics *metrics.Metrics
	logger  *log.Logger
}

// NewService creates the intake service. m may be nil.
func NewService(store *rules.Store, text TextExtractor, m *metrics.Metrics, logger *log.Logger) *Service {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &Service{store: store, text: text, metrics: m, logger: logger}
}

// Store returns the rule store.
func (s *Service) Store() *rules.Store {
	return s.store
}

// ExtractOrder processes one uploaded document for customer. When no text
// is found it returns a partial result together with ErrNoText.
func (s *Service) ExtractOrder(ctx context.Context, customer string, data []byte) (*OrderResult, error) {
	rs, err := s.store.Load(customer)
	if err != nil {
		return nil, err
	}

	doc, err := s.text.Extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	s.metrics.ObserveExtraction(doc.Method, len(doc.Warnings))

	res := &OrderResult{
		Customer: customer,
		Text:     doc.Text,
		Method:   doc.Method,
		Pages:    doc.Pages,
		Warnings: doc.Warnings,
		Rules:    rs,
	}

	if doc.Blank() {
		s.logger.Warn().Str("customer", customer).Strs("warnings", doc.Warnings).Msg("no text extracted")
		return res, ErrNoText
	}

	res.Preview = Preview(doc.Text)
	res.Fields = extract.Extract(doc.Text, rs)
	res.Table = extract.Assemble(res.Fields)

	// Broken patterns stay tagged on their field; they are reported to the
	// admin by the rule check, not as upload warnings.
	invalid := res.Fields.Invalid()
	s.metrics.ObserveInvalidPatterns(customer, len(invalid))

	s.logger.Info().
		Str("customer", customer).
		Str("method", doc.Method).
		Int("fields", len(res.Fields)).
		Int("rows", len(res.Table.Rows)).
		Int("invalid_patterns", len(invalid)).
		Msg("order extracted")

	return res, nil
}

// ExtractFile reads a PDF from disk and runs ExtractOrder on it.
func (s *Service) ExtractFile(ctx context.Context, customer, path string) (*OrderResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return s.ExtractOrder(ctx, customer, data)
}

// Preview returns the first PreviewLimit characters of text, followed by
// an ellipsis line when text is longer.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text
	}
	return string(runes[:PreviewLimit]) + previewEllipsis
}
