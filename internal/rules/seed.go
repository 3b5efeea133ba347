package rules

import "fmt"

// DefaultCustomer is created on first run when the store is empty.
const DefaultCustomer = "default"

const (
	datePattern   = `\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b`
	specPattern   = `\b[A-Z]{2}-\d{4}-\d{2}\b`
	amountPattern = `\b\d+(?:,\d{3})*(?:\.\d+)?\b`
)

// SampleRules returns the built-in rule set for a typical purchase order.
func SampleRules() *RuleSet {
	return New(
		Rule{Field: "訂單編號", Pattern: `\b[0-9]{8,12}\b`},
		Rule{Field: "訂單日期", Pattern: datePattern},
		Rule{Field: "編碼", Pattern: `\b[A-Z]{1}\d{3}-[A-Z]{1}\d{3}[A-Z]?\b`},
		Rule{Field: "品名", Pattern: ""},
		Rule{Field: "規格", Pattern: specPattern},
		Rule{Field: "物料型號", Pattern: specPattern},
		Rule{Field: "數量", Pattern: amountPattern},
		Rule{Field: "單位", Pattern: `\b[A-Z]{1,3}\b`},
		Rule{Field: "單價", Pattern: amountPattern},
		Rule{Field: "總價", Pattern: amountPattern},
		Rule{Field: "交期", Pattern: datePattern},
	)
}

// Seed writes the default customer with samples when no customers exist.
// It reports whether anything was written.
func (s *Store) Seed(samples *RuleSet) (bool, error) {
	customers, err := s.List()
	if err != nil {
		return false, err
	}
	if len(customers) > 0 {
		return false, nil
	}

	if err := s.Save(DefaultCustomer, samples); err != nil {
		return false, fmt.Errorf("seed default rules: %w", err)
	}
	s.logger.Info().Str("dir", s.Dir()).Msg("seeded default customer rules")
	return true, nil
}
