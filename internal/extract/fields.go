// Package extract applies customer rules to document text and lays the
// results out as a table.
package extract

import (
	"regexp"
	"strings"

	"github.com/a3tai/order-intake/internal/rules"
)

// Status tags how a field was processed.
type Status string

const (
	// StatusNoPattern means the rule had an empty pattern.
	StatusNoPattern Status = "no_pattern"
	// StatusMatched means the pattern compiled and was applied. It may
	// still have produced zero matches.
	StatusMatched Status = "matched"
	// StatusInvalidPattern means the pattern failed to compile.
	StatusInvalidPattern Status = "invalid_pattern"
)

// FieldResult is the outcome of one rule.
type FieldResult struct {
	Field   string   `json:"field"`
	Status  Status   `json:"status"`
	Matches []string `json:"matches"`
	Err     string   `json:"error,omitempty"`
}

// Fields holds one result per rule, in rule order.
type Fields []FieldResult

// Map returns field name to matches. Fields that did not match map to an
// empty slice.
func (f Fields) Map() map[string][]string {
	out := make(map[string][]string, len(f))
	for _, r := range f {
		out[r.Field] = r.Matches
	}
	return out
}

// Invalid returns the results whose pattern did not compile.
func (f Fields) Invalid() Fields {
	var out Fields
	for _, r := range f {
		if r.Status == StatusInvalidPattern {
			out = append(out, r)
		}
	}
	return out
}

// Extract runs every rule over text. It never fails: an empty pattern
// yields StatusNoPattern and a pattern that does not compile yields
// StatusInvalidPattern, both with no matches.
func Extract(text string, rs *rules.RuleSet) Fields {
	ruleList := rs.Rules()
	out := make(Fields, 0, len(ruleList))

	for _, r := range ruleList {
		res := FieldResult{Field: r.Field, Matches: []string{}}

		if r.Pattern == "" {
			res.Status = StatusNoPattern
			out = append(out, res)
			continue
		}

		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			res.Status = StatusInvalidPattern
			res.Err = err.Error()
			out = append(out, res)
			continue
		}

		res.Status = StatusMatched
		res.Matches = findAll(re, text)
		out = append(out, res)
	}

	return out
}

// findAll returns every non-overlapping match. With no capture groups the
// whole match is returned, with one group its text, and with several groups
// their texts joined by a single space.
func findAll(re *regexp.Regexp, text string) []string {
	groups := re.NumSubexp()
	found := re.FindAllStringSubmatch(text, -1)

	out := make([]string, 0, len(found))
	for _, m := range found {
		switch groups {
		case 0:
			out = append(out, m[0])
		case 1:
			out = append(out, m[1])
		default:
			out = append(out, strings.Join(m[1:], " "))
		}
	}
	return out
}
