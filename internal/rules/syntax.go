package rules

import (
	"fmt"
	"regexp"
)

// PatternError reports a pattern that does not compile.
type PatternError struct {
	Field   string `json:"field"`
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

func (e PatternError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateSyntax compiles every non-empty pattern and returns one entry per
// failure, in field order. Patterns are never run against text here.
func ValidateSyntax(rs *RuleSet) []PatternError {
	var errs []PatternError
	for _, r := range rs.Rules() {
		if r.Pattern == "" {
			continue
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			errs = append(errs, PatternError{Field: r.Field, Pattern: r.Pattern, Message: err.Error()})
		}
	}
	return errs
}
