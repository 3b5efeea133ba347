package rules

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Rule is a single field name and the pattern used to extract it. An empty
// pattern means the field is never extracted.
type Rule struct {
	Field   string `json:"field"`
	Pattern string `json:"pattern"`
}

// RuleSet is an ordered mapping of field name to pattern. Iteration order is
// insertion order, which is also the column order of the result table.
type RuleSet struct {
	m *orderedmap.OrderedMap[string, string]
}

// New returns an empty rule set, optionally seeded with rules.
func New(rules ...Rule) *RuleSet {
	rs := &RuleSet{m: orderedmap.New[string, string]()}
	for _, r := range rules {
		rs.Set(r.Field, r.Pattern)
	}
	return rs
}

func (rs *RuleSet) init() {
	if rs.m == nil {
		rs.m = orderedmap.New[string, string]()
	}
}

// Set adds or replaces a field. A replaced field keeps its original position.
func (rs *RuleSet) Set(field, pattern string) {
	rs.init()
	rs.m.Set(field, pattern)
}

// Get returns the pattern for field.
func (rs *RuleSet) Get(field string) (string, bool) {
	if rs == nil || rs.m == nil {
		return "", false
	}
	return rs.m.Get(field)
}

// Delete removes field and reports whether it was present.
func (rs *RuleSet) Delete(field string) bool {
	if rs == nil || rs.m == nil {
		return false
	}
	_, ok := rs.m.Delete(field)
	return ok
}

// Len returns the number of fields.
func (rs *RuleSet) Len() int {
	if rs == nil || rs.m == nil {
		return 0
	}
	return rs.m.Len()
}

// Rules returns the rules in order.
func (rs *RuleSet) Rules() []Rule {
	if rs == nil || rs.m == nil {
		return nil
	}
	out := make([]Rule, 0, rs.m.Len())
	for pair := rs.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Rule{Field: pair.Key, Pattern: pair.Value})
	}
	return out
}

// Fields returns the field names in order.
func (rs *RuleSet) Fields() []string {
	rules := rs.Rules()
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Field
	}
	return out
}

// Clone returns an independent copy.
func (rs *RuleSet) Clone() *RuleSet {
	return New(rs.Rules()...)
}

// Equal reports whether both sets hold the same rules in the same order.
func (rs *RuleSet) Equal(other *RuleSet) bool {
	a, b := rs.Rules(), other.Rules()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MarshalJSON writes the rule set as a JSON object in field order. Non-ASCII
// text and HTML characters are written verbatim.
func (rs *RuleSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range rs.Rules() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, r.Field); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, r.Pattern); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the contents of rs with the parsed document.
func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	rs.m = parsed.m
	return nil
}

// Encode renders rs as indented JSON, the on-disk and editor format.
func Encode(rs *RuleSet) ([]byte, error) {
	compact, err := rs.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("indent rules: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode %q: %w", s, err)
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
