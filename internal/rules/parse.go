package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParseError describes why a rules document was rejected. Key is the
// offending field name when one can be identified.
type ParseError struct {
	Key    string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Key == "" {
		return "invalid rules: " + e.Reason
	}
	return fmt.Sprintf("invalid rules: field %q: %s", e.Key, e.Reason)
}

const ruleSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {"type": "string"}
}`

var ruleSchema = jsonschema.MustCompileString("rules.schema.json", ruleSchemaJSON)

// Parse decodes a rules document: a JSON object whose values are all
// strings. Field order follows the document. When a key repeats, the last
// value wins and the field keeps its first position.
func Parse(raw []byte) (*RuleSet, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ParseError{Reason: "document is empty"}
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, syntaxError(err)
	}

	if err := ruleSchema.Validate(doc); err != nil {
		return nil, schemaError(err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, syntaxError(err)
	}

	rs := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, syntaxError(err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, &ParseError{Reason: fmt.Sprintf("unexpected token %v", tok)}
		}
		var pattern string
		if err := dec.Decode(&pattern); err != nil {
			return nil, &ParseError{Key: key, Reason: err.Error()}
		}
		rs.Set(key, pattern)
	}

	return rs, nil
}

func syntaxError(err error) *ParseError {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return &ParseError{Reason: fmt.Sprintf("malformed JSON at byte %d: %s", se.Offset, se.Error())}
	}
	return &ParseError{Reason: "malformed JSON: " + err.Error()}
}

func schemaError(err error) *ParseError {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ParseError{Reason: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}

	key := ""
	if loc := strings.TrimPrefix(ve.InstanceLocation, "/"); loc != "" {
		key = strings.SplitN(loc, "/", 2)[0]
		if unescaped, err := url.PathUnescape(key); err == nil {
			key = unescaped
		}
		key = strings.ReplaceAll(key, "~1", "/")
		key = strings.ReplaceAll(key, "~0", "~")
	}

	reason := ve.Message
	if key == "" && reason != "" {
		reason = "rules must be a JSON object of field names to patterns: " + reason
	}
	return &ParseError{Key: key, Reason: reason}
}
