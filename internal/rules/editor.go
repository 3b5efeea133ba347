package rules

import (
	"fmt"
	"strings"
)

// Editor implements the admin operations on customer rules.
type Editor struct {
	store *Store
}

// NewEditor creates an editor backed by store.
func NewEditor(store *Store) *Editor {
	return &Editor{store: store}
}

// Check parses raw and reports every pattern that fails to compile.
func (e *Editor) Check(raw string) ([]PatternError, error) {
	rs, err := Parse([]byte(raw))
	if err != nil {
		return nil, err
	}
	return ValidateSyntax(rs), nil
}

// ParseAndSave replaces the customer's rules with raw. On a parse error the
// stored rules are left untouched. Pattern syntax is not checked.
func (e *Editor) ParseAndSave(customer, raw string) (*RuleSet, error) {
	rs, err := Parse([]byte(raw))
	if err != nil {
		return nil, err
	}
	if err := e.store.Save(customer, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// CreateCustomer adds customer with a copy of the rules of from. An empty
// from creates the customer with no rules.
func (e *Editor) CreateCustomer(customer, from string) error {
	name, err := NormalizeCustomer(customer)
	if err != nil {
		return err
	}

	base := New()
	if strings.TrimSpace(from) != "" {
		if base, err = e.store.Load(from); err != nil {
			return fmt.Errorf("copy rules from %s: %w", from, err)
		}
	}

	return e.store.Create(name, base)
}

// DeleteCustomer removes customer and its rules.
func (e *Editor) DeleteCustomer(customer string) error {
	return e.store.Delete(customer)
}

// Render returns the editor text for the customer's current rules.
func (e *Editor) Render(customer string) (string, error) {
	rs, err := e.store.Load(customer)
	if err != nil {
		return "", err
	}
	data, err := Encode(rs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
