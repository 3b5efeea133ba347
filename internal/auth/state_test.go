package auth

import (
	"errors"
	"testing"
)

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		submitted  string
		configured string
		want       bool
	}{
		{name: "exact match", submitted: "s3cret", configured: "s3cret", want: true},
		{name: "wrong secret", submitted: "guess", configured: "s3cret", want: false},
		{name: "case differs", submitted: "S3CRET", configured: "s3cret", want: false},
		{name: "prefix", submitted: "s3c", configured: "s3cret", want: false},
		{name: "trailing space", submitted: "s3cret ", configured: "s3cret", want: false},
		{name: "empty submitted", submitted: "", configured: "s3cret", want: false},
		{name: "admin disabled", submitted: "", configured: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authenticate(tt.submitted, tt.configured); got != tt.want {
				t.Errorf("Authenticate(%q, %q) = %v, want %v", tt.submitted, tt.configured, got, tt.want)
			}
		})
	}
}

func TestSession_Submit(t *testing.T) {
	s := NewSession(Anonymous)

	if err := s.Submit("wrong", "s3cret"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("Submit(wrong) error = %v, want ErrAuthenticationFailed", err)
	}
	if s.State() != Anonymous {
		t.Fatalf("state after failed login = %v, want anonymous", s.State())
	}

	if err := s.Submit("s3cret", "s3cret"); err != nil {
		t.Fatalf("Submit(correct) unexpected error: %v", err)
	}
	if !s.IsAdmin() || s.State().String() != "authenticated" {
		t.Fatalf("state after login = %v, want authenticated", s.State())
	}

	if err := s.Submit("wrong", "s3cret"); err != nil {
		t.Errorf("authenticated session must not be downgraded, got %v", err)
	}
	if !s.IsAdmin() {
		t.Error("authenticated session was downgraded")
	}
}
