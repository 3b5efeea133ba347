// Package auth gates the rule administration panel behind a shared secret.
package auth

import (
	"crypto/subtle"
	"errors"
)

// ErrAuthenticationFailed is returned when the submitted secret is wrong.
var ErrAuthenticationFailed = errors.New("authentication failed")

// State is the admin state of one browser session.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Authenticate reports whether submitted equals the configured secret. An
// empty configured secret never authenticates.
func Authenticate(submitted, configured string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(configured)) == 1
}

// Session is the admin state machine: Anonymous moves to Authenticated on a
// correct secret and stays there. There is no logout.
type Session struct {
	state State
}

// NewSession returns a session in the given state.
func NewSession(state State) *Session {
	return &Session{state: state}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// IsAdmin reports whether the session is authenticated.
func (s *Session) IsAdmin() bool {
	return s.state == Authenticated
}

// Submit applies a password attempt. A wrong secret leaves an anonymous
// session anonymous and returns ErrAuthenticationFailed; an authenticated
// session is never downgraded.
func (s *Session) Submit(submitted, configured string) error {
	if Authenticate(submitted, configured) {
		s.state = Authenticated
		return nil
	}
	if s.state == Authenticated {
		return nil
	}
	return ErrAuthenticationFailed
}
