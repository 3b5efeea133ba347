package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/phuslu/log"
)

const (
	sessionName = "order-intake"
	adminKey    = "admin"
)

type ctxKey struct{}

// Manager persists the admin state in a signed cookie.
type Manager struct {
	store  *sessions.CookieStore
	secret string
	logger *log.Logger
}

// NewManager creates a manager. An empty hashKey generates a random one,
// which invalidates sessions on restart.
func NewManager(secret string, hashKey []byte, secure bool, logger *log.Logger) (*Manager, error) {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
		if hashKey == nil {
			return nil, fmt.Errorf("generate session key")
		}
	}
	if logger == nil {
		logger = &log.DefaultLogger
	}

	store := sessions.NewCookieStore(hashKey)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{store: store, secret: secret, logger: logger}, nil
}

// Enabled reports whether an admin secret is configured.
func (m *Manager) Enabled() bool {
	return m.secret != ""
}

// Session returns the admin state for the request. A missing or tampered
// cookie yields an anonymous session.
func (m *Manager) Session(r *http.Request) *Session {
	if s, ok := r.Context().Value(ctxKey{}).(*Session); ok {
		return s
	}
	sess, err := m.store.Get(r, sessionName)
	if err != nil {
		return NewSession(Anonymous)
	}
	if admin, _ := sess.Values[adminKey].(bool); admin {
		return NewSession(Authenticated)
	}
	return NewSession(Anonymous)
}

// Login checks password and, on success, marks the browser session as admin.
// A wrong password fails even for a session that is already admin; that
// session keeps its state and its cookie is left as is.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, password string) error {
	state := m.Session(r)
	wasAdmin := state.IsAdmin()
	if err := state.Submit(password, m.secret); err != nil {
		m.logger.Warn().Str("remote", r.RemoteAddr).Msg("admin login failed")
		return err
	}
	if wasAdmin {
		if !Authenticate(password, m.secret) {
			m.logger.Warn().Str("remote", r.RemoteAddr).Msg("admin login failed on admin session")
			return ErrAuthenticationFailed
		}
		return nil
	}

	sess, _ := m.store.Get(r, sessionName)
	sess.Values[adminKey] = true
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	m.logger.Info().Str("remote", r.RemoteAddr).Msg("admin login")
	return nil
}

// AddFlash queues a message for the next page render.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	sess, _ := m.store.Get(r, sessionName)
	sess.AddFlash(kind+"|"+msg)
	if err := sess.Save(r, w); err != nil {
		m.logger.Error().Err(err).Msg("save flash")
	}
}

// Flashes pops queued messages as (kind, text) pairs.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) [][2]string {
	sess, err := m.store.Get(r, sessionName)
	if err != nil {
		return nil
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		m.logger.Error().Err(err).Msg("save session after flashes")
	}

	out := make([][2]string, 0, len(raw))
	for _, f := range raw {
		s, ok := f.(string)
		if !ok {
			continue
		}
		kind, msg, found := strings.Cut(s, "|")
		if !found {
			kind, msg = "info", s
		}
		out = append(out, [2]string{kind, msg})
	}
	return out
}

// RequireAdmin rejects requests from anonymous sessions with 403.
func (m *Manager) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := m.Session(r)
		if !state.IsAdmin() {
			http.Error(w, "admin login required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, state)))
	})
}
