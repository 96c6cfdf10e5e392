// Package session keeps per-browser OAuth2 credentials server-side. The
// cookie carries only a random session ID; the token is sealed with AES-GCM
// before it reaches the store.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/FranLegon/drive-web/internal/crypto"
	"github.com/FranLegon/drive-web/internal/database"
	"github.com/FranLegon/drive-web/internal/logger"
)

// DefaultCookieName is used when Options.CookieName is empty.
const DefaultCookieName = "drive_web_session"

// DefaultTTL is used when Options.TTL is zero.
const DefaultTTL = 14 * 24 * time.Hour

var tags = []string{"Session"}

// Store persists session rows. *database.DB implements it.
type Store interface {
	GetSession(id string) (*database.Session, error)
	SaveSession(s *database.Session) error
	DeleteSession(id string) error
}

// Session is the decoded state of one browser session.
type Session struct {
	ID    string
	Token *oauth2.Token
	Email string
	// OAuthState is the nonce sent with a pending authorization request.
	OAuthState string

	createdAt time.Time
}

// HasCredentials reports whether the session holds a token at all.
func (s *Session) HasCredentials() bool {
	return s != nil && s.Token != nil
}

// Options configures a Manager.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager maps requests to sessions.
type Manager struct {
	store      Store
	key        []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

// NewManager creates a Manager. key must be 32 bytes, see crypto.DeriveKey.
func NewManager(store Store, key []byte, opts Options) *Manager {
	m := &Manager{
		store:      store,
		key:        key,
		cookieName: opts.CookieName,
		ttl:        opts.TTL,
		secure:     opts.Secure,
		now:        time.Now,
	}
	if m.cookieName == "" {
		m.cookieName = DefaultCookieName
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	return m
}

// Load returns the request's session, or a fresh empty one when the cookie is
// absent, unknown, expired or unreadable. Only store failures are errors.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return m.newSession(), nil
	}

	row, err := m.store.GetSession(cookie.Value)
	if errors.Is(err, database.ErrNotFound) {
		return m.newSession(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	s := &Session{ID: row.ID, Email: row.Email, OAuthState: row.OAuthState, createdAt: row.CreatedAt}
	if len(row.Credentials) == 0 {
		return s, nil
	}

	token, err := m.open(row.Credentials)
	if err != nil {
		// Usually a rotated session secret. The user just signs in again.
		logger.WithContext(r.Context()).Warn("discarding unreadable session credentials",
			zap.Strings("tags", tags), zap.Error(err))
		return s, nil
	}
	s.Token = token
	return s, nil
}

// Save persists s and sets the session cookie. It must run before the
// response body is written.
func (m *Manager) Save(w http.ResponseWriter, s *Session) error {
	if err := m.Persist(s); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  m.now().Add(m.ttl),
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Persist writes s to the store without touching the cookie. Use it when the
// response may already be streaming, e.g. after a token refresh.
func (m *Manager) Persist(s *Session) error {
	row := &database.Session{
		ID:         s.ID,
		Email:      s.Email,
		OAuthState: s.OAuthState,
		CreatedAt:  s.createdAt,
		ExpiresAt:  m.now().Add(m.ttl),
	}

	if s.Token != nil {
		sealed, err := m.seal(s.Token)
		if err != nil {
			return err
		}
		row.Credentials = sealed
	}

	if err := m.store.SaveSession(row); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.createdAt = row.CreatedAt
	return nil
}

// Renew moves s to a new ID and deletes the row stored under the old one.
// Call it when the session gains credentials, then Save, so an ID known
// before sign-in never carries a token.
func (m *Manager) Renew(s *Session) error {
	if err := m.store.DeleteSession(s.ID); err != nil {
		return fmt.Errorf("failed to renew session: %w", err)
	}
	s.ID = uuid.NewString()
	s.createdAt = time.Time{}
	return nil
}

// Destroy deletes the request's session and expires the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		if err := m.store.DeleteSession(cookie.Value); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) newSession() *Session {
	return &Session{ID: uuid.NewString()}
}

func (m *Manager) seal(token *oauth2.Token) ([]byte, error) {
	data, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token: %w", err)
	}
	sealed, err := crypto.Encrypt(data, m.key)
	if err != nil {
		return nil, fmt.Errorf("failed to seal token: %w", err)
	}
	return sealed, nil
}

func (m *Manager) open(sealed []byte) (*oauth2.Token, error) {
	data, err := crypto.Decrypt(sealed, m.key)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}
