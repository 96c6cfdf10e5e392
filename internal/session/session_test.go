package session

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/FranLegon/drive-web/internal/crypto"
	"github.com/FranLegon/drive-web/internal/database"
)

func newTestManager(t *testing.T, key []byte) (*Manager, *database.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewManager(db, key, Options{TTL: time.Hour}), db
}

func testKey(t *testing.T) []byte {
	t.Helper()
	salt, err := crypto.GenerateSalt()
	require.NoError(t, err)
	return crypto.DeriveKey("session-secret", salt)
}

func requestWithCookies(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestLoadWithoutCookieReturnsEmptySession(t *testing.T) {
	m, _ := newTestManager(t, testKey(t))

	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.HasCredentials())
}

func TestSaveThenLoadRoundTripsToken(t *testing.T) {
	m, db := newTestManager(t, testKey(t))

	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	s.Token = &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)}
	s.Email = "user@example.com"

	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, s))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, s.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	row, err := db.GetSession(s.ID)
	require.NoError(t, err)
	assert.NotContains(t, string(row.Credentials), "refresh")

	loaded, err := m.Load(requestWithCookies(cookies))
	require.NoError(t, err)
	require.True(t, loaded.HasCredentials())
	assert.Equal(t, "access", loaded.Token.AccessToken)
	assert.Equal(t, "refresh", loaded.Token.RefreshToken)
	assert.Equal(t, "user@example.com", loaded.Email)
}

func TestLoadWithWrongKeyDropsCredentials(t *testing.T) {
	m, db := newTestManager(t, testKey(t))

	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	s.Token = &oauth2.Token{AccessToken: "access"}
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, s))

	other := NewManager(db, testKey(t), Options{TTL: time.Hour})
	loaded, err := other.Load(requestWithCookies(rec.Result().Cookies()))
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)
	assert.False(t, loaded.HasCredentials())
}

func TestLoadUnknownCookieStartsOver(t *testing.T) {
	m, _ := newTestManager(t, testKey(t))

	s, err := m.Load(requestWithCookies([]*http.Cookie{{Name: DefaultCookieName, Value: "unknown"}}))
	require.NoError(t, err)
	assert.NotEqual(t, "unknown", s.ID)
	assert.False(t, s.HasCredentials())
}

func TestDestroy(t *testing.T) {
	m, db := newTestManager(t, testKey(t))

	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	s.Token = &oauth2.Token{AccessToken: "access"}
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, s))

	out := httptest.NewRecorder()
	require.NoError(t, m.Destroy(out, requestWithCookies(rec.Result().Cookies())))

	_, err = db.GetSession(s.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	cookies := out.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestSaveThenLoadKeepsOAuthState(t *testing.T) {
	m, _ := newTestManager(t, testKey(t))

	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	s.OAuthState = "nonce"
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, s))

	loaded, err := m.Load(requestWithCookies(rec.Result().Cookies()))
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, "nonce", loaded.OAuthState)
	assert.False(t, loaded.HasCredentials())
}

func TestRenewIssuesNewID(t *testing.T) {
	m, db := newTestManager(t, testKey(t))

	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	s.OAuthState = "nonce"
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, s))
	oldCookies := rec.Result().Cookies()
	oldID := s.ID

	require.NoError(t, m.Renew(s))
	assert.NotEqual(t, oldID, s.ID)
	_, err = db.GetSession(oldID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	s.Token = &oauth2.Token{AccessToken: "access"}
	renewed := httptest.NewRecorder()
	require.NoError(t, m.Save(renewed, s))

	cookies := renewed.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, s.ID, cookies[0].Value)

	stale, err := m.Load(requestWithCookies(oldCookies))
	require.NoError(t, err)
	assert.NotEqual(t, oldID, stale.ID)
	assert.False(t, stale.HasCredentials())

	loaded, err := m.Load(requestWithCookies(cookies))
	require.NoError(t, err)
	require.True(t, loaded.HasCredentials())
	assert.Equal(t, "access", loaded.Token.AccessToken)
}

func TestRenewUnsavedSession(t *testing.T) {
	m, _ := newTestManager(t, testKey(t))

	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	oldID := s.ID
	require.NoError(t, m.Renew(s))
	assert.NotEqual(t, oldID, s.ID)
}
