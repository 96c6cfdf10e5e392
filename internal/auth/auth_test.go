package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/FranLegon/drive-web/internal/api"
	"github.com/FranLegon/drive-web/internal/crypto"
	"github.com/FranLegon/drive-web/internal/database"
	"github.com/FranLegon/drive-web/internal/session"
)

func TestOAuthConfigScopes(t *testing.T) {
	cfg := OAuthConfig("id", "secret", "http://localhost:8000/oauth2callback/", false)
	assert.Equal(t, []string{GoogleDriveScope, GoogleEmailScope}, cfg.Scopes)
	assert.Equal(t, "http://localhost:8000/oauth2callback/", cfg.RedirectURL)

	cfg = OAuthConfig("id", "secret", "", true)
	assert.Contains(t, cfg.Scopes, OpenIDScope)
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	cfg := OAuthConfig("client-1", "secret", "http://localhost:8000/oauth2callback/", false)

	u, err := url.Parse(AuthCodeURL(cfg, "show_folder_contents"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "show_folder_contents", q.Get("state"))
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
}

type fakeDrive struct{ api.Drive }

func newTestSessions(t *testing.T) *session.Manager {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	salt, err := crypto.GenerateSalt()
	require.NoError(t, err)
	return session.NewManager(db, crypto.DeriveKey("secret", salt), session.Options{TTL: time.Hour})
}

func newTestGate(sessions *session.Manager, calls *int) *Gate {
	factory := func(ctx context.Context, ts oauth2.TokenSource) (api.Drive, error) {
		*calls++
		return fakeDrive{}, nil
	}
	loginURL := func(view string) string {
		return "/oauth2callback/?redirect_view=" + url.QueryEscape(view)
	}
	return NewGate(sessions, OAuthConfig("id", "secret", "", false), factory, loginURL)
}

func storeToken(t *testing.T, sessions *session.Manager, token *oauth2.Token) []*http.Cookie {
	t.Helper()
	sess, err := sessions.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Token = token
	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Save(rec, sess))
	return rec.Result().Cookies()
}

func TestGateRedirectsWithoutCredentials(t *testing.T) {
	calls := 0
	g := newTestGate(newTestSessions(t), &calls)

	handler := g.Require("show_folder_contents", func(w http.ResponseWriter, r *http.Request, drive api.Drive) error {
		t.Fatal("handler must not run")
		return nil
	})

	rec := httptest.NewRecorder()
	require.NoError(t, handler(rec, httptest.NewRequest(http.MethodGet, "/list_folder/", nil)))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/oauth2callback/?redirect_view=show_folder_contents", rec.Header().Get("Location"))
	assert.Zero(t, calls)
}

func TestGateRedirectsOnExpiredCredentials(t *testing.T) {
	sessions := newTestSessions(t)
	calls := 0
	g := newTestGate(sessions, &calls)
	cookies := storeToken(t, sessions, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(-time.Hour),
	})

	handler := g.Require("download_file", func(w http.ResponseWriter, r *http.Request, drive api.Drive) error {
		t.Fatal("handler must not run")
		return nil
	})

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req := httptest.NewRequest(method, "/download_file/abc/", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		require.NoError(t, handler(rec, req))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/oauth2callback/?redirect_view=download_file", rec.Header().Get("Location"))
	}
	assert.Zero(t, calls)
}

func TestGatePassesDriveToHandler(t *testing.T) {
	sessions := newTestSessions(t)
	calls := 0
	g := newTestGate(sessions, &calls)
	cookies := storeToken(t, sessions, &oauth2.Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)})

	var got api.Drive
	handler := g.Require("index", func(w http.ResponseWriter, r *http.Request, drive api.Drive) error {
		got = drive
		w.WriteHeader(http.StatusNoContent)
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, handler(rec, req))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, calls)
	assert.NotNil(t, got)
}

func TestGateStoresRefreshedToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	sessions := newTestSessions(t)
	cfg := OAuthConfig("id", "secret", "", false)
	cfg.Endpoint = oauth2.Endpoint{TokenURL: tokenServer.URL}

	// Still valid, but inside the refresh window of the oauth2 package.
	cookies := storeToken(t, sessions, &oauth2.Token{
		AccessToken:  "old-access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(5 * time.Second),
	})

	factory := func(ctx context.Context, ts oauth2.TokenSource) (api.Drive, error) {
		token, err := ts.Token()
		if err != nil {
			return nil, err
		}
		assert.Equal(t, "new-access", token.AccessToken)
		return fakeDrive{}, nil
	}
	g := NewGate(sessions, cfg, factory, func(view string) string { return "/login/" + view })

	handler := g.Require("index", func(w http.ResponseWriter, r *http.Request, drive api.Drive) error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, handler(rec, req))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		again.AddCookie(c)
	}
	sess, err := sessions.Load(again)
	require.NoError(t, err)
	require.True(t, sess.HasCredentials())
	assert.Equal(t, "new-access", sess.Token.AccessToken)
	assert.Equal(t, "refresh", sess.Token.RefreshToken)
}

func TestExpired(t *testing.T) {
	now := time.Now()
	assert.True(t, expired(nil, now))
	assert.True(t, expired(&oauth2.Token{}, now))
	assert.True(t, expired(&oauth2.Token{AccessToken: "a", Expiry: now.Add(-time.Second)}, now))
	assert.False(t, expired(&oauth2.Token{AccessToken: "a"}, now))
	assert.False(t, expired(&oauth2.Token{AccessToken: "a", Expiry: now.Add(time.Second)}, now))
}

func TestTokenSourceReportsRefresh(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	cfg := &oauth2.Config{ClientID: "id", Endpoint: oauth2.Endpoint{TokenURL: tokenServer.URL}}
	ts := NewTokenSource(context.Background(), cfg, &oauth2.Token{
		AccessToken:  "old-access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(-time.Minute),
	})

	_, changed := ts.Refreshed()
	assert.False(t, changed)

	token, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "new-access", token.AccessToken)

	latest, changed := ts.Refreshed()
	assert.True(t, changed)
	assert.Equal(t, "refresh", latest.RefreshToken)
}

func TestEmailWithoutIDToken(t *testing.T) {
	v := &IDTokenVerifier{verifier: oidc.NewVerifier(GoogleIssuer, &oidc.StaticKeySet{}, &oidc.Config{ClientID: "id"})}

	_, err := v.Email(context.Background(), &oauth2.Token{AccessToken: "a"})
	assert.ErrorIs(t, err, ErrNoIDToken)

	withGarbage := (&oauth2.Token{AccessToken: "a"}).WithExtra(map[string]interface{}{"id_token": "not-a-jwt"})
	_, err = v.Email(context.Background(), withGarbage)
	assert.Error(t, err)
}
