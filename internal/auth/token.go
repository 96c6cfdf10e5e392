package auth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// TokenSource wraps the oauth2 refreshing source and remembers whether a
// refresh produced a new token, so it can be written back to the session.
type TokenSource struct {
	mu      sync.Mutex
	base    oauth2.TokenSource
	initial *oauth2.Token
	current *oauth2.Token
}

// NewTokenSource creates a new TokenSource
func NewTokenSource(ctx context.Context, config *oauth2.Config, token *oauth2.Token) *TokenSource {
	return &TokenSource{
		base:    config.TokenSource(ctx, token),
		initial: token,
		current: token,
	}
}

// Token returns a valid token, refreshing if necessary
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	ts.mu.Lock()
	ts.current = token
	ts.mu.Unlock()
	return token, nil
}

// Refreshed returns the latest token and whether it differs from the one the
// source was created with.
func (ts *TokenSource) Refreshed() (*oauth2.Token, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.current == nil || ts.initial == nil {
		return ts.current, false
	}
	return ts.current, ts.current.AccessToken != ts.initial.AccessToken
}
