package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/FranLegon/drive-web/internal/api"
	"github.com/FranLegon/drive-web/internal/logger"
	"github.com/FranLegon/drive-web/internal/metrics"
	"github.com/FranLegon/drive-web/internal/session"
)

// Reasons a request is sent to the OAuth flow. Both lead to the same
// redirect; they only differ in logs and metrics.
const (
	ReasonMissing = "missing"
	ReasonExpired = "expired"
)

var gateTags = []string{"Auth"}

// HandlerFunc is a route handler that may fail. The server maps returned
// errors to responses.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// DriveHandler is a route handler that needs an authenticated drive.
type DriveHandler func(w http.ResponseWriter, r *http.Request, drive api.Drive) error

// ClientFactory builds a drive client for one request.
type ClientFactory func(ctx context.Context, ts oauth2.TokenSource) (api.Drive, error)

// Gate guards routes that need Google credentials.
type Gate struct {
	sessions *session.Manager
	config   *oauth2.Config
	factory  ClientFactory
	// loginURL returns the callback URL that starts the flow for view.
	loginURL func(view string) string
}

// NewGate creates a Gate.
func NewGate(sessions *session.Manager, config *oauth2.Config, factory ClientFactory, loginURL func(view string) string) *Gate {
	return &Gate{
		sessions: sessions,
		config:   config,
		factory:  factory,
		loginURL: loginURL,
	}
}

// Require wraps h. Requests without usable credentials are redirected to the
// login URL carrying view, so the callback can return there afterwards.
func (g *Gate) Require(view string, h DriveHandler) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		ctx := r.Context()
		log := logger.WithContext(ctx)

		sess, err := g.sessions.Load(r)
		if err != nil {
			return err
		}

		reason := ""
		switch {
		case !sess.HasCredentials():
			reason = ReasonMissing
		case expired(sess.Token, time.Now()):
			reason = ReasonExpired
		}
		if reason != "" {
			log.Info("credentials required",
				zap.Strings("tags", gateTags), zap.String("view", view), zap.String("reason", reason))
			metrics.RecordAuthRedirect(reason)
			http.Redirect(w, r, g.loginURL(view), http.StatusFound)
			return nil
		}

		ts := NewTokenSource(ctx, g.config, sess.Token)
		drive, err := g.factory(ctx, ts)
		if err != nil {
			return fmt.Errorf("failed to create drive client: %w", err)
		}

		handlerErr := h(w, r, drive)

		if token, changed := ts.Refreshed(); changed {
			sess.Token = token
			if err := g.sessions.Persist(sess); err != nil {
				log.Warn("failed to store refreshed token", zap.Strings("tags", gateTags), zap.Error(err))
			}
		}
		return handlerErr
	}
}

// expired reports whether token can no longer authorize requests at now. A
// token close to expiry still passes, and the refreshing source renews it
// before its first use.
func expired(token *oauth2.Token, now time.Time) bool {
	if token == nil || token.AccessToken == "" {
		return true
	}
	return !token.Expiry.IsZero() && !token.Expiry.After(now)
}
