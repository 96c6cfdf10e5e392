package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/FranLegon/drive-web/internal/api"
	"github.com/FranLegon/drive-web/internal/auth"
	"github.com/FranLegon/drive-web/internal/config"
	"github.com/FranLegon/drive-web/internal/crypto"
	"github.com/FranLegon/drive-web/internal/database"
	"github.com/FranLegon/drive-web/internal/google"
	"github.com/FranLegon/drive-web/internal/logger"
	"github.com/FranLegon/drive-web/internal/server"
	"github.com/FranLegon/drive-web/internal/session"
)

// app bundles everything serve needs.
type app struct {
	db     *database.DB
	server *server.Server
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		logger.Error("failed to close session database", zap.Error(err))
	}
}

func loadSecrets() (*config.Secrets, error) {
	password, err := config.GetMasterPassword(false)
	if err != nil {
		return nil, fmt.Errorf("failed to read master password: %w", err)
	}

	secrets, err := config.LoadSecrets(secretsDir(), password)
	if err != nil {
		return nil, err
	}
	if err := secrets.Validate(); err != nil {
		return nil, err
	}
	return secrets, nil
}

// sessionKey derives the key that seals stored tokens. The secrets salt is
// reused so the key is stable across restarts.
func sessionKey(secrets *config.Secrets) ([]byte, error) {
	salt, err := crypto.LoadSalt(filepath.Join(secretsDir(), config.SaltFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read salt file: %w", err)
	}
	return crypto.DeriveKey(secrets.SessionSecret, salt), nil
}

func driveClientFactory(ctx context.Context, ts oauth2.TokenSource) (api.Drive, error) {
	client, err := google.NewClient(ctx, ts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newApp(ctx context.Context, s *config.Settings) (*app, error) {
	secrets, err := loadSecrets()
	if err != nil {
		return nil, err
	}

	key, err := sessionKey(secrets)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(s.SessionDB)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(db, key, session.Options{
		TTL:    s.SessionTTL,
		Secure: s.CookieSecure,
	})

	oauthConfig := auth.OAuthConfig(secrets.GoogleClient.ID, secrets.GoogleClient.Secret, s.RedirectURL(), s.VerifyIDToken)

	var verifier server.EmailVerifier
	if s.VerifyIDToken {
		v, err := auth.NewIDTokenVerifier(ctx, auth.GoogleIssuer, secrets.GoogleClient.ID)
		if err != nil {
			db.Close()
			return nil, err
		}
		verifier = v
	}

	srv, err := server.New(server.Config{
		RootFolderID:      s.RootFolderID,
		RootFolderName:    s.RootFolderName,
		MaxDepth:          s.MaxDepth,
		UploadMemoryLimit: s.UploadMemoryLimit,
		InformativeErrors: s.Debug,
	}, sessions, oauthConfig, driveClientFactory, verifier)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{db: db, server: srv}, nil
}
