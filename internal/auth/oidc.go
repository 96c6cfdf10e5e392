package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/FranLegon/drive-web/internal/logger"
)

// GoogleIssuer is the OIDC issuer of Google accounts.
const GoogleIssuer = "https://accounts.google.com"

// ErrNoIDToken is returned when the token response carried no id_token.
var ErrNoIDToken = errors.New("token response has no id_token")

// IDTokenVerifier checks the ID token returned by the code exchange and
// extracts the account email from it.
type IDTokenVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewIDTokenVerifier discovers the issuer's keys and builds a verifier for
// tokens issued to clientID.
func NewIDTokenVerifier(ctx context.Context, issuer, clientID string) (*IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider init: %w", err)
	}

	logger.Info("OIDC verifier initialized",
		zap.String("issuer", issuer),
		zap.String("client_id", clientID))

	return &IDTokenVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// Email verifies the ID token attached to token and returns its email claim.
func (v *IDTokenVerifier) Email(ctx context.Context, token *oauth2.Token) (string, error) {
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", ErrNoIDToken
	}

	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("failed to verify id token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to parse id token claims: %w", err)
	}
	if !claims.EmailVerified {
		return "", fmt.Errorf("email %q is not verified", claims.Email)
	}
	return claims.Email, nil
}
