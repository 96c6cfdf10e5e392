package auth

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// Google OAuth scopes
	GoogleDriveScope = "https://www.googleapis.com/auth/drive"
	GoogleEmailScope = "https://www.googleapis.com/auth/userinfo.email"
	OpenIDScope      = "openid"
)

// OAuthConfig creates the Google OAuth2 configuration. redirectURL must be the
// absolute URL of the oauth2callback route. openID adds the scope needed to
// receive an ID token.
func OAuthConfig(clientID, clientSecret, redirectURL string, openID bool) *oauth2.Config {
	scopes := []string{GoogleDriveScope, GoogleEmailScope}
	if openID {
		scopes = append(scopes, OpenIDScope)
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// AuthCodeURL returns the consent screen URL. state is echoed back to the
// callback untouched. Offline access with forced approval makes Google return
// a refresh token on every consent.
func AuthCodeURL(config *oauth2.Config, state string) string {
	return config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}
