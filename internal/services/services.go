// package services defines interfaces for interacting with provider HTTP APIs
package services

import (
	"context"

	"golang.org/x/oauth2"

	"spoton/internal/models"
)

// Service defines the provider API surface used with an access token.
type Service interface {
	// Profile retrieves the authenticated user's profile snapshot.
	// A provider-reported error means the token was not accepted.
	Profile(ctx context.Context, accessToken string) (*models.Profile, error)

	// NowPlaying retrieves the user's current playback state.
	// Returns nil when nothing is playing.
	NowPlaying(ctx context.Context, accessToken string) (*models.NowPlaying, error)

	// Name returns the name of the provider (e.g., "Spotify")
	Name() string
}

// OAuthService defines the provider-specific pieces of the authorization flow.
type OAuthService interface {
	// GetAuthURL returns the authorization URL for the given state token.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the underlying OAuth2 configuration for the
	// code exchange.
	GetOAuthConfig() *oauth2.Config

	// Name returns the name of the provider.
	Name() string
}
