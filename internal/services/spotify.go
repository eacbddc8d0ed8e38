// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"spoton/internal/models"
	"spoton/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// DefaultScope covers the profile probe and the currently-playing endpoint.
const DefaultScope = "user-read-currently-playing user-read-private"

// SpotifyService implements [Service] and [OAuthService] for Spotify.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	baseURL    string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, logger *log.Logger) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:8080/callback"
	}

	scope, ok := credentials["scope"]
	if !ok || scope == "" {
		scope = DefaultScope
	}

	if logger == nil {
		logger = log.Default()
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
		logger:     logger,
		baseURL:    spotifyBaseURL,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for the given state token.
//
// show_dialog forces the consent screen so re-authorization is always an
// explicit user action.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// GetOAuthConfig exposes the OAuth2 configuration for the code exchange.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// doRequest performs an authenticated GET against the Spotify API.
//
// Returns the HTTP status code so callers can distinguish "no content" from
// a decoded body.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint, accessToken string, result any) (int, error) {
	if accessToken == "" {
		return 0, shared.ErrNotAuthenticated
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("spotify API error", "endpoint", endpoint, "status", resp.StatusCode)
		return resp.StatusCode, fmt.Errorf("%w: status %d", shared.ErrFetchFailed, resp.StatusCode)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
		}
	}

	return resp.StatusCode, nil
}

// Profile retrieves the current authenticated user's profile.
func (s *SpotifyService) Profile(ctx context.Context, accessToken string) (*models.Profile, error) {
	var profile models.Profile
	if _, err := s.doRequest(ctx, "/me", accessToken, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// NowPlaying retrieves the user's current playback state.
//
// Spotify answers 204 when nothing is playing; that maps to a nil result.
func (s *SpotifyService) NowPlaying(ctx context.Context, accessToken string) (*models.NowPlaying, error) {
	var playing models.NowPlaying
	status, err := s.doRequest(ctx, "/me/player/currently-playing", accessToken, &playing)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNoContent {
		return nil, nil
	}

	return &playing, nil
}
