package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"spoton/internal/oauth"
	"spoton/internal/shared"
	"spoton/internal/statetoken"
)

// CredentialSaver persists an exchanged credential. [session.CredentialStore]
// satisfies it.
type CredentialSaver interface {
	Save(ctx context.Context, cred *oauth.Credential) error
}

// AuthURLBuilder produces the provider authorization URL for a state token.
type AuthURLBuilder interface {
	GetAuthURL(state string) string
}

// RelayHandler serves the standing authorization relay: it hands out
// redirect URLs with server-issued state tokens and consumes the provider's
// redirect back.
//
// Unlike [CallbackHandler] it serves many flows concurrently, so its state
// tokens live in a shared [statetoken.Store] rather than a single slot.
type RelayHandler struct {
	urls      AuthURLBuilder
	tokens    statetoken.Store
	exchanger *oauth.Exchanger
	creds     CredentialSaver
	logger    *log.Logger
}

// NewRelayHandler creates a new [RelayHandler].
func NewRelayHandler(urls AuthURLBuilder, tokens statetoken.Store, exchanger *oauth.Exchanger, creds CredentialSaver, logger *log.Logger) *RelayHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &RelayHandler{
		urls:      urls,
		tokens:    tokens,
		exchanger: exchanger,
		creds:     creds,
		logger:    logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *RelayHandler) Routes() []string {
	return []string{"/healthy", "/auth/spotify", "/auth/spotify/redirect"}
}

// ServeHTTP dispatches to the relay's routes.
func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthy":
		h.handleHealthy(w, r)
	case "/auth/spotify":
		h.handleBegin(w, r)
	case "/auth/spotify/redirect":
		h.handleRedirect(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *RelayHandler) handleHealthy(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// handleBegin issues a fresh state token and redirects the caller to the
// provider's authorization page.
func (h *RelayHandler) handleBegin(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens.Issue(r.Context())
	if err != nil {
		h.logger.Error("failed to issue state token", "error", err)
		http.Error(w, "Failed to start authorization", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.urls.GetAuthURL(token.String()), http.StatusTemporaryRedirect)
}

// handleRedirect consumes the provider's redirect: state first, then the
// provider's verdict, then the code exchange.
func (h *RelayHandler) handleRedirect(w http.ResponseWriter, r *http.Request) {
	result, err := oauth.ParseCallback(r.URL.Query())
	if err != nil {
		http.Error(w, "Malformed authorization response", http.StatusBadRequest)
		return
	}

	cred, err := h.exchanger.Redeem(r.Context(), result)
	if err != nil {
		h.writeRedeemError(w, err)
		return
	}

	if err := h.creds.Save(r.Context(), cred); err != nil {
		h.logger.Error("failed to persist credential", "error", err)
		http.Error(w, "Failed to store credential", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "authorized"})
}

func (h *RelayHandler) writeRedeemError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrStateMismatch):
		// Either a forged request or a replayed state; both fail closed.
		h.logger.Warn("rejected callback with invalid state")
		http.Error(w, "Invalid state, suspected request forgery", http.StatusBadRequest)
	case errors.Is(err, shared.ErrProviderDenied):
		http.Error(w, "Authorization denied by provider", http.StatusUnauthorized)
	case errors.Is(err, shared.ErrExchangeFailed):
		h.logger.Error("code exchange failed", "error", err)
		http.Error(w, "Code exchange failed", http.StatusBadGateway)
	default:
		http.Error(w, fmt.Sprintf("Authorization failed: %v", err), http.StatusInternalServerError)
	}
}
