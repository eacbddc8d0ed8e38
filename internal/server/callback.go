package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"spoton/internal/shared"
)

// CallbackCompleter consumes the provider's callback payload exactly once.
// [session.Manager] implements it.
type CallbackCompleter interface {
	CompleteCallback(ctx context.Context, values url.Values) error
}

// CallbackHandler handles the authorization callback during a CLI login.
//
// The heavy lifting (state validation, code exchange, persistence) lives in
// the session manager; this handler's job is to accept exactly one callback,
// report the outcome to the waiting command through Result, and show the
// user a page they can close.
type CallbackHandler struct {
	session     CallbackCompleter
	resultChan  chan error
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a new [CallbackHandler] delegating to the given session.
func NewCallbackHandler(session CallbackCompleter) *CallbackHandler {
	return &CallbackHandler{
		session:    session,
		resultChan: make(chan error, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the authorization callback request.
//
// The first request wins; any later hit on the callback URL is rejected
// without touching the session.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	err := h.session.CompleteCallback(r.Context(), r.URL.Query())
	h.send(err)

	if err != nil {
		writeFailurePage(w, statusFor(err), messageFor(err))
		return
	}

	writeSuccessPage(w)
}

// send reports the outcome through the channel (only once).
func (h *CallbackHandler) send(err error) {
	h.once.Do(func() {
		h.resultChan <- err
		close(h.resultChan)
	})
}

// Result returns the channel carrying the flow's outcome.
//
// Channel will receive exactly one value and then be closed; nil means the
// credential was exchanged and persisted.
func (h *CallbackHandler) Result() <-chan error {
	return h.resultChan
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrStateMismatch), errors.Is(err, shared.ErrMalformedCallback):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrProviderDenied):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrExchangeFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, shared.ErrStateMismatch):
		return "The authorization response did not match an outstanding request. Please try logging in again."
	case errors.Is(err, shared.ErrMalformedCallback):
		return "The authorization response was malformed."
	case errors.Is(err, shared.ErrProviderDenied):
		return "Spotify denied the authorization request."
	case errors.Is(err, shared.ErrExchangeFailed):
		return "The authorization code could not be exchanged."
	default:
		return "Something went wrong completing the authorization."
	}
}

func writeSuccessPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}

func writeFailurePage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Failed</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #E22134; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✗ Authorization Failed</h1>
        <p>%s</p>
    </div>
</body>
</html>
`, message)
}
