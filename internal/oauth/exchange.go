package oauth

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"spoton/internal/shared"
	"spoton/internal/statetoken"
)

// Exchanger turns a parsed callback into a credential.
//
// The state check runs first, always, even when the provider reported an
// explicit failure; a forged error payload must be indistinguishable from a
// forged grant. Because validation consumes the state token, redeeming the
// same callback twice fails the second time with [shared.ErrStateMismatch].
type Exchanger struct {
	config *oauth2.Config
	store  statetoken.Store
	logger *log.Logger
}

// NewExchanger creates an [Exchanger]. The logger may be nil.
func NewExchanger(config *oauth2.Config, store statetoken.Store, logger *log.Logger) *Exchanger {
	if logger == nil {
		logger = log.Default()
	}
	return &Exchanger{config: config, store: store, logger: logger}
}

// Redeem validates the callback's state, then either rejects the provider's
// failure or exchanges the grant code for an access token.
//
// The provider's expires_in duration is converted to an absolute expiry at
// the moment of the exchange, not deferred.
func (e *Exchanger) Redeem(ctx context.Context, result *CallbackResult) (*Credential, error) {
	token, err := statetoken.Parse(result.State)
	if err != nil {
		// An undecodable state was never issued by us.
		return nil, fmt.Errorf("%w: %v", shared.ErrStateMismatch, err)
	}

	if !e.store.Validate(ctx, token) {
		return nil, shared.ErrStateMismatch
	}

	if result.Failed() {
		return nil, fmt.Errorf("%w: %s", shared.ErrProviderDenied, result.ProviderError)
	}

	exchanged, err := e.config.Exchange(ctx, result.Code)
	if err != nil {
		e.logger.Error("token exchange failed", "error", err)
		return nil, fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
	}

	if exchanged.AccessToken == "" || exchanged.Expiry.IsZero() {
		e.logger.Error("token endpoint returned an incomplete grant")
		return nil, fmt.Errorf("%w: incomplete token response", shared.ErrExchangeFailed)
	}

	return FromToken(exchanged), nil
}
