package oauth

import (
	"fmt"
	"net/url"

	"spoton/internal/shared"
)

// CallbackResult is the provider's callback payload: either a grant code or
// an explicit failure, always carrying back the state it was issued with.
//
// Transient; consumed immediately by [Exchanger.Redeem].
type CallbackResult struct {
	State         string
	Code          string
	ProviderError string
}

// Failed reports whether the provider returned an explicit failure.
func (r *CallbackResult) Failed() bool {
	return r.ProviderError != ""
}

// ParseCallback interprets the query parameters of an authorization-code
// callback. A payload missing its state, or carrying neither a code nor an
// error, violates the expected shape and fails closed with
// [shared.ErrMalformedCallback].
func ParseCallback(values url.Values) (*CallbackResult, error) {
	state := values.Get("state")
	if state == "" {
		return nil, fmt.Errorf("%w: missing state parameter", shared.ErrMalformedCallback)
	}

	code := values.Get("code")
	providerErr := values.Get("error")

	if code == "" && providerErr == "" {
		return nil, fmt.Errorf("%w: neither code nor error present", shared.ErrMalformedCallback)
	}
	if code != "" && providerErr != "" {
		return nil, fmt.Errorf("%w: both code and error present", shared.ErrMalformedCallback)
	}

	return &CallbackResult{
		State:         state,
		Code:          code,
		ProviderError: providerErr,
	}, nil
}
