package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authorization flow errors
	ErrStateMismatch     = fmt.Errorf("state mismatch, suspected request forgery")
	ErrProviderDenied    = fmt.Errorf("provider rejected authorization request")
	ErrExchangeFailed    = fmt.Errorf("token exchange failed")
	ErrMalformedCallback = fmt.Errorf("malformed callback payload")
	ErrNotAuthenticated  = fmt.Errorf("not authenticated")
	ErrTimeout           = fmt.Errorf("operation timed out")

	// Session errors
	ErrFetchFailed    = fmt.Errorf("profile fetch failed")
	ErrStorageFailure = fmt.Errorf("storage failure")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
