// package statetoken implements the single-use anti-forgery tokens that bind
// an authorization request to its callback.
//
// A token is 128 bytes of cryptographically random data, transported as
// URL-safe base64. Validation consumes the token: a token can satisfy at
// most one Validate call, and a token that was never issued (or was already
// consumed) is reported the same way as an invalid one.
package statetoken

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Length is the number of random bytes in a token.
const Length = 128

// Token is an opaque anti-forgery value. Identity is exact byte equality.
type Token [Length]byte

// New generates a token from a cryptographically secure random source.
func New() (Token, error) {
	var t Token
	if _, err := rand.Read(t[:]); err != nil {
		return Token{}, fmt.Errorf("failed to generate state token: %w", err)
	}
	return t, nil
}

// String encodes the token as URL-safe base64 for transport.
func (t Token) String() string {
	return base64.RawURLEncoding.EncodeToString(t[:])
}

// Parse decodes a transported token. Values that do not decode to exactly
// [Length] bytes are rejected.
func Parse(s string) (Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Token{}, fmt.Errorf("failed to decode state token: %w", err)
	}
	if len(raw) != Length {
		return Token{}, fmt.Errorf("invalid state token length: %d", len(raw))
	}

	var t Token
	copy(t[:], raw)
	return t, nil
}

// Store issues and single-use-validates state tokens.
//
// Validate reports whether the token was outstanding, removing it in the
// same step. Callers must treat false uniformly; no distinction between
// "never issued", "already consumed", and "malformed" is exposed.
type Store interface {
	Issue(ctx context.Context) (Token, error)
	Validate(ctx context.Context, t Token) bool
}
