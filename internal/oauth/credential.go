// package oauth implements the authorization-code exchange: parsing the
// provider's callback, enforcing the anti-forgery state check, and turning a
// successful grant into a stored credential.
package oauth

import (
	"time"

	"golang.org/x/oauth2"
)

// Credential is an access token plus the absolute instant it expires.
//
// The expiry is always a wall-clock instant, never a duration, so a
// persisted credential survives process restarts. A credential is
// superseded (overwritten) on every successful re-authorization and cleared
// on logout.
type Credential struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// FromToken converts an exchanged [oauth2.Token] into a Credential.
func FromToken(token *oauth2.Token) *Credential {
	return &Credential{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
	}
}

// Expired reports whether the credential's expiry has passed at the given
// instant. The boundary counts as expired.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Equal reports whether two credentials are the same value. Used to tag
// in-flight profile fetches with the credential they were issued against.
func (c *Credential) Equal(other *Credential) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.AccessToken == other.AccessToken && c.ExpiresAt.Equal(other.ExpiresAt)
}
