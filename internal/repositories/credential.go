package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"

	"spoton/internal/oauth"
)

// CredentialKey is the kv key under which the provider credential is stored.
const CredentialKey = "spotify_auth"

// StateTokenKey is the kv key under which the pending authorization state
// token is stored.
const StateTokenKey = "spotify_auth_state"

// CredentialRepository persists the provider credential as a JSON blob in
// the kv table. It implements [session.CredentialStore].
type CredentialRepository struct {
	kv     *KVRepository
	logger *log.Logger
}

// NewCredentialRepository creates a new [CredentialRepository] over the given kv store
func NewCredentialRepository(kv *KVRepository, logger *log.Logger) *CredentialRepository {
	if logger == nil {
		logger = log.Default()
	}
	return &CredentialRepository{kv: kv, logger: logger}
}

// Load retrieves the stored credential, returning (nil, nil) when none is
// present. A blob that fails to decode is treated as absent.
func (r *CredentialRepository) Load(ctx context.Context) (*oauth.Credential, error) {
	raw, err := r.kv.Get(ctx, CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if raw == "" {
		return nil, nil
	}

	var cred oauth.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		r.logger.Warn("discarding unreadable stored credential", "error", err)
		return nil, nil
	}

	return &cred, nil
}

// Save persists cred, replacing any previously stored credential
func (r *CredentialRepository) Save(ctx context.Context, cred *oauth.Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	if err := r.kv.Set(ctx, CredentialKey, string(raw)); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// Clear removes the stored credential
func (r *CredentialRepository) Clear(ctx context.Context) error {
	if err := r.kv.Delete(ctx, CredentialKey); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
