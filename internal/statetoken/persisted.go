package statetoken

import (
	"context"
	"crypto/subtle"

	"github.com/charmbracelet/log"
)

// KV is the durable key-value storage backing a [PersistedStore].
//
// Get returns the empty string when the key is absent. Storage faults are
// logged by the store and degrade to "no value present".
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// PersistedStore keeps a single outstanding token in durable storage under a
// fixed key. Only one authorization attempt can be in flight at a time:
// Issue overwrites any prior unconsumed token, treating it as abandoned.
//
// Validate removes the stored entry unconditionally, whether or not the
// presented token matched, so a callback can never be replayed.
type PersistedStore struct {
	kv     KV
	key    string
	logger *log.Logger
}

// NewPersistedStore creates a [PersistedStore] over kv using the fixed
// storage key. The logger may be nil.
func NewPersistedStore(kv KV, key string, logger *log.Logger) *PersistedStore {
	if logger == nil {
		logger = log.Default()
	}
	return &PersistedStore{kv: kv, key: key, logger: logger}
}

// Issue generates a fresh token and stores it, replacing any prior one.
func (s *PersistedStore) Issue(ctx context.Context) (Token, error) {
	token, err := New()
	if err != nil {
		return Token{}, err
	}

	if err := s.kv.Set(ctx, s.key, token.String()); err != nil {
		return Token{}, err
	}

	return token, nil
}

// Validate compares the presented token against the stored value and deletes
// the entry regardless of the outcome.
func (s *PersistedStore) Validate(ctx context.Context, t Token) bool {
	stored, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("failed to read stored state token", "error", err)
		stored = ""
	}

	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.logger.Warn("failed to delete stored state token", "error", err)
	}

	if stored == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(t.String())) == 1
}
