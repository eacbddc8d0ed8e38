package statetoken

import (
	"context"
	"os"
	"testing"
)

// TestRedisStore talks to a real server. Point REDIS_ADDR at one (or run
// one at localhost:6379) to enable it; otherwise the test skips.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx := context.Background()

	newStore := func(t *testing.T, provider string) *RedisStore {
		t.Helper()
		store, err := NewRedisStore(ctx, addr, "", provider, nil)
		if err != nil {
			t.Skipf("redis not reachable at %s: %v", addr, err)
		}
		return store
	}

	t.Run("Single Use", func(t *testing.T) {
		store := newStore(t, "spotify")

		token, err := store.Issue(ctx)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		if !store.Validate(ctx, token) {
			t.Error("expected first validation to succeed")
		}
		if store.Validate(ctx, token) {
			t.Error("expected second validation to fail")
		}
	})

	t.Run("No False Positives", func(t *testing.T) {
		store := newStore(t, "spotify")

		issued, err := store.Issue(ctx)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		forged, err := New()
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}

		if store.Validate(ctx, forged) {
			t.Error("expected unissued token to be rejected")
		}
		if !store.Validate(ctx, issued) {
			t.Error("expected issued token to remain valid")
		}
	})

	t.Run("Provider Scoping", func(t *testing.T) {
		spotify := newStore(t, "spotify")
		other := newStore(t, "github")

		token, err := spotify.Issue(ctx)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		if other.Validate(ctx, token) {
			t.Error("expected token to be scoped to its provider")
		}
		if !spotify.Validate(ctx, token) {
			t.Error("expected token to validate under its own provider")
		}
	})

	t.Run("Distinct Tokens", func(t *testing.T) {
		store := newStore(t, "spotify")

		first, err := store.Issue(ctx)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}
		second, err := store.Issue(ctx)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		if first == second {
			t.Error("expected distinct tokens")
		}

		store.Validate(ctx, first)
		store.Validate(ctx, second)
	})
}
