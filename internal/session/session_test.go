package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"spoton/internal/models"
	"spoton/internal/oauth"
	"spoton/internal/shared"
	"spoton/internal/statetoken"
	mocks "spoton/internal/testing"
)

func newManager(t *testing.T, opts Options) *Manager {
	t.Helper()

	if opts.Credentials == nil {
		opts.Credentials = &mocks.MemoryCredentialStore{}
	}
	if opts.Tokens == nil {
		opts.Tokens = statetoken.NewPersistedStore(mocks.NewMemoryKV(), "spotify_auth_state", nil)
	}
	if opts.URLs == nil {
		opts.URLs = mocks.StaticURLs{}
	}
	if opts.Fetcher == nil {
		opts.Fetcher = &mocks.MockFetcher{Result: &models.Profile{ID: "user123"}}
	}

	return NewManager(opts)
}

func liveCredential(token string) *oauth.Credential {
	return &oauth.Credential{AccessToken: token, ExpiresAt: time.Now().Add(time.Hour)}
}

func TestDerivation(t *testing.T) {
	ctx := context.Background()

	t.Run("No Credential Is Unauthorized", func(t *testing.T) {
		m := newManager(t, Options{})

		snap := m.Observe(ctx)
		if snap.State != Unauthorized {
			t.Errorf("expected Unauthorized, got %s", snap.State)
		}
	})

	t.Run("Storage Failure Degrades To Unauthorized", func(t *testing.T) {
		store := &mocks.MemoryCredentialStore{LoadErr: errors.New("corrupt")}
		m := newManager(t, Options{Credentials: store})

		snap := m.Observe(ctx)
		if snap.State != Unauthorized {
			t.Errorf("expected Unauthorized on storage failure, got %s", snap.State)
		}
	})

	t.Run("Expired Credential Is Invalid Without Fetch", func(t *testing.T) {
		store := &mocks.MemoryCredentialStore{}
		store.Save(ctx, &oauth.Credential{AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Second)})

		fetcher := &mocks.MockFetcher{Result: &models.Profile{ID: "user123"}}
		m := newManager(t, Options{Credentials: store, Fetcher: fetcher})

		snap := m.Observe(ctx)
		if snap.State != Invalid {
			t.Errorf("expected Invalid, got %s", snap.State)
		}

		if calls := fetcher.Calls(); len(calls) != 0 {
			t.Errorf("expected no profile fetch for expired credential, got %d", len(calls))
		}
	})

	t.Run("Live Credential Is Unknown Then Valid", func(t *testing.T) {
		store := &mocks.MemoryCredentialStore{}
		store.Save(ctx, liveCredential("tok"))

		m := newManager(t, Options{Credentials: store})

		if snap := m.Observe(ctx); snap.State != Unknown {
			t.Errorf("expected Unknown before probe resolves, got %s", snap.State)
		}

		snap, err := m.Resolve(ctx)
		if err != nil {
			t.Fatalf("failed to resolve: %v", err)
		}
		if snap.State != Valid {
			t.Errorf("expected Valid, got %s", snap.State)
		}
		if snap.Profile == nil || snap.Profile.ID != "user123" {
			t.Errorf("expected profile in Valid snapshot, got %+v", snap.Profile)
		}
	})

	t.Run("Provider Rejection Is Invalid But Keeps Credential", func(t *testing.T) {
		store := &mocks.MemoryCredentialStore{}
		store.Save(ctx, liveCredential("stale"))

		fetcher := &mocks.MockFetcher{Err: shared.ErrFetchFailed}
		m := newManager(t, Options{Credentials: store, Fetcher: fetcher})

		snap, err := m.Resolve(ctx)
		if err != nil {
			t.Fatalf("failed to resolve: %v", err)
		}
		if snap.State != Invalid {
			t.Errorf("expected Invalid, got %s", snap.State)
		}
		if store.Stored() == nil {
			t.Error("expected credential to survive a failed probe")
		}
	})

	t.Run("Fetch Happens Once Per Credential", func(t *testing.T) {
		store := &mocks.MemoryCredentialStore{}
		store.Save(ctx, liveCredential("tok"))

		fetcher := &mocks.MockFetcher{Result: &models.Profile{ID: "user123"}}
		m := newManager(t, Options{Credentials: store, Fetcher: fetcher})

		if _, err := m.Resolve(ctx); err != nil {
			t.Fatalf("failed to resolve: %v", err)
		}
		for range 5 {
			m.Observe(ctx)
		}

		if calls := fetcher.Calls(); len(calls) != 1 {
			t.Errorf("expected exactly one fetch, got %d", len(calls))
		}
	})
}

func TestStalenessGuard(t *testing.T) {
	ctx := context.Background()

	store := &mocks.MemoryCredentialStore{}
	store.Save(ctx, liveCredential("credential_a"))

	block := make(chan struct{})
	fetcher := &mocks.MockFetcher{Result: &models.Profile{ID: "profile_a"}, Block: block}
	m := newManager(t, Options{Credentials: store, Fetcher: fetcher})

	// Hold A's probe in flight.
	if snap := m.Observe(ctx); snap.State != Unknown {
		t.Fatalf("expected Unknown, got %s", snap.State)
	}

	// Credential B supersedes A while A's probe is outstanding.
	credB := liveCredential("credential_b")
	m.mu.Lock()
	if err := store.Save(ctx, credB); err != nil {
		m.mu.Unlock()
		t.Fatal(err)
	}
	m.cred = credB
	m.outcome = nil
	m.inflight = nil
	m.mu.Unlock()

	// Release A's probe; its result belongs to a superseded credential and
	// must not settle the state.
	close(block)
	time.Sleep(50 * time.Millisecond)

	m.mu.Lock()
	outcome := m.outcome
	m.mu.Unlock()

	if outcome != nil && outcome.cred.AccessToken == "credential_a" {
		t.Error("stale fetch result must be discarded")
	}

	snap := m.Observe(ctx)
	if snap.State != Unknown && snap.State != Valid {
		t.Errorf("expected B's derivation to govern, got %s", snap.State)
	}
	if snap.Credential.AccessToken != "credential_b" {
		t.Errorf("expected credential B, got %s", snap.Credential.AccessToken)
	}
}

func TestUnauthorize(t *testing.T) {
	ctx := context.Background()

	store := &mocks.MemoryCredentialStore{}
	store.Save(ctx, liveCredential("tok"))

	m := newManager(t, Options{Credentials: store})

	if _, err := m.Resolve(ctx); err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}

	if err := m.Unauthorize(ctx); err != nil {
		t.Fatalf("failed to unauthorize: %v", err)
	}

	if store.Stored() != nil {
		t.Error("expected persisted credential to be cleared")
	}
	if snap := m.Observe(ctx); snap.State != Unauthorized {
		t.Errorf("expected Unauthorized after logout, got %s", snap.State)
	}
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("Produces URL With Issued State", func(t *testing.T) {
		kv := mocks.NewMemoryKV()
		tokens := statetoken.NewPersistedStore(kv, "spotify_auth_state", nil)
		m := newManager(t, Options{Tokens: tokens})

		authURL, err := m.Authorize(ctx)
		if err != nil {
			t.Fatalf("failed to authorize: %v", err)
		}

		stored, _ := kv.Get(ctx, "spotify_auth_state")
		if stored == "" {
			t.Fatal("expected issued state to be persisted")
		}
		if !strings.Contains(authURL, "state="+stored) {
			t.Errorf("expected auth URL to carry the issued state, got %s", authURL)
		}
	})

	t.Run("Reauthorize Issues A Fresh Token", func(t *testing.T) {
		kv := mocks.NewMemoryKV()
		tokens := statetoken.NewPersistedStore(kv, "spotify_auth_state", nil)
		m := newManager(t, Options{Tokens: tokens})

		first, err := m.Authorize(ctx)
		if err != nil {
			t.Fatalf("failed to authorize: %v", err)
		}

		second, err := m.Reauthorize(ctx)
		if err != nil {
			t.Fatalf("failed to reauthorize: %v", err)
		}

		if first == second {
			t.Error("expected a fresh state token on every round trip")
		}
	})
}

// newCallbackManager wires a manager with a real exchanger against a fake
// token endpoint.
func newCallbackManager(t *testing.T, store *mocks.MemoryCredentialStore, fetcher *mocks.MockFetcher) (*Manager, statetoken.Store) {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"exchanged_token","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(ts.Close)

	config := &oauth2.Config{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.test/authorize",
			TokenURL:  ts.URL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	tokens := statetoken.NewPersistedStore(mocks.NewMemoryKV(), "spotify_auth_state", nil)
	m := newManager(t, Options{
		Credentials: store,
		Tokens:      tokens,
		Exchanger:   oauth.NewExchanger(config, tokens, nil),
		Fetcher:     fetcher,
	})

	return m, tokens
}

func TestCompleteCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("Full Round Trip", func(t *testing.T) {
		store := &mocks.MemoryCredentialStore{}
		fetcher := &mocks.MockFetcher{Result: &models.Profile{ID: "user123"}}
		m, tokens := newCallbackManager(t, store, fetcher)

		issued, err := tokens.Issue(ctx)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		before := time.Now()
		err = m.CompleteCallback(ctx, url.Values{"code": {"abc"}, "state": {issued.String()}})
		if err != nil {
			t.Fatalf("expected callback to succeed, got %v", err)
		}

		stored := store.Stored()
		if stored == nil || stored.AccessToken != "exchanged_token" {
			t.Fatalf("expected exchanged credential to be persisted, got %+v", stored)
		}
		want := before.Add(3600 * time.Second)
		if stored.ExpiresAt.Before(want.Add(-time.Minute)) || stored.ExpiresAt.After(want.Add(time.Minute)) {
			t.Errorf("expected expiry near now+3600s, got %v", stored.ExpiresAt)
		}

		if snap := m.Observe(ctx); snap.State != Unknown {
			t.Errorf("expected Unknown right after callback, got %s", snap.State)
		}

		snap, err := m.Resolve(ctx)
		if err != nil {
			t.Fatalf("failed to resolve: %v", err)
		}
		if snap.State != Valid {
			t.Errorf("expected Valid after probe, got %s", snap.State)
		}
	})

	t.Run("Consumed State Is Rejected", func(t *testing.T) {
		store := &mocks.MemoryCredentialStore{}
		m, tokens := newCallbackManager(t, store, &mocks.MockFetcher{})

		issued, err := tokens.Issue(ctx)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		values := url.Values{"code": {"abc"}, "state": {issued.String()}}
		if err := m.CompleteCallback(ctx, values); err != nil {
			t.Fatalf("expected first callback to succeed, got %v", err)
		}

		// Re-presenting the consumed state must be treated as forged.
		err = m.CompleteCallback(ctx, values)
		if !errors.Is(err, shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch on replay, got %v", err)
		}
	})

	t.Run("Forged State Writes Nothing", func(t *testing.T) {
		store := &mocks.MemoryCredentialStore{}
		m, _ := newCallbackManager(t, store, &mocks.MockFetcher{})

		forged, err := statetoken.New()
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}

		err = m.CompleteCallback(ctx, url.Values{"code": {"abc"}, "state": {forged.String()}})
		if !errors.Is(err, shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", err)
		}

		if store.Stored() != nil {
			t.Error("no credential may be written on a rejected callback")
		}
		if snap := m.Observe(ctx); snap.State != Unauthorized {
			t.Errorf("expected session to remain Unauthorized, got %s", snap.State)
		}
	})

	t.Run("Malformed Payload Fails Closed", func(t *testing.T) {
		store := &mocks.MemoryCredentialStore{}
		m, _ := newCallbackManager(t, store, &mocks.MockFetcher{})

		err := m.CompleteCallback(ctx, url.Values{"code": {"abc"}})
		if !errors.Is(err, shared.ErrMalformedCallback) {
			t.Errorf("expected ErrMalformedCallback, got %v", err)
		}
		if store.Stored() != nil {
			t.Error("no credential may be written on a malformed callback")
		}
	})

	t.Run("Invalid Session Can Reauthorize", func(t *testing.T) {
		store := &mocks.MemoryCredentialStore{}
		store.Save(ctx, liveCredential("rejected_token"))

		fetcher := &mocks.MockFetcher{Err: shared.ErrFetchFailed}
		m, _ := newCallbackManager(t, store, fetcher)

		snap, err := m.Resolve(ctx)
		if err != nil {
			t.Fatalf("failed to resolve: %v", err)
		}
		if snap.State != Invalid {
			t.Fatalf("expected Invalid after provider rejection, got %s", snap.State)
		}

		first, err := m.Reauthorize(ctx)
		if err != nil {
			t.Fatalf("failed to reauthorize: %v", err)
		}
		second, err := m.Reauthorize(ctx)
		if err != nil {
			t.Fatalf("failed to reauthorize: %v", err)
		}
		if first == second {
			t.Error("expected each reauthorize to mint a distinct token")
		}
	})
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()

	store := &mocks.MemoryCredentialStore{}
	store.Save(ctx, liveCredential("tok"))

	m := newManager(t, Options{Credentials: store})

	notified := make(chan Snapshot, 4)
	m.Subscribe(func(snap Snapshot) {
		notified <- snap
	})

	if _, err := m.Resolve(ctx); err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}

	select {
	case snap := <-notified:
		if snap.State != Valid {
			t.Errorf("expected Valid notification, got %s", snap.State)
		}
	case <-time.After(time.Second):
		t.Error("expected a notification after probe resolution")
	}
}
