// package session derives the externally observable authentication state
// from the persisted credential and the outcome of a profile probe, and
// exposes the transitions out of each state.
package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"spoton/internal/models"
	"spoton/internal/oauth"
	"spoton/internal/shared"
	"spoton/internal/statetoken"
)

// State is the session's externally observable authentication status.
type State int

const (
	// Unauthorized: no credential is persisted.
	Unauthorized State = iota
	// Unknown: a live credential exists but the profile probe has not
	// resolved yet.
	Unknown
	// Valid: the provider accepted the credential.
	Valid
	// Invalid: the credential expired, or the provider rejected it. The
	// provider is authoritative over token validity, so a rejection counts
	// even when the stored expiry has not elapsed.
	Invalid
)

func (s State) String() string {
	switch s {
	case Unauthorized:
		return "Unauthorized"
	case Unknown:
		return "Unknown"
	case Valid:
		return "Valid"
	case Invalid:
		return "Invalid"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is a derived view of the session; it is recomputed on every
// observation and never stored.
//
// Profile is non-nil only in the Valid state. Credential is nil only in the
// Unauthorized state.
type Snapshot struct {
	State      State
	Credential *oauth.Credential
	Profile    *models.Profile
}

// CredentialStore persists the credential across runs.
//
// Load returns (nil, nil) when no credential is present. Implementations
// treat corrupt stored data as absent rather than failing.
type CredentialStore interface {
	Load(ctx context.Context) (*oauth.Credential, error)
	Save(ctx context.Context, cred *oauth.Credential) error
	Clear(ctx context.Context) error
}

// ProfileFetcher probes the provider with an access token.
type ProfileFetcher interface {
	Profile(ctx context.Context, accessToken string) (*models.Profile, error)
}

// URLBuilder produces the provider's authorization URL for a state token.
type URLBuilder interface {
	GetAuthURL(state string) string
}

type fetchOutcome struct {
	cred    *oauth.Credential
	profile *models.Profile
	err     error
}

type inflightFetch struct {
	cred *oauth.Credential
	done chan struct{}
}

// Manager owns the session lifecycle: it reads the persisted credential,
// runs the staleness-guarded profile probe, and applies the authorize /
// reauthorize / unauthorize transitions.
type Manager struct {
	mu        sync.Mutex
	creds     CredentialStore
	tokens    statetoken.Store
	urls      URLBuilder
	exchanger *oauth.Exchanger
	fetcher   ProfileFetcher
	logger    *log.Logger
	now       func() time.Time

	cred     *oauth.Credential
	loaded   bool
	outcome  *fetchOutcome
	inflight *inflightFetch
	subs     []func(Snapshot)
}

// Options contains the collaborators for a [Manager].
type Options struct {
	Credentials CredentialStore
	Tokens      statetoken.Store
	URLs        URLBuilder
	Exchanger   *oauth.Exchanger
	Fetcher     ProfileFetcher
	Logger      *log.Logger
	Now         func() time.Time
}

// NewManager creates a session [Manager] from the provided collaborators.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		creds:     opts.Credentials,
		tokens:    opts.Tokens,
		urls:      opts.URLs,
		exchanger: opts.Exchanger,
		fetcher:   opts.Fetcher,
		logger:    opts.Logger,
		now:       opts.Now,
	}
}

// Observe derives the current snapshot, starting the profile probe when the
// credential is live and no probe for it has resolved or is outstanding.
func (m *Manager) Observe(ctx context.Context) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadLocked(ctx)

	snap := m.deriveLocked()
	if snap.State == Unknown {
		m.startFetchLocked()
	}

	return snap
}

// Resolve observes the session and, when the state is Unknown, waits for the
// outstanding profile probe so the returned snapshot is settled.
func (m *Manager) Resolve(ctx context.Context) (Snapshot, error) {
	for {
		snap := m.Observe(ctx)
		if snap.State != Unknown {
			return snap, nil
		}

		m.mu.Lock()
		fetch := m.inflight
		m.mu.Unlock()

		if fetch == nil {
			continue
		}

		select {
		case <-fetch.done:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Authorize issues a fresh state token and returns the provider URL to
// navigate to. Valid from any state; a prior unconsumed token is abandoned.
func (m *Manager) Authorize(ctx context.Context) (string, error) {
	token, err := m.tokens.Issue(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to issue state token: %w", err)
	}

	return m.urls.GetAuthURL(token.String()), nil
}

// Reauthorize starts a fresh authorization round trip. Never a silent
// refresh: no refresh token is retained, so the user always navigates.
func (m *Manager) Reauthorize(ctx context.Context) (string, error) {
	return m.Authorize(ctx)
}

// Unauthorize clears the persisted credential and the cached profile. The
// next observation reports Unauthorized.
func (m *Manager) Unauthorize(ctx context.Context) error {
	m.mu.Lock()
	err := m.creds.Clear(ctx)
	m.cred = nil
	m.loaded = true
	m.outcome = nil
	m.inflight = nil
	m.mu.Unlock()

	m.notify()

	if err != nil {
		m.logger.Warn("failed to clear persisted credential", "error", err)
		return fmt.Errorf("%w: %v", shared.ErrStorageFailure, err)
	}

	return nil
}

// CompleteCallback processes the provider's callback payload exactly once:
// parse, validate state, exchange, persist. On any failure no credential is
// written. On success the new credential supersedes storage and the cached
// profile is dropped so the next observation re-probes.
func (m *Manager) CompleteCallback(ctx context.Context, values url.Values) error {
	result, err := oauth.ParseCallback(values)
	if err != nil {
		return err
	}

	cred, err := m.exchanger.Redeem(ctx, result)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.creds.Save(ctx, cred); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", shared.ErrStorageFailure, err)
	}
	m.cred = cred
	m.loaded = true
	m.outcome = nil
	m.inflight = nil
	m.mu.Unlock()

	m.notify()
	return nil
}

// Subscribe registers fn to run whenever the credential or probe outcome
// changes. Callers re-derive by observing; fn receives the fresh snapshot.
func (m *Manager) Subscribe(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *Manager) loadLocked(ctx context.Context) {
	if m.loaded {
		return
	}

	cred, err := m.creds.Load(ctx)
	if err != nil {
		// Storage faults degrade to "no value present".
		m.logger.Warn("failed to load persisted credential", "error", err)
		cred = nil
	}

	m.cred = cred
	m.loaded = true
}

// deriveLocked is the pure transition function (credential, probe outcome)
// -> state. It has no side effects; fetch scheduling happens in Observe.
func (m *Manager) deriveLocked() Snapshot {
	if m.cred == nil {
		return Snapshot{State: Unauthorized}
	}

	// Expiry is checked before the probe is even considered.
	if m.cred.Expired(m.now()) {
		return Snapshot{State: Invalid, Credential: m.cred}
	}

	if m.outcome != nil && m.outcome.cred.Equal(m.cred) {
		if m.outcome.err != nil {
			return Snapshot{State: Invalid, Credential: m.cred}
		}
		return Snapshot{State: Valid, Credential: m.cred, Profile: m.outcome.profile}
	}

	return Snapshot{State: Unknown, Credential: m.cred}
}

func (m *Manager) startFetchLocked() {
	if m.inflight != nil && m.inflight.cred.Equal(m.cred) {
		return
	}

	fetch := &inflightFetch{cred: m.cred, done: make(chan struct{})}
	m.inflight = fetch
	go m.runFetch(fetch)
}

// runFetch performs the profile probe for the credential it was issued
// against. Results for a superseded credential are discarded on arrival.
func (m *Manager) runFetch(f *inflightFetch) {
	profile, err := m.fetcher.Profile(context.Background(), f.cred.AccessToken)
	if err != nil {
		m.logger.Warn("profile fetch failed", "error", err)
	}

	m.mu.Lock()
	if f.cred.Equal(m.cred) {
		m.outcome = &fetchOutcome{cred: f.cred, profile: profile, err: err}
	} else {
		m.logger.Debug("discarding stale profile fetch result")
	}
	if m.inflight == f {
		m.inflight = nil
	}
	m.mu.Unlock()

	close(f.done)
	m.notify()
}

func (m *Manager) notify() {
	m.mu.Lock()
	subs := make([]func(Snapshot), len(m.subs))
	copy(subs, m.subs)
	snap := m.deriveLocked()
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
