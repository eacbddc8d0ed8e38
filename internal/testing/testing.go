// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"sync"

	"spoton/internal/models"
	"spoton/internal/oauth"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MemoryCredentialStore is an in-memory [session.CredentialStore] with
// optional fault injection.
type MemoryCredentialStore struct {
	mu      sync.Mutex
	cred    *oauth.Credential
	LoadErr error
	SaveErr error
}

func (s *MemoryCredentialStore) Load(ctx context.Context) (*oauth.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	return s.cred, nil
}

func (s *MemoryCredentialStore) Save(ctx context.Context, cred *oauth.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.cred = cred
	return nil
}

func (s *MemoryCredentialStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}

// Stored returns the currently persisted credential.
func (s *MemoryCredentialStore) Stored() *oauth.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

// MemoryKV is an in-memory key-value store implementing [statetoken.KV].
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string]string{}}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MockFetcher is a controllable [session.ProfileFetcher].
//
// When Block is non-nil each call waits on it before returning, so tests
// can hold a fetch in flight.
type MockFetcher struct {
	mu      sync.Mutex
	Result  *models.Profile
	Err     error
	Block   chan struct{}
	calls   []string
}

func (f *MockFetcher) Profile(ctx context.Context, accessToken string) (*models.Profile, error) {
	f.mu.Lock()
	f.calls = append(f.calls, accessToken)
	block := f.Block
	profile, err := f.Result, f.Err
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errors.New("no profile configured")
	}
	return profile, nil
}

// Calls returns the access tokens presented so far.
func (f *MockFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// StaticURLs is a [session.URLBuilder] that embeds the state into a fixed
// authorize URL, mirroring the real query shape.
type StaticURLs struct{}

func (StaticURLs) GetAuthURL(state string) string {
	return "https://accounts.example.test/authorize?response_type=code&state=" + state
}
