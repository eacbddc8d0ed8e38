package statetoken

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Outstanding tokens older than this are assumed abandoned (the user never
// returned from the provider) and are pruned on the next Issue.
const defaultTTL = 10 * time.Minute

// MemoryStore is a process-wide token store guarded by mutual exclusion.
//
// Each provider gets an independent namespace, so a token minted for one
// provider cannot validate a callback for another.
type MemoryStore struct {
	mu          sync.Mutex
	outstanding map[string]map[Token]time.Time
	ttl         time.Duration
	logger      *log.Logger
	now         func() time.Time
}

// NewMemoryStore creates a [MemoryStore]. The logger may be nil.
func NewMemoryStore(logger *log.Logger) *MemoryStore {
	if logger == nil {
		logger = log.Default()
	}
	return &MemoryStore{
		outstanding: map[string]map[Token]time.Time{},
		ttl:         defaultTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// Provider returns a [Store] scoped to the named provider's namespace.
func (s *MemoryStore) Provider(name string) Store {
	return &providerStore{parent: s, name: name}
}

func (s *MemoryStore) issue(provider string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.outstanding[provider]
	if tokens == nil {
		tokens = map[Token]time.Time{}
		s.outstanding[provider] = tokens
	}

	now := s.now()
	for t, issued := range tokens {
		if now.Sub(issued) > s.ttl {
			delete(tokens, t)
		}
	}

	// Practically unreachable with 128 bytes of entropy, but a collision is
	// handled rather than assumed away.
	var token Token
	for {
		var err error
		token, err = New()
		if err != nil {
			return Token{}, err
		}

		if _, exists := tokens[token]; exists {
			s.logger.Warn("state token collision", "provider", provider)
			continue
		}

		break
	}

	tokens[token] = now
	return token, nil
}

func (s *MemoryStore) validate(provider string, t Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.outstanding[provider]
	if tokens == nil {
		return false
	}

	if _, present := tokens[t]; !present {
		return false
	}

	delete(tokens, t)
	return true
}

type providerStore struct {
	parent *MemoryStore
	name   string
}

func (p *providerStore) Issue(ctx context.Context) (Token, error) {
	return p.parent.issue(p.name)
}

func (p *providerStore) Validate(ctx context.Context, t Token) bool {
	return p.parent.validate(p.name, t)
}
