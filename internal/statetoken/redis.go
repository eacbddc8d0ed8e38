package statetoken

import (
	"context"

	"github.com/charmbracelet/log"
	goredis "github.com/redis/go-redis/v9"
)

// RedisStore backs the [Store] contract with redis, for relay deployments
// that run more than one instance behind a load balancer.
//
// Outstanding tokens carry a TTL so abandoned attempts expire on their own.
type RedisStore struct {
	client   *goredis.Client
	provider string
	logger   *log.Logger
}

// NewRedisStore creates a [RedisStore] scoped to the named provider and
// verifies connectivity. The logger may be nil.
func NewRedisStore(ctx context.Context, addr, password, provider string, logger *log.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = log.Default()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, provider: provider, logger: logger}, nil
}

func (s *RedisStore) keyFor(t Token) string {
	return "statetoken:" + s.provider + ":" + t.String()
}

// Issue generates a token and records it with a TTL. A key that already
// exists is a collision and triggers regeneration.
func (s *RedisStore) Issue(ctx context.Context) (Token, error) {
	for {
		token, err := New()
		if err != nil {
			return Token{}, err
		}

		set, err := s.client.SetNX(ctx, s.keyFor(token), "1", defaultTTL).Result()
		if err != nil {
			return Token{}, err
		}

		if !set {
			s.logger.Warn("state token collision", "provider", s.provider)
			continue
		}

		return token, nil
	}
}

// Validate deletes the token's key; the deletion count tells whether the
// token was outstanding. DEL is atomic, so concurrent callbacks presenting
// the same token cannot both succeed.
func (s *RedisStore) Validate(ctx context.Context, t Token) bool {
	n, err := s.client.Del(ctx, s.keyFor(t)).Result()
	if err != nil {
		s.logger.Warn("failed to validate state token", "provider", s.provider, "error", err)
		return false
	}

	return n == 1
}
