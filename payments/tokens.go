package payments

import (
	"context"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// DefaultTokenTTL sits a little under Daraja's one hour token lifetime.
const DefaultTokenTTL = 3500 * time.Second

type TokenFetcher interface {
	FetchToken(ctx context.Context, creds Credentials) (string, error)
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// TokenCache keeps one current access token per (consumer key, environment).
// Concurrent misses for the same key may each hit the provider.
type TokenCache struct {
	fetcher TokenFetcher
	cache   *cache.Cache
	ttl     time.Duration
	now     func() time.Time
}

func NewTokenCache(fetcher TokenFetcher, ttl time.Duration) *TokenCache {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCache{
		fetcher: fetcher,
		cache:   cache.New(ttl, 10*time.Minute),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a cached token while it is fresh and fetches a new one otherwise.
// Nothing is cached when the fetch fails.
func (t *TokenCache) Get(ctx context.Context, creds Credentials) (string, error) {
	key := creds.cacheKey()
	if obj, found := t.cache.Get(key); found {
		entry := obj.(cachedToken)
		if t.now().Before(entry.expiresAt) {
			return entry.token, nil
		}
	}

	zerolog.Ctx(ctx).Debug().Str("environment", creds.Environment).Msg("access token cache miss")

	token, err := t.fetcher.FetchToken(ctx, creds)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstreamAuth, err)
	}
	t.cache.Set(key, cachedToken{token: token, expiresAt: t.now().Add(t.ttl)}, t.ttl)
	return token, nil
}
