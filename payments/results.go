package payments

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

const DefaultResultTTL = 10 * time.Minute

type cachedResult struct {
	result    Result
	expiresAt time.Time
}

// ResultCache holds recent callback results for polling. It is not a record
// of truth; the audit log is.
type ResultCache struct {
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &ResultCache{
		cache: cache.New(ttl, time.Minute),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Store keeps res as the project's latest result and, when known, under its
// checkout request id.
func (r *ResultCache) Store(res Result) {
	entry := cachedResult{result: res, expiresAt: r.now().Add(r.ttl)}
	r.cache.Set(projectKey(res.ProjectID), entry, r.ttl)
	if res.CheckoutRequestID != "" {
		r.cache.Set(checkoutKey(res.CheckoutRequestID), entry, r.ttl)
	}
}

// Latest returns the most recent result cached for projectID.
func (r *ResultCache) Latest(projectID string) (*Result, bool) {
	return r.get(projectKey(projectID))
}

// ByCheckout returns the result for checkoutRequestID if it belongs to projectID.
func (r *ResultCache) ByCheckout(projectID, checkoutRequestID string) (*Result, bool) {
	res, ok := r.get(checkoutKey(checkoutRequestID))
	if !ok || res.ProjectID != projectID {
		return nil, false
	}
	return res, true
}

func (r *ResultCache) get(key string) (*Result, bool) {
	obj, found := r.cache.Get(key)
	if !found {
		return nil, false
	}
	entry := obj.(cachedResult)
	if !r.now().Before(entry.expiresAt) {
		r.cache.Delete(key)
		return nil, false
	}
	res := entry.result
	return &res, true
}

func projectKey(id string) string  { return "project:" + id }
func checkoutKey(id string) string { return "checkout:" + id }
