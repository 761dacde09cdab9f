package attachment

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/MightyPrytanis/roundtable/internal/log"
)

const (
	// DefaultExpiration bounds how long fetched attachment content is reused.
	DefaultExpiration = 10 * time.Minute
	// DefaultCleanupInterval is how often expired entries are purged.
	DefaultCleanupInterval = 30 * time.Minute
)

// CachedStore is a read-through cache in front of another Store.
// Workflows fetch the same attachments once per step, so a short-lived
// in-memory cache removes repeated disk or network reads. Negative results
// (ErrNotFound) are not cached; a file may appear between steps.
type CachedStore struct {
	inner Store
	cache *gocache.Cache
}

// NewCachedStore wraps inner with an in-memory cache.
func NewCachedStore(inner Store, expiration, cleanupInterval time.Duration) *CachedStore {
	return &CachedStore{
		inner: inner,
		cache: gocache.New(expiration, cleanupInterval),
	}
}

// Get returns cached content when present, otherwise reads through to the
// inner store and populates the cache.
func (c *CachedStore) Get(ctx context.Context, id string) ([]byte, error) {
	if value, found := c.cache.Get(id); found {
		data, ok := value.([]byte)
		if !ok {
			log.Error(log.CatCache, "wrong type assertion when getting value", "key", id)
		} else {
			log.Debug(log.CatCache, "cache hit", "key", id)
			return data, nil
		}
	}

	data, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.cache.Set(id, data, gocache.DefaultExpiration)
	return data, nil
}

// Invalidate drops a single cached entry.
func (c *CachedStore) Invalidate(id string) {
	c.cache.Delete(id)
}

// Flush drops every cached entry.
func (c *CachedStore) Flush() {
	c.cache.Flush()
	log.Debug(log.CatCache, "attachment cache flushed")
}

// ItemCount returns the number of cached entries (including expired ones
// not yet purged).
func (c *CachedStore) ItemCount() int {
	return c.cache.ItemCount()
}

var _ Store = (*CachedStore)(nil)
