package dupes

import (
	"context"
	"sync"
	"time"

	"github.com/showdeck/importer/internal/model"
)

// CachedCatalog wraps a CatalogStore with a per-org TTL cache. Duplicate
// matching re-reads the same org catalog on every candidate; the cache keeps
// that to one load per org per TTL window. Invalidate drops an org's entries
// when its catalog is known to have changed.
type CachedCatalog struct {
	inner CatalogStore
	ttl   time.Duration
	now   func() time.Time

	mu     sync.Mutex
	shows  map[string]catalogEntry[model.Show]
	venues map[string]catalogEntry[model.Venue]
}

type catalogEntry[T any] struct {
	records   []T
	expiresAt time.Time
}

// NewCachedCatalog wraps inner with the given TTL (default 5 minutes).
func NewCachedCatalog(inner CatalogStore, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCatalog{
		inner:  inner,
		ttl:    ttl,
		now:    time.Now,
		shows:  make(map[string]catalogEntry[model.Show]),
		venues: make(map[string]catalogEntry[model.Venue]),
	}
}

func (c *CachedCatalog) ShowsByOrg(ctx context.Context, orgID string) ([]model.Show, error) {
	c.mu.Lock()
	if e, ok := c.shows[orgID]; ok && c.now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.records, nil
	}
	c.mu.Unlock()

	records, err := c.inner.ShowsByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.shows[orgID] = catalogEntry[model.Show]{records: records, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return records, nil
}

func (c *CachedCatalog) VenuesByOrg(ctx context.Context, orgID string) ([]model.Venue, error) {
	c.mu.Lock()
	if e, ok := c.venues[orgID]; ok && c.now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.records, nil
	}
	c.mu.Unlock()

	records, err := c.inner.VenuesByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.venues[orgID] = catalogEntry[model.Venue]{records: records, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return records, nil
}

// Invalidate drops cached catalog entries for one org.
func (c *CachedCatalog) Invalidate(orgID string) {
	c.mu.Lock()
	delete(c.shows, orgID)
	delete(c.venues, orgID)
	c.mu.Unlock()
}
