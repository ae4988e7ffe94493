package dupes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showdeck/importer/internal/model"
)

func TestCachedCatalog_ServesFromCacheWithinTTL(t *testing.T) {
	inner := &fakeCatalog{shows: map[string][]model.Show{
		"org-1": {{ID: "s1", OrgID: "org-1", Title: "Spring Opener"}},
	}}
	c := NewCachedCatalog(inner, time.Minute)

	for i := 0; i < 5; i++ {
		shows, err := c.ShowsByOrg(context.Background(), "org-1")
		require.NoError(t, err)
		assert.Len(t, shows, 1)
	}
	assert.Equal(t, 1, inner.loads)
}

func TestCachedCatalog_ExpiresAfterTTL(t *testing.T) {
	inner := &fakeCatalog{shows: map[string][]model.Show{"org-1": nil}}
	c := NewCachedCatalog(inner, time.Minute)

	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.ShowsByOrg(context.Background(), "org-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = c.ShowsByOrg(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.loads)
}

func TestCachedCatalog_CachesPerOrg(t *testing.T) {
	inner := &fakeCatalog{venues: map[string][]model.Venue{
		"org-1": {{ID: "v1"}},
		"org-2": {{ID: "v2"}},
	}}
	c := NewCachedCatalog(inner, time.Minute)

	a, err := c.VenuesByOrg(context.Background(), "org-1")
	require.NoError(t, err)
	b, err := c.VenuesByOrg(context.Background(), "org-2")
	require.NoError(t, err)

	assert.Equal(t, "v1", a[0].ID)
	assert.Equal(t, "v2", b[0].ID)
	assert.Equal(t, 2, inner.loads)
}

func TestCachedCatalog_InvalidateForcesReload(t *testing.T) {
	inner := &fakeCatalog{shows: map[string][]model.Show{"org-1": nil}}
	c := NewCachedCatalog(inner, time.Minute)

	_, _ = c.ShowsByOrg(context.Background(), "org-1")
	c.Invalidate("org-1")
	_, _ = c.ShowsByOrg(context.Background(), "org-1")
	assert.Equal(t, 2, inner.loads)
}

func TestCachedCatalog_ErrorsAreNotCached(t *testing.T) {
	inner := &fakeCatalog{err: assert.AnError}
	c := NewCachedCatalog(inner, time.Minute)

	_, err := c.ShowsByOrg(context.Background(), "org-1")
	assert.Error(t, err)

	inner.err = nil
	_, err = c.ShowsByOrg(context.Background(), "org-1")
	assert.NoError(t, err)
}
