package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"nightmap/internal/domain/pois"
	"nightmap/internal/domain/pois/poistest"
	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"
	"nightmap/internal/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seed(t *testing.T, store *poistest.MemStore, id, name string, category venues.Category, lat, lng float64) uuid.UUID {
	t.Helper()
	res, err := store.UpsertVenue(context.Background(), venues.Venue{
		Source:      venues.SourceYelp,
		ExternalID:  id,
		ExternalIDs: venues.ExternalIDsFor(venues.SourceYelp, id),
		Name:        name,
		Category:    category,
		Latitude:    lat,
		Longitude:   lng,
	})
	require.NoError(t, err)
	return res.ID
}

func newCatalog(t *testing.T) (*Catalog, *poistest.MemStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := poistest.NewMemStore()
	return New(store, rdb, 0, zap.NewNop().Sugar()), store, mr
}

func TestListCachesApproved(t *testing.T) {
	ctx := context.Background()
	c, store, mr := newCatalog(t)

	seed(t, store, "y1", "Toxic Brew", venues.CategoryBrewery, 39.7550, -84.1870)
	seed(t, store, "y2", "Blue Note", venues.CategoryBar, 39.7590, -84.1917)
	_, err := store.CreateSubmission(ctx, uuid.New(), pois.Submission{Name: "Pending Place", Category: venues.CategoryBar, Latitude: 39.75, Longitude: -84.19})
	require.NoError(t, err)

	list, err := c.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Blue Note", list[0].Name)

	assert.True(t, mr.Exists(approvedKey))
	assert.Equal(t, time.Hour, mr.TTL(approvedKey))

	seed(t, store, "y3", "Canal Street Tavern", venues.CategoryBar, 39.7620, -84.1890)
	list, err = c.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list, 2, "served from cache")

	require.NoError(t, c.Invalidate(ctx))
	assert.False(t, mr.Exists(approvedKey))

	bars := venues.CategoryBar
	list, err = c.List(ctx, &bars)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Blue Note", list[0].Name)
	assert.Equal(t, "Canal Street Tavern", list[1].Name)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newCatalog(t)

	id := seed(t, store, "y1", "Blue Note", venues.CategoryBar, 39.7590, -84.1917)
	pending, err := store.CreateSubmission(ctx, uuid.New(), pois.Submission{Name: "Pending Place", Category: venues.CategoryBar, Latitude: 39.75, Longitude: -84.19})
	require.NoError(t, err)

	p, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Blue Note", p.Name)

	_, err = c.List(ctx, nil)
	require.NoError(t, err)
	p, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)

	_, err = c.Get(ctx, pending.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = c.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestNearby(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newCatalog(t)

	near := seed(t, store, "y1", "Blue Note", venues.CategoryBar, 39.7590, -84.1917)
	seed(t, store, "y2", "Canal Street Tavern", venues.CategoryLiveMusic, 39.7620, -84.1890)
	seed(t, store, "y3", "Far Away Lounge", venues.CategoryLounge, 39.7000, -84.1000)

	got, err := c.Nearby(ctx, 39.7590, -84.1917, 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, near, got[0].ID)
	assert.Less(t, got[0].DistanceKm, got[1].DistanceKm)
	assert.InDelta(t, 0.4, got[1].DistanceKm, 0.1)

	live := venues.CategoryLiveMusic
	got, err = c.Nearby(ctx, 39.7590, -84.1917, 1, &live)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Canal Street Tavern", got[0].Name)

	got, err = c.Nearby(ctx, 39.7590, -84.1917, 20, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = c.Nearby(ctx, 95, -84.19, 1, nil)
	assert.Error(t, err)
}

func TestNearbyCapsAfterCategoryFilter(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newCatalog(t)
	c.nearbyMax = 3

	for i := 0; i < 5; i++ {
		seed(t, store, fmt.Sprintf("bar%d", i), fmt.Sprintf("Corner Bar %d", i), venues.CategoryBar, 39.7590+float64(i)*0.0001, -84.1917)
	}
	seed(t, store, "roof1", "Sky Deck", venues.CategoryRooftop, 39.7640, -84.1917)
	seed(t, store, "roof2", "Top Floor", venues.CategoryRooftop, 39.7660, -84.1917)

	rooftop := venues.CategoryRooftop
	got, err := c.Nearby(ctx, 39.7590, -84.1917, 2, &rooftop)
	require.NoError(t, err)
	require.Len(t, got, 2, "closer venues of other categories do not crowd out matches")
	assert.Equal(t, "Sky Deck", got[0].Name)
	assert.Equal(t, "Top Floor", got[1].Name)

	all, err := c.Nearby(ctx, 39.7590, -84.1917, 2, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bars := venues.CategoryBar
	got, err = c.Nearby(ctx, 39.7590, -84.1917, 2, &bars)
	require.NoError(t, err)
	assert.Len(t, got, 3, "filtered results are still capped")
}

func TestNearbyWithoutRedis(t *testing.T) {
	ctx := context.Background()
	c, store, mr := newCatalog(t)

	seed(t, store, "y1", "Blue Note", venues.CategoryBar, 39.7590, -84.1917)
	seed(t, store, "y2", "Canal Street Tavern", venues.CategoryLiveMusic, 39.7620, -84.1890)
	seed(t, store, "y3", "Far Away Lounge", venues.CategoryLounge, 39.7000, -84.1000)
	mr.Close()

	got, err := c.Nearby(ctx, 39.7590, -84.1917, 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Blue Note", got[0].Name)
	assert.Equal(t, "Canal Street Tavern", got[1].Name)

	list, err := c.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestEmitInvalidates(t *testing.T) {
	ctx := context.Background()
	c, store, mr := newCatalog(t)
	seed(t, store, "y1", "Blue Note", venues.CategoryBar, 39.7590, -84.1917)

	_, err := c.List(ctx, nil)
	require.NoError(t, err)
	require.True(t, mr.Exists(approvedKey))

	c.Emit(ctx, events.Event{Name: events.SubmissionRejected})
	assert.True(t, mr.Exists(approvedKey))

	c.Emit(ctx, events.Event{Name: events.SyncCompleted})
	assert.False(t, mr.Exists(approvedKey))
	assert.False(t, mr.Exists(geoKey))
	assert.Empty(t, mr.Keys())
}

func TestHaversine(t *testing.T) {
	// Dayton to Cincinnati is roughly 76 km.
	assert.InDelta(t, 76, haversineKm(39.7589, -84.1916, 39.1031, -84.5120), 3)
	assert.Zero(t, haversineKm(39.7589, -84.1916, 39.7589, -84.1916))
}
