package upsert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"nightmap/internal/domain/pois"
	"nightmap/internal/domain/pois/poistest"
	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"
	"nightmap/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func providerVenue(source venues.Source, id, name string, rating float64) venues.Venue {
	return venues.Venue{
		Source:      source,
		ExternalID:  id,
		ExternalIDs: venues.ExternalIDsFor(source, id),
		Name:        name,
		Category:    venues.CategoryBar,
		Latitude:    39.7590,
		Longitude:   -84.1917,
		Rating:      &rating,
	}
}

func newCoordinator(store pois.Store, rec *events.Recorder) *Coordinator {
	return New(store, 4, rec, zap.NewNop().Sugar())
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	store := poistest.NewMemStore()
	c := newCoordinator(store, &events.Recorder{})

	first := c.Upsert(ctx, providerVenue(venues.SourceYelp, "bn1", "The Blue Note Bar", 4.0))
	require.NoError(t, first.Err)
	assert.Equal(t, ActionInserted, first.Action)

	second := c.Upsert(ctx, providerVenue(venues.SourceYelp, "bn1", "The Blue Note Bar", 4.5))
	require.NoError(t, second.Err)
	assert.Equal(t, ActionUpdated, second.Action)
	require.NotNil(t, first.ID)
	require.NotNil(t, second.ID)
	assert.Equal(t, *first.ID, *second.ID)

	rows := store.All()
	require.Len(t, rows, 1)
	assert.Equal(t, 4.5, rows[0].AverageRating)
	assert.Equal(t, pois.StatusApproved, rows[0].Status)
	assert.Nil(t, rows[0].SubmittedBy)
	assert.Nil(t, rows[0].ApprovedBy)
	assert.Nil(t, rows[0].RejectionReason)
}

func TestUpsertLeavesModerationStateAlone(t *testing.T) {
	ctx := context.Background()
	store := poistest.NewMemStore()
	c := newCoordinator(store, &events.Recorder{})

	first := c.Upsert(ctx, providerVenue(venues.SourceGoogle, "g1", "Tank Bar", 3.9))
	require.NoError(t, first.Err)

	// A later sync refreshes the same row while keeping its status.
	again := c.Upsert(ctx, providerVenue(venues.SourceGoogle, "g1", "Tank Bar & Grill", 4.1))
	require.NoError(t, again.Err)

	require.NotNil(t, first.ID)
	p, err := store.GetByID(ctx, *first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tank Bar & Grill", p.Name)
	assert.Equal(t, pois.StatusApproved, p.Status)
}

func TestUpsertAllPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := poistest.NewMemStore()
	store.FailUpsert = func(v venues.Venue) error {
		if v.ExternalID == "bad" {
			return shared.Wrap(shared.ErrUpsertConflict, "constraint violation")
		}
		return nil
	}
	rec := &events.Recorder{}
	c := newCoordinator(store, rec)

	in := []venues.Venue{
		providerVenue(venues.SourceYelp, "a", "A Bar", 4),
		providerVenue(venues.SourceYelp, "bad", "Broken Bar", 4),
		providerVenue(venues.SourceGoogle, "c", "C Club", 4),
	}
	outcomes := c.UpsertAll(ctx, in)

	require.Len(t, outcomes, 3)
	assert.Equal(t, ActionInserted, outcomes[0].Action)
	assert.Equal(t, ActionError, outcomes[1].Action)
	assert.True(t, errors.Is(outcomes[1].Err, shared.ErrUpsertConflict))
	assert.Equal(t, "bad", outcomes[1].ExternalID)
	assert.Equal(t, ActionInserted, outcomes[2].Action)
	assert.Nil(t, outcomes[1].ID)

	raw, err := json.Marshal(outcomes[1])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"id"`)
	assert.Contains(t, string(raw), `"error":"upsert conflict: constraint violation"`)

	raw, err = json.Marshal(outcomes[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"`+outcomes[0].ID.String()+`"`)

	inserted, updated, failed := Tally(outcomes)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 0, updated)
	assert.Equal(t, 1, failed)

	assert.Equal(t, []events.Name{events.VenueUpsertFailed}, rec.Names())

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpsertAllConcurrentSameExternalID(t *testing.T) {
	ctx := context.Background()
	store := poistest.NewMemStore()
	c := newCoordinator(store, &events.Recorder{})

	in := make([]venues.Venue, 0, 20)
	for i := 0; i < 20; i++ {
		in = append(in, providerVenue(venues.SourceYelp, "same", fmt.Sprintf("Same Bar %d", i), 4))
	}
	outcomes := c.UpsertAll(ctx, in)

	inserted, updated, failed := Tally(outcomes)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 19, updated)
	assert.Equal(t, 0, failed)

	n, _ := store.Count(ctx)
	assert.Equal(t, 1, n)
}

type countingStore struct {
	pois.Store
	mu      sync.Mutex
	active  int
	maxSeen int
	release chan struct{}
}

func (s *countingStore) UpsertVenue(ctx context.Context, v venues.Venue) (pois.UpsertResult, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()

	<-s.release

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return pois.UpsertResult{ID: uuid.New(), Action: pois.ActionInserted}, nil
}

func TestUpsertAllBoundsConcurrency(t *testing.T) {
	store := &countingStore{release: make(chan struct{})}
	c := New(store, 2, nil, zap.NewNop().Sugar())

	in := make([]venues.Venue, 8)
	for i := range in {
		in[i] = providerVenue(venues.SourceYelp, fmt.Sprint(i), "X", 4)
	}

	done := make(chan []Outcome)
	go func() { done <- c.UpsertAll(context.Background(), in) }()
	for range in {
		store.release <- struct{}{}
	}
	outcomes := <-done

	assert.Len(t, outcomes, 8)
	assert.LessOrEqual(t, store.maxSeen, 2)
}
