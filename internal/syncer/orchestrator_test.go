package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"nightmap/internal/dedupe"
	"nightmap/internal/domain/pois"
	"nightmap/internal/domain/pois/poistest"
	"nightmap/internal/domain/venues"
	"nightmap/internal/events"
	"nightmap/internal/sources"
	"nightmap/internal/upsert"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAdapter struct {
	source venues.Source
	delay  time.Duration
	block  chan struct{}

	mu     sync.Mutex
	venues []venues.Venue
	calls  int
}

func (f *fakeAdapter) Source() venues.Source { return f.source }

func (f *fakeAdapter) Fetch(ctx context.Context, q sources.Query) []venues.Venue {
	if f.block != nil {
		<-f.block
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]venues.Venue(nil), f.venues...)
}

func (f *fakeAdapter) set(vs ...venues.Venue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.venues = vs
}

func venue(source venues.Source, id, name string, lat, lng float64) venues.Venue {
	return venues.Venue{
		Source:      source,
		ExternalID:  id,
		ExternalIDs: venues.ExternalIDsFor(source, id),
		Name:        name,
		Category:    venues.CategoryBar,
		Latitude:    lat,
		Longitude:   lng,
	}
}

func withRating(v venues.Venue, r float64) venues.Venue {
	v.Rating = &r
	return v
}

type harness struct {
	orch     *Orchestrator
	store    *poistest.MemStore
	recorder *events.Recorder
	yelp     *fakeAdapter
	google   *fakeAdapter
	trip     *fakeAdapter
}

func newHarness() *harness {
	h := &harness{
		store:    poistest.NewMemStore(),
		recorder: &events.Recorder{},
		yelp:     &fakeAdapter{source: venues.SourceYelp},
		google:   &fakeAdapter{source: venues.SourceGoogle},
		trip:     &fakeAdapter{source: venues.SourceTripAdvisor},
	}
	logger := zap.NewNop().Sugar()
	coord := upsert.New(h.store, 4, h.recorder, logger)
	h.orch = New([]sources.Adapter{h.yelp, h.google, h.trip}, dedupe.New(), coord, h.recorder, logger)
	return h
}

var query = sources.Query{Location: "Dayton, OH"}

func TestRunSyncMergesDuplicatesFirstSeenWins(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.yelp.set(venue(venues.SourceYelp, "bn1", "The Blue Note Bar", 39.7590, -84.1917))
	h.google.set(venue(venues.SourceGoogle, "g77", "Blue Note", 39.7591, -84.1918))

	summary, err := h.orch.RunSync(ctx, query)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalFetched)
	assert.Equal(t, 1, summary.TotalUnique)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, map[venues.Source]int{
		venues.SourceYelp:        1,
		venues.SourceGoogle:      1,
		venues.SourceTripAdvisor: 0,
	}, summary.PerSource)
	require.Len(t, summary.Duplicates, 1)
	assert.Equal(t, "g77", summary.Duplicates[0].ExternalID)
	assert.Equal(t, "bn1", summary.Duplicates[0].KeptID)

	rows := h.store.All()
	require.Len(t, rows, 1)
	assert.Equal(t, "The Blue Note Bar", rows[0].Name)
	require.NotNil(t, rows[0].YelpID)
	assert.Equal(t, "bn1", *rows[0].YelpID)
	assert.Nil(t, rows[0].GoogleID, "no field merge across duplicate sources")
	assert.Equal(t, pois.StatusApproved, rows[0].Status)
	assert.Nil(t, rows[0].ApprovedBy)
}

func TestRunSyncRefreshesInPlace(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.yelp.set(withRating(venue(venues.SourceYelp, "bn1", "The Blue Note Bar", 39.7590, -84.1917), 4.0))

	_, err := h.orch.RunSync(ctx, query)
	require.NoError(t, err)
	before := h.store.All()
	require.Len(t, before, 1)
	assert.Equal(t, 4.0, before[0].AverageRating)

	h.yelp.set(withRating(venue(venues.SourceYelp, "bn1", "The Blue Note Bar", 39.7590, -84.1917), 4.5))
	summary, err := h.orch.RunSync(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Inserted)
	assert.Equal(t, 1, summary.Updated)

	after := h.store.All()
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, 4.5, after[0].AverageRating)
	assert.Equal(t, pois.StatusApproved, after[0].Status)
	assert.Nil(t, after[0].ApprovedBy)
}

func TestRunSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.yelp.set(
		venue(venues.SourceYelp, "y1", "Canal Street Tavern", 39.7620, -84.1890),
		venue(venues.SourceYelp, "y2", "Toxic Brew", 39.7550, -84.1870),
	)
	h.google.set(
		venue(venues.SourceGoogle, "g1", "Tavern", 39.7621, -84.1891),
		venue(venues.SourceGoogle, "g2", "Oregon Express", 39.7560, -84.1840),
	)
	h.trip.set(venue(venues.SourceTripAdvisor, "t1", "Dublin Pub", 39.7470, -84.1780))

	first, err := h.orch.RunSync(ctx, query)
	require.NoError(t, err)
	n1, _ := h.store.Count(ctx)

	second, err := h.orch.RunSync(ctx, query)
	require.NoError(t, err)
	n2, _ := h.store.Count(ctx)

	assert.Equal(t, 4, n1)
	assert.Equal(t, n1, n2)
	assert.Equal(t, 4, first.Inserted)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 4, second.Updated)
}

func TestRunSyncSurvivesProviderOutage(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.google.set(venue(venues.SourceGoogle, "g1", "Oregon Express", 39.7560, -84.1840))

	summary, err := h.orch.RunSync(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.PerSource[venues.SourceYelp])
	assert.Equal(t, 1, summary.Inserted)
}

func TestRunSyncContainsUpsertFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.yelp.set(
		venue(venues.SourceYelp, "y1", "Canal Street Tavern", 39.7620, -84.1890),
		venue(venues.SourceYelp, "y2", "Toxic Brew", 39.7550, -84.1870),
	)
	h.store.FailUpsert = func(v venues.Venue) error {
		if v.ExternalID == "y1" {
			return assert.AnError
		}
		return nil
	}

	summary, err := h.orch.RunSync(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, upsert.ActionError, summary.Outcomes[0].Action)
	assert.Contains(t, h.recorder.Names(), events.VenueUpsertFailed)
}

func TestRunSyncMergeOrderIgnoresCompletionOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.yelp.delay = 30 * time.Millisecond
	h.yelp.set(venue(venues.SourceYelp, "bn1", "Blue Note", 39.7590, -84.1917))
	h.google.set(venue(venues.SourceGoogle, "g77", "The Blue Note Bar", 39.7591, -84.1918))

	summary, err := h.orch.RunSync(ctx, query)
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, venues.SourceYelp, summary.Outcomes[0].Source)
	assert.Equal(t, "Blue Note", h.store.All()[0].Name)
}

func TestRunSyncRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.yelp.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.RunSync(ctx, query)
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, err := h.orch.RunSync(ctx, query)
		return err == ErrSyncInProgress
	}, time.Second, 5*time.Millisecond)

	close(h.yelp.block)
	require.NoError(t, <-done)

	_, ok := h.orch.Last()
	assert.True(t, ok)
}

func TestRunSyncEmitsEvents(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.trip.set(venue(venues.SourceTripAdvisor, "t1", "Dublin Pub", 39.7470, -84.1780))

	_, err := h.orch.RunSync(ctx, query)
	require.NoError(t, err)

	names := h.recorder.Names()
	require.Len(t, names, 5)
	assert.Equal(t, events.SyncStarted, names[0])
	assert.Equal(t, events.SyncCompleted, names[4])

	fetched := 0
	for _, e := range h.recorder.Events() {
		if e.Name == events.SourceFetched {
			fetched++
		}
		if e.Name == events.SyncCompleted {
			assert.Equal(t, 1, e.Count)
		}
	}
	assert.Equal(t, 3, fetched)
}

func TestLastBeforeAnyRun(t *testing.T) {
	h := newHarness()
	_, ok := h.orch.Last()
	assert.False(t, ok)
}
