// Package syncer drives one sync cycle: fetch from every provider, merge in a
// fixed order, deduplicate, then upsert into the canonical store.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"nightmap/internal/dedupe"
	"nightmap/internal/domain/venues"
	"nightmap/internal/events"
	"nightmap/internal/sources"
	"nightmap/internal/upsert"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrSyncInProgress is returned when a cycle is already running in this process.
var ErrSyncInProgress = errors.New("sync already in progress")

// Duplicate records a venue dropped in favour of an earlier one.
type Duplicate struct {
	Source     venues.Source `json:"source"`
	ExternalID string        `json:"external_id"`
	Name       string        `json:"name"`
	KeptSource venues.Source `json:"kept_source"`
	KeptID     string        `json:"kept_external_id"`
}

type Summary struct {
	Query        sources.Query         `json:"query"`
	PerSource    map[venues.Source]int `json:"per_source"`
	TotalFetched int                   `json:"total_fetched"`
	TotalUnique  int                   `json:"total_unique"`
	Inserted     int                   `json:"inserted"`
	Updated      int                   `json:"updated"`
	Failed       int                   `json:"failed"`
	Duplicates   []Duplicate           `json:"duplicates"`
	Outcomes     []upsert.Outcome      `json:"outcomes"`
	StartedAt    time.Time             `json:"started_at"`
	Duration     time.Duration         `json:"duration"`
}

type Orchestrator struct {
	adapters    []sources.Adapter
	dedupe      *dedupe.Engine
	coordinator *upsert.Coordinator
	emitter     events.Emitter
	logger      *zap.SugaredLogger

	running sync.Mutex

	mu   sync.RWMutex
	last *Summary
}

// New keeps adapters in the given order; that order is the merge order.
func New(adapters []sources.Adapter, engine *dedupe.Engine, coordinator *upsert.Coordinator, emitter events.Emitter, logger *zap.SugaredLogger) *Orchestrator {
	if engine == nil {
		engine = dedupe.New()
	}
	if emitter == nil {
		emitter = events.Nop
	}
	return &Orchestrator{
		adapters:    adapters,
		dedupe:      engine,
		coordinator: coordinator,
		emitter:     emitter,
		logger:      logger,
	}
}

// RunSync runs one cycle. Provider and per-venue failures never fail the
// cycle; they show up as zero counts and error outcomes in the summary.
func (o *Orchestrator) RunSync(ctx context.Context, q sources.Query) (Summary, error) {
	if !o.running.TryLock() {
		return Summary{}, ErrSyncInProgress
	}
	defer o.running.Unlock()

	started := time.Now()
	o.emitter.Emit(ctx, events.Event{Name: events.SyncStarted, At: started, Detail: q.Location})
	o.logger.Infow("sync started", "location", q.Location, "keyword", q.Keyword)

	batches := o.fetchAll(ctx, q)

	summary := Summary{
		Query:     q,
		PerSource: make(map[venues.Source]int, len(o.adapters)),
		StartedAt: started,
	}
	var merged []venues.Venue
	for i, a := range o.adapters {
		summary.PerSource[a.Source()] += len(batches[i])
		merged = append(merged, batches[i]...)
	}
	summary.TotalFetched = len(merged)

	clusters := o.dedupe.Cluster(merged)
	unique := make([]venues.Venue, len(clusters))
	summary.Duplicates = []Duplicate{}
	for i, c := range clusters {
		unique[i] = c.Representative
		for _, d := range c.Duplicates {
			summary.Duplicates = append(summary.Duplicates, Duplicate{
				Source:     d.Source,
				ExternalID: d.ExternalID,
				Name:       d.Name,
				KeptSource: c.Representative.Source,
				KeptID:     c.Representative.ExternalID,
			})
		}
	}
	summary.TotalUnique = len(unique)

	summary.Outcomes = o.coordinator.UpsertAll(ctx, unique)
	summary.Inserted, summary.Updated, summary.Failed = upsert.Tally(summary.Outcomes)
	summary.Duration = time.Since(started)

	o.logger.Infow("sync completed",
		"fetched", summary.TotalFetched,
		"unique", summary.TotalUnique,
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)
	o.emitter.Emit(ctx, events.Event{
		Name:     events.SyncCompleted,
		At:       time.Now(),
		Count:    summary.TotalUnique,
		Duration: summary.Duration,
		Detail:   q.Location,
	})

	o.mu.Lock()
	last := summary
	o.last = &last
	o.mu.Unlock()

	return summary, nil
}

// fetchAll waits for every adapter. Slot i holds adapter i's venues no matter
// which one finishes first.
func (o *Orchestrator) fetchAll(ctx context.Context, q sources.Query) [][]venues.Venue {
	batches := make([][]venues.Venue, len(o.adapters))

	var g errgroup.Group
	for i, a := range o.adapters {
		g.Go(func() error {
			begin := time.Now()
			batches[i] = a.Fetch(ctx, q)
			o.emitter.Emit(ctx, events.Event{
				Name:     events.SourceFetched,
				At:       time.Now(),
				Source:   string(a.Source()),
				Count:    len(batches[i]),
				Duration: time.Since(begin),
			})
			return nil
		})
	}
	_ = g.Wait()

	return batches
}

// Last returns the summary of the most recent completed cycle.
func (o *Orchestrator) Last() (Summary, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return Summary{}, false
	}
	return *o.last, true
}
