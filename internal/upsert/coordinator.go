// Package upsert reconciles deduplicated venues against the canonical store.
package upsert

import (
	"context"
	"time"

	"nightmap/internal/domain/pois"
	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"
	"nightmap/internal/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Action string

const (
	ActionInserted Action = "inserted"
	ActionUpdated  Action = "updated"
	ActionError    Action = "error"
)

// Outcome is the per-venue result of one upsert.
type Outcome struct {
	Source     venues.Source `json:"source"`
	ExternalID string        `json:"external_id"`
	Name       string        `json:"name"`
	Action     Action        `json:"action"`
	ID         *uuid.UUID    `json:"id,omitempty"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
}

const DefaultConcurrency = 4

type Coordinator struct {
	store       pois.Store
	concurrency int
	emitter     events.Emitter
	logger      *zap.SugaredLogger
}

func New(store pois.Store, concurrency int, emitter events.Emitter, logger *zap.SugaredLogger) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if emitter == nil {
		emitter = events.Nop
	}
	return &Coordinator{
		store:       store,
		concurrency: concurrency,
		emitter:     emitter,
		logger:      logger,
	}
}

// Upsert resolves v by provider id and inserts or refreshes it. Failures are
// reported in the outcome, never returned.
func (c *Coordinator) Upsert(ctx context.Context, v venues.Venue) Outcome {
	out := Outcome{Source: v.Source, ExternalID: v.ExternalID, Name: v.Name}

	res, err := c.store.UpsertVenue(ctx, v)
	if err != nil {
		out.Action = ActionError
		out.Err = err
		out.Error = err.Error()

		c.logger.Warnw("venue upsert failed",
			"source", v.Source,
			"external_id", v.ExternalID,
			"code", shared.CodeOf(err),
			"error", err.Error(),
		)
		c.emitter.Emit(ctx, events.Event{
			Name:   events.VenueUpsertFailed,
			At:     time.Now(),
			Source: string(v.Source),
			Detail: err.Error(),
		})
		return out
	}

	id := res.ID
	out.ID = &id
	switch res.Action {
	case pois.ActionInserted:
		out.Action = ActionInserted
	default:
		out.Action = ActionUpdated
	}
	return out
}

// UpsertAll upserts each venue independently with bounded concurrency.
// Outcomes line up with the input slice.
func (c *Coordinator) UpsertAll(ctx context.Context, vs []venues.Venue) []Outcome {
	outcomes := make([]Outcome, len(vs))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, v := range vs {
		g.Go(func() error {
			outcomes[i] = c.Upsert(ctx, v)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Tally counts outcomes by action.
func Tally(outcomes []Outcome) (inserted, updated, failed int) {
	for _, o := range outcomes {
		switch o.Action {
		case ActionInserted:
			inserted++
		case ActionUpdated:
			updated++
		default:
			failed++
		}
	}
	return inserted, updated, failed
}
