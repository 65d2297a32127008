// Package events carries structured domain events from the sync and
// moderation paths to whoever listens (logs, metrics, cache, push).
// Emitters are passed in explicitly; there is no package-level sink.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Name string

const (
	SyncStarted        Name = "sync.started"
	SyncCompleted      Name = "sync.completed"
	SourceFetched      Name = "source.fetched"
	VenueUpsertFailed  Name = "venue.upsert_failed"
	SubmissionCreated  Name = "moderation.submitted"
	SubmissionApproved Name = "moderation.approved"
	SubmissionRejected Name = "moderation.rejected"
)

type Event struct {
	Name     Name
	At       time.Time
	Source   string
	Count    int
	Duration time.Duration

	POIID   uuid.UUID
	ActorID uuid.UUID
	// SubmitterID is set on moderation events so listeners can reach the
	// user who proposed the venue.
	SubmitterID uuid.UUID
	Detail      string
}

type Emitter interface {
	Emit(ctx context.Context, e Event)
}

type EmitterFunc func(ctx context.Context, e Event)

func (f EmitterFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

type nop struct{}

func (nop) Emit(context.Context, Event) {}

// Nop discards every event.
var Nop Emitter = nop{}

type multi []Emitter

func (m multi) Emit(ctx context.Context, e Event) {
	for _, em := range m {
		em.Emit(ctx, e)
	}
}

// Multi fans one event out to every emitter in order. Nil entries are skipped.
func Multi(emitters ...Emitter) Emitter {
	out := make(multi, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// LogEmitter writes events as structured log lines.
type LogEmitter struct {
	logger *zap.SugaredLogger
}

func NewLogEmitter(logger *zap.SugaredLogger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (l *LogEmitter) Emit(_ context.Context, e Event) {
	kv := []any{"event", string(e.Name), "at", e.At}
	if e.Source != "" {
		kv = append(kv, "source", e.Source)
	}
	if e.Count != 0 {
		kv = append(kv, "count", e.Count)
	}
	if e.Duration != 0 {
		kv = append(kv, "duration", e.Duration)
	}
	if e.POIID != uuid.Nil {
		kv = append(kv, "poi_id", e.POIID)
	}
	if e.ActorID != uuid.Nil {
		kv = append(kv, "actor_id", e.ActorID)
	}
	if e.Detail != "" {
		kv = append(kv, "detail", e.Detail)
	}

	if e.Name == VenueUpsertFailed {
		l.logger.Warnw("domain event", kv...)
		return
	}
	l.logger.Infow("domain event", kv...)
}

// Async hands each event to next on its own goroutine, detached from the
// caller's cancellation. Wait blocks until in-flight events are delivered.
type Async struct {
	next Emitter
	wg   sync.WaitGroup
}

func NewAsync(next Emitter) *Async {
	return &Async{next: next}
}

func (a *Async) Emit(ctx context.Context, e Event) {
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.next.Emit(ctx, e)
	}()
}

func (a *Async) Wait() {
	a.wg.Wait()
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names lists recorded event names in emission order.
func (r *Recorder) Names() []Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Name, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}
