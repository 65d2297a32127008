// Package poistest provides an in-memory pois.Store for service tests.
package poistest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nightmap/internal/domain/pois"
	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"

	"github.com/google/uuid"
)

// MemStore mirrors the repository's semantics, including the partial unique
// constraints on provider ids and the conditional moderation update.
type MemStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*pois.POI
	seq  []uuid.UUID

	// FailUpsert, when set, is consulted before every UpsertVenue.
	FailUpsert func(v venues.Venue) error
	Now        func() time.Time
}

var _ pois.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		rows: make(map[uuid.UUID]*pois.POI),
		Now:  time.Now,
	}
}

func (m *MemStore) UpsertVenue(ctx context.Context, v venues.Venue) (pois.UpsertResult, error) {
	if m.FailUpsert != nil {
		if err := m.FailUpsert(v); err != nil {
			return pois.UpsertResult{}, err
		}
	}
	if v.ExternalIDs.Empty() {
		return pois.UpsertResult{}, shared.Wrap(shared.ErrValidation, "venue %q has no provider id", v.Name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p := m.findByExternalID(v.ExternalIDs); p != nil {
		if err := m.checkUnique(p.ID, v.ExternalIDs); err != nil {
			return pois.UpsertResult{}, err
		}
		refresh(p, v, m.Now())
		return pois.UpsertResult{ID: p.ID, Action: pois.ActionUpdated}, nil
	}

	now := m.Now()
	p := &pois.POI{
		ID:        uuid.New(),
		Status:    pois.StatusApproved,
		CreatedAt: now,
	}
	refresh(p, v, now)
	m.rows[p.ID] = p
	m.seq = append(m.seq, p.ID)
	return pois.UpsertResult{ID: p.ID, Action: pois.ActionInserted}, nil
}

func (m *MemStore) findByExternalID(ids venues.ExternalIDs) *pois.POI {
	for _, id := range m.seq {
		p := m.rows[id]
		if match(p.YelpID, ids.Yelp) || match(p.GoogleID, ids.Google) || match(p.TripAdvisorID, ids.TripAdvisor) {
			return p
		}
	}
	return nil
}

func (m *MemStore) checkUnique(self uuid.UUID, ids venues.ExternalIDs) error {
	for _, id := range m.seq {
		if id == self {
			continue
		}
		p := m.rows[id]
		if match(p.YelpID, ids.Yelp) || match(p.GoogleID, ids.Google) || match(p.TripAdvisorID, ids.TripAdvisor) {
			return shared.Wrap(shared.ErrUpsertConflict, "provider id already belongs to %s", p.ID)
		}
	}
	return nil
}

func match(stored, incoming *string) bool {
	return stored != nil && incoming != nil && *stored == *incoming
}

func refresh(p *pois.POI, v venues.Venue, now time.Time) {
	p.Name = v.Name
	p.Category = v.Category
	p.Description = v.Description
	p.Latitude = v.Latitude
	p.Longitude = v.Longitude
	p.Address = v.Address
	p.Phone = v.Phone
	p.Website = v.Website
	p.PriceLevel = v.PriceLevel
	p.AverageRating = 0
	if v.Rating != nil {
		p.AverageRating = *v.Rating
	}
	p.ReviewCount = 0
	if v.ReviewCount != nil {
		p.ReviewCount = *v.ReviewCount
	}
	if v.ExternalIDs.Yelp != nil {
		p.YelpID = v.ExternalIDs.Yelp
	}
	if v.ExternalIDs.Google != nil {
		p.GoogleID = v.ExternalIDs.Google
	}
	if v.ExternalIDs.TripAdvisor != nil {
		p.TripAdvisorID = v.ExternalIDs.TripAdvisor
	}
	p.UpdatedAt = now
}

func (m *MemStore) CreateSubmission(ctx context.Context, submittedBy uuid.UUID, s pois.Submission) (*pois.POI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	by := submittedBy
	p := &pois.POI{
		ID:          uuid.New(),
		Name:        s.Name,
		Category:    s.Category,
		Description: s.Description,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		Address:     s.Address,
		Phone:       s.Phone,
		Website:     s.Website,
		PriceLevel:  s.PriceLevel,
		Status:      pois.StatusPending,
		SubmittedBy: &by,
		SubmittedAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.rows[p.ID] = p
	m.seq = append(m.seq, p.ID)

	out := *p
	return &out, nil
}

func (m *MemStore) GetByID(ctx context.Context, id uuid.UUID) (*pois.POI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.rows[id]
	if !ok {
		return nil, pois.ErrPOINotFound
	}
	out := *p
	return &out, nil
}

func (m *MemStore) ListPending(ctx context.Context, limit, offset int) ([]pois.POI, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []pois.POI
	for i := len(m.seq) - 1; i >= 0; i-- {
		if p := m.rows[m.seq[i]]; p.Status == pois.StatusPending {
			pending = append(pending, *p)
		}
	}
	return page(pending, limit, offset), len(pending), nil
}

func (m *MemStore) ListApproved(ctx context.Context, filter pois.ListFilter) ([]pois.POI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []pois.POI{}
	for _, id := range m.seq {
		p := m.rows[id]
		if p.Status != pois.StatusApproved {
			continue
		}
		if filter.Category != nil && p.Category != *filter.Category {
			continue
		}
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if filter.Limit > 0 {
		out = page(out, filter.Limit, filter.Offset)
	}
	return out, nil
}

func (m *MemStore) Transition(ctx context.Context, id uuid.UUID, d pois.Decision) error {
	if d.Status == pois.StatusRejected && (d.Reason == nil || *d.Reason == "") {
		return shared.Wrap(shared.ErrValidation, "rejection reason is required")
	}
	if d.Status != pois.StatusApproved && d.Status != pois.StatusRejected {
		return shared.Wrap(shared.ErrInvalidTransition, "cannot move to %q", d.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.rows[id]
	if !ok {
		return pois.ErrPOINotFound
	}
	if p.Status != pois.StatusPending {
		return fmt.Errorf("%w (current status %s)", pois.ErrNotPending, p.Status)
	}

	by, at := d.AdjudicatorID, d.At
	p.Status = d.Status
	p.ApprovedBy = &by
	p.ApprovedAt = &at
	if d.Status == pois.StatusRejected {
		reason := *d.Reason
		p.RejectionReason = &reason
	}
	p.UpdatedAt = m.Now()
	return nil
}

func (m *MemStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

// All returns every row in insertion order.
func (m *MemStore) All() []pois.POI {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]pois.POI, 0, len(m.seq))
	for _, id := range m.seq {
		out = append(out, *m.rows[id])
	}
	return out
}

func page(in []pois.POI, limit, offset int) []pois.POI {
	if offset >= len(in) {
		return []pois.POI{}
	}
	end := len(in)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return in[offset:end]
}
