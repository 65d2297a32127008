package pois

import (
	"context"
	"fmt"
	"time"

	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"

	"github.com/google/uuid"
)

var (
	ErrPOINotFound = fmt.Errorf("%w: poi", shared.ErrNotFound)
	ErrNotPending  = fmt.Errorf("%w: poi is not pending", shared.ErrInvalidTransition)
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// POI is the persisted, deduplicated catalog row.
type POI struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Category    venues.Category    `json:"category"`
	Description string             `json:"description,omitempty"`
	Latitude    float64            `json:"latitude"`
	Longitude   float64            `json:"longitude"`
	Address     string             `json:"address,omitempty"`
	Phone       string             `json:"phone,omitempty"`
	Website     string             `json:"website,omitempty"`
	PriceLevel  *venues.PriceLevel `json:"price_level,omitempty"`
	Status      Status             `json:"status"`

	SubmittedBy     *uuid.UUID `json:"submitted_by,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	YelpID        *string `json:"yelp_id,omitempty"`
	GoogleID      *string `json:"google_id,omitempty"`
	TripAdvisorID *string `json:"tripadvisor_id,omitempty"`

	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSubmitted reports whether the row came through the moderation path.
func (p POI) UserSubmitted() bool {
	return p.SubmittedBy != nil
}

type UpsertAction string

const (
	ActionInserted UpsertAction = "inserted"
	ActionUpdated  UpsertAction = "updated"
)

type UpsertResult struct {
	ID     uuid.UUID
	Action UpsertAction
}

// Submission is a user-proposed venue awaiting moderation.
type Submission struct {
	Name        string
	Category    venues.Category
	Description string
	Latitude    float64
	Longitude   float64
	Address     string
	Phone       string
	Website     string
	PriceLevel  *venues.PriceLevel
}

// Decision is the outcome an adjudicator records on a pending row.
type Decision struct {
	Status        Status
	AdjudicatorID uuid.UUID
	Reason        *string
	At            time.Time
}

type ListFilter struct {
	Category *venues.Category
	Limit    int
	Offset   int
}

type Store interface {
	// UpsertVenue resolves v by any of its provider ids and inserts or
	// refreshes the row atomically.
	UpsertVenue(ctx context.Context, v venues.Venue) (UpsertResult, error)
	CreateSubmission(ctx context.Context, submittedBy uuid.UUID, s Submission) (*POI, error)
	GetByID(ctx context.Context, id uuid.UUID) (*POI, error)
	ListPending(ctx context.Context, limit, offset int) ([]POI, int, error)
	ListApproved(ctx context.Context, filter ListFilter) ([]POI, error)
	// Transition applies d only while the row is still pending.
	Transition(ctx context.Context, id uuid.UUID, d Decision) error
	Count(ctx context.Context) (int, error)
}

func ratingOrZero(v venues.Venue) float64 {
	if v.Rating == nil {
		return 0
	}
	return *v.Rating
}

func reviewCountOrZero(v venues.Venue) int {
	if v.ReviewCount == nil {
		return 0
	}
	return *v.ReviewCount
}

func priceLevelArg(p *venues.PriceLevel) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func checkDecision(d Decision) error {
	switch d.Status {
	case StatusApproved:
		if d.Reason != nil {
			return shared.Wrap(shared.ErrValidation, "approval cannot carry a rejection reason")
		}
	case StatusRejected:
		if d.Reason == nil || *d.Reason == "" {
			return shared.Wrap(shared.ErrValidation, "rejection reason is required")
		}
	default:
		return shared.Wrap(shared.ErrInvalidTransition, "cannot move to %q", d.Status)
	}
	if d.AdjudicatorID == uuid.Nil {
		return shared.Wrap(shared.ErrValidation, "adjudicator is required")
	}
	return nil
}
