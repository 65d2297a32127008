// Package moderation governs user-submitted venues: pending rows become
// approved or rejected by an adjudicator, and both outcomes are terminal.
// A rejected venue is never reopened; proposing it again creates a new row.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"nightmap/internal/domain/accesscontrol"
	"nightmap/internal/domain/pois"
	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"
	"nightmap/internal/events"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var usPhone = regexp.MustCompile(`^\(?([0-9]{3})\)?[-. ]?([0-9]{3})[-. ]?([0-9]{4})$`)

// SubmitInput is a user's proposed venue.
type SubmitInput struct {
	Name        string   `json:"name" validate:"required,min=2,max=120"`
	Category    string   `json:"category" validate:"required,poicategory"`
	Description string   `json:"description,omitempty" validate:"max=500"`
	Latitude    *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Address     string   `json:"address,omitempty" validate:"max=255"`
	Phone       string   `json:"phone,omitempty" validate:"omitempty,usphone"`
	Website     string   `json:"website,omitempty" validate:"omitempty,url"`
	PriceLevel  string   `json:"price_level,omitempty" validate:"omitempty,oneof=$ $$ $$$ $$$$"`
}

// NewValidator returns a validator with the submission rules registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("poicategory", func(fl validator.FieldLevel) bool {
		_, ok := venues.ParseCategory(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("usphone", func(fl validator.FieldLevel) bool {
		return usPhone.MatchString(fl.Field().String())
	})
	return v
}

type Service struct {
	store    pois.Store
	roles    accesscontrol.Store
	emitter  events.Emitter
	validate *validator.Validate
	region   *venues.Region
	now      func() time.Time
	logger   *zap.SugaredLogger
}

// NewService wires the state machine. A nil region accepts submissions
// anywhere.
func NewService(store pois.Store, roles accesscontrol.Store, emitter events.Emitter, region *venues.Region, logger *zap.SugaredLogger) *Service {
	if emitter == nil {
		emitter = events.Nop
	}
	return &Service{
		store:    store,
		roles:    roles,
		emitter:  emitter,
		validate: NewValidator(),
		region:   region,
		now:      time.Now,
		logger:   logger,
	}
}

// Submit validates in and stores it as a pending row owned by userID.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, in SubmitInput) (*pois.POI, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Website = strings.TrimSpace(in.Website)

	if err := s.validate.Struct(in); err != nil {
		return nil, shared.Wrap(shared.ErrValidation, "%v", err)
	}
	if s.region != nil && !s.region.Contains(*in.Latitude, *in.Longitude) {
		return nil, shared.Wrap(shared.ErrValidation, "location is outside the catalog region")
	}

	category, _ := venues.ParseCategory(in.Category)
	sub := pois.Submission{
		Name:        in.Name,
		Category:    category,
		Description: in.Description,
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
		Address:     in.Address,
		Phone:       in.Phone,
		Website:     in.Website,
	}
	if p, ok := venues.ParsePriceLevel(in.PriceLevel); ok {
		sub.PriceLevel = &p
	}

	p, err := s.store.CreateSubmission(ctx, userID, sub)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("venue submitted", "poi_id", p.ID, "user_id", userID)
	s.emitter.Emit(ctx, events.Event{
		Name:        events.SubmissionCreated,
		At:          s.now(),
		POIID:       p.ID,
		ActorID:     userID,
		SubmitterID: userID,
	})
	return p, nil
}

// ListPending returns pending rows newest first together with the total.
func (s *Service) ListPending(ctx context.Context, adjudicatorID uuid.UUID, limit, offset int) ([]pois.POI, int, error) {
	if err := s.authorize(ctx, adjudicatorID); err != nil {
		return nil, 0, err
	}
	return s.store.ListPending(ctx, limit, offset)
}

func (s *Service) Approve(ctx context.Context, poiID, adjudicatorID uuid.UUID) (*pois.POI, error) {
	return s.decide(ctx, poiID, pois.Decision{
		Status:        pois.StatusApproved,
		AdjudicatorID: adjudicatorID,
	})
}

// Reject needs a non-blank reason whatever the caller's role.
func (s *Service) Reject(ctx context.Context, poiID, adjudicatorID uuid.UUID, reason string) (*pois.POI, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: %w: rejection reason is required", shared.ErrInvalidTransition, shared.ErrValidation)
	}
	return s.decide(ctx, poiID, pois.Decision{
		Status:        pois.StatusRejected,
		AdjudicatorID: adjudicatorID,
		Reason:        &reason,
	})
}

func (s *Service) decide(ctx context.Context, poiID uuid.UUID, d pois.Decision) (*pois.POI, error) {
	if err := s.authorize(ctx, d.AdjudicatorID); err != nil {
		return nil, err
	}

	d.At = s.now()
	if err := s.store.Transition(ctx, poiID, d); err != nil {
		return nil, err
	}

	p, err := s.store.GetByID(ctx, poiID)
	if err != nil {
		return nil, err
	}

	name := events.SubmissionApproved
	if d.Status == pois.StatusRejected {
		name = events.SubmissionRejected
	}
	ev := events.Event{
		Name:    name,
		At:      d.At,
		POIID:   poiID,
		ActorID: d.AdjudicatorID,
		Detail:  p.Name,
	}
	if p.SubmittedBy != nil {
		ev.SubmitterID = *p.SubmittedBy
	}

	s.logger.Infow("submission decided", "poi_id", poiID, "status", d.Status, "adjudicator_id", d.AdjudicatorID)
	s.emitter.Emit(ctx, ev)
	return p, nil
}

func (s *Service) authorize(ctx context.Context, userID uuid.UUID) error {
	role, err := s.roles.GetRole(ctx, userID)
	if err != nil {
		if errors.Is(err, accesscontrol.ErrProfileNotFound) {
			return fmt.Errorf("%w: %w: unknown adjudicator", shared.ErrInvalidTransition, shared.ErrForbidden)
		}
		return fmt.Errorf("load adjudicator role: %w", err)
	}
	if !role.CanAdjudicate() {
		return fmt.Errorf("%w: %w: role %q cannot adjudicate", shared.ErrInvalidTransition, shared.ErrForbidden, role)
	}
	return nil
}
