package pois

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nightmap/internal/db"
	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Store {
	return &Repository{db: q}
}

const poiColumns = `
	id, name, category, description, latitude, longitude,
	address, phone, website, price_level, status,
	submitted_by, submitted_at, approved_by, approved_at, rejection_reason,
	yelp_id, google_id, tripadvisor_id, average_rating, review_count,
	created_at, updated_at`

const lockByExternalIDQuery = `
	SELECT id
	FROM pois
	WHERE yelp_id = $1 OR google_id = $2 OR tripadvisor_id = $3
	ORDER BY created_at
	LIMIT 1
	FOR UPDATE`

const refreshProviderFieldsQuery = `
	UPDATE pois
	SET name = $2,
	    category = $3,
	    description = $4,
	    latitude = $5,
	    longitude = $6,
	    address = $7,
	    phone = $8,
	    website = $9,
	    average_rating = $10,
	    review_count = $11,
	    price_level = $12,
	    yelp_id = COALESCE($13, yelp_id),
	    google_id = COALESCE($14, google_id),
	    tripadvisor_id = COALESCE($15, tripadvisor_id),
	    updated_at = NOW()
	WHERE id = $1`

const insertProviderPOIQuery = `
	INSERT INTO pois (
		name, category, description, latitude, longitude,
		address, phone, website, average_rating, review_count,
		price_level, yelp_id, google_id, tripadvisor_id, status
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10,
		$11, $12, $13, $14, 'approved'
	)
	ON CONFLICT DO NOTHING
	RETURNING id`

// UpsertVenue never touches status or any moderation column.
func (r *Repository) UpsertVenue(ctx context.Context, v venues.Venue) (UpsertResult, error) {
	if v.ExternalIDs.Empty() {
		return UpsertResult{}, shared.Wrap(shared.ErrValidation, "venue %q has no provider id", v.Name)
	}

	var res UpsertResult
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		id, found, err := lockByExternalID(ctx, tx, v.ExternalIDs)
		if err != nil {
			return err
		}
		if found {
			res = UpsertResult{ID: id, Action: ActionUpdated}
			return refreshProviderFields(ctx, tx, id, v)
		}

		err = tx.QueryRow(ctx, insertProviderPOIQuery,
			v.Name,
			v.Category,
			v.Description,
			v.Latitude,
			v.Longitude,
			v.Address,
			v.Phone,
			v.Website,
			ratingOrZero(v),
			reviewCountOrZero(v),
			priceLevelArg(v.PriceLevel),
			v.ExternalIDs.Yelp,
			v.ExternalIDs.Google,
			v.ExternalIDs.TripAdvisor,
		).Scan(&id)
		if err == nil {
			res = UpsertResult{ID: id, Action: ActionInserted}
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("insert poi: %w", err)
		}

		// A concurrent upsert inserted the same provider id first.
		id, found, err = lockByExternalID(ctx, tx, v.ExternalIDs)
		if err != nil {
			return err
		}
		if !found {
			return shared.Wrap(shared.ErrUpsertConflict, "%s id %q conflicts with another row", v.Source, v.ExternalID)
		}
		res = UpsertResult{ID: id, Action: ActionUpdated}
		return refreshProviderFields(ctx, tx, id, v)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return UpsertResult{}, shared.Wrap(shared.ErrUpsertConflict, "%s id %q: %v", v.Source, v.ExternalID, err)
		}
		return UpsertResult{}, err
	}
	return res, nil
}

// withTx runs fn in one transaction. The deferred rollback is a no-op once
// the commit has gone through.
func (r *Repository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func lockByExternalID(ctx context.Context, tx pgx.Tx, ids venues.ExternalIDs) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, lockByExternalIDQuery, ids.Yelp, ids.Google, ids.TripAdvisor).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("lookup poi by external id: %w", err)
	}
	return id, true, nil
}

func refreshProviderFields(ctx context.Context, tx pgx.Tx, id uuid.UUID, v venues.Venue) error {
	_, err := tx.Exec(ctx, refreshProviderFieldsQuery,
		id,
		v.Name,
		v.Category,
		v.Description,
		v.Latitude,
		v.Longitude,
		v.Address,
		v.Phone,
		v.Website,
		ratingOrZero(v),
		reviewCountOrZero(v),
		priceLevelArg(v.PriceLevel),
		v.ExternalIDs.Yelp,
		v.ExternalIDs.Google,
		v.ExternalIDs.TripAdvisor,
	)
	if err != nil {
		return fmt.Errorf("update poi: %w", err)
	}
	return nil
}

func (r *Repository) CreateSubmission(ctx context.Context, submittedBy uuid.UUID, s Submission) (*POI, error) {
	const q = `
		INSERT INTO pois (
			name, category, description, latitude, longitude,
			address, phone, website, price_level,
			status, submitted_by, submitted_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			'pending', $10, NOW()
		)
		RETURNING id, status, submitted_at, created_at, updated_at`

	p := &POI{
		Name:        s.Name,
		Category:    s.Category,
		Description: s.Description,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		Address:     s.Address,
		Phone:       s.Phone,
		Website:     s.Website,
		PriceLevel:  s.PriceLevel,
		SubmittedBy: &submittedBy,
	}

	err := r.db.QueryRow(ctx, q,
		s.Name,
		s.Category,
		s.Description,
		s.Latitude,
		s.Longitude,
		s.Address,
		s.Phone,
		s.Website,
		priceLevelArg(s.PriceLevel),
		submittedBy,
	).Scan(
		&p.ID,
		&p.Status,
		&p.SubmittedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create poi submission: %w", err)
	}
	return p, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*POI, error) {
	q := `SELECT ` + poiColumns + ` FROM pois WHERE id = $1`

	p, err := scanPOI(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPOINotFound
		}
		return nil, fmt.Errorf("get poi: %w", err)
	}
	return p, nil
}

func (r *Repository) ListPending(ctx context.Context, limit, offset int) ([]POI, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM pois WHERE status = 'pending'`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pending pois: %w", err)
	}

	q := `SELECT ` + poiColumns + `
		FROM pois
		WHERE status = 'pending'
		ORDER BY submitted_at DESC, created_at DESC
		LIMIT $1 OFFSET $2`

	out, err := r.list(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repository) ListApproved(ctx context.Context, filter ListFilter) ([]POI, error) {
	where := []string{"status = 'approved'"}
	args := []any{}

	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}

	q := `SELECT ` + poiColumns + ` FROM pois WHERE ` + strings.Join(where, " AND ") + ` ORDER BY name, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	return r.list(ctx, q, args...)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]POI, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list pois: %w", err)
	}
	defer rows.Close()

	out := []POI{}
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pois: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows pois: %w", err)
	}
	return out, nil
}

// Transition is a conditional update: it only lands while status is still
// pending, so two adjudicators racing on one row cannot both succeed.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, d Decision) error {
	if err := checkDecision(d); err != nil {
		return err
	}

	const q = `
		UPDATE pois
		SET status = $2,
		    approved_by = $3,
		    approved_at = $4,
		    rejection_reason = $5,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	ct, err := r.db.Exec(ctx, q, id, d.Status, d.AdjudicatorID, d.At, d.Reason)
	if err != nil {
		return fmt.Errorf("transition poi: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var current Status
	err = r.db.QueryRow(ctx, `SELECT status FROM pois WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPOINotFound
	}
	if err != nil {
		return fmt.Errorf("transition poi: %w", err)
	}
	return fmt.Errorf("%w (current status %s)", ErrNotPending, current)
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM pois`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pois: %w", err)
	}
	return n, nil
}

func scanPOI(row pgx.Row) (*POI, error) {
	var (
		p           POI
		description *string
		address     *string
		phone       *string
		website     *string
		priceLevel  *string
	)

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&description,
		&p.Latitude,
		&p.Longitude,
		&address,
		&phone,
		&website,
		&priceLevel,
		&p.Status,
		&p.SubmittedBy,
		&p.SubmittedAt,
		&p.ApprovedBy,
		&p.ApprovedAt,
		&p.RejectionReason,
		&p.YelpID,
		&p.GoogleID,
		&p.TripAdvisorID,
		&p.AverageRating,
		&p.ReviewCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Description = deref(description)
	p.Address = deref(address)
	p.Phone = deref(phone)
	p.Website = deref(website)
	if priceLevel != nil {
		pl := venues.PriceLevel(*priceLevel)
		p.PriceLevel = &pl
	}
	return &p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
