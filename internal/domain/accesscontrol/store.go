package accesscontrol

import (
	"context"
	"errors"
	"fmt"

	"nightmap/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Store interface {
	GetRole(ctx context.Context, userID uuid.UUID) (Role, error)
	SetRole(ctx context.Context, userID uuid.UUID, role Role) error
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Store {
	return &Repository{db: q}
}

func (r *Repository) GetRole(ctx context.Context, userID uuid.UUID) (Role, error) {
	var raw string
	err := r.db.QueryRow(ctx, `SELECT role FROM profiles WHERE id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrProfileNotFound
		}
		return "", fmt.Errorf("get role: %w", err)
	}
	return ParseRole(raw)
}

func (r *Repository) SetRole(ctx context.Context, userID uuid.UUID, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}

	query := `
        UPDATE profiles
        SET role = $2, updated_at = NOW()
        WHERE id = $1
    `
	result, err := r.db.Exec(ctx, query, userID, string(role))
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}
