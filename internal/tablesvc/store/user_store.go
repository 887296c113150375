package store

import (
	"context"
	"fmt"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/db"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/models"
)

type UserStore struct {
	db db.DBTX
}

func NewUserStore(db db.DBTX) *UserStore {
	return &UserStore{db: db}
}

func (r *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRow(ctx, `
        SELECT id, name, chips, created_at, updated_at
        FROM users
        WHERE id = $1
    `, id)

	u := &models.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Chips, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// Upsert creates the user or overwrites its name and chips.
func (r *UserStore) Upsert(ctx context.Context, id, name string, chips int64) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO users (id, name, chips)
        VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE
        SET name = EXCLUDED.name, chips = EXCLUDED.chips, updated_at = NOW()
    `, id, name, chips)
	if err != nil {
		return fmt.Errorf("could not upsert user %s: %w", id, err)
	}
	return nil
}

// SetChips overwrites the balance of an existing user.
func (r *UserStore) SetChips(ctx context.Context, id string, chips int64) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE users SET chips = $2, updated_at = NOW() WHERE id = $1
    `, id, chips)
	if err != nil {
		return fmt.Errorf("could not set chips for user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

// AdjustChips adds delta to the balance in one statement and returns the new
// balance. The balance never goes below zero.
func (r *UserStore) AdjustChips(ctx context.Context, id string, delta int64) (int64, error) {
	var chips int64
	err := r.db.QueryRow(ctx, `
        UPDATE users
        SET chips = chips + $2, updated_at = NOW()
        WHERE id = $1 AND chips + $2 >= 0
        RETURNING chips
    `, id, delta).Scan(&chips)
	if err == nil {
		return chips, nil
	}
	if !isNoRows(err) {
		return 0, fmt.Errorf("could not adjust chips for user %s: %w", id, err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, fmt.Errorf("could not adjust chips for user %s: %w", id, err)
	}
	if !exists {
		return 0, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return 0, fmt.Errorf("user %s delta %d: %w", id, delta, ErrInsufficientChips)
}
