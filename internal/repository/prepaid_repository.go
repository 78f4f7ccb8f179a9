package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PrepaidRepository struct {
	pool *pgxpool.Pool
}

func NewPrepaidRepository(pool *pgxpool.Pool) *PrepaidRepository {
	return &PrepaidRepository{pool: pool}
}

// Get returns the student's carried surplus, 0 if none recorded yet.
func (r *PrepaidRepository) Get(ctx context.Context, studentID string) (float64, error) {
	query := `SELECT amount FROM prepaid_balances WHERE student_id = $1`

	var amount float64
	err := r.pool.QueryRow(ctx, query, studentID).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get prepaid balance: %w", err)
	}

	return amount, nil
}

// Set upserts the student's carried surplus.
func (r *PrepaidRepository) Set(ctx context.Context, studentID string, amount float64) error {
	query := `
		INSERT INTO prepaid_balances (student_id, amount, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (student_id)
		DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, studentID, amount); err != nil {
		return fmt.Errorf("set prepaid balance: %w", err)
	}

	return nil
}
