package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RateRepository reads the current rate tables. The rate tables are keyed by
// display name, matching how the platform's billing sheets are maintained.
type RateRepository struct {
	pool *pgxpool.Pool
}

func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool}
}

// StudentRate returns the student's current per-class rate.
func (r *RateRepository) StudentRate(ctx context.Context, studentName string) (float64, bool, error) {
	query := `SELECT class_rate FROM student_rates WHERE student_name = $1`

	var rate float64
	err := r.pool.QueryRow(ctx, query, studentName).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get student rate: %w", err)
	}

	return rate, true, nil
}

// TutorRate returns the tutor's current hourly rate.
func (r *RateRepository) TutorRate(ctx context.Context, tutorName string) (float64, bool, error) {
	query := `SELECT hourly_rate FROM tutor_rates WHERE tutor_name = $1`

	var rate float64
	err := r.pool.QueryRow(ctx, query, tutorName).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get tutor rate: %w", err)
	}

	return rate, true, nil
}
