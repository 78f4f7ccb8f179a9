package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/brightline/classledger/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ScheduleRepository struct {
	pool *pgxpool.Pool
}

func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// Create inserts a planned class.
func (r *ScheduleRepository) Create(ctx context.Context, sc *model.ScheduledClass) error {
	query := `
		INSERT INTO scheduled_classes (tutor_id, student_id, subject, date, start_time, end_time, status, zoom_link, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		sc.TutorID,
		sc.StudentID,
		sc.Subject,
		sc.Date,
		sc.StartTime,
		sc.EndTime,
		sc.Status,
		sc.ZoomLink,
		sc.Notes,
	).Scan(&sc.ID, &sc.CreatedAt, &sc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create scheduled class: %w", err)
	}

	return nil
}

// GetByID returns the planned class, or nil if the row is gone (completed or
// cancelled).
func (r *ScheduleRepository) GetByID(ctx context.Context, id int64) (*model.ScheduledClass, error) {
	query := `
		SELECT id, tutor_id, student_id, subject, date, start_time, end_time, status, zoom_link, notes, created_at, updated_at
		FROM scheduled_classes
		WHERE id = $1
	`

	var sc model.ScheduledClass
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sc.ID,
		&sc.TutorID,
		&sc.StudentID,
		&sc.Subject,
		&sc.Date,
		&sc.StartTime,
		&sc.EndTime,
		&sc.Status,
		&sc.ZoomLink,
		&sc.Notes,
		&sc.CreatedAt,
		&sc.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get scheduled class by id: %w", err)
	}

	return &sc, nil
}

// Delete removes the planned class row.
func (r *ScheduleRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM scheduled_classes WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete scheduled class: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("scheduled class not found")
	}

	return nil
}
