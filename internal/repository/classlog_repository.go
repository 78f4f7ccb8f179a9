package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brightline/classledger/internal/model"
	"github.com/brightline/classledger/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClassLogRepository struct {
	pool *pgxpool.Pool
}

func NewClassLogRepository(pool *pgxpool.Pool) *ClassLogRepository {
	return &ClassLogRepository{pool: pool}
}

// Insert writes a completion record. The unique constraint on schedule_id is
// what ultimately guarantees one log per completed class.
func (r *ClassLogRepository) Insert(ctx context.Context, log *model.ClassLog) error {
	query := `
		INSERT INTO class_logs (
			schedule_id, class_number, title, tutor_name, student_name,
			date, day, start_time, end_time, duration_hours, subject,
			content, homework, additional_notes, class_cost, tutor_cost
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		log.ScheduleID,
		log.ClassNumber,
		log.Title,
		log.TutorName,
		log.StudentName,
		log.Date,
		log.Day,
		log.StartTime,
		log.EndTime,
		log.DurationHours,
		log.Subject,
		log.Content,
		log.Homework,
		log.AdditionalNotes,
		log.ClassCost,
		log.TutorCost,
	).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("insert class log: %w", err)
	}

	return nil
}

// GetByScheduleID returns the completion log for a schedule row, or nil.
func (r *ClassLogRepository) GetByScheduleID(ctx context.Context, scheduleID int64) (*model.ClassLog, error) {
	query := `
		SELECT id, schedule_id, class_number, title, tutor_name, student_name,
		       date, day, start_time, end_time, duration_hours, subject,
		       content, homework, additional_notes, class_cost, tutor_cost,
		       student_payment_date, tutor_payment_date, created_at
		FROM class_logs
		WHERE schedule_id = $1
	`

	var log model.ClassLog
	err := r.pool.QueryRow(ctx, query, scheduleID).Scan(
		&log.ID,
		&log.ScheduleID,
		&log.ClassNumber,
		&log.Title,
		&log.TutorName,
		&log.StudentName,
		&log.Date,
		&log.Day,
		&log.StartTime,
		&log.EndTime,
		&log.DurationHours,
		&log.Subject,
		&log.Content,
		&log.Homework,
		&log.AdditionalNotes,
		&log.ClassCost,
		&log.TutorCost,
		&log.StudentPaidDate,
		&log.TutorPaidDate,
		&log.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get class log by schedule id: %w", err)
	}

	return &log, nil
}

// DeleteByScheduleID removes a log row. Only the settlement saga calls this,
// as the compensating action when the schedule delete fails.
func (r *ClassLogRepository) DeleteByScheduleID(ctx context.Context, scheduleID int64) error {
	query := `DELETE FROM class_logs WHERE schedule_id = $1`

	result, err := r.pool.Exec(ctx, query, scheduleID)
	if err != nil {
		return fmt.Errorf("delete class log: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("class log not found")
	}

	return nil
}

// NumbersByDate lists the class numbers already issued for a date, for the
// next-free-suffix scan.
func (r *ClassLogRepository) NumbersByDate(ctx context.Context, date time.Time) ([]string, error) {
	query := `SELECT class_number FROM class_logs WHERE date = $1`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("list class numbers by date: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan class number: %w", err)
		}
		numbers = append(numbers, n)
	}

	return numbers, nil
}

// ListUnpaid returns the student's unpaid completed classes oldest first.
func (r *ClassLogRepository) ListUnpaid(ctx context.Context, studentName string) ([]service.UnpaidClass, error) {
	query := `
		SELECT id, date, class_cost
		FROM class_logs
		WHERE student_name = $1 AND student_payment_date IS NULL
		ORDER BY date ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, studentName)
	if err != nil {
		return nil, fmt.Errorf("list unpaid classes: %w", err)
	}
	defer rows.Close()

	var unpaid []service.UnpaidClass
	for rows.Next() {
		var c service.UnpaidClass
		if err := rows.Scan(&c.ID, &c.Date, &c.Cost); err != nil {
			return nil, fmt.Errorf("scan unpaid class: %w", err)
		}
		unpaid = append(unpaid, c)
	}

	return unpaid, nil
}

// MarkPaid stamps student_payment_date on the given logs.
func (r *ClassLogRepository) MarkPaid(ctx context.Context, ids []int64, paidOn time.Time) error {
	query := `
		UPDATE class_logs
		SET student_payment_date = $1
		WHERE id = ANY($2)
	`

	result, err := r.pool.Exec(ctx, query, paidOn, ids)
	if err != nil {
		return fmt.Errorf("mark classes paid: %w", err)
	}

	if result.RowsAffected() != int64(len(ids)) {
		return fmt.Errorf("mark classes paid: expected %d rows, updated %d", len(ids), result.RowsAffected())
	}

	return nil
}

// CountCompletedSince counts completion logs created after the given time.
func (r *ClassLogRepository) CountCompletedSince(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM class_logs WHERE created_at >= $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count completed classes: %w", err)
	}

	return count, nil
}

// UnpaidTotals returns the size and dollar total of the unpaid backlog.
func (r *ClassLogRepository) UnpaidTotals(ctx context.Context) (int, float64, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(class_cost), 0)
		FROM class_logs
		WHERE student_payment_date IS NULL
	`

	var count int
	var total float64
	if err := r.pool.QueryRow(ctx, query).Scan(&count, &total); err != nil {
		return 0, 0, fmt.Errorf("unpaid totals: %w", err)
	}

	return count, total, nil
}
