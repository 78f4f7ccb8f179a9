package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/brightline/classledger/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// GetActiveByStudent returns the student's active subscription, or nil if
// there is none.
func (r *SubscriptionRepository) GetActiveByStudent(ctx context.Context, studentID string) (*model.Subscription, error) {
	query := `
		SELECT id, student_id, plan_id, billing_customer_id, billing_subscription_id,
		       status, credits_remaining, credits_allocated, created_at, updated_at
		FROM student_subscriptions
		WHERE student_id = $1 AND status = 'active'
		LIMIT 1
	`

	var sub model.Subscription
	err := r.pool.QueryRow(ctx, query, studentID).Scan(
		&sub.ID,
		&sub.StudentID,
		&sub.PlanID,
		&sub.BillingCustomerID,
		&sub.BillingSubscriptionID,
		&sub.Status,
		&sub.CreditsRemaining,
		&sub.CreditsAllocated,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get subscription by student: %w", err)
	}

	return &sub, nil
}
