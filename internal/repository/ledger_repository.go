package repository

import (
	"context"
	"fmt"

	"github.com/brightline/classledger/internal/model"
	"github.com/brightline/classledger/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepository is append-only: entries are never updated or deleted,
// corrections are new adjustment entries.
type LedgerRepository struct {
	*base.Repository
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{Repository: base.NewRepository(pool)}
}

// Append writes one ledger entry.
func (r *LedgerRepository) Append(ctx context.Context, entry *model.LedgerEntry) error {
	query := `
		INSERT INTO credit_ledger (id, student_id, subscription_id, type, amount, balance_after, reason, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.QueryRow(
		ctx, query,
		entry.ID,
		entry.StudentID,
		entry.SubscriptionID,
		entry.Type,
		entry.Amount,
		entry.BalanceAfter,
		entry.Reason,
		entry.ReferenceID,
	).Scan(&entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	return nil
}

// Balance returns the latest balance_after snapshot, or 0 for an empty
// ledger.
func (r *LedgerRepository) Balance(ctx context.Context, studentID string) (int, error) {
	query := `
		SELECT balance_after
		FROM credit_ledger
		WHERE student_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var balance int
	err := r.QueryRow(ctx, query, studentID).Scan(&balance)
	if err != nil {
		if base.IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get ledger balance: %w", err)
	}

	return balance, nil
}

// ListByStudent returns the student's full ledger oldest first, the order
// the audit walks it in.
func (r *LedgerRepository) ListByStudent(ctx context.Context, studentID string) ([]model.LedgerEntry, error) {
	query := `
		SELECT id, student_id, subscription_id, type, amount, balance_after, reason, reference_id, created_at
		FROM credit_ledger
		WHERE student_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		err := rows.Scan(
			&e.ID,
			&e.StudentID,
			&e.SubscriptionID,
			&e.Type,
			&e.Amount,
			&e.BalanceAfter,
			&e.Reason,
			&e.ReferenceID,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}
