package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LedgerAudit is the result of reconciling a student's append-only ledger
// against the denormalized credits_remaining on the subscription.
type LedgerAudit struct {
	StudentID        string `json:"student_id"`
	Entries          int    `json:"entries"`
	ChainValid       bool   `json:"chain_valid"`
	BrokenAtEntry    string `json:"broken_at_entry,omitempty"`
	LedgerBalance    int    `json:"ledger_balance"`
	CreditsRemaining int    `json:"credits_remaining"`
	HasSubscription  bool   `json:"has_subscription"`
	Drift            int    `json:"drift"`
	Consistent       bool   `json:"consistent"`
}

type LedgerService struct {
	ledger LedgerStore
	subs   SubscriptionStore
	logger *zap.Logger
}

func NewLedgerService(ledger LedgerStore, subs SubscriptionStore, logger *zap.Logger) *LedgerService {
	return &LedgerService{ledger: ledger, subs: subs, logger: logger}
}

// CheckConsistency walks the student's ledger oldest-first, verifying that
// every balance_after equals the previous one plus the entry amount, then
// compares the final balance against the subscription's cached
// credits_remaining. The cached field is never trusted blindly; this is the
// audit that earns that trust.
func (s *LedgerService) CheckConsistency(ctx context.Context, studentID string) (*LedgerAudit, error) {
	entries, err := s.ledger.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}

	audit := &LedgerAudit{
		StudentID:  studentID,
		Entries:    len(entries),
		ChainValid: true,
	}

	running := 0
	for _, e := range entries {
		if e.BalanceAfter != running+e.Amount {
			audit.ChainValid = false
			audit.BrokenAtEntry = e.ID
			break
		}
		running = e.BalanceAfter
	}
	audit.LedgerBalance = running

	sub, err := s.subs.GetActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if sub != nil {
		audit.HasSubscription = true
		audit.CreditsRemaining = sub.CreditsRemaining
		audit.Drift = sub.CreditsRemaining - audit.LedgerBalance
	}
	audit.Consistent = audit.ChainValid && audit.Drift == 0

	if !audit.Consistent {
		s.logger.Warn("Ledger inconsistency detected",
			zap.String("student_id", studentID),
			zap.Bool("chain_valid", audit.ChainValid),
			zap.String("broken_at", audit.BrokenAtEntry),
			zap.Int("ledger_balance", audit.LedgerBalance),
			zap.Int("credits_remaining", audit.CreditsRemaining),
			zap.Int("drift", audit.Drift),
		)
	}
	return audit, nil
}
