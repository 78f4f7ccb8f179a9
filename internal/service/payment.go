package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/brightline/classledger/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount  = errors.New("payment amount must be positive")
	ErrReasonRequired = errors.New("payment reason must not be empty")
)

type (
	// UnpaidClass is one completed-but-unpaid class in oldest-first order.
	UnpaidClass struct {
		ID   int64
		Date time.Time
		Cost float64
	}

	// UnpaidStore lists and settles the unpaid backlog on class logs.
	UnpaidStore interface {
		ListUnpaid(ctx context.Context, studentName string) ([]UnpaidClass, error)
		MarkPaid(ctx context.Context, ids []int64, paidOn time.Time) error
	}

	// LedgerStore appends credit transactions. Balance returns the latest
	// balance_after, or 0 for an empty ledger.
	LedgerStore interface {
		Append(ctx context.Context, entry *model.LedgerEntry) error
		Balance(ctx context.Context, studentID string) (int, error)
		ListByStudent(ctx context.Context, studentID string) ([]model.LedgerEntry, error)
	}

	// SubscriptionStore reads the student's current credit-bearing plan.
	// GetActiveByStudent returns (nil, nil) when there is none.
	SubscriptionStore interface {
		GetActiveByStudent(ctx context.Context, studentID string) (*model.Subscription, error)
	}

	// PrepaidStore holds the carried cash surplus per student.
	PrepaidStore interface {
		Get(ctx context.Context, studentID string) (float64, error)
		Set(ctx context.Context, studentID string, amount float64) error
	}
)

// PaymentInput is everything the pure calculator needs.
type PaymentInput struct {
	AmountReceived   float64
	ExistingSurplus  float64
	ClassRate        float64
	Unpaid           []UnpaidClass
	CreditsRemaining int
}

// PaymentPlan is the calculator's output: which classes to mark paid, how
// many whole credits to grant, and the surplus to carry. The caller applies
// it with ApplyPayment.
type PaymentPlan struct {
	StudentID            string        `json:"student_id"`
	StudentName          string        `json:"student_name"`
	ClassesToPay         []UnpaidClass `json:"classes_to_pay"`
	UnpaidCostCovered    float64       `json:"unpaid_cost_covered"`
	RemainingAfterUnpaid float64       `json:"remaining_after_unpaid"`
	CreditsToAdd         int           `json:"credits_to_add"`
	NewSurplus           float64       `json:"new_surplus"`
	NewCreditsTotal      int           `json:"new_credits_total"`
	UnpaidRemaining      int           `json:"unpaid_remaining"`
	Reason               string        `json:"reason"`
}

// PlanPayment turns a cash payment into a settlement plan. Pure: no I/O, no
// store access. Unpaid classes are settled oldest first and only ever in
// full; whatever is left buys whole credits at the class rate, and the rest
// carries over as surplus in [0, rate).
func PlanPayment(in PaymentInput) PaymentPlan {
	unpaid := make([]UnpaidClass, len(in.Unpaid))
	copy(unpaid, in.Unpaid)
	sort.SliceStable(unpaid, func(i, j int) bool { return unpaid[i].Date.Before(unpaid[j].Date) })

	total := in.AmountReceived + in.ExistingSurplus

	var toPay []UnpaidClass
	var covered float64
	for _, c := range unpaid {
		cost := c.Cost
		if cost <= 0 {
			cost = in.ClassRate
		}
		if covered+cost > total {
			break
		}
		c.Cost = cost
		toPay = append(toPay, c)
		covered += cost
	}

	remaining := total - covered
	creditsToAdd := int(math.Floor(remaining / in.ClassRate))
	surplus := round2(remaining - float64(creditsToAdd)*in.ClassRate)
	// Cent rounding can nudge the surplus onto the rate boundary; a full
	// rate's worth of surplus is one more credit, not surplus.
	if surplus >= in.ClassRate {
		creditsToAdd++
		surplus = round2(surplus - in.ClassRate)
	}

	return PaymentPlan{
		ClassesToPay:         toPay,
		UnpaidCostCovered:    covered,
		RemainingAfterUnpaid: remaining,
		CreditsToAdd:         creditsToAdd,
		NewSurplus:           surplus,
		NewCreditsTotal:      in.CreditsRemaining + creditsToAdd,
		UnpaidRemaining:      len(unpaid) - len(toPay),
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// RecordPaymentInput is a manual cash/Zelle payment to reconcile.
type RecordPaymentInput struct {
	StudentID   string
	StudentName string
	Amount      float64
	Reason      string
}

type PaymentService struct {
	unpaid  UnpaidStore
	ledger  LedgerStore
	subs    SubscriptionStore
	prepaid PrepaidStore
	rates   RateStore
	logger  *zap.Logger
}

func NewPaymentService(
	unpaid UnpaidStore,
	ledger LedgerStore,
	subs SubscriptionStore,
	prepaid PrepaidStore,
	rates RateStore,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		unpaid:  unpaid,
		ledger:  ledger,
		subs:    subs,
		prepaid: prepaid,
		rates:   rates,
		logger:  logger,
	}
}

// RecordPayment validates the input, gathers the student's backlog, surplus,
// rate and balance, and returns the calculated plan. Nothing is written; the
// admin reviews the plan and then calls ApplyPayment.
func (s *PaymentService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*PaymentPlan, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, ErrReasonRequired
	}

	rate, ok, err := s.rates.StudentRate(ctx, in.StudentName)
	if err != nil {
		return nil, fmt.Errorf("get student rate: %w", err)
	}
	if !ok || rate <= 0 {
		return nil, fmt.Errorf("%w for student %q", ErrRateUnavailable, in.StudentName)
	}

	surplus, err := s.prepaid.Get(ctx, in.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get prepaid balance: %w", err)
	}

	unpaid, err := s.unpaid.ListUnpaid(ctx, in.StudentName)
	if err != nil {
		return nil, fmt.Errorf("list unpaid classes: %w", err)
	}

	var credits int
	sub, err := s.subs.GetActiveByStudent(ctx, in.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if sub != nil {
		credits = sub.CreditsRemaining
	}

	plan := PlanPayment(PaymentInput{
		AmountReceived:   in.Amount,
		ExistingSurplus:  surplus,
		ClassRate:        rate,
		Unpaid:           unpaid,
		CreditsRemaining: credits,
	})
	plan.StudentID = in.StudentID
	plan.StudentName = in.StudentName
	plan.Reason = in.Reason

	s.logger.Info("Payment plan calculated",
		zap.String("student", in.StudentName),
		zap.Float64("amount", in.Amount),
		zap.Int("classes_to_pay", len(plan.ClassesToPay)),
		zap.Int("credits_to_add", plan.CreditsToAdd),
		zap.Float64("new_surplus", plan.NewSurplus),
	)
	return &plan, nil
}

// ListUnpaid exposes the student's unpaid backlog for the admin screens.
func (s *PaymentService) ListUnpaid(ctx context.Context, studentName string) ([]UnpaidClass, error) {
	unpaid, err := s.unpaid.ListUnpaid(ctx, studentName)
	if err != nil {
		return nil, fmt.Errorf("list unpaid classes: %w", err)
	}
	return unpaid, nil
}

// ApplyPayment performs the plan's three writes in order: mark classes paid,
// append the ledger credit, persist the surplus. There is no cross-write
// rollback; a failure aborts the remainder and reports what was already
// applied so an admin can finish by hand.
func (s *PaymentService) ApplyPayment(ctx context.Context, plan *PaymentPlan) error {
	if len(plan.ClassesToPay) > 0 {
		ids := make([]int64, len(plan.ClassesToPay))
		for i, c := range plan.ClassesToPay {
			ids[i] = c.ID
		}
		if err := s.unpaid.MarkPaid(ctx, ids, time.Now().UTC()); err != nil {
			return fmt.Errorf("mark classes paid (nothing applied yet): %w", err)
		}
	}

	if plan.CreditsToAdd > 0 {
		balance, err := s.ledger.Balance(ctx, plan.StudentID)
		if err != nil {
			return fmt.Errorf("read ledger balance (classes already marked paid): %w", err)
		}
		var subID *string
		sub, err := s.subs.GetActiveByStudent(ctx, plan.StudentID)
		if err == nil && sub != nil {
			subID = &sub.ID
		}
		entry := &model.LedgerEntry{
			ID:             uuid.NewString(),
			StudentID:      plan.StudentID,
			SubscriptionID: subID,
			Type:           model.LedgerEntryCredit,
			Amount:         plan.CreditsToAdd,
			BalanceAfter:   balance + plan.CreditsToAdd,
			Reason:         plan.Reason,
		}
		if err := s.ledger.Append(ctx, entry); err != nil {
			return fmt.Errorf("append ledger credit (classes already marked paid): %w", err)
		}
	}

	if err := s.prepaid.Set(ctx, plan.StudentID, plan.NewSurplus); err != nil {
		return fmt.Errorf("set prepaid balance (classes marked paid, credits granted): %w", err)
	}

	s.logger.Info("Payment applied",
		zap.String("student", plan.StudentName),
		zap.Int("classes_marked_paid", len(plan.ClassesToPay)),
		zap.Int("credits_added", plan.CreditsToAdd),
		zap.Float64("surplus", plan.NewSurplus),
	)
	return nil
}
