package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brightline/classledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func unpaidAt(rate float64, days ...int) []UnpaidClass {
	out := make([]UnpaidClass, len(days))
	for i, d := range days {
		out[i] = UnpaidClass{ID: int64(100 + i), Date: day(d), Cost: rate}
	}
	return out
}

func TestPlanPayment_CoversOldestUnpaidFirst(t *testing.T) {
	// $120 against three $50 classes: the two oldest get paid in full, the
	// remaining $20 is below a credit and carries as surplus.
	plan := PlanPayment(PaymentInput{
		AmountReceived: 120,
		ClassRate:      50,
		Unpaid:         unpaidAt(50, 3, 7, 12),
	})

	require.Len(t, plan.ClassesToPay, 2)
	assert.Equal(t, int64(100), plan.ClassesToPay[0].ID)
	assert.Equal(t, int64(101), plan.ClassesToPay[1].ID)
	assert.Equal(t, 100.0, plan.UnpaidCostCovered)
	assert.Equal(t, 20.0, plan.RemainingAfterUnpaid)
	assert.Equal(t, 0, plan.CreditsToAdd)
	assert.Equal(t, 20.0, plan.NewSurplus)
	assert.Equal(t, 1, plan.UnpaidRemaining)
}

func TestPlanPayment_SurplusBuysWholeCredits(t *testing.T) {
	// $175 + $25 carried surplus with no backlog buys exactly 4 credits.
	plan := PlanPayment(PaymentInput{
		AmountReceived:   175,
		ExistingSurplus:  25,
		ClassRate:        50,
		CreditsRemaining: 2,
	})

	assert.Empty(t, plan.ClassesToPay)
	assert.Equal(t, 200.0, plan.RemainingAfterUnpaid)
	assert.Equal(t, 4, plan.CreditsToAdd)
	assert.Equal(t, 0.0, plan.NewSurplus)
	assert.Equal(t, 6, plan.NewCreditsTotal)
	assert.Equal(t, 0, plan.UnpaidRemaining)
}

func TestPlanPayment_NoFractionalClassPayment(t *testing.T) {
	// $50 against a $60 class: classes are paid in full or not at all.
	plan := PlanPayment(PaymentInput{
		AmountReceived: 50,
		ClassRate:      50,
		Unpaid:         []UnpaidClass{{ID: 1, Date: day(1), Cost: 60}},
	})

	assert.Empty(t, plan.ClassesToPay)
	assert.Equal(t, 50.0, plan.RemainingAfterUnpaid)
	assert.Equal(t, 1, plan.CreditsToAdd)
	assert.Equal(t, 0.0, plan.NewSurplus)
	assert.Equal(t, 1, plan.UnpaidRemaining)
}

func TestPlanPayment_ZeroCostFallsBackToRate(t *testing.T) {
	plan := PlanPayment(PaymentInput{
		AmountReceived: 50,
		ClassRate:      50,
		Unpaid:         []UnpaidClass{{ID: 1, Date: day(1), Cost: 0}},
	})

	require.Len(t, plan.ClassesToPay, 1)
	assert.Equal(t, 50.0, plan.ClassesToPay[0].Cost)
	assert.Equal(t, 50.0, plan.UnpaidCostCovered)
	assert.Equal(t, 0.0, plan.NewSurplus)
}

func TestPlanPayment_OrderIndependence(t *testing.T) {
	// Selection is defined by date, not by input order.
	ordered := unpaidAt(50, 3, 7, 12)
	shuffled := []UnpaidClass{ordered[2], ordered[0], ordered[1]}

	a := PlanPayment(PaymentInput{AmountReceived: 120, ClassRate: 50, Unpaid: ordered})
	b := PlanPayment(PaymentInput{AmountReceived: 120, ClassRate: 50, Unpaid: shuffled})

	require.Len(t, b.ClassesToPay, len(a.ClassesToPay))
	for i := range a.ClassesToPay {
		assert.Equal(t, a.ClassesToPay[i].ID, b.ClassesToPay[i].ID)
	}
}

func TestPlanPayment_ConservationAndSurplusBound(t *testing.T) {
	// Sweep a grid of inputs: money is conserved and the surplus always
	// lands in [0, rate).
	rates := []float64{25, 50, 62.5, 80}
	amounts := []float64{0.01, 10, 49.99, 50, 120, 175, 333.33, 1000}
	surpluses := []float64{0, 0.01, 10, 24.99, 49.5}
	backlogs := [][]UnpaidClass{
		nil,
		unpaidAt(50, 2),
		unpaidAt(50, 2, 5, 9),
		{{ID: 1, Date: day(1), Cost: 37.5}, {ID: 2, Date: day(3), Cost: 62.5}},
	}

	for _, rate := range rates {
		for _, amount := range amounts {
			for _, surplus := range surpluses {
				if surplus >= rate {
					continue
				}
				for _, backlog := range backlogs {
					plan := PlanPayment(PaymentInput{
						AmountReceived:  amount,
						ExistingSurplus: surplus,
						ClassRate:       rate,
						Unpaid:          backlog,
					})
					total := amount + surplus

					assert.InDelta(t, total, plan.UnpaidCostCovered+plan.RemainingAfterUnpaid, 1e-9)
					assert.InDelta(t, plan.RemainingAfterUnpaid, float64(plan.CreditsToAdd)*rate+plan.NewSurplus, 0.01)
					assert.GreaterOrEqual(t, plan.NewSurplus, 0.0)
					assert.Less(t, plan.NewSurplus, rate)
					assert.GreaterOrEqual(t, plan.CreditsToAdd, 0)
				}
			}
		}
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 20.0, round2(20.000000001))
	assert.Equal(t, 0.33, round2(1.0/3.0))
	assert.InDelta(t, 12.35, round2(12.345000001), 1e-9)
}

type paymentFixture struct {
	unpaid  *fakeUnpaidStore
	ledger  *fakeLedgerStore
	subs    *fakeSubscriptionStore
	prepaid *fakePrepaidStore
	rates   *fakeRateStore
	svc     *PaymentService
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		unpaid:  &fakeUnpaidStore{},
		ledger:  &fakeLedgerStore{},
		subs:    &fakeSubscriptionStore{},
		prepaid: &fakePrepaidStore{},
		rates:   newFakeRateStore(),
	}
	f.svc = NewPaymentService(f.unpaid, f.ledger, f.subs, f.prepaid, f.rates, zap.NewNop())
	return f
}

func paymentInput(amount float64) RecordPaymentInput {
	return RecordPaymentInput{
		StudentID:   "student-1",
		StudentName: "Alice Woods",
		Amount:      amount,
		Reason:      "Zelle payment",
	}
}

func TestRecordPayment_Validation(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.RecordPayment(context.Background(), paymentInput(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.RecordPayment(context.Background(), paymentInput(-5))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	in := paymentInput(100)
	in.Reason = "  "
	_, err = f.svc.RecordPayment(context.Background(), in)
	assert.ErrorIs(t, err, ErrReasonRequired)

	in = paymentInput(100)
	in.StudentName = "Nobody"
	_, err = f.svc.RecordPayment(context.Background(), in)
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestRecordPayment_BuildsPlanFromStores(t *testing.T) {
	f := newPaymentFixture()
	f.unpaid.unpaid = unpaidAt(50, 3, 7)
	f.prepaid.amount = 25
	f.subs.sub = &model.Subscription{ID: "sub-1", StudentID: "student-1", CreditsRemaining: 2}

	plan, err := f.svc.RecordPayment(context.Background(), paymentInput(175))
	require.NoError(t, err)

	// $175 + $25 surplus covers two $50 classes, then buys 2 credits.
	assert.Len(t, plan.ClassesToPay, 2)
	assert.Equal(t, 2, plan.CreditsToAdd)
	assert.Equal(t, 0.0, plan.NewSurplus)
	assert.Equal(t, 4, plan.NewCreditsTotal)
	assert.Equal(t, "student-1", plan.StudentID)
	assert.Equal(t, "Zelle payment", plan.Reason)

	// Preview writes nothing.
	assert.Zero(t, f.unpaid.markedCalls)
	assert.Empty(t, f.ledger.entries)
	assert.Empty(t, f.prepaid.sets)
}

func TestApplyPayment_ThreeWritesInOrder(t *testing.T) {
	f := newPaymentFixture()
	f.subs.sub = &model.Subscription{ID: "sub-1", StudentID: "student-1", CreditsRemaining: 0}
	f.ledger.entries = []model.LedgerEntry{
		{ID: "e1", StudentID: "student-1", Type: model.LedgerEntryCredit, Amount: 5, BalanceAfter: 5},
	}

	plan := &PaymentPlan{
		StudentID:    "student-1",
		StudentName:  "Alice Woods",
		ClassesToPay: unpaidAt(50, 3, 7),
		CreditsToAdd: 3,
		NewSurplus:   12.5,
		Reason:       "Cash payment",
	}
	require.NoError(t, f.svc.ApplyPayment(context.Background(), plan))

	assert.Equal(t, []int64{100, 101}, f.unpaid.markedIDs)

	require.Len(t, f.ledger.entries, 2)
	entry := f.ledger.entries[1]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, model.LedgerEntryCredit, entry.Type)
	assert.Equal(t, 3, entry.Amount)
	assert.Equal(t, 8, entry.BalanceAfter) // prior balance_after + amount
	assert.Equal(t, "Cash payment", entry.Reason)
	require.NotNil(t, entry.SubscriptionID)
	assert.Equal(t, "sub-1", *entry.SubscriptionID)

	assert.Equal(t, []float64{12.5}, f.prepaid.sets)
}

func TestApplyPayment_NoCreditsSkipsLedger(t *testing.T) {
	f := newPaymentFixture()

	plan := &PaymentPlan{
		StudentID:    "student-1",
		ClassesToPay: unpaidAt(50, 3),
		CreditsToAdd: 0,
		NewSurplus:   20,
	}
	require.NoError(t, f.svc.ApplyPayment(context.Background(), plan))

	assert.Empty(t, f.ledger.entries)
	assert.Equal(t, []float64{20}, f.prepaid.sets)
}

func TestApplyPayment_MarkPaidFailureStopsEverything(t *testing.T) {
	f := newPaymentFixture()
	f.unpaid.markErr = errors.New("update refused")

	plan := &PaymentPlan{
		StudentID:    "student-1",
		ClassesToPay: unpaidAt(50, 3),
		CreditsToAdd: 2,
		NewSurplus:   10,
	}
	err := f.svc.ApplyPayment(context.Background(), plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing applied yet")
	assert.Empty(t, f.ledger.entries)
	assert.Empty(t, f.prepaid.sets)
}

func TestApplyPayment_LedgerFailureLeavesMarksInPlace(t *testing.T) {
	// No cross-write rollback: the classes stay marked paid, the surplus is
	// not written, and the error says how far it got.
	f := newPaymentFixture()
	f.ledger.appendErr = errors.New("insert refused")

	plan := &PaymentPlan{
		StudentID:    "student-1",
		ClassesToPay: unpaidAt(50, 3),
		CreditsToAdd: 2,
		NewSurplus:   10,
	}
	err := f.svc.ApplyPayment(context.Background(), plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classes already marked paid")
	assert.Equal(t, []int64{100}, f.unpaid.markedIDs)
	assert.Empty(t, f.prepaid.sets)
}
