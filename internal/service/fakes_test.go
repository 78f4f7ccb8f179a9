package service

import (
	"context"
	"errors"
	"time"

	"github.com/brightline/classledger/internal/model"
)

// In-memory fakes for the store interfaces. Each records its calls so tests
// can assert on ordering and compensation behavior.

type fakeScheduleStore struct {
	classes   map[int64]*model.ScheduledClass
	deleteErr error
	deleted   []int64
}

func newFakeScheduleStore(classes ...*model.ScheduledClass) *fakeScheduleStore {
	s := &fakeScheduleStore{classes: make(map[int64]*model.ScheduledClass)}
	for _, c := range classes {
		s.classes[c.ID] = c
	}
	return s
}

func (s *fakeScheduleStore) GetByID(_ context.Context, id int64) (*model.ScheduledClass, error) {
	return s.classes[id], nil
}

func (s *fakeScheduleStore) Delete(_ context.Context, id int64) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.classes[id]; !ok {
		return errors.New("scheduled class not found")
	}
	delete(s.classes, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type fakeClassLogStore struct {
	logs      map[int64]*model.ClassLog
	numbers   []string
	insertErr error
	deleteErr error
	inserts   int
	deletes   int
}

func newFakeClassLogStore() *fakeClassLogStore {
	return &fakeClassLogStore{logs: make(map[int64]*model.ClassLog)}
}

func (s *fakeClassLogStore) GetByScheduleID(_ context.Context, scheduleID int64) (*model.ClassLog, error) {
	return s.logs[scheduleID], nil
}

func (s *fakeClassLogStore) Insert(_ context.Context, log *model.ClassLog) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, exists := s.logs[log.ScheduleID]; exists {
		return errors.New("duplicate schedule_id")
	}
	s.logs[log.ScheduleID] = log
	s.inserts++
	return nil
}

func (s *fakeClassLogStore) DeleteByScheduleID(_ context.Context, scheduleID int64) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.logs, scheduleID)
	s.deletes++
	return nil
}

func (s *fakeClassLogStore) NumbersByDate(_ context.Context, _ time.Time) ([]string, error) {
	return s.numbers, nil
}

type fakeRateStore struct {
	studentRates map[string]float64
	tutorRates   map[string]float64
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{
		studentRates: map[string]float64{"Alice Woods": 50},
		tutorRates:   map[string]float64{"Tom Burke": 30},
	}
}

func (s *fakeRateStore) StudentRate(_ context.Context, name string) (float64, bool, error) {
	r, ok := s.studentRates[name]
	return r, ok, nil
}

func (s *fakeRateStore) TutorRate(_ context.Context, name string) (float64, bool, error) {
	r, ok := s.tutorRates[name]
	return r, ok, nil
}

// fakeCreditService mimics the billing side's atomic decrement, tracking the
// balance so tests can assert net effects of compensation.
type fakeCreditService struct {
	balance       int
	adminOverride bool
	deductErr     error
	deductCode    string
	restoreErr    error
	deductCalls   int
	restoreCalls  int
	lastStudentID string
	lastSchedule  int64
}

func (s *fakeCreditService) DeductClassCredit(_ context.Context, studentID string, scheduleID int64, _, _ string) (*CreditDeduction, error) {
	s.deductCalls++
	s.lastStudentID = studentID
	s.lastSchedule = scheduleID
	if s.deductErr != nil {
		return nil, s.deductErr
	}
	if s.deductCode != "" {
		return &CreditDeduction{ErrorCode: s.deductCode}, nil
	}
	if s.balance <= 0 && !s.adminOverride {
		return &CreditDeduction{ErrorCode: CreditCodeInsufficientCredits}, nil
	}
	if s.balance > 0 {
		s.balance--
	}
	return &CreditDeduction{CreditsRemaining: s.balance, AdminOverride: s.adminOverride}, nil
}

func (s *fakeCreditService) RestoreClassCredit(_ context.Context, studentID string, scheduleID int64, _, _ string) (int, error) {
	s.restoreCalls++
	s.lastStudentID = studentID
	s.lastSchedule = scheduleID
	if s.restoreErr != nil {
		return 0, s.restoreErr
	}
	s.balance++
	return s.balance, nil
}

type fakeSessionProvider struct {
	token string
}

func (s *fakeSessionProvider) Current(_ context.Context) (*Session, error) {
	if s.token == "" {
		return nil, ErrNotAuthenticated
	}
	return &Session{AccessToken: s.token}, nil
}

type fakeAlerter struct {
	messages []string
}

func (a *fakeAlerter) Escalate(_ context.Context, msg string) {
	a.messages = append(a.messages, msg)
}

// Payment-side fakes.

type fakeUnpaidStore struct {
	unpaid      []UnpaidClass
	listErr     error
	markErr     error
	markedIDs   []int64
	markedCalls int
}

func (s *fakeUnpaidStore) ListUnpaid(_ context.Context, _ string) ([]UnpaidClass, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.unpaid, nil
}

func (s *fakeUnpaidStore) MarkPaid(_ context.Context, ids []int64, _ time.Time) error {
	s.markedCalls++
	if s.markErr != nil {
		return s.markErr
	}
	s.markedIDs = append(s.markedIDs, ids...)
	return nil
}

type fakeLedgerStore struct {
	entries   []model.LedgerEntry
	appendErr error
}

func (s *fakeLedgerStore) Append(_ context.Context, entry *model.LedgerEntry) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *fakeLedgerStore) Balance(_ context.Context, _ string) (int, error) {
	if len(s.entries) == 0 {
		return 0, nil
	}
	return s.entries[len(s.entries)-1].BalanceAfter, nil
}

func (s *fakeLedgerStore) ListByStudent(_ context.Context, _ string) ([]model.LedgerEntry, error) {
	return s.entries, nil
}

type fakeSubscriptionStore struct {
	sub *model.Subscription
}

func (s *fakeSubscriptionStore) GetActiveByStudent(_ context.Context, _ string) (*model.Subscription, error) {
	return s.sub, nil
}

type fakePrepaidStore struct {
	amount float64
	setErr error
	sets   []float64
}

func (s *fakePrepaidStore) Get(_ context.Context, _ string) (float64, error) {
	return s.amount, nil
}

func (s *fakePrepaidStore) Set(_ context.Context, _ string, amount float64) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.amount = amount
	s.sets = append(s.sets, amount)
	return nil
}
