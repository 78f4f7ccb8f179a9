package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brightline/classledger/internal/model"
	"go.uber.org/zap"
)

var (
	// Precondition errors: nothing was mutated, safe to just retry or fix input.
	ErrClassNotFound       = errors.New("scheduled class not found or already completed")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrNoSubscription      = errors.New("student has no active subscription")
	ErrInsufficientCredits = errors.New("no remaining class credits")
	ErrAlreadyCompleted    = errors.New("class already has a completion log")
	ErrContentRequired     = errors.New("content covered must not be empty")
	ErrRateUnavailable     = errors.New("no rate configured")

	// ErrCreditRestored means a step failed after the credit was deducted but
	// the compensating restore succeeded: the caller can safely retry.
	ErrCreditRestored = errors.New("completion failed, class credit was restored")

	// ErrCompensationFailed means a compensating action itself failed and the
	// stores are now out of sync. Manual admin intervention is required.
	ErrCompensationFailed = errors.New("completion failed and automatic recovery also failed, contact an administrator")

	// ErrScheduleCleanup means the class log was inserted but the schedule row
	// could not be removed; the log was deleted again. The credit stays spent.
	ErrScheduleCleanup = errors.New("completion could not be finalized, please retry")
)

// Error codes returned by the remote credit service.
const (
	CreditCodeNoSubscription      = "no_subscription"
	CreditCodeInsufficientCredits = "insufficient_credits"
)

type (
	// ScheduleStore reads and removes planned classes. GetByID returns
	// (nil, nil) when the row is gone.
	ScheduleStore interface {
		GetByID(ctx context.Context, id int64) (*model.ScheduledClass, error)
		Delete(ctx context.Context, id int64) error
	}

	// ClassLogStore persists completion records. GetByScheduleID returns
	// (nil, nil) when no log references the schedule row.
	ClassLogStore interface {
		GetByScheduleID(ctx context.Context, scheduleID int64) (*model.ClassLog, error)
		Insert(ctx context.Context, log *model.ClassLog) error
		DeleteByScheduleID(ctx context.Context, scheduleID int64) error
		NumbersByDate(ctx context.Context, date time.Time) ([]string, error)
	}

	// RateStore looks up current per-class and hourly rates by display name,
	// the key the rate tables use. A missing rate is reported through the
	// bool, not an error.
	RateStore interface {
		StudentRate(ctx context.Context, studentName string) (float64, bool, error)
		TutorRate(ctx context.Context, tutorName string) (float64, bool, error)
	}

	// CreditDeduction is the outcome of the remote decrement-if-sufficient
	// call. ErrorCode is empty on success.
	CreditDeduction struct {
		CreditsRemaining int
		AdminOverride    bool
		ErrorCode        string
	}

	// CreditService is the remote billing operation pair. The deduction is
	// atomic on the server side; this layer never locks anything itself.
	// The returned error covers transport failures only, business refusals
	// come back as ErrorCode.
	CreditService interface {
		DeductClassCredit(ctx context.Context, studentID string, scheduleID int64, classLabel, token string) (*CreditDeduction, error)
		RestoreClassCredit(ctx context.Context, studentID string, scheduleID int64, reason, token string) (int, error)
	}

	// Session is a caller's authenticated session.
	Session struct {
		AccessToken string
	}

	// SessionProvider yields the current session or ErrNotAuthenticated.
	SessionProvider interface {
		Current(ctx context.Context) (*Session, error)
	}

	// CompletionNotifier is told about successful completions. Implementations
	// must not fail the saga; errors are their own problem to log.
	CompletionNotifier interface {
		NotifyCompletion(ctx context.Context, log *model.ClassLog, creditsRemaining int, adminOverride bool)
	}

	// AdminAlerter escalates states that need a human: a compensation failed
	// and credits are out of sync with the logs.
	AdminAlerter interface {
		Escalate(ctx context.Context, message string)
	}
)

// CompleteClassInput carries everything the tutor submits on the completion
// form plus the schedule row being settled.
type CompleteClassInput struct {
	ScheduleID  int64
	ClassNumber string
	StudentID   string
	TutorName   string
	StudentName string
	Date        time.Time
	StartTime   string // "15:04"
	EndTime     string
	Subject     string
	Content     string
	Homework    string
	Notes       string
}

// CompletionResult is returned on success. Message is the tiered user-facing
// wording driven by the remaining balance.
type CompletionResult struct {
	Log              *model.ClassLog
	CreditsRemaining int
	AdminOverride    bool
	Message          string
}

// settlementState tracks how far the saga got, so each failure knows exactly
// which compensations apply.
type settlementState int

const (
	stateInitiated settlementState = iota
	stateCreditDeducted
	stateLogInserted
	stateScheduleDeleted
)

func (st settlementState) String() string {
	switch st {
	case stateInitiated:
		return "initiated"
	case stateCreditDeducted:
		return "credit_deducted"
	case stateLogInserted:
		return "log_inserted"
	case stateScheduleDeleted:
		return "schedule_deleted"
	}
	return "unknown"
}

type SettlementService struct {
	schedules ScheduleStore
	logs      ClassLogStore
	rates     RateStore
	credits   CreditService
	sessions  SessionProvider
	notifier  CompletionNotifier
	alerter   AdminAlerter
	logger    *zap.Logger
}

func NewSettlementService(
	schedules ScheduleStore,
	logs ClassLogStore,
	rates RateStore,
	credits CreditService,
	sessions SessionProvider,
	notifier CompletionNotifier,
	alerter AdminAlerter,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		schedules: schedules,
		logs:      logs,
		rates:     rates,
		credits:   credits,
		sessions:  sessions,
		notifier:  notifier,
		alerter:   alerter,
		logger:    logger,
	}
}

// CompleteClass converts a ScheduledClass into a ClassLog exactly once:
// existence check, credit deduction, duplicate guard, rate snapshot, log
// insert, schedule delete. Failures after the deduction trigger a single
// synchronous compensation; see the sentinel errors for the outcomes.
func (s *SettlementService) CompleteClass(ctx context.Context, in CompleteClassInput) (*CompletionResult, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, ErrContentRequired
	}

	// Step 1: the schedule row must still exist. A double submit or a
	// concurrent completion deletes it first, and we bail before touching
	// anything.
	sched, err := s.schedules.GetByID(ctx, in.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("get scheduled class: %w", err)
	}
	if sched == nil {
		return nil, ErrClassNotFound
	}

	// Step 2: the deduction call needs the caller's token.
	sess, err := s.sessions.Current(ctx)
	if err != nil || sess == nil || sess.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}

	// Step 3: atomic decrement-if-sufficient on the billing side. Business
	// refusals come back as error codes and need no compensation, nothing
	// was deducted.
	state := stateInitiated
	ded, err := s.credits.DeductClassCredit(ctx, in.StudentID, in.ScheduleID, in.ClassNumber, sess.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("deduct class credit: %w", err)
	}
	switch ded.ErrorCode {
	case "":
		state = stateCreditDeducted
		s.logger.Debug("Settlement state", zap.Int64("schedule_id", in.ScheduleID), zap.Stringer("state", state))
	case CreditCodeNoSubscription:
		return nil, ErrNoSubscription
	case CreditCodeInsufficientCredits:
		return nil, ErrInsufficientCredits
	default:
		return nil, fmt.Errorf("deduct class credit: %s", ded.ErrorCode)
	}
	s.logger.Info("Credit deducted",
		zap.String("student_id", in.StudentID),
		zap.Int64("schedule_id", in.ScheduleID),
		zap.Int("credits_remaining", ded.CreditsRemaining),
		zap.Bool("admin_override", ded.AdminOverride),
	)

	// Step 4: duplicate guard for the race where two attempts both passed
	// step 1. The credit is already spent at this point, so the loser
	// restores it before reporting the duplicate.
	dup, err := s.logs.GetByScheduleID(ctx, in.ScheduleID)
	if err != nil {
		s.compensateCredit(ctx, in, sess.AccessToken, "duplicate check failed")
		return nil, fmt.Errorf("check existing class log: %w", err)
	}
	if dup != nil {
		s.compensateCredit(ctx, in, sess.AccessToken, "class was already completed")
		return nil, ErrAlreadyCompleted
	}

	// Step 5: snapshot current rates onto the log so history survives rate
	// changes.
	log, err := s.buildClassLog(ctx, in)
	if err != nil {
		if rerr := s.compensateCredit(ctx, in, sess.AccessToken, "rate snapshot failed"); rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompensationFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrCreditRestored, err)
	}

	// Step 6: insert the log; on failure the deducted credit must come back.
	if err := s.logs.Insert(ctx, log); err != nil {
		if rerr := s.compensateCredit(ctx, in, sess.AccessToken, "class log insert failed"); rerr != nil {
			return nil, fmt.Errorf("%w: insert class log: %v", ErrCompensationFailed, err)
		}
		return nil, fmt.Errorf("%w: insert class log: %v", ErrCreditRestored, err)
	}
	state = stateLogInserted
	s.logger.Debug("Settlement state", zap.Int64("schedule_id", in.ScheduleID), zap.Stringer("state", state))

	// Step 7: remove the schedule row. If this fails the just-inserted log is
	// deleted to return to the pre-transaction state. The credit stays spent:
	// the class effectively happened, only the recording is retried.
	if err := s.schedules.Delete(ctx, in.ScheduleID); err != nil {
		s.logger.Error("Schedule delete failed after log insert, removing log",
			zap.Int64("schedule_id", in.ScheduleID),
			zap.Error(err),
		)
		if derr := s.logs.DeleteByScheduleID(ctx, in.ScheduleID); derr != nil {
			s.escalate(ctx, fmt.Sprintf(
				"class log cleanup failed for schedule %d (student %s): schedule row and log both exist, credit spent: %v",
				in.ScheduleID, in.StudentID, derr,
			))
			return nil, fmt.Errorf("%w: delete scheduled class: %v", ErrCompensationFailed, err)
		}
		return nil, fmt.Errorf("%w: delete scheduled class: %v", ErrScheduleCleanup, err)
	}
	state = stateScheduleDeleted

	s.logger.Info("Class completed",
		zap.Int64("schedule_id", in.ScheduleID),
		zap.String("class_number", in.ClassNumber),
		zap.String("student", in.StudentName),
		zap.Stringer("state", state),
	)

	if s.notifier != nil {
		s.notifier.NotifyCompletion(ctx, log, ded.CreditsRemaining, ded.AdminOverride)
	}

	return &CompletionResult{
		Log:              log,
		CreditsRemaining: ded.CreditsRemaining,
		AdminOverride:    ded.AdminOverride,
		Message:          completionMessage(ded.CreditsRemaining, ded.AdminOverride),
	}, nil
}

// compensateCredit runs the single synchronous restore attempt. A failed
// restore is escalated to the admin channel because the balance is now wrong
// with no automatic recovery path.
func (s *SettlementService) compensateCredit(ctx context.Context, in CompleteClassInput, token, reason string) error {
	newBalance, err := s.credits.RestoreClassCredit(ctx, in.StudentID, in.ScheduleID, reason, token)
	if err != nil {
		s.logger.Error("Credit restore failed",
			zap.String("student_id", in.StudentID),
			zap.Int64("schedule_id", in.ScheduleID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		s.escalate(ctx, fmt.Sprintf(
			"credit restore failed for student %s, schedule %d (%s): balance is one credit short: %v",
			in.StudentID, in.ScheduleID, reason, err,
		))
		return err
	}
	s.logger.Info("Credit restored",
		zap.String("student_id", in.StudentID),
		zap.Int64("schedule_id", in.ScheduleID),
		zap.String("reason", reason),
		zap.Int("new_balance", newBalance),
	)
	return nil
}

func (s *SettlementService) escalate(ctx context.Context, msg string) {
	if s.alerter != nil {
		s.alerter.Escalate(ctx, msg)
	}
}

// buildClassLog snapshots rates and derives the duration and cost fields.
func (s *SettlementService) buildClassLog(ctx context.Context, in CompleteClassInput) (*model.ClassLog, error) {
	studentRate, ok, err := s.rates.StudentRate(ctx, in.StudentName)
	if err != nil {
		return nil, fmt.Errorf("get student rate: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w for student %q", ErrRateUnavailable, in.StudentName)
	}
	tutorRate, ok, err := s.rates.TutorRate(ctx, in.TutorName)
	if err != nil {
		return nil, fmt.Errorf("get tutor rate: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w for tutor %q", ErrRateUnavailable, in.TutorName)
	}

	duration, err := durationHours(in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}

	return &model.ClassLog{
		ScheduleID:      in.ScheduleID,
		ClassNumber:     in.ClassNumber,
		Title:           fmt.Sprintf("%s - %s", in.Subject, in.StudentName),
		TutorName:       in.TutorName,
		StudentName:     in.StudentName,
		Date:            in.Date,
		Day:             in.Date.Weekday().String(),
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		DurationHours:   duration,
		Subject:         in.Subject,
		Content:         in.Content,
		Homework:        in.Homework,
		AdditionalNotes: in.Notes,
		ClassCost:       studentRate,
		TutorCost:       round2(tutorRate * duration),
	}, nil
}

// GetClass returns a scheduled class by id, or ErrClassNotFound once it has
// been completed or cancelled.
func (s *SettlementService) GetClass(ctx context.Context, id int64) (*model.ScheduledClass, error) {
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get scheduled class: %w", err)
	}
	if sched == nil {
		return nil, ErrClassNotFound
	}
	return sched, nil
}

// NextClassNumber builds the next unused human-readable class number for a
// date: student initials + tutor initials + yyyymmdd + sequence. The sequence
// is found by scanning the numbers already issued for that date.
func (s *SettlementService) NextClassNumber(ctx context.Context, studentName, tutorName string, date time.Time) (string, error) {
	existing, err := s.logs.NumbersByDate(ctx, date)
	if err != nil {
		return "", fmt.Errorf("list class numbers: %w", err)
	}
	taken := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		taken[n] = struct{}{}
	}

	prefix := fmt.Sprintf("%s-%s-%s", initials(studentName), initials(tutorName), date.Format("20060102"))
	for seq := 1; ; seq++ {
		candidate := fmt.Sprintf("%s-%d", prefix, seq)
		if _, used := taken[candidate]; !used {
			return candidate, nil
		}
	}
}

func initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r := []rune(word)
		b.WriteRune(r[0])
	}
	if b.Len() == 0 {
		return "X"
	}
	return strings.ToUpper(b.String())
}

func durationHours(start, end string) (float64, error) {
	st, err := time.Parse("15:04", start)
	if err != nil {
		return 0, fmt.Errorf("parse start time: %w", err)
	}
	et, err := time.Parse("15:04", end)
	if err != nil {
		return 0, fmt.Errorf("parse end time: %w", err)
	}
	d := et.Sub(st)
	if d <= 0 {
		return 0, fmt.Errorf("end time %q is not after start time %q", end, start)
	}
	return d.Hours(), nil
}

// completionMessage picks the user-facing wording tier from the remaining
// balance.
func completionMessage(remaining int, adminOverride bool) string {
	switch {
	case adminOverride:
		return "Class completed with an admin override. The student has no remaining credits."
	case remaining == 0:
		return "Class completed. No credits remaining. The student needs to purchase more classes."
	case remaining < 3:
		return fmt.Sprintf("Class completed. Only %d credit(s) remaining, running low.", remaining)
	default:
		return fmt.Sprintf("Class completed. %d credits remaining.", remaining)
	}
}
