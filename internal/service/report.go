package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type (
	// ReportStore aggregates the numbers the weekly admin report needs.
	ReportStore interface {
		CountCompletedSince(ctx context.Context, since time.Time) (int, error)
		UnpaidTotals(ctx context.Context) (count int, total float64, err error)
	}

	// ReportMailer delivers a plain-text report.
	ReportMailer interface {
		SendReport(ctx context.Context, subject, body string) error
	}
)

type ReportService struct {
	store  ReportStore
	mailer ReportMailer
	logger *zap.Logger
}

func NewReportService(store ReportStore, mailer ReportMailer, logger *zap.Logger) *ReportService {
	return &ReportService{store: store, mailer: mailer, logger: logger}
}

// SendWeekly emails admins the completion count for the past week and the
// current unpaid backlog.
func (s *ReportService) SendWeekly(ctx context.Context) error {
	since := time.Now().UTC().AddDate(0, 0, -7)

	completed, err := s.store.CountCompletedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("count completed classes: %w", err)
	}
	unpaidCount, unpaidTotal, err := s.store.UnpaidTotals(ctx)
	if err != nil {
		return fmt.Errorf("unpaid totals: %w", err)
	}

	subject := fmt.Sprintf("Weekly class report %s", time.Now().UTC().Format("2006-01-02"))
	body := fmt.Sprintf(
		"Classes completed in the last 7 days: %d\nUnpaid classes outstanding: %d ($%.2f)\n",
		completed, unpaidCount, unpaidTotal,
	)

	if err := s.mailer.SendReport(ctx, subject, body); err != nil {
		return fmt.Errorf("send weekly report: %w", err)
	}

	s.logger.Info("Weekly report sent",
		zap.Int("completed_last_7d", completed),
		zap.Int("unpaid_count", unpaidCount),
		zap.Float64("unpaid_total", unpaidTotal),
	)
	return nil
}
