package app

import (
	"context"
	"time"

	"github.com/brightline/classledger/internal/service"
	"go.uber.org/zap"
)

// ReportJob emails the weekly admin summary on a fixed interval.
type ReportJob struct {
	reports  *service.ReportService
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

func NewReportJob(reports *service.ReportService, logger *zap.Logger) *ReportJob {
	return &ReportJob{
		reports:  reports,
		interval: 7 * 24 * time.Hour,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background loop.
func (j *ReportJob) Start(ctx context.Context) {
	j.logger.Info("Starting report job", zap.Duration("interval", j.interval))
	go j.run(ctx)
}

// Stop halts the background loop.
func (j *ReportJob) Stop() {
	j.logger.Info("Stopping report job")
	close(j.stopChan)
}

func (j *ReportJob) run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.reports.SendWeekly(ctx); err != nil {
				j.logger.Error("Weekly report failed", zap.Error(err))
			}
		case <-j.stopChan:
			j.logger.Info("Report job stopped")
			return
		case <-ctx.Done():
			j.logger.Info("Report job cancelled")
			return
		}
	}
}
