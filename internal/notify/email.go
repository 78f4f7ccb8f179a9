// Package notify delivers the platform's outbound messages: completion
// receipts and reports over sendgrid, and out-of-sync escalations to the
// admin Telegram chat. Delivery failures are logged, never propagated into
// the flows that triggered them.
package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/brightline/classledger/internal/model"
	"github.com/brightline/classledger/internal/service"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type EmailService struct {
	key        string
	from       *sgmail.Email
	adminEmail string
	logger     *zap.Logger
}

var (
	_ service.CompletionNotifier = (*EmailService)(nil)
	_ service.ReportMailer       = (*EmailService)(nil)
)

func NewEmailService(apiKey, fromName, fromAddr, adminEmail string, logger *zap.Logger) *EmailService {
	return &EmailService{
		key:        apiKey,
		from:       sgmail.NewEmail(fromName, fromAddr),
		adminEmail: adminEmail,
		logger:     logger,
	}
}

// NotifyCompletion mails the admin inbox a receipt for the completed class,
// with a low-balance warning when credits are running out.
func (s *EmailService) NotifyCompletion(ctx context.Context, log *model.ClassLog, creditsRemaining int, adminOverride bool) {
	subject := fmt.Sprintf("Class completed: %s", log.ClassNumber)
	body := fmt.Sprintf(
		"Class %s (%s) with %s was completed by %s.\nDate: %s %s–%s\nContent: %s\n",
		log.ClassNumber, log.Subject, log.StudentName, log.TutorName,
		log.Date.Format("2006-01-02"), log.StartTime, log.EndTime, log.Content,
	)
	switch {
	case adminOverride:
		body += "\nCompleted with an admin override; the student has no remaining credits."
	case creditsRemaining == 0:
		body += "\nNo credits remaining. The student needs to purchase more classes."
	case creditsRemaining < 3:
		body += fmt.Sprintf("\nOnly %d credit(s) remaining.", creditsRemaining)
	default:
		body += fmt.Sprintf("\n%d credits remaining.", creditsRemaining)
	}

	s.send(subject, body)
}

// SendReport delivers the periodic admin report.
func (s *EmailService) SendReport(ctx context.Context, subject, body string) error {
	return s.send(subject, body)
}

func (s *EmailService) send(subject, body string) error {
	if s.key == "" {
		s.logger.Debug("Email delivery skipped, no sendgrid key configured",
			zap.String("subject", subject))
		return nil
	}

	m := sgmail.NewSingleEmail(s.from, subject, sgmail.NewEmail("", s.adminEmail), body, "")

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	resp, err := sendgrid.API(req)
	if err != nil {
		s.logger.Error("Email delivery failed", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("send email: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		s.logger.Error("Email delivery rejected",
			zap.String("subject", subject),
			zap.Int("status", resp.StatusCode),
			zap.String("body", resp.Body),
		)
		return fmt.Errorf("send email: status %d", resp.StatusCode)
	}

	s.logger.Info("Email sent", zap.String("subject", subject))
	return nil
}
