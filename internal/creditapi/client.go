// Package creditapi talks to the hosted billing function that owns credit
// balances. The deduction endpoint performs an atomic decrement-if-sufficient
// on the server side; this client never retries, the settlement saga treats a
// transport failure as an abort.
package creditapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brightline/classledger/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ service.CreditService = (*Client)(nil)

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type deductRequest struct {
	StudentID  string `json:"student_id"`
	ScheduleID int64  `json:"schedule_id"`
	ClassLabel string `json:"class_label"`
	RequestID  string `json:"request_id"`
}

type deductResponse struct {
	Success          bool   `json:"success"`
	CreditsRemaining int    `json:"credits_remaining"`
	AdminOverride    bool   `json:"admin_override"`
	ErrorCode        string `json:"error_code"`
}

// DeductClassCredit asks the billing function to spend one class credit for
// the student. Business refusals come back in ErrorCode; the error return is
// transport-level only.
func (c *Client) DeductClassCredit(ctx context.Context, studentID string, scheduleID int64, classLabel, token string) (*service.CreditDeduction, error) {
	req := deductRequest{
		StudentID:  studentID,
		ScheduleID: scheduleID,
		ClassLabel: classLabel,
		RequestID:  uuid.NewString(),
	}

	var resp deductResponse
	if err := c.post(ctx, "/credits/deduct", token, req, &resp); err != nil {
		return nil, err
	}

	out := &service.CreditDeduction{
		CreditsRemaining: resp.CreditsRemaining,
		AdminOverride:    resp.AdminOverride,
	}
	if !resp.Success {
		switch resp.ErrorCode {
		case service.CreditCodeNoSubscription, service.CreditCodeInsufficientCredits:
			out.ErrorCode = resp.ErrorCode
		default:
			out.ErrorCode = "other"
		}
	}
	return out, nil
}

type restoreRequest struct {
	StudentID  string `json:"student_id"`
	ScheduleID int64  `json:"schedule_id"`
	Reason     string `json:"reason"`
	RequestID  string `json:"request_id"`
}

type restoreResponse struct {
	Success    bool `json:"success"`
	NewBalance int  `json:"new_balance"`
}

// RestoreClassCredit gives a deducted credit back, as the saga's compensating
// action. Returns the student's new balance.
func (c *Client) RestoreClassCredit(ctx context.Context, studentID string, scheduleID int64, reason, token string) (int, error) {
	req := restoreRequest{
		StudentID:  studentID,
		ScheduleID: scheduleID,
		Reason:     reason,
		RequestID:  uuid.NewString(),
	}

	var resp restoreResponse
	if err := c.post(ctx, "/credits/restore", token, req, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("credit restore refused by billing service")
	}
	return resp.NewBalance, nil
}

func (c *Client) post(ctx context.Context, path, token string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call credit api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		c.logger.Error("Credit API server error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("credit api returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
