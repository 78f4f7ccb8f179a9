package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brightline/classledger/internal/model"
	"github.com/brightline/classledger/internal/service"
	"github.com/brightline/classledger/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type stubStores struct {
	schedule *model.ScheduledClass
	log      *model.ClassLog
	balance  int
}

func (s *stubStores) GetByID(_ context.Context, id int64) (*model.ScheduledClass, error) {
	if s.schedule != nil && s.schedule.ID == id {
		return s.schedule, nil
	}
	return nil, nil
}

func (s *stubStores) Delete(_ context.Context, id int64) error {
	s.schedule = nil
	return nil
}

func (s *stubStores) GetByScheduleID(_ context.Context, _ int64) (*model.ClassLog, error) {
	return nil, nil
}

func (s *stubStores) Insert(_ context.Context, log *model.ClassLog) error {
	s.log = log
	return nil
}

func (s *stubStores) DeleteByScheduleID(_ context.Context, _ int64) error {
	s.log = nil
	return nil
}

func (s *stubStores) NumbersByDate(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

func (s *stubStores) StudentRate(_ context.Context, _ string) (float64, bool, error) {
	return 50, true, nil
}

func (s *stubStores) TutorRate(_ context.Context, _ string) (float64, bool, error) {
	return 30, true, nil
}

func (s *stubStores) DeductClassCredit(_ context.Context, _ string, _ int64, _, _ string) (*service.CreditDeduction, error) {
	if s.balance <= 0 {
		return &service.CreditDeduction{ErrorCode: service.CreditCodeInsufficientCredits}, nil
	}
	s.balance--
	return &service.CreditDeduction{CreditsRemaining: s.balance}, nil
}

func (s *stubStores) RestoreClassCredit(_ context.Context, _ string, _ int64, _, _ string) (int, error) {
	s.balance++
	return s.balance, nil
}

func newTestApp(t *testing.T, stores *stubStores) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	sessions := session.NewProvider(testSecret)
	settlement := service.NewSettlementService(stores, stores, stores, stores, sessions, nil, nil, logger)

	app := fiber.New()
	ctrl := New(settlement, nil, nil, logger)
	ctrl.Register(app, AuthMiddleware(sessions))
	return app
}

func bearer(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "tutor-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + raw
}

func completeBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"class_number": "AW-TB-20250310-1",
		"student_id":   "student-1",
		"tutor_name":   "Tom Burke",
		"student_name": "Alice Woods",
		"date":         "2025-03-10",
		"start_time":   "15:00",
		"end_time":     "16:30",
		"subject":      "Math",
		"content":      "Quadratic equations",
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestCompleteClass_OK(t *testing.T) {
	stores := &stubStores{
		schedule: &model.ScheduledClass{ID: 42, StudentID: "student-1"},
		balance:  5,
	}
	app := newTestApp(t, stores)

	req := httptest.NewRequest(http.MethodPost, "/api/classes/42/complete", completeBody(t))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(4), body["credits_remaining"])
	require.NotNil(t, stores.log)
	assert.Nil(t, stores.schedule)
}

func TestCompleteClass_InsufficientCredits(t *testing.T) {
	stores := &stubStores{
		schedule: &model.ScheduledClass{ID: 42, StudentID: "student-1"},
		balance:  0,
	}
	app := newTestApp(t, stores)

	req := httptest.NewRequest(http.MethodPost, "/api/classes/42/complete", completeBody(t))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "purchase page")
	assert.Nil(t, stores.log)
	assert.NotNil(t, stores.schedule)
}

func TestCompleteClass_AlreadyGone(t *testing.T) {
	app := newTestApp(t, &stubStores{balance: 5})

	req := httptest.NewRequest(http.MethodPost, "/api/classes/42/complete", completeBody(t))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompleteClass_MissingToken(t *testing.T) {
	app := newTestApp(t, &stubStores{balance: 5})

	req := httptest.NewRequest(http.MethodPost, "/api/classes/42/complete", completeBody(t))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetClass(t *testing.T) {
	stores := &stubStores{
		schedule: &model.ScheduledClass{ID: 42, StudentID: "student-1", Subject: "Math"},
		balance:  5,
	}
	app := newTestApp(t, stores)

	req := httptest.NewRequest(http.MethodGet, "/api/classes/42", nil)
	req.Header.Set("Authorization", bearer(t))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, float64(42), body["id"])
	assert.Equal(t, "Math", body["subject"])
}

func TestGetClass_NotFound(t *testing.T) {
	app := newTestApp(t, &stubStores{balance: 5})

	req := httptest.NewRequest(http.MethodGet, "/api/classes/42", nil)
	req.Header.Set("Authorization", bearer(t))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompleteClass_ValidationFailure(t *testing.T) {
	app := newTestApp(t, &stubStores{balance: 5})

	body, _ := json.Marshal(map[string]interface{}{"class_number": "X"})
	req := httptest.NewRequest(http.MethodPost, "/api/classes/42/complete", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
