package controller

import (
	"errors"
	"time"

	"github.com/brightline/classledger/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Controller struct {
	settlement *service.SettlementService
	payments   *service.PaymentService
	ledger     *service.LedgerService
	validate   *validator.Validate
	logger     *zap.Logger
}

func New(
	settlement *service.SettlementService,
	payments *service.PaymentService,
	ledger *service.LedgerService,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		settlement: settlement,
		payments:   payments,
		ledger:     ledger,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Register mounts the API routes behind the auth middleware.
func (c *Controller) Register(app *fiber.App, auth fiber.Handler) {
	api := app.Group("/api", auth)

	api.Post("/classes/:id/complete", c.completeClass)
	api.Get("/classes/next-number", c.nextClassNumber)
	api.Get("/classes/:id", c.getClass)
	api.Post("/payments/preview", c.previewPayment)
	api.Post("/payments/apply", c.applyPayment)
	api.Get("/students/:id/unpaid", c.listUnpaid)
	api.Get("/students/:id/ledger/audit", c.auditLedger)
}

type completeClassRequest struct {
	ClassNumber string `json:"class_number" validate:"required"`
	StudentID   string `json:"student_id" validate:"required"`
	TutorName   string `json:"tutor_name" validate:"required"`
	StudentName string `json:"student_name" validate:"required"`
	Date        string `json:"date" validate:"required"` // "2006-01-02"
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	Content     string `json:"content" validate:"required"`
	Homework    string `json:"homework"`
	Notes       string `json:"notes"`
}

func (c *Controller) completeClass(ctx *fiber.Ctx) error {
	scheduleID, err := ctx.ParamsInt("id")
	if err != nil {
		return badRequest(ctx, "invalid class id")
	}

	var req completeClassRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}
	if err := c.validate.Struct(req); err != nil {
		return badRequest(ctx, err.Error())
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return badRequest(ctx, "invalid date, expected yyyy-mm-dd")
	}

	result, err := c.settlement.CompleteClass(ctx.UserContext(), service.CompleteClassInput{
		ScheduleID:  int64(scheduleID),
		ClassNumber: req.ClassNumber,
		StudentID:   req.StudentID,
		TutorName:   req.TutorName,
		StudentName: req.StudentName,
		Date:        date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Subject:     req.Subject,
		Content:     req.Content,
		Homework:    req.Homework,
		Notes:       req.Notes,
	})
	if err != nil {
		return c.settlementError(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"success":           true,
		"message":           result.Message,
		"credits_remaining": result.CreditsRemaining,
		"admin_override":    result.AdminOverride,
		"class_number":      result.Log.ClassNumber,
	})
}

func (c *Controller) nextClassNumber(ctx *fiber.Ctx) error {
	student := ctx.Query("student")
	tutor := ctx.Query("tutor")
	dateStr := ctx.Query("date")
	if student == "" || tutor == "" || dateStr == "" {
		return badRequest(ctx, "student, tutor and date are required")
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return badRequest(ctx, "invalid date, expected yyyy-mm-dd")
	}

	number, err := c.settlement.NextClassNumber(ctx.UserContext(), student, tutor, date)
	if err != nil {
		return c.internalError(ctx, err)
	}
	return ctx.JSON(fiber.Map{"class_number": number})
}

func (c *Controller) getClass(ctx *fiber.Ctx) error {
	id, err := ctx.ParamsInt("id")
	if err != nil {
		return badRequest(ctx, "invalid class id")
	}
	sched, err := c.settlement.GetClass(ctx.UserContext(), int64(id))
	if err != nil {
		if errors.Is(err, service.ErrClassNotFound) {
			return fail(ctx, fiber.StatusNotFound, "This class was already completed or no longer exists.")
		}
		return c.internalError(ctx, err)
	}
	return ctx.JSON(sched)
}

type previewPaymentRequest struct {
	StudentID   string  `json:"student_id" validate:"required"`
	StudentName string  `json:"student_name" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Reason      string  `json:"reason" validate:"required"`
}

func (c *Controller) previewPayment(ctx *fiber.Ctx) error {
	var req previewPaymentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}
	if err := c.validate.Struct(req); err != nil {
		return badRequest(ctx, err.Error())
	}

	plan, err := c.payments.RecordPayment(ctx.UserContext(), service.RecordPaymentInput{
		StudentID:   req.StudentID,
		StudentName: req.StudentName,
		Amount:      req.Amount,
		Reason:      req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount),
			errors.Is(err, service.ErrReasonRequired),
			errors.Is(err, service.ErrRateUnavailable):
			return badRequest(ctx, err.Error())
		}
		return c.internalError(ctx, err)
	}
	return ctx.JSON(plan)
}

func (c *Controller) applyPayment(ctx *fiber.Ctx) error {
	var plan service.PaymentPlan
	if err := ctx.BodyParser(&plan); err != nil {
		return badRequest(ctx, "invalid request body")
	}
	if plan.StudentID == "" {
		return badRequest(ctx, "student_id is required")
	}

	if err := c.payments.ApplyPayment(ctx.UserContext(), &plan); err != nil {
		// No cross-write rollback here: the message says how far it got.
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return ctx.JSON(fiber.Map{"success": true})
}

func (c *Controller) listUnpaid(ctx *fiber.Ctx) error {
	student := ctx.Query("name")
	if student == "" {
		return badRequest(ctx, "name query parameter is required")
	}
	unpaid, err := c.payments.ListUnpaid(ctx.UserContext(), student)
	if err != nil {
		return c.internalError(ctx, err)
	}
	return ctx.JSON(fiber.Map{"unpaid": unpaid})
}

func (c *Controller) auditLedger(ctx *fiber.Ctx) error {
	studentID := ctx.Params("id")
	audit, err := c.ledger.CheckConsistency(ctx.UserContext(), studentID)
	if err != nil {
		return c.internalError(ctx, err)
	}
	return ctx.JSON(audit)
}

// settlementError maps the saga's error taxonomy onto HTTP responses with the
// user-facing wording the dashboards show.
func (c *Controller) settlementError(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		return fail(ctx, fiber.StatusNotFound, "This class was already completed or no longer exists.")
	case errors.Is(err, service.ErrNotAuthenticated):
		return fail(ctx, fiber.StatusUnauthorized, "Your session has expired. Please sign in again.")
	case errors.Is(err, service.ErrNoSubscription):
		return fail(ctx, fiber.StatusPaymentRequired, "The student has no active subscription. Visit the purchase page to set one up.")
	case errors.Is(err, service.ErrInsufficientCredits):
		return fail(ctx, fiber.StatusPaymentRequired, "The student has no remaining credits. Visit the purchase page to buy more classes.")
	case errors.Is(err, service.ErrAlreadyCompleted):
		return fail(ctx, fiber.StatusConflict, "This class already has a completion log.")
	case errors.Is(err, service.ErrContentRequired):
		return badRequest(ctx, "Content covered is required.")
	case errors.Is(err, service.ErrCreditRestored):
		return fail(ctx, fiber.StatusInternalServerError, "Completing the class failed. The credit was restored, please retry.")
	case errors.Is(err, service.ErrCompensationFailed):
		return fail(ctx, fiber.StatusInternalServerError, "Completing the class failed and the credit could NOT be restored automatically. Contact an administrator.")
	case errors.Is(err, service.ErrScheduleCleanup):
		return fail(ctx, fiber.StatusInternalServerError, "The class could not be finalized. Please retry.")
	}
	return c.internalError(ctx, err)
}

func (c *Controller) internalError(ctx *fiber.Ctx, err error) error {
	c.logger.Error("Request failed",
		zap.String("path", ctx.Path()),
		zap.Error(err),
	)
	return fail(ctx, fiber.StatusInternalServerError, "Something went wrong. Please try again.")
}

func badRequest(ctx *fiber.Ctx, msg string) error {
	return fail(ctx, fiber.StatusBadRequest, msg)
}

func fail(ctx *fiber.Ctx, status int, msg string) error {
	return ctx.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
