package trust

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"trust-ledger/core/logger"
	"trust-ledger/core/retry"
	"trust-ledger/core/runguard"
	"trust-ledger/feature/ledger"
	"trust-ledger/feature/payments"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// Handler handles HTTP requests for trust reconciliation.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		f, _ := field.Interface().(decimal.Decimal).Float64()
		return f
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{service: service, validate: v}
}

// RegisterRoutes registers the trust routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/trust")
	group.Get("/balance", h.HandleBalance)
	group.Get("/processor", h.HandleProcessor)
	group.Get("/payouts", h.HandlePayouts)
	group.Post("/reconciliations", h.HandleSave)
	group.Get("/reconciliations", h.HandleHistory)
	group.Get("/reconciliations/:id", h.HandleSnapshot)
}

type reconcileRequest struct {
	BankBalance    *decimal.Decimal `json:"bank_balance" validate:"required"`
	StripeHoldback *decimal.Decimal `json:"stripe_holdback" validate:"omitempty,gte=0"`
	Notes          string           `json:"notes" validate:"max=2000"`
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func (h *Handler) fail(c *fiber.Ctx, msg string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.WithRayID(h.service.logger, c).Error(msg, zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func parseDecimalQuery(c *fiber.Ctx, name string) (*decimal.Decimal, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a decimal number", name)
	}
	return &d, nil
}

// HandleBalance calculates the trust balance without saving it.
func (h *Handler) HandleBalance(c *fiber.Ctx) error {
	bank, err := parseDecimalQuery(c, "bank_balance")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if bank == nil {
		return badRequest(c, "bank_balance is required")
	}
	holdback, err := parseDecimalQuery(c, "holdback")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if holdback != nil && holdback.IsNegative() {
		return badRequest(c, "holdback must not be negative")
	}

	res, err := h.service.Calculate(c.UserContext(), Request{BankBalance: *bank, StripeHoldback: holdback})
	if err != nil {
		return h.fail(c, "Trust calculation failed", err)
	}
	return c.JSON(res)
}

// HandleSave calculates and saves a reconciliation snapshot.
func (h *Handler) HandleSave(c *fiber.Ctx) error {
	var req reconcileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	snap, res, err := h.service.SaveReconciliation(c.UserContext(), Request{
		BankBalance:    *req.BankBalance,
		StripeHoldback: req.StripeHoldback,
		Notes:          req.Notes,
	})
	if err != nil {
		return h.fail(c, "Saving reconciliation failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"snapshot": snap, "result": res})
}

// HandleHistory lists saved snapshots, newest first.
func (h *Handler) HandleHistory(c *fiber.Ctx) error {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = min(n, maxHistoryLimit)
	}

	snaps, err := h.service.History(c.UserContext(), limit)
	if err != nil {
		return h.fail(c, "Listing snapshots failed", err)
	}
	return c.JSON(snaps)
}

// HandleSnapshot returns one snapshot.
func (h *Handler) HandleSnapshot(c *fiber.Ctx) error {
	snap, err := h.service.Snapshot(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, "Loading snapshot failed", err)
	}
	return c.JSON(snap)
}

// HandleProcessor returns the processor balance.
func (h *Handler) HandleProcessor(c *fiber.Ctx) error {
	b, err := h.service.ProcessorBalance(c.UserContext())
	if err != nil {
		return h.fail(c, "Reading processor balance failed", err)
	}
	return c.JSON(b)
}

// HandlePayouts lists processor payouts, optionally since an RFC 3339 time.
func (h *Handler) HandlePayouts(c *fiber.Ctx) error {
	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "since must be an RFC 3339 timestamp")
		}
		since = &t
	}

	payouts, err := h.service.Payouts(c.UserContext(), since)
	if err != nil {
		return h.fail(c, "Listing payouts failed", err)
	}
	return c.JSON(payouts)
}

func statusFor(err error) int {
	var statusErr *retry.StatusError
	var exhausted *retry.ExhaustedError
	switch {
	case errors.Is(err, runguard.ErrBusy):
		return fiber.StatusConflict
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, payments.ErrMissingCredentials):
		return fiber.StatusPreconditionFailed
	case errors.Is(err, retry.ErrCancelled):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &exhausted), errors.As(err, &statusErr), errors.Is(err, payments.ErrDecode):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
