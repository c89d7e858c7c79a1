package sync

import (
	"errors"
	"strconv"
	"time"

	"trust-ledger/core/logger"
	"trust-ledger/core/retry"
	"trust-ledger/core/runguard"
	"trust-ledger/feature/booking"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 200
)

// Handler handles HTTP requests for synchronization.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/", h.HandleSync)
	group.Get("/logs", h.HandleLogs)
}

type syncRequest struct {
	CheckInFrom  *time.Time `json:"check_in_from"`
	CheckOutFrom *time.Time `json:"check_out_from"`
}

// HandleSync runs one sync and returns its outcome.
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req syncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	out, err := h.service.Run(c.UserContext(), Options{
		CheckInFrom:  req.CheckInFrom,
		CheckOutFrom: req.CheckOutFrom,
		Progress:     func(msg string) { l.Debug(msg) },
	})
	if err != nil {
		status := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			l.Error("Sync request failed", zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(out)
}

// HandleLogs returns recent sync logs, newest first.
func (h *Handler) HandleLogs(c *fiber.Ctx) error {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a positive integer"})
		}
		limit = min(n, maxLogLimit)
	}

	logs, err := h.service.Logs(c.UserContext(), limit)
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing sync logs failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(logs)
}

func statusFor(err error) int {
	var statusErr *retry.StatusError
	var exhausted *retry.ExhaustedError
	switch {
	case errors.Is(err, runguard.ErrBusy):
		return fiber.StatusConflict
	case errors.Is(err, booking.ErrMissingCredentials):
		return fiber.StatusPreconditionFailed
	case errors.Is(err, retry.ErrCancelled):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &exhausted), errors.As(err, &statusErr), errors.Is(err, booking.ErrDecode):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
