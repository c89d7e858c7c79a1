package sync

import (
	"context"
	"time"

	"trust-ledger/core/events"
	"trust-ledger/core/runguard"
	"trust-ledger/core/telemetry"
	"trust-ledger/feature/ledger"
	"trust-ledger/feature/ledger/models"

	"go.uber.org/zap"
)

// CompletedEvent is published on events.TopicSyncCompleted after every run.
type CompletedEvent struct {
	Status              models.SyncStatus `json:"status"`
	StartedAt           time.Time         `json:"started_at"`
	PropertiesCreated   int               `json:"properties_created"`
	PropertiesUpdated   int               `json:"properties_updated"`
	ReservationsCreated int               `json:"reservations_created"`
	ReservationsUpdated int               `json:"reservations_updated"`
	ReservationsSkipped int               `json:"reservations_skipped"`
	DurationMS          int64             `json:"duration_ms"`
	Error               string            `json:"error,omitempty"`
}

// Service runs the engine one run at a time and reports each run.
type Service struct {
	engine    *Engine
	store     *ledger.Store
	guard     runguard.Guard
	guardTTL  time.Duration
	tracer    telemetry.Tracer
	publisher events.Publisher
	logger    *zap.Logger
}

// NewService creates a Service.
func NewService(engine *Engine, store *ledger.Store, guard runguard.Guard, guardTTL time.Duration, tracer telemetry.Tracer, publisher events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		engine:    engine,
		store:     store,
		guard:     guard,
		guardTTL:  guardTTL,
		tracer:    tracer,
		publisher: publisher,
		logger:    logger,
	}
}

// Run performs one sync. It returns runguard.ErrBusy when another sync is active.
func (s *Service) Run(ctx context.Context, opts Options) (*Outcome, error) {
	release, err := s.guard.Acquire(ctx, runguard.LedgerKey, s.guardTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release sync guard", zap.Error(err))
		}
	}()

	ctx, scope := s.tracer.NewScope(ctx, "sync", "Sync")
	defer scope.End()

	started := time.Now().UTC()
	out, err := s.engine.Sync(ctx, opts)
	scope.TraceIfError(err)

	event := CompletedEvent{Status: models.SyncSucceeded, StartedAt: started}
	if err != nil {
		event.Status = models.SyncFailed
		event.Error = err.Error()
		event.DurationMS = time.Since(started).Milliseconds()
		s.logger.Error("Sync failed", zap.Error(err))
	} else {
		event.StartedAt = out.StartedAt
		event.PropertiesCreated = out.PropertiesCreated
		event.PropertiesUpdated = out.PropertiesUpdated
		event.ReservationsCreated = out.ReservationsCreated
		event.ReservationsUpdated = out.ReservationsUpdated
		event.ReservationsSkipped = out.ReservationsSkipped
		event.DurationMS = out.Duration.Milliseconds()

		scope.SetAttributes(map[string]any{
			"properties.created":   out.PropertiesCreated,
			"properties.updated":   out.PropertiesUpdated,
			"reservations.created": out.ReservationsCreated,
			"reservations.updated": out.ReservationsUpdated,
			"reservations.skipped": out.ReservationsSkipped,
		})
		s.logger.Info("Sync finished",
			zap.Int("properties_created", out.PropertiesCreated),
			zap.Int("properties_updated", out.PropertiesUpdated),
			zap.Int("reservations_created", out.ReservationsCreated),
			zap.Int("reservations_updated", out.ReservationsUpdated),
			zap.Int("reservations_skipped", out.ReservationsSkipped),
			zap.Duration("duration", out.Duration),
		)
	}

	if perr := s.publisher.Publish(context.WithoutCancel(ctx), events.TopicSyncCompleted, event); perr != nil {
		s.logger.Warn("Failed to publish sync event", zap.Error(perr))
	}
	return out, err
}

// Logs returns the newest sync logs first.
func (s *Service) Logs(ctx context.Context, limit int) ([]models.SyncLog, error) {
	return s.store.ListSyncLogs(ctx, limit)
}
