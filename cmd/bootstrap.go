package cmd

import (
	"context"
	"fmt"
	"time"

	"trust-ledger/core/config"
	"trust-ledger/core/database"
	"trust-ledger/core/events"
	"trust-ledger/core/logger"
	"trust-ledger/core/retry"
	"trust-ledger/core/runguard"
	"trust-ledger/core/secrets"
	"trust-ledger/core/storage"
	"trust-ledger/core/telemetry"
	"trust-ledger/feature/booking"
	"trust-ledger/feature/ledger"
	"trust-ledger/feature/payments"
	ledgersync "trust-ledger/feature/sync"
	"trust-ledger/feature/trust"

	"go.uber.org/zap"
)

// application holds the services every command is built from.
type application struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *ledger.Store
	booking   *booking.Client
	payments  *payments.Client
	publisher events.Publisher
	sync      *ledgersync.Service
	trust     *trust.Service
	shutdown  telemetry.Shutdown
}

// bootstrap loads configuration and wires the application.
func bootstrap(ctx context.Context) (*application, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := ledger.NewStore(db)
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}

	secretStore, err := secrets.NewDBStore(db, cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	if err := secretStore.Migrate(); err != nil {
		return nil, err
	}

	executor := retry.New(cfg.Retry, retry.WithObserver(func(attempt int, delay time.Duration) {
		logg.Info("Retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))
	}))
	bookingClient := booking.NewClient(cfg.Booking, secretStore, executor, logg)
	paymentsClient := payments.NewClient(cfg.Payments, secretStore, executor, logg)

	guard, err := runguard.New(ctx, cfg.Guard, logg)
	if err != nil {
		return nil, fmt.Errorf("failed to create run guard: %w", err)
	}

	tracer, shutdown, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	var archive trust.Archiver
	if cfg.Storage.Enabled() {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		archive = storage.NewArchive(client, cfg.Storage)
	}

	publisher := events.New(cfg.Broker, logg)
	engine := ledgersync.NewEngine(bookingClient, store, logg)

	return &application{
		cfg:       cfg,
		logger:    logg,
		store:     store,
		booking:   bookingClient,
		payments:  paymentsClient,
		publisher: publisher,
		sync:      ledgersync.NewService(engine, store, guard, cfg.Guard.TTL(), tracer, publisher, logg),
		trust:     trust.NewService(store, paymentsClient, archive, guard, cfg.Guard.TTL(), tracer, publisher, logg),
		shutdown:  shutdown,
	}, nil
}

// Close flushes telemetry, the broker connection and the logger.
func (a *application) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("Failed to flush traces", zap.Error(err))
	}
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("Failed to close event publisher", zap.Error(err))
	}
	_ = a.logger.Sync()
}
