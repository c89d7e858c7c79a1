package trust

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trust-ledger/core/events"
	"trust-ledger/core/runguard"
	"trust-ledger/core/telemetry"
	"trust-ledger/feature/ledger"
	"trust-ledger/feature/ledger/models"
	"trust-ledger/feature/payments"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Processor is the payment processor as seen by the trust service.
type Processor interface {
	FetchBalance(ctx context.Context) (payments.Balance, error)
	FetchPayouts(ctx context.Context, q payments.PayoutQuery) ([]payments.Payout, error)
	Currency() string
}

// Archiver stores saved snapshots outside the database.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Request is one reconciliation run. A nil StripeHoldback is read from the processor.
type Request struct {
	BankBalance    decimal.Decimal
	StripeHoldback *decimal.Decimal
	Notes          string
}

// ProcessorBalance is the processor's view of the account in its settlement currency.
type ProcessorBalance struct {
	Currency           string          `json:"currency"`
	EffectiveAvailable decimal.Decimal `json:"effective_available"`
	Holdback           decimal.Decimal `json:"holdback"`
}

// SavedEvent is published on events.TopicReconciliationSaved.
type SavedEvent struct {
	ID                          string          `json:"id"`
	Variance                    decimal.Decimal `json:"variance"`
	OwnerReconciliationVariance decimal.Decimal `json:"owner_reconciliation_variance"`
	IsBalanced                  bool            `json:"is_balanced"`
	IsThreeWayBalanced          bool            `json:"is_three_way_balanced"`
	ArchiveKey                  string          `json:"archive_key,omitempty"`
	CreatedAt                   time.Time       `json:"created_at"`
}

// Service computes and records reconciliations.
type Service struct {
	store     *ledger.Store
	processor Processor
	archive   Archiver
	guard     runguard.Guard
	guardTTL  time.Duration
	tracer    telemetry.Tracer
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a Service. archive may be nil to skip archiving.
func NewService(store *ledger.Store, processor Processor, archive Archiver, guard runguard.Guard, guardTTL time.Duration, tracer telemetry.Tracer, publisher events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		processor: processor,
		archive:   archive,
		guard:     guard,
		guardTTL:  guardTTL,
		tracer:    tracer,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Holdback returns explicit when set, otherwise the processor's holdback.
// Without processor credentials the holdback is zero.
func (s *Service) Holdback(ctx context.Context, explicit *decimal.Decimal) (decimal.Decimal, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if s.processor == nil {
		return decimal.Zero, nil
	}

	b, err := s.processor.FetchBalance(ctx)
	if errors.Is(err, payments.ErrMissingCredentials) {
		s.logger.Warn("No payment processor credentials, assuming zero holdback")
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch processor holdback: %w", err)
	}
	return b.Holdback(s.processor.Currency()), nil
}

// ProcessorBalance reads the processor balance.
func (s *Service) ProcessorBalance(ctx context.Context) (*ProcessorBalance, error) {
	if s.processor == nil {
		return nil, payments.ErrMissingCredentials
	}
	b, err := s.processor.FetchBalance(ctx)
	if err != nil {
		return nil, err
	}
	currency := s.processor.Currency()
	return &ProcessorBalance{
		Currency:           currency,
		EffectiveAvailable: b.EffectiveAvailable(currency),
		Holdback:           b.Holdback(currency),
	}, nil
}

// Payouts lists processor payouts created at or after since.
func (s *Service) Payouts(ctx context.Context, since *time.Time) ([]payments.Payout, error) {
	if s.processor == nil {
		return nil, payments.ErrMissingCredentials
	}
	return s.processor.FetchPayouts(ctx, payments.PayoutQuery{CreatedFrom: since})
}

// Calculate runs the calculation over the current ledger without saving it.
func (s *Service) Calculate(ctx context.Context, req Request) (*Result, error) {
	ctx, scope := s.tracer.NewScope(ctx, "trust", "Calculate")
	defer scope.End()

	holdback, err := s.Holdback(ctx, req.StripeHoldback)
	if err != nil {
		scope.TraceError(err)
		return nil, err
	}

	st, err := s.store.LoadState(ctx)
	if err != nil {
		scope.TraceError(err)
		return nil, err
	}

	res := Calculate(st, Input{BankBalance: req.BankBalance, StripeHoldback: holdback, Now: s.now()})
	scope.SetAttributes(map[string]any{
		"trust.expected":     res.ExpectedBalance,
		"trust.variance":     res.Variance,
		"trust.balanced":     res.IsBalanced,
		"trust.three_way":    res.IsThreeWayBalanced,
		"trust.excluded":     len(res.Excluded),
		"trust.reservations": len(st.Reservations),
	})
	return res, nil
}

// lineItems is the drill-down stored with a snapshot.
type lineItems struct {
	FutureReservations       []ReservationSummary `json:"future_reservations"`
	UnpaidPayoutReservations []ReservationSummary `json:"unpaid_payout_reservations"`
	UnpaidTaxReservations    []ReservationSummary `json:"unpaid_tax_reservations"`
	OwnerPayoutBreakdown     []OwnerPayoutGroup   `json:"owner_payout_breakdown"`
	TaxBreakdown             []TaxGroup           `json:"tax_breakdown"`
	Excluded                 []ReservationSummary `json:"excluded"`
}

// NewSnapshot builds the snapshot row for res.
func NewSnapshot(res *Result, notes string) (*models.ReconciliationSnapshot, error) {
	items, err := json.Marshal(lineItems{
		FutureReservations:       res.FutureReservations,
		UnpaidPayoutReservations: res.UnpaidPayoutReservations,
		UnpaidTaxReservations:    res.UnpaidTaxReservations,
		OwnerPayoutBreakdown:     res.OwnerPayoutBreakdown,
		TaxBreakdown:             res.TaxBreakdown,
		Excluded:                 res.Excluded,
	})
	if err != nil {
		return nil, fmt.Errorf("encode line items: %w", err)
	}

	return &models.ReconciliationSnapshot{
		BankBalance:                  res.BankBalance,
		StripeHoldback:               res.StripeHoldback,
		FutureDeposits:               res.FutureDeposits,
		UnpaidOwnerPayouts:           res.UnpaidOwnerPayouts,
		UnpaidTaxes:                  res.UnpaidTaxes,
		MaintenanceReserves:          res.MaintenanceReserves,
		ExpectedBalance:              res.ExpectedBalance,
		ActualBalance:                res.ActualBalance,
		Variance:                     res.Variance,
		OwnerReconciliationVariance:  res.OwnerReconciliationVariance,
		FutureReservationCount:       res.FutureReservationCount,
		UnpaidPayoutReservationCount: res.UnpaidPayoutReservationCount,
		UnpaidTaxReservationCount:    res.UnpaidTaxReservationCount,
		ExcludedReservationCount:     len(res.Excluded),
		IsBalanced:                   res.IsBalanced,
		IsThreeWayBalanced:           res.IsThreeWayBalanced,
		Notes:                        notes,
		LineItems:                    datatypes.JSON(items),
		CalculatedAt:                 res.CalculatedAt,
	}, nil
}

// SaveReconciliation calculates and appends a snapshot. A storage failure is returned
// unmodified. Archiving and the reconciliation.saved event follow the commit and only log
// their failures.
func (s *Service) SaveReconciliation(ctx context.Context, req Request) (*models.ReconciliationSnapshot, *Result, error) {
	release, err := s.guard.Acquire(ctx, runguard.LedgerKey, s.guardTTL)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release reconciliation guard", zap.Error(err))
		}
	}()

	ctx, scope := s.tracer.NewScope(ctx, "trust", "SaveReconciliation")
	defer scope.End()

	res, err := s.Calculate(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	snap, err := NewSnapshot(res, req.Notes)
	if err != nil {
		scope.TraceError(err)
		return nil, nil, err
	}
	if err := s.store.CreateSnapshot(ctx, snap); err != nil {
		scope.TraceError(err)
		return nil, nil, err
	}
	scope.SetAttribute("snapshot.id", snap.ID)

	s.archiveSnapshot(context.WithoutCancel(ctx), snap)

	event := SavedEvent{
		ID:                          snap.ID,
		Variance:                    snap.Variance,
		OwnerReconciliationVariance: snap.OwnerReconciliationVariance,
		IsBalanced:                  snap.IsBalanced,
		IsThreeWayBalanced:          snap.IsThreeWayBalanced,
		ArchiveKey:                  snap.ArchiveKey,
		CreatedAt:                   snap.CreatedAt,
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), events.TopicReconciliationSaved, event); err != nil {
		s.logger.Warn("Failed to publish reconciliation event", zap.String("snapshot", snap.ID), zap.Error(err))
	}

	s.logger.Info("Reconciliation saved",
		zap.String("snapshot", snap.ID),
		zap.Stringer("variance", snap.Variance),
		zap.Bool("balanced", snap.IsBalanced),
		zap.Bool("three_way_balanced", snap.IsThreeWayBalanced),
	)
	return snap, res, nil
}

// ArchiveKey is the object key of a snapshot.
func ArchiveKey(snap *models.ReconciliationSnapshot) string {
	return fmt.Sprintf("snapshots/%s/%s.json", snap.CreatedAt.UTC().Format("2006/01/02"), snap.ID)
}

func (s *Service) archiveSnapshot(ctx context.Context, snap *models.ReconciliationSnapshot) {
	if s.archive == nil {
		return
	}

	key := ArchiveKey(snap)
	data, err := json.Marshal(snap)
	if err == nil {
		err = s.archive.Put(ctx, key, data)
	}
	if err == nil {
		err = s.store.SetSnapshotArchiveKey(ctx, snap.ID, key)
	}
	if err != nil {
		s.logger.Warn("Failed to archive snapshot", zap.String("snapshot", snap.ID), zap.Error(err))
		return
	}
	snap.ArchiveKey = key
}

// History returns the newest snapshots first.
func (s *Service) History(ctx context.Context, limit int) ([]models.ReconciliationSnapshot, error) {
	return s.store.ListSnapshots(ctx, limit)
}

// Snapshot returns one snapshot or ledger.ErrNotFound.
func (s *Service) Snapshot(ctx context.Context, id string) (*models.ReconciliationSnapshot, error) {
	return s.store.FindSnapshot(ctx, id)
}
