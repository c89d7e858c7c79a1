package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trust-ledger/feature/booking"
	"trust-ledger/feature/ledger"
	"trust-ledger/feature/ledger/models"

	"go.uber.org/zap"
)

// Source supplies listings and reservations. *booking.Client implements it.
type Source interface {
	FetchListings(ctx context.Context) ([]booking.Listing, error)
	FetchReservations(ctx context.Context, q booking.ReservationQuery) ([]booking.Reservation, error)
}

// Options tunes one run.
type Options struct {
	// Progress receives human-readable phase descriptions. Optional.
	Progress func(message string)
	// CheckInFrom adds a check-in lower bound to the reservation fetch.
	CheckInFrom *time.Time
	// CheckOutFrom raises the check-out lower bound above the lookback window.
	CheckOutFrom *time.Time
}

func (o Options) report(format string, args ...any) {
	if o.Progress != nil {
		o.Progress(fmt.Sprintf(format, args...))
	}
}

// Outcome summarizes one run.
type Outcome struct {
	StartedAt           time.Time     `json:"started_at"`
	PropertiesCreated   int           `json:"properties_created"`
	PropertiesUpdated   int           `json:"properties_updated"`
	ReservationsCreated int           `json:"reservations_created"`
	ReservationsUpdated int           `json:"reservations_updated"`
	ReservationsSkipped int           `json:"reservations_skipped"`
	Duration            time.Duration `json:"duration"`
}

// Engine merges external records into the local store.
type Engine struct {
	source Source
	store  *ledger.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(source Source, store *ledger.Store, logger *zap.Logger) *Engine {
	return &Engine{source: source, store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Sync runs both phases. Properties are committed before reservations are fetched, since
// reservations link to properties by external listing id. A failed phase leaves earlier
// phases committed. Adapter and storage errors are returned unmodified. One SyncLog row is
// written whatever the result.
func (e *Engine) Sync(ctx context.Context, opts Options) (*Outcome, error) {
	out := &Outcome{StartedAt: e.now()}

	err := e.syncProperties(ctx, opts, out)
	if err == nil {
		err = e.syncReservations(ctx, opts, out)
	}
	out.Duration = e.now().Sub(out.StartedAt)

	e.writeLog(ctx, out, err)
	if err != nil {
		return nil, err
	}

	opts.report("Sync complete: %d properties, %d reservations",
		out.PropertiesCreated+out.PropertiesUpdated, out.ReservationsCreated+out.ReservationsUpdated)
	return out, nil
}

func (e *Engine) syncProperties(ctx context.Context, opts Options, out *Outcome) error {
	opts.report("Fetching listings")
	listings, err := e.source.FetchListings(ctx)
	if err != nil {
		return err
	}

	opts.report("Saving %d properties", len(listings))
	now := e.now()
	return e.store.Transaction(ctx, func(tx *ledger.Store) error {
		existing, err := tx.PropertiesByExternalID(ctx)
		if err != nil {
			return err
		}

		created, updated := 0, 0
		for _, l := range listings {
			p, ok := existing[l.ExternalID]
			if !ok {
				p = &models.Property{ExternalID: l.ExternalID}
			}
			applyListing(p, l, now)

			isNew, err := tx.SaveProperty(ctx, p)
			if err != nil {
				return err
			}
			if isNew {
				existing[p.ExternalID] = p
				created++
			} else {
				updated++
			}
		}

		out.PropertiesCreated, out.PropertiesUpdated = created, updated
		return nil
	})
}

func applyListing(p *models.Property, l booking.Listing, now time.Time) {
	p.Name = l.Name
	p.AddressLine = l.AddressLine
	p.City = l.City
	p.State = l.State
	p.PostalCode = l.PostalCode
	p.Country = l.Country
	p.IsActive = l.IsActive
	p.LastSyncedAt = &now
}

func (e *Engine) syncReservations(ctx context.Context, opts Options, out *Outcome) error {
	opts.report("Fetching reservations")
	records, err := e.source.FetchReservations(ctx, booking.ReservationQuery{
		CheckInFrom:  opts.CheckInFrom,
		CheckOutFrom: opts.CheckOutFrom,
	})
	if err != nil {
		return err
	}

	opts.report("Saving %d reservations", len(records))
	now := e.now()
	return e.store.Transaction(ctx, func(tx *ledger.Store) error {
		properties, err := tx.PropertiesByExternalID(ctx)
		if err != nil {
			return err
		}
		settings, err := tx.Settings(ctx)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(records))
		for _, rec := range records {
			ids = append(ids, rec.ExternalID)
		}
		existing, err := tx.ReservationsByExternalID(ctx, ids)
		if err != nil {
			return err
		}

		created, updated, skipped := 0, 0, 0
		for _, rec := range records {
			r, ok := existing[rec.ExternalID]
			if !ok {
				r = &models.Reservation{ExternalID: rec.ExternalID}
			}
			property := properties[rec.ExternalListingID]
			applyReservation(r, rec, property, settings, now)

			// Records the store would refuse are skipped rather than failing the batch.
			if err := r.Validate(); err != nil {
				var verr *models.ValidationError
				if errors.As(err, &verr) {
					e.logger.Debug("Skipping invalid reservation",
						zap.String("external_id", rec.ExternalID), zap.String("field", verr.Field), zap.String("reason", verr.Reason))
					skipped++
					continue
				}
				return err
			}

			isNew, err := tx.SaveReservation(ctx, r)
			if err != nil {
				return err
			}
			if isNew {
				existing[r.ExternalID] = r
				created++
			} else {
				updated++
			}
		}

		out.ReservationsCreated, out.ReservationsUpdated, out.ReservationsSkipped = created, updated, skipped
		return nil
	})
}

// applyReservation copies platform fields onto r and recomputes every derived field.
// Local-only fields (manual fee, payout and remittance flags) are left untouched.
func applyReservation(r *models.Reservation, rec booking.Reservation, property *models.Property, settings models.Settings, now time.Time) {
	r.ConfirmationCode = rec.ConfirmationCode
	r.GuestName = rec.GuestName
	r.GuestEmail = rec.GuestEmail
	r.GuestPhone = rec.GuestPhone
	r.CheckIn = rec.CheckIn
	r.CheckOut = rec.CheckOut
	r.AccommodationFare = rec.AccommodationFare
	r.CleaningFee = rec.CleaningFee
	r.TaxAmount = rec.TaxAmount
	r.HostServiceFee = rec.HostServiceFee
	r.GuestServiceFee = rec.GuestServiceFee
	r.DepositReceived = rec.TotalPaid
	r.BalanceDue = rec.BalanceDue
	r.ExternalListingID = rec.ExternalListingID

	r.ApplyStatus(rec.Status, now)

	r.PropertyID = nil
	if property != nil {
		id := property.ID
		r.PropertyID = &id
	}
	r.ApplyFinancials(rec.Subtotal, property, settings.DefaultManagementFeePercent)
	r.LastSyncedAt = &now
}

func (e *Engine) writeLog(ctx context.Context, out *Outcome, runErr error) {
	entry := &models.SyncLog{
		StartedAt:           out.StartedAt,
		FinishedAt:          out.StartedAt.Add(out.Duration),
		Status:              models.SyncSucceeded,
		PropertiesCreated:   out.PropertiesCreated,
		PropertiesUpdated:   out.PropertiesUpdated,
		ReservationsCreated: out.ReservationsCreated,
		ReservationsUpdated: out.ReservationsUpdated,
		ReservationsSkipped: out.ReservationsSkipped,
		DurationMS:          out.Duration.Milliseconds(),
	}
	if runErr != nil {
		entry.Status = models.SyncFailed
		entry.Error = runErr.Error()
	}

	// A cancelled run still gets its log row.
	if err := e.store.CreateSyncLog(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("Failed to write sync log", zap.Error(err))
	}
}
