package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trust-ledger/feature/ledger/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// lookupChunk bounds the IN clause used for batch lookups.
const lookupChunk = 500

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the local entity store backed by GORM.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the ledger tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(models.All()...)
}

// Transaction runs fn in one database transaction. The whole batch commits or none of it does.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// PropertiesByExternalID returns every property keyed by external id, with owners loaded.
func (s *Store) PropertiesByExternalID(ctx context.Context) (map[string]*models.Property, error) {
	var props []models.Property
	if err := s.db.WithContext(ctx).Preload("Owner").Find(&props).Error; err != nil {
		return nil, err
	}
	out := make(map[string]*models.Property, len(props))
	for i := range props {
		out[props[i].ExternalID] = &props[i]
	}
	return out, nil
}

// FindPropertyByExternalID returns nil when no property matches.
func (s *Store) FindPropertyByExternalID(ctx context.Context, externalID string) (*models.Property, error) {
	var p models.Property
	err := s.db.WithContext(ctx).Preload("Owner").Where("external_id = ?", externalID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProperty creates p when it has no id, otherwise updates it in place.
func (s *Store) SaveProperty(ctx context.Context, p *models.Property) (created bool, err error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	db := s.db.WithContext(ctx).Omit("Owner", "TaxJurisdictions")
	if p.ID == "" {
		return true, db.Create(p).Error
	}
	return false, db.Save(p).Error
}

// ReservationsByExternalID returns the existing reservations among externalIDs.
func (s *Store) ReservationsByExternalID(ctx context.Context, externalIDs []string) (map[string]*models.Reservation, error) {
	out := make(map[string]*models.Reservation, len(externalIDs))
	for start := 0; start < len(externalIDs); start += lookupChunk {
		end := min(start+lookupChunk, len(externalIDs))

		var batch []models.Reservation
		if err := s.db.WithContext(ctx).Where("external_id IN ?", externalIDs[start:end]).Find(&batch).Error; err != nil {
			return nil, err
		}
		for i := range batch {
			out[batch[i].ExternalID] = &batch[i]
		}
	}
	return out, nil
}

// FindReservationByExternalID returns nil when no reservation matches.
func (s *Store) FindReservationByExternalID(ctx context.Context, externalID string) (*models.Reservation, error) {
	var r models.Reservation
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveReservation creates r when it has no id, otherwise updates it in place.
func (s *Store) SaveReservation(ctx context.Context, r *models.Reservation) (created bool, err error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	db := s.db.WithContext(ctx).Omit("Property")
	if r.ID == "" {
		return true, db.Create(r).Error
	}
	return false, db.Save(r).Error
}

// CountReservations returns the number of stored reservations.
func (s *Store) CountReservations(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Reservation{}).Count(&n).Error
	return n, err
}

// CountProperties returns the number of stored properties.
func (s *Store) CountProperties(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Property{}).Count(&n).Error
	return n, err
}

// Settings returns the saved settings or the defaults when none were saved.
func (s *Store) Settings(ctx context.Context) (models.Settings, error) {
	var st models.Settings
	err := s.db.WithContext(ctx).Where("id = ?", models.SettingsID).Take(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, err
	}
	return st, nil
}

// SaveSettings replaces the settings row.
func (s *Store) SaveSettings(ctx context.Context, st models.Settings) error {
	st.ID = models.SettingsID
	return s.db.WithContext(ctx).Save(&st).Error
}

// CreateSnapshot appends a reconciliation snapshot.
func (s *Store) CreateSnapshot(ctx context.Context, snap *models.ReconciliationSnapshot) error {
	return s.db.WithContext(ctx).Create(snap).Error
}

// ListSnapshots returns the newest snapshots first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]models.ReconciliationSnapshot, error) {
	var out []models.ReconciliationSnapshot
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// FindSnapshot returns ErrNotFound when id is unknown.
func (s *Store) FindSnapshot(ctx context.Context, id string) (*models.ReconciliationSnapshot, error) {
	var snap models.ReconciliationSnapshot
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// SetSnapshotArchiveKey records where a snapshot was archived.
// It bypasses model hooks because the archive key is written once, after the snapshot exists.
func (s *Store) SetSnapshotArchiveKey(ctx context.Context, id, key string) error {
	return s.db.WithContext(ctx).Model(&models.ReconciliationSnapshot{}).
		Where("id = ? AND (archive_key IS NULL OR archive_key = '')", id).
		UpdateColumn("archive_key", key).Error
}

// CreateSyncLog appends a sync log entry.
func (s *Store) CreateSyncLog(ctx context.Context, entry *models.SyncLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// ListSyncLogs returns the newest sync logs first.
func (s *Store) ListSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error) {
	var out []models.SyncLog
	err := s.db.WithContext(ctx).Order("started_at DESC").Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// SaveOwner creates or updates an owner.
func (s *Store) SaveOwner(ctx context.Context, o *models.Owner) error {
	if o.ID == "" {
		return s.db.WithContext(ctx).Create(o).Error
	}
	return s.db.WithContext(ctx).Save(o).Error
}

// ListOwners returns owners ordered by name.
func (s *Store) ListOwners(ctx context.Context) ([]models.Owner, error) {
	var out []models.Owner
	err := s.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

// AssignOwner links a property (by local or external id) to an owner.
func (s *Store) AssignOwner(ctx context.Context, propertyRef, ownerID string) error {
	var owner models.Owner
	if err := s.db.WithContext(ctx).Where("id = ?", ownerID).Take(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
		}
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ? OR external_id = ?", propertyRef, propertyRef).
		Update("owner_id", owner.ID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("property %s: %w", propertyRef, ErrNotFound)
	}
	return nil
}

// SetManualFee sets or, when fee is invalid, clears the reservation-level management fee
// and recomputes the fee and owner payout. The next sync keeps the override.
func (s *Store) SetManualFee(ctx context.Context, externalID string, fee decimal.NullDecimal) (*models.Reservation, error) {
	var r models.Reservation
	err := s.Transaction(ctx, func(tx *Store) error {
		err := tx.db.Preload("Property.Owner").Where("external_id = ?", externalID).Take(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("reservation %s: %w", externalID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		settings, err := tx.Settings(ctx)
		if err != nil {
			return err
		}

		var owner *models.Owner
		if r.Property != nil {
			owner = r.Property.Owner
		}
		f := models.ComputeFinancials(r.TotalAmount, r.TaxAmount, r.HostServiceFee, fee, r.Property, owner,
			settings.DefaultManagementFeePercent)
		r.ManualManagementFee = fee
		r.ManagementFee = f.ManagementFee
		r.OwnerPayout = f.OwnerPayout

		return tx.db.Model(&models.Reservation{}).Where("id = ?", r.ID).Updates(map[string]any{
			"manual_management_fee": fee,
			"management_fee":        f.ManagementFee,
			"owner_payout":          f.OwnerPayout,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MarkOwnerPaidOut flags the owner's completed, unpaid reservations checked out by through
// and moves the owner's payout watermark to through.
func (s *Store) MarkOwnerPaidOut(ctx context.Context, ownerID string, through time.Time) (int64, error) {
	var affected int64
	err := s.Transaction(ctx, func(tx *Store) error {
		propertyIDs := tx.db.Model(&models.Property{}).Select("id").Where("owner_id = ?", ownerID)
		res := tx.db.Model(&models.Reservation{}).
			Where("property_id IN (?)", propertyIDs).
			Where("is_cancelled = ? AND owner_paid_out = ? AND check_out <= ?", false, false, through).
			Updates(map[string]any{"owner_paid_out": true, "owner_paid_out_at": through})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected

		upd := tx.db.Model(&models.Owner{}).Where("id = ?", ownerID).Update("last_payout_at", through)
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
		}
		return nil
	})
	return affected, err
}

// MarkTaxRemitted flags taxes of completed reservations checked out by through as remitted.
func (s *Store) MarkTaxRemitted(ctx context.Context, through time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("is_cancelled = ? AND tax_remitted = ? AND check_out <= ?", false, false, through).
		Updates(map[string]any{"tax_remitted": true, "tax_remitted_at": through})
	return res.RowsAffected, res.Error
}

// SaveTaxJurisdiction creates or updates j and replaces its property links.
func (s *Store) SaveTaxJurisdiction(ctx context.Context, j *models.TaxJurisdiction, propertyIDs []string) error {
	if j.RateUnit == "" {
		j.RateUnit = models.RateUnitFraction
	}
	return s.Transaction(ctx, func(tx *Store) error {
		db := tx.db.Omit("Properties")
		if j.ID == "" {
			if err := db.Create(j).Error; err != nil {
				return err
			}
		} else if err := db.Save(j).Error; err != nil {
			return err
		}

		if propertyIDs == nil {
			return nil
		}
		var props []models.Property
		if len(propertyIDs) > 0 {
			if err := tx.db.Where("id IN ? OR external_id IN ?", propertyIDs, propertyIDs).Find(&props).Error; err != nil {
				return err
			}
		}
		return tx.db.Model(j).Association("Properties").Replace(props)
	})
}

// MigrateTaxRates rewrites jurisdictions still stored as percentages into canonical fractions.
func (s *Store) MigrateTaxRates(ctx context.Context) (int, error) {
	migrated := 0
	err := s.Transaction(ctx, func(tx *Store) error {
		var legacy []models.TaxJurisdiction
		if err := tx.db.Where("rate_unit = ?", models.RateUnitPercent).Find(&legacy).Error; err != nil {
			return err
		}
		for _, j := range legacy {
			err := tx.db.Model(&models.TaxJurisdiction{}).Where("id = ?", j.ID).Updates(map[string]any{
				"rate":      j.Fraction(),
				"rate_unit": models.RateUnitFraction,
			}).Error
			if err != nil {
				return err
			}
			migrated++
		}
		return nil
	})
	return migrated, err
}

// State is the slice of local data the trust calculation reads.
type State struct {
	Reservations []models.Reservation
	Owners       []models.Owner
	Settings     models.Settings
}

// LoadState loads every non-cancelled reservation with its property, owner and
// jurisdictions, every owner, and the settings.
func (s *Store) LoadState(ctx context.Context) (*State, error) {
	st := &State{}
	err := s.db.WithContext(ctx).
		Preload("Property.Owner").
		Preload("Property.TaxJurisdictions").
		Where("is_cancelled = ?", false).
		Order("check_in").
		Find(&st.Reservations).Error
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	if err := s.db.WithContext(ctx).Order("name").Find(&st.Owners).Error; err != nil {
		return nil, fmt.Errorf("load owners: %w", err)
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	st.Settings = settings
	return st, nil
}

// MaintenanceReserve is a convenience accessor over Settings.
func (st *State) MaintenanceReserve() decimal.Decimal {
	return st.Settings.MaintenanceReserve
}
