package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReservationStatus is the normalized lifecycle of a reservation.
type ReservationStatus string

const (
	StatusInquiry    ReservationStatus = "inquiry"
	StatusConfirmed  ReservationStatus = "confirmed"
	StatusCheckedIn  ReservationStatus = "checked_in"
	StatusCheckedOut ReservationStatus = "checked_out"
	StatusCancelled  ReservationStatus = "cancelled"
)

// NormalizeStatus maps a platform status string to a ReservationStatus.
func NormalizeStatus(external string) ReservationStatus {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case "confirmed", "reserved", "booked":
		return StatusConfirmed
	case "checked_in", "checkedin", "checked-in", "in_house":
		return StatusCheckedIn
	case "checked_out", "checkedout", "checked-out", "completed":
		return StatusCheckedOut
	case "canceled", "cancelled":
		return StatusCancelled
	default:
		return StatusInquiry
	}
}

// IsCancellationStatus reports whether a platform status marks a cancellation.
func IsCancellationStatus(external string) bool {
	return NormalizeStatus(external) == StatusCancelled
}

// Owner receives payouts for the properties they own.
type Owner struct {
	ID                   string              `gorm:"primaryKey;column:id;size:36" json:"id"`
	Name                 string              `gorm:"column:name;size:255;not null" json:"name"`
	Email                string              `gorm:"column:email;size:255" json:"email,omitempty"`
	Phone                string              `gorm:"column:phone;size:64" json:"phone,omitempty"`
	ManagementFeePercent decimal.NullDecimal `gorm:"column:management_fee_percent;type:decimal(7,4)" json:"management_fee_percent"`
	LastPayoutAt         *time.Time          `gorm:"column:last_payout_at" json:"last_payout_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func (Owner) TableName() string {
	return "owners"
}

// BeforeCreate assigns a local id.
func (o *Owner) BeforeCreate(_ *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// Property is a listing synced from the booking platform.
type Property struct {
	ID                   string              `gorm:"primaryKey;column:id;size:36" json:"id"`
	ExternalID           string              `gorm:"column:external_id;size:64;uniqueIndex;not null" json:"external_id"`
	Name                 string              `gorm:"column:name;size:255" json:"name"`
	AddressLine          string              `gorm:"column:address_line;size:255" json:"address_line,omitempty"`
	City                 string              `gorm:"column:city;size:128" json:"city,omitempty"`
	State                string              `gorm:"column:state;size:64" json:"state,omitempty"`
	PostalCode           string              `gorm:"column:postal_code;size:32" json:"postal_code,omitempty"`
	Country              string              `gorm:"column:country;size:64" json:"country,omitempty"`
	ManagementFeePercent decimal.NullDecimal `gorm:"column:management_fee_percent;type:decimal(7,4)" json:"management_fee_percent"`
	IsActive             bool                `gorm:"column:is_active;not null;default:true" json:"is_active"`
	OwnerID              *string             `gorm:"column:owner_id;size:36;index" json:"owner_id,omitempty"`
	Owner                *Owner              `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	TaxJurisdictions     []TaxJurisdiction   `gorm:"many2many:property_tax_jurisdictions;" json:"tax_jurisdictions,omitempty"`
	LastSyncedAt         *time.Time          `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func (Property) TableName() string {
	return "properties"
}

// BeforeCreate assigns a local id.
func (p *Property) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Reservation is a booking synced from the booking platform.
// Money columns are exact decimals; the derived payout columns are recomputed on every sync.
type Reservation struct {
	ID                  string              `gorm:"primaryKey;column:id;size:36" json:"id"`
	ExternalID          string              `gorm:"column:external_id;size:64;uniqueIndex;not null" json:"external_id"`
	ConfirmationCode    string              `gorm:"column:confirmation_code;size:64" json:"confirmation_code,omitempty"`
	GuestName           string              `gorm:"column:guest_name;size:255" json:"guest_name,omitempty"`
	GuestEmail          string              `gorm:"column:guest_email;size:255" json:"guest_email,omitempty"`
	GuestPhone          string              `gorm:"column:guest_phone;size:64" json:"guest_phone,omitempty"`
	CheckIn             *time.Time          `gorm:"column:check_in;index" json:"check_in,omitempty"`
	CheckOut            *time.Time          `gorm:"column:check_out;index" json:"check_out,omitempty"`
	Status              ReservationStatus   `gorm:"column:status;size:32;not null" json:"status"`
	ExternalStatus      string              `gorm:"column:external_status;size:64" json:"external_status,omitempty"`
	TotalAmount         decimal.Decimal     `gorm:"column:total_amount;type:decimal(15,2);not null" json:"total_amount"`
	AccommodationFare   decimal.Decimal     `gorm:"column:accommodation_fare;type:decimal(15,2);not null" json:"accommodation_fare"`
	CleaningFee         decimal.Decimal     `gorm:"column:cleaning_fee;type:decimal(15,2);not null" json:"cleaning_fee"`
	TaxAmount           decimal.Decimal     `gorm:"column:tax_amount;type:decimal(15,2);not null" json:"tax_amount"`
	HostServiceFee      decimal.Decimal     `gorm:"column:host_service_fee;type:decimal(15,2);not null" json:"host_service_fee"`
	GuestServiceFee     decimal.Decimal     `gorm:"column:guest_service_fee;type:decimal(15,2);not null" json:"guest_service_fee"`
	DepositReceived     decimal.Decimal     `gorm:"column:deposit_received;type:decimal(15,2);not null" json:"deposit_received"`
	BalanceDue          decimal.Decimal     `gorm:"column:balance_due;type:decimal(15,2);not null" json:"balance_due"`
	ManualManagementFee decimal.NullDecimal `gorm:"column:manual_management_fee;type:decimal(15,2)" json:"manual_management_fee"`
	ManagementFee       decimal.Decimal     `gorm:"column:management_fee;type:decimal(15,2);not null" json:"management_fee"`
	OwnerPayout         decimal.Decimal     `gorm:"column:owner_payout;type:decimal(15,2);not null" json:"owner_payout"`
	IsCancelled         bool                `gorm:"column:is_cancelled;not null;default:false;index" json:"is_cancelled"`
	CancelledAt         *time.Time          `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	IsFullyPaid         bool                `gorm:"column:is_fully_paid;not null;default:false" json:"is_fully_paid"`
	OwnerPaidOut        bool                `gorm:"column:owner_paid_out;not null;default:false" json:"owner_paid_out"`
	OwnerPaidOutAt      *time.Time          `gorm:"column:owner_paid_out_at" json:"owner_paid_out_at,omitempty"`
	TaxRemitted         bool                `gorm:"column:tax_remitted;not null;default:false" json:"tax_remitted"`
	TaxRemittedAt       *time.Time          `gorm:"column:tax_remitted_at" json:"tax_remitted_at,omitempty"`
	ExternalListingID   string              `gorm:"column:external_listing_id;size:64;index" json:"external_listing_id,omitempty"`
	PropertyID          *string             `gorm:"column:property_id;size:36;index" json:"property_id,omitempty"`
	Property            *Property           `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	LastSyncedAt        *time.Time          `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

func (Reservation) TableName() string {
	return "reservations"
}

// BeforeCreate assigns a local id.
func (r *Reservation) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// HasValidStay reports whether the stay dates are usable.
// Cancelled reservations are exempt; others need check-out strictly after check-in.
func (r Reservation) HasValidStay() bool {
	if r.IsCancelled {
		return true
	}
	return r.CheckIn != nil && r.CheckOut != nil && r.CheckOut.After(*r.CheckIn)
}

// ResolvedOwner returns the owner reached through the linked property, if loaded.
func (r Reservation) ResolvedOwner() *Owner {
	if r.Property == nil {
		return nil
	}
	return r.Property.Owner
}

// SyncStatus is the result of one synchronization run.
type SyncStatus string

const (
	SyncSucceeded SyncStatus = "success"
	SyncFailed    SyncStatus = "failed"
)

// SyncLog is an append-only record of one synchronization run.
type SyncLog struct {
	ID                  uint       `gorm:"primaryKey;column:id;autoIncrement" json:"id"`
	StartedAt           time.Time  `gorm:"column:started_at;index" json:"started_at"`
	FinishedAt          time.Time  `gorm:"column:finished_at" json:"finished_at"`
	Status              SyncStatus `gorm:"column:status;size:16;not null" json:"status"`
	PropertiesCreated   int        `gorm:"column:properties_created" json:"properties_created"`
	PropertiesUpdated   int        `gorm:"column:properties_updated" json:"properties_updated"`
	ReservationsCreated int        `gorm:"column:reservations_created" json:"reservations_created"`
	ReservationsUpdated int        `gorm:"column:reservations_updated" json:"reservations_updated"`
	ReservationsSkipped int        `gorm:"column:reservations_skipped" json:"reservations_skipped"`
	DurationMS          int64      `gorm:"column:duration_ms" json:"duration_ms"`
	Error               string     `gorm:"column:error;type:text" json:"error,omitempty"`
}

func (SyncLog) TableName() string {
	return "sync_logs"
}

// ErrSnapshotImmutable is returned when a saved snapshot is modified or deleted.
var ErrSnapshotImmutable = errors.New("reconciliation snapshots are append-only")

// ReconciliationSnapshot is an immutable record of one reconciliation run.
type ReconciliationSnapshot struct {
	ID                           string          `gorm:"primaryKey;column:id;size:36" json:"id"`
	BankBalance                  decimal.Decimal `gorm:"column:bank_balance;type:decimal(15,2);not null" json:"bank_balance"`
	StripeHoldback               decimal.Decimal `gorm:"column:stripe_holdback;type:decimal(15,2);not null" json:"stripe_holdback"`
	FutureDeposits               decimal.Decimal `gorm:"column:future_deposits;type:decimal(15,2);not null" json:"future_deposits"`
	UnpaidOwnerPayouts           decimal.Decimal `gorm:"column:unpaid_owner_payouts;type:decimal(15,2);not null" json:"unpaid_owner_payouts"`
	UnpaidTaxes                  decimal.Decimal `gorm:"column:unpaid_taxes;type:decimal(15,2);not null" json:"unpaid_taxes"`
	MaintenanceReserves          decimal.Decimal `gorm:"column:maintenance_reserves;type:decimal(15,2);not null" json:"maintenance_reserves"`
	ExpectedBalance              decimal.Decimal `gorm:"column:expected_balance;type:decimal(15,2);not null" json:"expected_balance"`
	ActualBalance                decimal.Decimal `gorm:"column:actual_balance;type:decimal(15,2);not null" json:"actual_balance"`
	Variance                     decimal.Decimal `gorm:"column:variance;type:decimal(15,2);not null" json:"variance"`
	OwnerReconciliationVariance  decimal.Decimal `gorm:"column:owner_reconciliation_variance;type:decimal(15,2);not null" json:"owner_reconciliation_variance"`
	FutureReservationCount       int             `gorm:"column:future_reservation_count" json:"future_reservation_count"`
	UnpaidPayoutReservationCount int             `gorm:"column:unpaid_payout_reservation_count" json:"unpaid_payout_reservation_count"`
	UnpaidTaxReservationCount    int             `gorm:"column:unpaid_tax_reservation_count" json:"unpaid_tax_reservation_count"`
	ExcludedReservationCount     int             `gorm:"column:excluded_reservation_count" json:"excluded_reservation_count"`
	IsBalanced                   bool            `gorm:"column:is_balanced;not null" json:"is_balanced"`
	IsThreeWayBalanced           bool            `gorm:"column:is_three_way_balanced;not null" json:"is_three_way_balanced"`
	Notes                        string          `gorm:"column:notes;type:text" json:"notes,omitempty"`
	LineItems                    datatypes.JSON  `gorm:"column:line_items" json:"line_items"`
	ArchiveKey                   string          `gorm:"column:archive_key;size:255" json:"archive_key,omitempty"`
	CalculatedAt                 time.Time       `gorm:"column:calculated_at" json:"calculated_at"`
	CreatedAt                    time.Time       `gorm:"index" json:"created_at"`
}

func (ReconciliationSnapshot) TableName() string {
	return "reconciliation_snapshots"
}

// BeforeCreate assigns a local id.
func (s *ReconciliationSnapshot) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// BeforeUpdate rejects every update.
func (s *ReconciliationSnapshot) BeforeUpdate(_ *gorm.DB) error {
	return ErrSnapshotImmutable
}

// BeforeDelete rejects every delete.
func (s *ReconciliationSnapshot) BeforeDelete(_ *gorm.DB) error {
	return ErrSnapshotImmutable
}

// Settings holds the single row of ledger-wide settings.
type Settings struct {
	ID                          uint            `gorm:"primaryKey;column:id" json:"-"`
	MaintenanceReserve          decimal.Decimal `gorm:"column:maintenance_reserve;type:decimal(15,2);not null" json:"maintenance_reserve"`
	DefaultManagementFeePercent decimal.Decimal `gorm:"column:default_management_fee_percent;type:decimal(7,4);not null" json:"default_management_fee_percent"`
	Currency                    string          `gorm:"column:currency;size:3;not null" json:"currency"`
	UpdatedAt                   time.Time       `json:"updated_at"`
}

func (Settings) TableName() string {
	return "settings"
}

// SettingsID is the primary key of the only settings row.
const SettingsID = 1

// DefaultManagementFeePercent applies when no reservation, property or owner override exists.
var DefaultManagementFeePercent = decimal.NewFromInt(20)

// DefaultSettings returns the settings used before any row is saved.
func DefaultSettings() Settings {
	return Settings{
		ID:                          SettingsID,
		MaintenanceReserve:          decimal.Zero,
		DefaultManagementFeePercent: DefaultManagementFeePercent,
		Currency:                    "USD",
	}
}

// All lists every model for migration.
func All() []any {
	return []any{
		&Owner{},
		&TaxJurisdiction{},
		&Property{},
		&Reservation{},
		&SyncLog{},
		&ReconciliationSnapshot{},
		&Settings{},
	}
}
