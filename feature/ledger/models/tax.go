package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TaxType classifies a jurisdiction's tax.
type TaxType string

const (
	TaxOccupancy TaxType = "occupancy"
	TaxTourism   TaxType = "tourism"
	TaxSales     TaxType = "sales"
	TaxOther     TaxType = "other"
)

// RateUnit records how a stored rate is expressed.
// Only RateUnitFraction is canonical; RateUnitPercent marks rows awaiting migration.
type RateUnit string

const (
	RateUnitFraction RateUnit = "fraction"
	RateUnitPercent  RateUnit = "percent"
)

var hundred = decimal.NewFromInt(100)

// RateFromPercent converts a percentage (6.5) to the canonical fraction (0.065).
func RateFromPercent(p decimal.Decimal) decimal.Decimal {
	return p.Div(hundred)
}

// RateFromFraction returns a fraction unchanged. It exists so call sites state their unit.
func RateFromFraction(f decimal.Decimal) decimal.Decimal {
	return f
}

// TaxJurisdiction is a taxing authority attached to one or more properties.
type TaxJurisdiction struct {
	ID                  string          `gorm:"primaryKey;column:id;size:36" json:"id"`
	Name                string          `gorm:"column:name;size:255;not null" json:"name"`
	TaxType             TaxType         `gorm:"column:tax_type;size:32;not null" json:"tax_type"`
	Rate                decimal.Decimal `gorm:"column:rate;type:decimal(9,6);not null" json:"rate"`
	RateUnit            RateUnit        `gorm:"column:rate_unit;size:16;not null;default:fraction" json:"rate_unit"`
	RemittanceFrequency string          `gorm:"column:remittance_frequency;size:16" json:"remittance_frequency,omitempty"`
	DueDay              int             `gorm:"column:due_day" json:"due_day,omitempty"`
	Properties          []Property      `gorm:"many2many:property_tax_jurisdictions;" json:"-"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (TaxJurisdiction) TableName() string {
	return "tax_jurisdictions"
}

// BeforeCreate assigns a local id.
func (j *TaxJurisdiction) BeforeCreate(_ *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// Fraction returns the rate as a fraction, converting rows still stored as a percentage.
func (j TaxJurisdiction) Fraction() decimal.Decimal {
	if j.RateUnit == RateUnitPercent {
		return RateFromPercent(j.Rate)
	}
	return j.Rate
}
