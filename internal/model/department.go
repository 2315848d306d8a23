package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// VatBand is a VAT band with its current rate and a dated history of
// rate changes.
type VatBand struct {
	Band        string          `gorm:"primaryKey;size:1" json:"band"`
	Description string          `gorm:"not null" json:"description"`
	Rate        decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"rate"`

	Rates []VatRate `gorm:"foreignKey:Band" json:"rates,omitempty"`
}

func (VatBand) TableName() string { return "vat" }

// VatRate records the rate a band took from Active onwards.
type VatRate struct {
	ID     int64           `gorm:"primaryKey" json:"id"`
	Band   string          `gorm:"size:1;not null;uniqueIndex:idx_vatrate_band_active" json:"band"`
	Active datatypes.Date  `gorm:"not null;uniqueIndex:idx_vatrate_band_active" json:"active"`
	Rate   decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"rate"`
}

func (VatRate) TableName() string { return "vatrates" }

// RateAt returns the rate in force on date: the latest history entry
// active on or before it, else the band's current rate.
func (b VatBand) RateAt(date time.Time) decimal.Decimal {
	rates := make([]VatRate, len(b.Rates))
	copy(rates, b.Rates)
	sort.Slice(rates, func(i, j int) bool {
		return time.Time(rates[i].Active).Before(time.Time(rates[j].Active))
	})
	rate := b.Rate
	for _, r := range rates {
		if !time.Time(r.Active).After(date) {
			rate = r.Rate
		}
	}
	return rate
}

// Department classifies sales for reporting and VAT.
type Department struct {
	ID          int64            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Description string           `gorm:"not null" json:"description"`
	VatBandID   string           `gorm:"column:vatband;size:1;not null" json:"vatband"`
	MinPrice    *decimal.Decimal `gorm:"type:numeric(10,2)" json:"min_price,omitempty"`
	MaxPrice    *decimal.Decimal `gorm:"type:numeric(10,2)" json:"max_price,omitempty"`
	Notes       *string          `json:"notes,omitempty"`

	VatBand *VatBand `gorm:"foreignKey:VatBandID" json:"vat,omitempty"`
}

func (Department) TableName() string { return "departments" }
