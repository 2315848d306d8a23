package model

import (
	"github.com/shopspring/decimal"
)

// Unit is a unit of measurement for stock: "pt", "ml", "25ml".
// UnitsPerItem is the quantity a sale price refers to: a pint of beer is
// one "pt", a pint of soft drink dispensed by the ml is 568 "ml".
type Unit struct {
	ID             string          `gorm:"primaryKey;size:20" json:"id"`
	Description    string          `gorm:"not null" json:"description"`
	BaseName       string          `gorm:"not null" json:"base_name"`
	BaseNamePlural string          `gorm:"not null" json:"base_name_plural"`
	ItemName       string          `gorm:"not null" json:"item_name"`
	ItemNamePlural string          `gorm:"not null" json:"item_name_plural"`
	UnitsPerItem   decimal.Decimal `gorm:"type:numeric;not null;default:1" json:"units_per_item"`
}

func (Unit) TableName() string { return "units" }

// Format renders qty in this unit, e.g. "1.5 pints" or "750 ml".
func (u Unit) Format(qty decimal.Decimal) string {
	name := u.BaseNamePlural
	if qty.Equal(decimal.NewFromInt(1)) {
		name = u.BaseName
	}
	return qty.String() + " " + name
}

// StockUnit is a container size a stock item can arrive in, e.g. a
// firkin is 72 pt.
type StockUnit struct {
	ID     int64           `gorm:"primaryKey" json:"id"`
	Name   string          `gorm:"uniqueIndex;not null" json:"name"`
	UnitID string          `gorm:"size:20;not null;index" json:"unit_id"`
	Size   decimal.Decimal `gorm:"type:numeric;not null" json:"size"`

	Unit *Unit `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
}

func (StockUnit) TableName() string { return "stockunits" }
