package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PLU is a named, priced sale item that is not stock-tracked.
type PLU struct {
	ID          int64            `gorm:"primaryKey" json:"id"`
	Description string           `gorm:"uniqueIndex;not null" json:"description"`
	Note        string           `gorm:"not null;default:''" json:"note"`
	DeptID      int64            `gorm:"not null" json:"dept_id"`
	Price       *decimal.Decimal `gorm:"type:numeric(10,2)" json:"price,omitempty"`
	AltPrice1   *decimal.Decimal `gorm:"type:numeric(10,2)" json:"altprice1,omitempty"`
	AltPrice2   *decimal.Decimal `gorm:"type:numeric(10,2)" json:"altprice2,omitempty"`
	AltPrice3   *decimal.Decimal `gorm:"type:numeric(10,2)" json:"altprice3,omitempty"`

	Department *Department `gorm:"foreignKey:DeptID" json:"department,omitempty"`
}

func (PLU) TableName() string { return "pricelookups" }

// AltPrice returns alternative price n (1..3).
func (p PLU) AltPrice(n int) *decimal.Decimal {
	switch n {
	case 1:
		return p.AltPrice1
	case 2:
		return p.AltPrice2
	case 3:
		return p.AltPrice3
	}
	return nil
}

// Modifier is a site-configured sale transform. Behaviour names the code
// that implements it and Params carries that behaviour's settings.
type Modifier struct {
	Name      string         `gorm:"primaryKey" json:"name"`
	Behaviour string         `gorm:"size:20;not null" json:"behaviour"`
	Params    datatypes.JSON `json:"params,omitempty"`
}

func (Modifier) TableName() string { return "modifiers" }

// Binding targets. A KeyboardBinding or Barcode has exactly one.
const (
	TargetStockLine = "stockline"
	TargetPLU       = "plu"
	TargetStockType = "stocktype"
	TargetModifier  = "modifier"
)

// Target is the shared target shape of keyboard bindings and barcodes.
type Target struct {
	StockLineID  *int64  `gorm:"column:stocklineid" json:"stockline_id,omitempty"`
	PLUID        *int64  `gorm:"column:pluid" json:"plu_id,omitempty"`
	StockTypeID  *int64  `gorm:"column:stocktypeid" json:"stocktype_id,omitempty"`
	ModifierName *string `gorm:"column:modifier" json:"modifier,omitempty"`
}

// Kind returns the single target kind, or "" when zero or several
// targets are set.
func (t Target) Kind() string {
	kind, n := "", 0
	if t.StockLineID != nil {
		kind, n = TargetStockLine, n+1
	}
	if t.PLUID != nil {
		kind, n = TargetPLU, n+1
	}
	if t.StockTypeID != nil {
		kind, n = TargetStockType, n+1
	}
	if t.ModifierName != nil {
		kind, n = TargetModifier, n+1
	}
	if n != 1 {
		return ""
	}
	return kind
}

// KeyboardBinding maps a keycode, optionally qualified by a menu key, to
// a sale target.
type KeyboardBinding struct {
	ID      int64  `gorm:"primaryKey" json:"id"`
	Keycode string `gorm:"not null;uniqueIndex:idx_keyboard_key_menu" json:"keycode"`
	Menukey string `gorm:"not null;default:'';uniqueIndex:idx_keyboard_key_menu" json:"menukey"`
	Target  `gorm:"embedded"`
}

func (KeyboardBinding) TableName() string { return "keyboard" }

// Barcode maps a scanned code to a sale target.
type Barcode struct {
	Code   string `gorm:"primaryKey" json:"code"`
	Target `gorm:"embedded"`
}

func (Barcode) TableName() string { return "barcodes" }
