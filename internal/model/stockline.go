package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock line types.
const (
	LineRegular    = "regular"
	LineDisplay    = "display"
	LineContinuous = "continuous"
)

// StockLine is a named sale point, usually bound to a key.
//
//   - regular: at most one attached item, sold directly; PullThru is the
//     amount thrown away when the line has been idle.
//   - display: items of StockTypeID on a shelf of Capacity units.
//   - continuous: sells from any eligible item of StockTypeID.
type StockLine struct {
	ID          int64            `gorm:"primaryKey" json:"id"`
	Name        string           `gorm:"uniqueIndex;not null" json:"name"`
	Location    string           `gorm:"not null" json:"location"`
	LineType    string           `gorm:"column:linetype;size:20;not null" json:"linetype"`
	DeptID      *int64           `json:"dept_id,omitempty"`
	StockTypeID *int64           `gorm:"column:stocktype" json:"stocktype_id,omitempty"`
	Capacity    *int             `json:"capacity,omitempty"`
	PullThru    *decimal.Decimal `gorm:"column:pullthru;type:numeric" json:"pullthru,omitempty"`
	Note        string           `gorm:"not null;default:''" json:"note"`

	StockType *StockType `gorm:"foreignKey:StockTypeID" json:"stocktype,omitempty"`
}

func (StockLine) TableName() string { return "stocklines" }

// StockOnSale attaches a stock item to a stock line. DisplayQty is only
// meaningful on display lines and counts units ever moved onto the shelf.
type StockOnSale struct {
	StockItemID int64            `gorm:"column:stockid;primaryKey;autoIncrement:false" json:"stockid"`
	StockLineID int64            `gorm:"column:stocklineid;not null;index" json:"stocklineid"`
	DisplayQty  *decimal.Decimal `gorm:"column:displayqty;type:numeric" json:"displayqty,omitempty"`
	Attached    time.Time        `gorm:"not null" json:"attached"`
}

func (StockOnSale) TableName() string { return "stockonsale" }

// DisplayQtyOrZero returns DisplayQty treating unset as zero.
func (s StockOnSale) DisplayQtyOrZero() decimal.Decimal {
	if s.DisplayQty == nil {
		return decimal.Zero
	}
	return *s.DisplayQty
}
