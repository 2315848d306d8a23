package model

import (
	"crypto/sha1"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Supplier of deliveries.
type Supplier struct {
	ID    int64   `gorm:"primaryKey" json:"id"`
	Name  string  `gorm:"uniqueIndex;not null" json:"name"`
	Tel   *string `json:"tel,omitempty"`
	Email *string `json:"email,omitempty"`
	Web   *string `json:"web,omitempty"`
}

func (Supplier) TableName() string { return "suppliers" }

// Delivery groups the stock items received together. Once Checked is set
// the delivery and its items are immutable.
type Delivery struct {
	ID         int64          `gorm:"primaryKey" json:"id"`
	SupplierID int64          `gorm:"not null;index" json:"supplier_id"`
	DocNumber  *string        `json:"docnumber,omitempty"`
	Date       datatypes.Date `gorm:"not null" json:"date"`
	Checked    bool           `gorm:"not null;default:false" json:"checked"`

	Supplier *Supplier  `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Items    []StockItem `gorm:"foreignKey:DeliveryID" json:"items,omitempty"`
}

func (Delivery) TableName() string { return "deliveries" }

// StockType is a catalogue entry describing a saleable product.
type StockType struct {
	ID           int64            `gorm:"primaryKey" json:"id"`
	DeptID       int64            `gorm:"not null;index" json:"dept_id"`
	Manufacturer string           `gorm:"not null;uniqueIndex:idx_stocktype_manufacturer_name" json:"manufacturer"`
	Name         string           `gorm:"not null;uniqueIndex:idx_stocktype_manufacturer_name" json:"name"`
	ShortName    string           `gorm:"not null" json:"shortname"`
	ABV          *decimal.Decimal `gorm:"type:numeric(3,1)" json:"abv,omitempty"`
	UnitID       string           `gorm:"size:20;not null" json:"unit_id"`
	SalePrice    *decimal.Decimal `gorm:"type:numeric(10,2)" json:"saleprice,omitempty"`
	Note         string           `gorm:"not null;default:''" json:"note"`

	Department *Department `gorm:"foreignKey:DeptID" json:"department,omitempty"`
	Unit       *Unit       `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
}

func (StockType) TableName() string { return "stocktypes" }

// Format is the full display name of the stock type.
func (s StockType) Format() string {
	if s.Manufacturer == "" {
		return s.Name
	}
	return s.Manufacturer + " " + s.Name
}

// StockItem is one physical container in the building. Size is copied
// from the stock unit at receipt. Used is the net quantity removed and is
// read from the stockout table, never stored.
type StockItem struct {
	ID          int64            `gorm:"primaryKey" json:"id"`
	DeliveryID  int64            `gorm:"not null;index" json:"delivery_id"`
	StockTypeID int64            `gorm:"not null;index" json:"stocktype_id"`
	StockUnitID int64            `gorm:"not null" json:"stockunit_id"`
	Size        decimal.Decimal  `gorm:"type:numeric;not null" json:"size"`
	CostPrice   *decimal.Decimal `gorm:"type:numeric(10,2)" json:"costprice,omitempty"`
	SalePrice   decimal.Decimal  `gorm:"type:numeric(10,2);not null" json:"saleprice"`
	BestBefore  *datatypes.Date  `json:"bestbefore,omitempty"`
	OnSale      *time.Time       `json:"onsale,omitempty"`
	Finished    *time.Time       `json:"finished,omitempty"`
	FinishCode  *string          `gorm:"size:20" json:"finishcode,omitempty"`

	Used decimal.Decimal `gorm:"->;-:migration" json:"used"`

	Delivery  *Delivery  `gorm:"foreignKey:DeliveryID" json:"-"`
	StockType *StockType `gorm:"foreignKey:StockTypeID" json:"stocktype,omitempty"`
	StockUnit *StockUnit `gorm:"foreignKey:StockUnitID" json:"-"`
}

func (StockItem) TableName() string { return "stock" }

// Remaining is Size less the net quantity removed.
func (s StockItem) Remaining() decimal.Decimal { return s.Size.Sub(s.Used) }

// IsFinished reports whether the item has been finished.
func (s StockItem) IsFinished() bool { return s.Finished != nil }

// CheckDigits is the three-digit hash of the stock id printed alongside
// it so that a mistyped id can be spotted.
func (s StockItem) CheckDigits() string {
	return CheckDigits(s.ID)
}

// CheckDigits returns the last three decimal digits of the SHA-1 of id.
func CheckDigits(id int64) string {
	sum := sha1.Sum([]byte(strconv.FormatInt(id, 10)))
	n := new(big.Int).SetBytes(sum[:])
	return fmt.Sprintf("%03d", new(big.Int).Mod(n, big.NewInt(1000)).Int64())
}

// Remove codes.
const (
	RemoveSold     = "sold"
	RemovePullThru = "pullthru"
	RemoveWaste    = "waste"
	RemoveUllage   = "ullage"
	RemoveFreebie  = "freebie"
	RemoveTaste    = "taste"
	RemoveMissing  = "missing"
	RemoveDripTray = "driptray"
)

// RemoveCode is the reason vocabulary for stockout rows.
type RemoveCode struct {
	ID     string `gorm:"primaryKey;size:8" json:"id"`
	Reason string `gorm:"not null" json:"reason"`
}

func (RemoveCode) TableName() string { return "stockremove" }

// Finish codes.
const (
	FinishEmpty   = "empty"
	FinishTurned  = "turned"
	FinishOOD     = "ood"
	FinishDamaged = "damaged"
)

// FinishCode is the reason vocabulary for finishing a stock item.
type FinishCode struct {
	ID          string `gorm:"primaryKey;size:20" json:"id"`
	Description string `gorm:"not null" json:"description"`
}

func (FinishCode) TableName() string { return "stockfinish" }

// StockOut removes Qty from a stock item. Compensations (voids) carry a
// negative Qty.
type StockOut struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	StockItemID int64           `gorm:"column:stockid;not null;index" json:"stockid"`
	Qty         decimal.Decimal `gorm:"type:numeric;not null" json:"qty"`
	RemoveCode  string          `gorm:"column:removecode;size:8;not null" json:"removecode"`
	TranslineID *int64          `gorm:"column:translineid;index" json:"translineid,omitempty"`
	Time        time.Time       `gorm:"not null" json:"time"`
}

func (StockOut) TableName() string { return "stockout" }

// Annotation types.
const (
	AnnotationLocation = "location"
	AnnotationStart    = "start"
	AnnotationStop     = "stop"
	AnnotationVent     = "vent"
	AnnotationMemo     = "memo"
)

// AnnotationTypes lists the accepted StockAnnotation.AType values.
var AnnotationTypes = []string{AnnotationLocation, AnnotationStart, AnnotationStop, AnnotationVent, AnnotationMemo}

// StockAnnotation is a side-channel note on a stock item.
type StockAnnotation struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	StockItemID int64     `gorm:"column:stockid;not null;index" json:"stockid"`
	AType       string    `gorm:"column:atype;size:8;not null" json:"atype"`
	Text        string    `gorm:"not null" json:"text"`
	UserID      *int64    `json:"user_id,omitempty"`
	Time        time.Time `gorm:"not null" json:"time"`
}

func (StockAnnotation) TableName() string { return "stock_annotations" }
