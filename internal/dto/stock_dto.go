package dto

import (
	"github.com/shopspring/decimal"
)

// ─── Catalogue ───────────────────────────────────────────────────────────────

type CreateUnitRequest struct {
	ID             string          `json:"id"               validate:"required,max=20"`
	Description    string          `json:"description"      validate:"required"`
	BaseName       string          `json:"base_name"        validate:"required"`
	BaseNamePlural string          `json:"base_name_plural" validate:"required"`
	ItemName       string          `json:"item_name"        validate:"required"`
	ItemNamePlural string          `json:"item_name_plural" validate:"required"`
	UnitsPerItem   decimal.Decimal `json:"units_per_item"   validate:"gt=0"`
}

type CreateStockUnitRequest struct {
	Name   string          `json:"name"    validate:"required,max=100"`
	UnitID string          `json:"unit_id" validate:"required"`
	Size   decimal.Decimal `json:"size"    validate:"gt=0"`
}

type DepartmentRequest struct {
	ID          int64            `json:"id"          validate:"required,min=1"`
	Description string           `json:"description" validate:"required,max=100"`
	VatBand     string           `json:"vatband"     validate:"required,len=1"`
	MinPrice    *decimal.Decimal `json:"min_price"`
	MaxPrice    *decimal.Decimal `json:"max_price"`
	Notes       *string          `json:"notes"`
}

type VatBandRequest struct {
	Band        string          `json:"band"        validate:"required,len=1"`
	Description string          `json:"description" validate:"required"`
	Rate        decimal.Decimal `json:"rate"        validate:"min=0"`
}

type VatRateRequest struct {
	Active string          `json:"active" validate:"required,datetime=2006-01-02"`
	Rate   decimal.Decimal `json:"rate"   validate:"min=0"`
}

type SupplierRequest struct {
	Name  string  `json:"name"  validate:"required,max=100"`
	Tel   *string `json:"tel"`
	Email *string `json:"email" validate:"omitempty,email"`
	Web   *string `json:"web"   validate:"omitempty,url"`
}

type StockTypeRequest struct {
	DeptID       int64            `json:"dept_id"      validate:"required,min=1"`
	Manufacturer string           `json:"manufacturer" validate:"required,max=30"`
	Name         string           `json:"name"         validate:"required,max=30"`
	ShortName    string           `json:"shortname"    validate:"required,max=25"`
	ABV          *decimal.Decimal `json:"abv"`
	UnitID       string           `json:"unit_id"      validate:"required"`
	SalePrice    *decimal.Decimal `json:"saleprice"`
	Note         string           `json:"note"`
}

// StockTypeFilter is bound from the query string of GET /v1/stocktypes.
type StockTypeFilter struct {
	DeptID int64  `form:"dept"`
	Search string `form:"q"`
}

// AvailabilityResponse summarises the live stock of one stock type.
type AvailabilityResponse struct {
	StockTypeID int64              `json:"stocktype_id"`
	Description string             `json:"description"`
	Remaining   decimal.Decimal    `json:"remaining"`
	InStock     decimal.Decimal    `json:"in_stock"` // not on any line
	Lines       []LineAvailability `json:"lines"`
	Items       []ItemAvailability `json:"items"`
}

type LineAvailability struct {
	StockLineID int64           `json:"stockline_id"`
	Name        string          `json:"name"`
	Remaining   decimal.Decimal `json:"remaining"`
	OnDisplay   decimal.Decimal `json:"on_display"`
}

type ItemAvailability struct {
	StockItemID int64           `json:"stockid"`
	Remaining   decimal.Decimal `json:"remaining"`
	StockLineID *int64          `json:"stockline_id,omitempty"`
}

// ─── Deliveries ──────────────────────────────────────────────────────────────

type DeliveryRequest struct {
	SupplierID int64   `json:"supplier_id" validate:"required,min=1"`
	DocNumber  *string `json:"docnumber"   validate:"omitempty,max=40"`
	Date       string  `json:"date"        validate:"required,datetime=2006-01-02"`
}

// ReceiveRequest adds Count identical items to an unconfirmed delivery.
// SalePrice defaults to the stock type's price, then to a guess.
type ReceiveRequest struct {
	StockTypeID int64            `json:"stocktype_id" validate:"required,min=1"`
	StockUnitID int64            `json:"stockunit_id" validate:"required,min=1"`
	CostPrice   *decimal.Decimal `json:"costprice"`
	SalePrice   *decimal.Decimal `json:"saleprice"`
	BestBefore  *string          `json:"bestbefore"   validate:"omitempty,datetime=2006-01-02"`
	Count       int              `json:"count"        validate:"omitempty,min=1,max=500"`
}

type UpdateStockItemRequest struct {
	StockTypeID *int64           `json:"stocktype_id"`
	StockUnitID *int64           `json:"stockunit_id"`
	CostPrice   *decimal.Decimal `json:"costprice"`
	SalePrice   *decimal.Decimal `json:"saleprice"`
	BestBefore  *string          `json:"bestbefore" validate:"omitempty,datetime=2006-01-02"`
}

// ─── Stock items ─────────────────────────────────────────────────────────────

// StockItemFilter is bound from the query string of GET /v1/stock.
type StockItemFilter struct {
	StockTypeID int64 `form:"stocktype"`
	DeliveryID  int64 `form:"delivery"`
	Live        bool  `form:"live"`
	Unallocated bool  `form:"unallocated"`
}

// RemoveStockRequest records waste (or a freebie, a taste...) against an
// item.
type RemoveStockRequest struct {
	Qty        decimal.Decimal `json:"qty"        validate:"gt=0"`
	RemoveCode string          `json:"removecode" validate:"required,max=8"`
}

type FinishStockRequest struct {
	FinishCode string `json:"finishcode" validate:"required,max=20"`
}

type AnnotateRequest struct {
	Type string `json:"type" validate:"required,oneof=location start stop vent memo"`
	Text string `json:"text" validate:"required,max=200"`
}

type RepriceRequest struct {
	SalePrice decimal.Decimal `json:"saleprice" validate:"gt=0"`
}

// PriceRangeResponse lists the sale prices of the live items of a stock
// type so they can be brought into line.
type PriceRangeResponse struct {
	StockTypeID int64            `json:"stocktype_id"`
	Min         decimal.Decimal  `json:"min"`
	Guide       *decimal.Decimal `json:"guide,omitempty"`
	Max         decimal.Decimal  `json:"max"`
	Consistent  bool             `json:"consistent"`
	Items       []ItemSalePrice  `json:"items"`
}

type ItemSalePrice struct {
	StockItemID int64           `json:"stockid"`
	SalePrice   decimal.Decimal `json:"saleprice"`
}

type GuessPriceRequest struct {
	StockTypeID int64           `json:"stocktype_id" validate:"required,min=1"`
	StockUnitID int64           `json:"stockunit_id" validate:"required,min=1"`
	CostPrice   decimal.Decimal `json:"costprice"    validate:"min=0"`
}

type GuessPriceResponse struct {
	Guess *decimal.Decimal `json:"guess"`
}

type CheckDigitsResponse struct {
	StockItemID int64  `json:"stockid"`
	CheckDigits string `json:"checkdigits"`
}

type PurgeResponse struct {
	Finished []int64 `json:"finished"`
}

// ─── Stock lines ─────────────────────────────────────────────────────────────

type StockLineRequest struct {
	Name        string           `json:"name"         validate:"required,max=30"`
	Location    string           `json:"location"     validate:"required,max=20"`
	LineType    string           `json:"linetype"     validate:"required,oneof=regular display continuous"`
	DeptID      *int64           `json:"dept_id"`
	StockTypeID *int64           `json:"stocktype_id"`
	Capacity    *int             `json:"capacity"     validate:"omitempty,min=1"`
	PullThru    *decimal.Decimal `json:"pullthru"`
	Note        string           `json:"note"`
}

type PutOnSaleRequest struct {
	StockItemID int64 `json:"stockid" validate:"required,min=1"`
}

// LineWasteRequest records waste against whatever a line is selling from.
type LineWasteRequest struct {
	Qty        decimal.Decimal `json:"qty"        validate:"gt=0"`
	RemoveCode string          `json:"removecode" validate:"required,max=8"`
}

type StockLineSummary struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Location    string             `json:"location"`
	LineType    string             `json:"linetype"`
	StockTypeID *int64             `json:"stocktype_id,omitempty"`
	Capacity    *int               `json:"capacity,omitempty"`
	OnDisplay   decimal.Decimal    `json:"on_display"`
	Remaining   decimal.Decimal    `json:"remaining"`
	Items       []ItemAvailability `json:"items"`
}

type RestockResponse struct {
	StockLineID int64         `json:"stockline_id"`
	Moves       []RestockMove `json:"moves"`
	Finished    []int64       `json:"finished"`
}

type RestockMove struct {
	StockItemID   int64           `json:"stockid"`
	Moved         decimal.Decimal `json:"moved"`
	NewDisplayQty decimal.Decimal `json:"displayqty"`
}

type AllocationResponse struct {
	Attached []Allocation `json:"attached"`
}

type Allocation struct {
	StockItemID int64 `json:"stockid"`
	StockLineID int64 `json:"stockline_id"`
}
