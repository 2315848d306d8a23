package dto

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type PLURequest struct {
	Description string           `json:"description" validate:"required,max=80"`
	Note        string           `json:"note"`
	DeptID      int64            `json:"dept_id"     validate:"required,min=1"`
	Price       *decimal.Decimal `json:"price"`
	AltPrice1   *decimal.Decimal `json:"altprice1"`
	AltPrice2   *decimal.Decimal `json:"altprice2"`
	AltPrice3   *decimal.Decimal `json:"altprice3"`
}

type ModifierRequest struct {
	Name      string          `json:"name"      validate:"required,max=30"`
	Behaviour string          `json:"behaviour" validate:"required,oneof=half double case mixer wine price"`
	Params    json.RawMessage `json:"params"`
}

// TargetRequest names exactly one thing a key or barcode sells.
type TargetRequest struct {
	StockLineID  *int64  `json:"stockline_id"`
	PLUID        *int64  `json:"plu_id"`
	StockTypeID  *int64  `json:"stocktype_id"`
	ModifierName *string `json:"modifier"`
}

type BindingRequest struct {
	Keycode string `json:"keycode" validate:"required,max=20"`
	Menukey string `json:"menukey" validate:"max=20"`
	TargetRequest
}

type BarcodeBindingRequest struct {
	Code string `json:"code" validate:"required,max=100"`
	TargetRequest
}

type SetConfigRequest struct {
	Value string `json:"value"`
}

type ConfigItemResponse struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Overridden  bool   `json:"overridden"`
}

// PriceCheckResponse describes what a barcode sells and for how much. It
// is served without side effects.
type PriceCheckResponse struct {
	Code        string           `json:"code"`
	Kind        string           `json:"kind"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}
