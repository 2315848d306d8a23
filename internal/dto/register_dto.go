package dto

import (
	"github.com/sde1000/quicktill-sub001/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Sales ───────────────────────────────────────────────────────────────────

// Every sale request names the open transaction to add to. A nil TransID
// starts a new transaction on the first line.

type SellStockLineRequest struct {
	TransID     *int64   `json:"trans_id"`
	StockLineID int64    `json:"stockline_id" validate:"required,min=1"`
	Items       int      `json:"items"        validate:"omitempty,min=1"`
	Modifiers   []string `json:"modifiers"    validate:"omitempty,dive,required"`
}

type SellStockTypeRequest struct {
	TransID     *int64   `json:"trans_id"`
	StockTypeID int64    `json:"stocktype_id" validate:"required,min=1"`
	Items       int      `json:"items"        validate:"omitempty,min=1"`
	Modifiers   []string `json:"modifiers"    validate:"omitempty,dive,required"`
}

type SellPLURequest struct {
	TransID   *int64           `json:"trans_id"`
	PLUID     int64            `json:"plu_id"    validate:"required,min=1"`
	Items     int              `json:"items"     validate:"omitempty,min=1"`
	Price     *decimal.Decimal `json:"price"`
	Modifiers []string         `json:"modifiers" validate:"omitempty,dive,required"`
}

type SellDepartmentRequest struct {
	TransID *int64          `json:"trans_id"`
	DeptID  int64           `json:"dept_id" validate:"required,min=1"`
	Items   int             `json:"items"   validate:"omitempty,min=1"`
	Price   decimal.Decimal `json:"price"   validate:"gt=0"`
	Text    string          `json:"text"    validate:"max=100"`
}

// KeypressRequest is one press of a line key. Modifiers pressed before
// it are carried by the client and applied in order.
type KeypressRequest struct {
	TransID   *int64   `json:"trans_id"`
	Keycode   string   `json:"keycode"   validate:"required,max=20"`
	Menukey   string   `json:"menukey"   validate:"max=20"`
	Items     int      `json:"items"     validate:"omitempty,min=1"`
	Modifiers []string `json:"modifiers" validate:"omitempty,dive,required"`
}

type BarcodeRequest struct {
	TransID   *int64   `json:"trans_id"`
	Code      string   `json:"code"      validate:"required,max=100"`
	Items     int      `json:"items"     validate:"omitempty,min=1"`
	Modifiers []string `json:"modifiers" validate:"omitempty,dive,required"`
}

type VoidRequest struct {
	TransID     *int64 `json:"trans_id"`
	TranslineID int64  `json:"transline_id" validate:"required,min=1"`
}

// ─── Transaction management ──────────────────────────────────────────────────

// PaymentRequest: a nil amount pays the balance.
type PaymentRequest struct {
	PayType string           `json:"paytype" validate:"required,max=8"`
	Amount  *decimal.Decimal `json:"amount"`
	Ref     string           `json:"ref"     validate:"max=100"`
}

type LinesRequest struct {
	Lines []int64 `json:"lines" validate:"required,min=1,dive,min=1"`
}

type MergeRequest struct {
	Into int64 `json:"into" validate:"required,min=1"`
}

type NotesRequest struct {
	Notes string `json:"notes" validate:"max=200"`
}

type TransactionFilter struct {
	SessionID int64 `form:"session"`
	Deferred  bool  `form:"deferred"`
	Open      *bool `form:"open"`
}

// ─── Responses ───────────────────────────────────────────────────────────────

type TransactionResponse struct {
	*model.Transaction
	Total   decimal.Decimal `json:"total"`
	Balance decimal.Decimal `json:"balance"`
}

func NewTransactionResponse(t *model.Transaction) *TransactionResponse {
	if t == nil {
		return nil
	}
	return &TransactionResponse{Transaction: t, Total: t.Total(), Balance: t.Balance()}
}

// SaleResponse is returned by every sale and void.
type SaleResponse struct {
	Transaction *TransactionResponse `json:"transaction"`
	LineID      int64                `json:"transline_id"`
	PullThru    bool                 `json:"pullthru,omitempty"`
	Finished    []int64              `json:"finished,omitempty"`
}

// KeypressResponse carries exactly one of: the sale made, the bindings to
// choose between, or a modifier to hold for the next key.
type KeypressResponse struct {
	Sale     *SaleResponse           `json:"sale,omitempty"`
	Menu     []model.KeyboardBinding `json:"menu,omitempty"`
	Modifier string                  `json:"modifier,omitempty"`
}

type PaymentResponse struct {
	Transaction *TransactionResponse `json:"transaction"`
	Change      decimal.Decimal      `json:"change"`
	Warning     string               `json:"warning,omitempty"`
}
