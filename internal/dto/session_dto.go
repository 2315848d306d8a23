package dto

import (
	"github.com/sde1000/quicktill-sub001/internal/model"

	"github.com/shopspring/decimal"
)

type StartSessionRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// TotalsRequest declares the counted takings per payment method.
type TotalsRequest struct {
	Totals map[string]decimal.Decimal `json:"totals" validate:"required,min=1"`
}

type SessionListFilter struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=20" validate:"min=1,max=200"`
}

type SessionListResponse struct {
	Data  []model.Session `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

type PayTypeTotal struct {
	PayType     string           `json:"paytype"`
	Description string           `json:"description"`
	TillTotal   decimal.Decimal  `json:"till_total"`
	Declared    *decimal.Decimal `json:"declared,omitempty"`
	Difference  *decimal.Decimal `json:"difference,omitempty"`
}

type DeptTotal struct {
	DeptID      int64           `json:"dept_id"`
	Description string          `json:"description"`
	Total       decimal.Decimal `json:"total"`
}

type SessionSummary struct {
	Session     model.Session   `json:"session"`
	PayTypes    []PayTypeTotal  `json:"paytypes"`
	Departments []DeptTotal     `json:"departments"`
	Total       decimal.Decimal `json:"total"`
	Declared    decimal.Decimal `json:"declared"`
}

type PayTypeRequest struct {
	ID          string `json:"id"          validate:"required,max=8"`
	Description string `json:"description" validate:"required"`
	Order       int    `json:"order"`
	ChangeGiven bool   `json:"change_given"`
}
