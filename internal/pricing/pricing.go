// Package pricing holds the money helpers shared by the register and the
// stock engine, and the per-department sale price guess policy.
package pricing

import (
	"time"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"github.com/shopspring/decimal"
)

var (
	// Penny is the currency's minor unit.
	Penny = decimal.New(1, -2)
	// TenPence is the step derived prices are rounded up to.
	TenPence = decimal.New(1, -1)

	hundred = decimal.NewFromInt(100)
)

// Money quantises d to the minor unit.
func Money(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// RoundUp rounds d away from zero to a multiple of step.
func RoundUp(d, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return d
	}
	q := d.Div(step)
	if d.Sign() < 0 {
		return q.Floor().Mul(step)
	}
	return q.Ceil().Mul(step)
}

// RoundUpTo10p is RoundUp to the nearest ten pence.
func RoundUpTo10p(d decimal.Decimal) decimal.Decimal { return RoundUp(d, TenPence) }

// Guesser suggests a sale price for one item of stocktype bought in
// stockunit at cost. A nil result means no suggestion.
type Guesser interface {
	Guess(st model.StockType, su model.StockUnit, cost decimal.Decimal) *decimal.Decimal
}

// GuesserFunc adapts a function to Guesser.
type GuesserFunc func(st model.StockType, su model.StockUnit, cost decimal.Decimal) *decimal.Decimal

func (f GuesserFunc) Guess(st model.StockType, su model.StockUnit, cost decimal.Decimal) *decimal.Decimal {
	return f(st, su, cost)
}

// Policy dispatches guesses to a per-department Guesser, falling back to
// a default for departments without one.
type Policy struct {
	byDept   map[int64]Guesser
	fallback Guesser
}

func NewPolicy(fallback Guesser) *Policy {
	return &Policy{byDept: make(map[int64]Guesser), fallback: fallback}
}

// Register sets the guesser for a department.
func (p *Policy) Register(deptID int64, g Guesser) { p.byDept[deptID] = g }

func (p *Policy) Guess(st model.StockType, su model.StockUnit, cost decimal.Decimal) *decimal.Decimal {
	if g, ok := p.byDept[st.DeptID]; ok {
		return g.Guess(st, su, cost)
	}
	if p.fallback == nil {
		return nil
	}
	return p.fallback.Guess(st, su, cost)
}

// VATInclusive is the usual pub policy: cost × markup spread over the
// item's size in sale units, plus VAT at the department's band, rounded
// up to ten pence. st must carry its Department with VatBand and its Unit.
func VATInclusive(markup decimal.Decimal, now func() time.Time) Guesser {
	if now == nil {
		now = time.Now
	}
	return GuesserFunc(func(st model.StockType, su model.StockUnit, cost decimal.Decimal) *decimal.Decimal {
		if su.Size.Sign() <= 0 || st.Department == nil || st.Department.VatBand == nil {
			return nil
		}
		perItem := decimal.NewFromInt(1)
		if st.Unit != nil && st.Unit.UnitsPerItem.Sign() > 0 {
			perItem = st.Unit.UnitsPerItem
		}
		rate := st.Department.VatBand.RateAt(now())
		price := cost.Mul(markup).Div(su.Size).Mul(perItem).
			Mul(decimal.NewFromInt(1).Add(rate.Div(hundred)))
		guess := RoundUpTo10p(price)
		return &guess
	})
}
