package modifier

import (
	"encoding/json"
	"fmt"

	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/pricing"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// half: {"units": ["pt"], "suffix": "half pint"}
type half struct {
	stockOnly
	Units  []string `json:"units"`
	Suffix string   `json:"suffix"`
}

func newHalf(name string, raw json.RawMessage) (Modifier, error) {
	m := &half{stockOnly: stockOnly{name}, Units: []string{"pt"}, Suffix: "half pint"}
	return m, decodeParams(raw, m)
}

func (m *half) ApplyToStockLine(_ model.StockLine, sale Sale) (Sale, *Incompatible) {
	if !contains(m.Units, unitID(sale)) {
		return sale, incompatible(m.name, "The %s modifier can only be used with stock sold by the pint", m.name)
	}
	sale.Qty = sale.Qty.Div(two)
	sale.Price = sale.Price.Div(two)
	sale.Description = suffixed(sale.Description, m.Suffix)
	return sale, nil
}

// double: {"units": ["25ml", "50ml"], "adjustment": "0.00", "suffix": "double"}
type double struct {
	stockOnly
	Units      []string        `json:"units"`
	Adjustment decimal.Decimal `json:"adjustment"`
	Suffix     string          `json:"suffix"`
}

func newDouble(name string, raw json.RawMessage) (Modifier, error) {
	m := &double{stockOnly: stockOnly{name}, Units: []string{"25ml", "50ml"}, Suffix: "double"}
	return m, decodeParams(raw, m)
}

func (m *double) ApplyToStockLine(_ model.StockLine, sale Sale) (Sale, *Incompatible) {
	if !contains(m.Units, unitID(sale)) {
		return sale, incompatible(m.name, "The %s modifier can only be used with spirits", m.name)
	}
	sale.Qty = sale.Qty.Mul(two)
	sale.Price = sale.Price.Mul(two).Sub(m.Adjustment)
	sale.Description = suffixed(sale.Description, m.Suffix)
	return sale, nil
}

// case: {"sizes": {"Manufacturer": 24}, "default": 0, "units": ["can", "bottle"]}
type caseOf struct {
	stockOnly
	Sizes   map[string]int `json:"sizes"`
	Default int            `json:"default"`
	Units   []string       `json:"units"`
}

func newCase(name string, raw json.RawMessage) (Modifier, error) {
	m := &caseOf{stockOnly: stockOnly{name}}
	return m, decodeParams(raw, m)
}

func (m *caseOf) ApplyToStockLine(_ model.StockLine, sale Sale) (Sale, *Incompatible) {
	if len(m.Units) > 0 && !contains(m.Units, unitID(sale)) {
		return sale, incompatible(m.name, "The %s modifier can't be used with this stock", m.name)
	}
	size := m.Default
	if sale.StockType != nil {
		if n, ok := m.Sizes[sale.StockType.Manufacturer]; ok {
			size = n
		}
	}
	if size <= 0 {
		return sale, incompatible(m.name, "No case size is known for this stock")
	}
	n := decimal.NewFromInt(int64(size))
	sale.Qty = sale.Qty.Mul(n)
	sale.Price = sale.Price.Mul(n)
	sale.Description = suffixed(sale.Description, fmt.Sprintf("case of %d", size))
	return sale, nil
}

// mixer: {"unit": "ml", "units_per_item": "568", "qty": "100", "price": "0.50"}
type mixer struct {
	stockOnly
	Unit         string          `json:"unit"`
	UnitsPerItem decimal.Decimal `json:"units_per_item"`
	Qty          decimal.Decimal `json:"qty"`
	Price        decimal.Decimal `json:"price"`
	Suffix       string          `json:"suffix"`
}

func newMixer(name string, raw json.RawMessage) (Modifier, error) {
	m := &mixer{
		stockOnly:    stockOnly{name},
		Unit:         "ml",
		UnitsPerItem: decimal.NewFromInt(568),
		Qty:          decimal.NewFromInt(100),
		Price:        decimal.New(50, -2),
		Suffix:       "mixer",
	}
	return m, decodeParams(raw, m)
}

func (m *mixer) ApplyToStockLine(_ model.StockLine, sale Sale) (Sale, *Incompatible) {
	if sale.Unit == nil || sale.Unit.ID != m.Unit || !sale.Unit.UnitsPerItem.Equal(m.UnitsPerItem) {
		return sale, incompatible(m.name, "The %s modifier can only be used with soft drinks", m.name)
	}
	sale.Qty = m.Qty
	sale.Price = m.Price
	sale.Description = suffixed(sale.Description, m.Suffix)
	return sale, nil
}

// wine: {"dept": 9, "altprice": 1, "size": "175", "units_per_item": "750", "suffix": "175ml glass"}
//
// On a price lookup in the wine department the alternative price is
// chosen. On a stock line selling wine by the ml the glass size is sold,
// priced pro rata from the bottle price and rounded up to ten pence.
type wine struct {
	name         string
	Dept         int64           `json:"dept"`
	AltPrice     int             `json:"altprice"`
	Size         decimal.Decimal `json:"size"`
	UnitsPerItem decimal.Decimal `json:"units_per_item"`
	Suffix       string          `json:"suffix"`
}

func newWine(name string, raw json.RawMessage) (Modifier, error) {
	m := &wine{name: name, UnitsPerItem: decimal.NewFromInt(750)}
	if err := decodeParams(raw, m); err != nil {
		return nil, err
	}
	if m.AltPrice < 0 || m.AltPrice > 3 {
		return nil, fmt.Errorf("altprice must be 1, 2 or 3")
	}
	if m.Suffix == "" {
		m.Suffix = name
	}
	return m, nil
}

func (m *wine) Name() string { return m.name }

func (m *wine) ApplyToPLU(plu model.PLU, sale Sale) (Sale, *Incompatible) {
	if plu.DeptID != m.Dept {
		return sale, incompatible(m.name, "The %s modifier can only be used with wine", m.name)
	}
	if m.AltPrice == 0 {
		return sale, incompatible(m.name, "The %s modifier has no price for price lookups", m.name)
	}
	price := plu.AltPrice(m.AltPrice)
	if price == nil {
		return sale, incompatible(m.name, "%s has no price for a %s", plu.Description, m.Suffix)
	}
	sale.Price = *price
	sale.Description = suffixed(sale.Description, m.Suffix)
	return sale, nil
}

func (m *wine) ApplyToStockLine(line model.StockLine, sale Sale) (Sale, *Incompatible) {
	if line.LineType != model.LineContinuous || sale.Unit == nil || sale.Unit.ID != "ml" ||
		!sale.Unit.UnitsPerItem.Equal(m.UnitsPerItem) || m.Size.Sign() <= 0 || sale.Qty.Sign() <= 0 {
		return sale, incompatible(m.name, "The %s modifier can only be used with wine sold by the glass", m.name)
	}
	sale.Price = pricing.RoundUpTo10p(sale.Price.Mul(m.Size).Div(sale.Qty))
	sale.Qty = m.Size
	sale.Description = suffixed(sale.Description, m.Suffix)
	return sale, nil
}

// price: {"price": "3.00", "suffix": ""}
type fixedPrice struct {
	name   string
	Price  *decimal.Decimal `json:"price"`
	Suffix string           `json:"suffix"`
}

func newFixedPrice(name string, raw json.RawMessage) (Modifier, error) {
	m := &fixedPrice{name: name}
	if err := decodeParams(raw, m); err != nil {
		return nil, err
	}
	if m.Price == nil {
		return nil, fmt.Errorf("price is required")
	}
	return m, nil
}

func (m *fixedPrice) Name() string { return m.name }

func (m *fixedPrice) apply(sale Sale) Sale {
	sale.Price = *m.Price
	sale.Description = suffixed(sale.Description, m.Suffix)
	return sale
}

func (m *fixedPrice) ApplyToStockLine(_ model.StockLine, sale Sale) (Sale, *Incompatible) {
	return m.apply(sale), nil
}

func (m *fixedPrice) ApplyToPLU(_ model.PLU, sale Sale) (Sale, *Incompatible) {
	return m.apply(sale), nil
}
