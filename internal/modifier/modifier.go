// Package modifier implements the site-configured sale transforms bound to
// keys: half pints, doubles, cases, mixers, wine glasses and fixed price
// overrides.
//
// A modifier never fails a sale by panicking or returning an error.
// Apply methods return the transformed Sale, or an *Incompatible reason
// that the register shows to the user before abandoning the sale.
package modifier

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"github.com/shopspring/decimal"
)

// Sale is the record a modifier transforms. Qty is the quantity removed
// from stock per item sold, in the stock type's base unit; Price is the
// charge for that quantity.
type Sale struct {
	StockType   *model.StockType
	Unit        *model.Unit
	Qty         decimal.Decimal
	Price       decimal.Decimal
	Description string
}

// Incompatible is a modifier's refusal to apply to a sale.
type Incompatible struct {
	Modifier string
	Reason   string
}

func (i *Incompatible) Error() string { return i.Reason }

func incompatible(name, format string, args ...any) *Incompatible {
	return &Incompatible{Modifier: name, Reason: fmt.Sprintf(format, args...)}
}

// Modifier transforms a sale from a stock line (or stock type binding)
// or from a price lookup.
type Modifier interface {
	Name() string
	ApplyToStockLine(line model.StockLine, sale Sale) (Sale, *Incompatible)
	ApplyToPLU(plu model.PLU, sale Sale) (Sale, *Incompatible)
}

type factory func(name string, params json.RawMessage) (Modifier, error)

var behaviours = map[string]factory{
	"half":   newHalf,
	"double": newDouble,
	"case":   newCase,
	"mixer":  newMixer,
	"wine":   newWine,
	"price":  newFixedPrice,
}

// Behaviours lists the behaviour names a modifier row may use.
func Behaviours() []string {
	out := make([]string, 0, len(behaviours))
	for name := range behaviours {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New builds the modifier described by a database row.
func New(m model.Modifier) (Modifier, error) {
	f, ok := behaviours[m.Behaviour]
	if !ok {
		return nil, fmt.Errorf("modifier %s: unknown behaviour %q", m.Name, m.Behaviour)
	}
	mod, err := f(m.Name, json.RawMessage(m.Params))
	if err != nil {
		return nil, fmt.Errorf("modifier %s: %w", m.Name, err)
	}
	return mod, nil
}

// decodeParams fills dst from raw, leaving defaults in place when raw is
// empty.
func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("bad params: %w", err)
	}
	return nil
}

func unitID(sale Sale) string {
	if sale.Unit == nil {
		return ""
	}
	return sale.Unit.ID
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func suffixed(desc, suffix string) string {
	if suffix == "" {
		return desc
	}
	if desc == "" {
		return suffix
	}
	return desc + " " + suffix
}

// stockOnly is embedded by behaviours that have no meaning for price
// lookups.
type stockOnly struct{ name string }

func (s stockOnly) Name() string { return s.name }

func (s stockOnly) ApplyToPLU(model.PLU, Sale) (Sale, *Incompatible) {
	return Sale{}, incompatible(s.name, "The %s modifier can only be used with stock", s.name)
}
