package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Violation is one broken ledger invariant found by CheckIntegrity.
type Violation struct {
	Check  string `json:"check"`
	Detail string `json:"detail"`
}

type integrityCheck struct {
	name  string
	query string
}

// Each query returns one row per offending record with a single text
// column describing it.
var integrityChecks = []integrityCheck{
	{"transaction closed iff balanced", `
SELECT 'transaction ' || t.id || ' closed=' || t.closed || ' lines=' || COALESCE(l.total, 0) || ' payments=' || COALESCE(p.total, 0)
FROM transactions t
LEFT JOIN (SELECT transid, SUM(items * amount) AS total, COUNT(*) AS n FROM translines GROUP BY transid) l ON l.transid = t.id
LEFT JOIN (SELECT transid, SUM(amount) AS total FROM payments GROUP BY transid) p ON p.transid = t.id
WHERE t.closed <> (COALESCE(l.n, 0) > 0 AND COALESCE(l.total, 0) = COALESCE(p.total, 0))`},
	{"at most one current session", `
SELECT 'sessions in progress: ' || string_agg(id::text, ', ')
FROM sessions WHERE endtime IS NULL
HAVING COUNT(*) > 1`},
	{"totals only on ended sessions", `
SELECT 'session ' || s.id || ' has totals but is still in progress'
FROM sessions s WHERE s.endtime IS NULL AND EXISTS (SELECT 1 FROM sesstotals st WHERE st.sessionid = s.id)`},
	{"deferred transactions have no payments", `
SELECT 'transaction ' || t.id || ' is deferred with payments'
FROM transactions t WHERE t.sessionid IS NULL AND EXISTS (SELECT 1 FROM payments p WHERE p.transid = t.id)`},
	{"display line stock type", `
SELECT 'stock ' || s.id || ' on display line ' || l.id || ' has type ' || s.stock_type_id || ', line has ' || COALESCE(l.stocktype::text, 'none')
FROM stockonsale sos
JOIN stock s ON s.id = sos.stockid
JOIN stocklines l ON l.id = sos.stocklineid
WHERE l.linetype = 'display' AND (l.stocktype IS NULL OR l.stocktype <> s.stock_type_id)`},
	{"regular line has at most one item", `
SELECT 'regular line ' || sos.stocklineid || ' has ' || COUNT(*) || ' items'
FROM stockonsale sos JOIN stocklines l ON l.id = sos.stocklineid
WHERE l.linetype = 'regular'
GROUP BY sos.stocklineid HAVING COUNT(*) > 1`},
	{"finished items are not on sale", `
SELECT 'stock ' || s.id || ' is finished but still on line ' || sos.stocklineid
FROM stockonsale sos JOIN stock s ON s.id = sos.stockid
WHERE s.finished IS NOT NULL`},
	{"voids mirror their original", `
SELECT 'void line ' || v.id || ' (' || v.items || ' @ ' || v.amount || ') does not mirror line ' || o.id || ' (' || o.items || ' @ ' || o.amount || ')'
FROM translines v JOIN translines o ON o.id = v.voided_of
WHERE v.items <> -o.items OR v.amount <> o.amount OR v.transcode <> 'V'`},
	{"binding has exactly one target", `
SELECT 'keyboard binding ' || id || ' (' || keycode || '/' || menukey || ')'
FROM keyboard
WHERE (stocklineid IS NOT NULL)::int + (pluid IS NOT NULL)::int + (stocktypeid IS NOT NULL)::int + (modifier IS NOT NULL)::int <> 1
UNION ALL
SELECT 'barcode ' || code
FROM barcodes
WHERE (stocklineid IS NOT NULL)::int + (pluid IS NOT NULL)::int + (stocktypeid IS NOT NULL)::int + (modifier IS NOT NULL)::int <> 1`},
}

// CheckIntegrity runs every ledger invariant check and returns the
// violations found.
func CheckIntegrity(ctx context.Context, db *gorm.DB) ([]Violation, error) {
	var out []Violation
	for _, c := range integrityChecks {
		var details []string
		if err := conn(ctx, db).Raw(c.query).Scan(&details).Error; err != nil {
			return nil, fmt.Errorf("check %q: %w", c.name, err)
		}
		for _, d := range details {
			out = append(out, Violation{Check: c.name, Detail: d})
		}
	}
	return out, nil
}
