// Package permission is the catalogue of actions that can be restricted
// to particular users. Every permission is declared here with its
// description; the catalogue is written to the database at start-up so
// that it can be granted to users and groups.
package permission

import (
	"sort"

	"github.com/sde1000/quicktill-sub001/internal/model"
)

// Permission identifies a restricted action.
type Permission struct {
	ID          string
	Description string
}

var catalogue = map[string]Permission{}

func declare(id, description string) Permission {
	if _, dup := catalogue[id]; dup {
		panic("permission declared twice: " + id)
	}
	p := Permission{ID: id, Description: description}
	catalogue[id] = p
	return p
}

// Register.
var (
	Sell           = declare("sell", "Sell items from stock lines, price lookups and departments")
	Void           = declare("void", "Void lines from closed transactions")
	TakePayment    = declare("take-payment", "Record payments against transactions")
	CancelTrans    = declare("cancel-trans", "Cancel open transactions or lines")
	DeferTrans     = declare("defer-trans", "Defer transactions to the next session")
	MergeTrans     = declare("merge-trans", "Merge and split open transactions")
	RecallTrans    = declare("recall-trans", "Look at transactions from any session")
	EditTransNotes = declare("edit-trans-notes", "Change the notes on a transaction")
	SellDepartment = declare("sell-dept", "Sell items at a price entered by hand")
	OverridePrice  = declare("override-price", "Sell a price lookup at a price entered by hand")
	ScanBarcode    = declare("scan-barcode", "Sell items by scanning their barcode")
	TerminalEvents = declare("read-terminal-events", "Receive barcode and user token events")
)

// Sessions.
var (
	StartSession   = declare("start-session", "Start a session")
	EndSession     = declare("end-session", "End a session")
	RecordTakings  = declare("record-takings", "Record the takings for a session")
	EditTakings    = declare("edit-takings", "Change the recorded takings for a session")
	SessionSummary = declare("session-summary", "Display the summary of any session")
	PrintSummary   = declare("print-session-summary", "Print a session summary")
)

// Stock.
var (
	ReadStock       = declare("read-stock", "View stock items, types and lines")
	ReceiveDelivery = declare("deliveries", "Create, edit and confirm deliveries")
	EditSuppliers   = declare("edit-supplier", "Create and edit suppliers")
	EditStockTypes  = declare("edit-stocktype", "Create and edit stock types")
	RepriceStock    = declare("reprice", "Change sale prices of stock")
	FinishStock     = declare("finish-stock", "Finish stock items")
	RecordWaste     = declare("record-waste", "Record waste against stock items and lines")
	AnnotateStock   = declare("annotate", "Add annotations to stock items")
	EditStockLines  = declare("alter-stocklines", "Create, edit and delete stock lines")
	UseStock        = declare("use-stock", "Put stock on sale and take it off sale")
	RestockDisplay  = declare("restock", "Move stock onto display lines")
	PurgeStock      = declare("stock-purge", "Finish fully used stock items")
	EditUnits       = declare("edit-units", "Create units and stock units")
	EditDepartments = declare("edit-departments", "Create and edit departments and VAT bands")
	EditPLUs        = declare("alter-plu", "Create, edit and delete price lookups")
	EditModifiers   = declare("alter-modifier", "Create, edit and delete modifiers")
	EditKeyboard    = declare("edit-keyboard", "Change keyboard bindings and barcodes")
	EditPayTypes    = declare("edit-paytypes", "Create payment methods")
	PriceGuess      = declare("price-guess", "Ask for a suggested sale price")
	ShowCheckDigits = declare("check-digits", "Show the check digits of stock items")
)

// Administration.
var (
	ManageUsers = declare("edit-user", "Create and edit users and their tokens")
	ListUsers   = declare("list-users", "List users")
	GrantPerms  = declare("grant-permission", "Grant permissions to users")
	EditConfig  = declare("edit-config", "Change site configuration")
	ReadConfig  = declare("read-config", "Read site configuration")
	CheckDB     = declare("check-db", "Check database integrity")
	FlushDB     = declare("flush-db", "Remove all data from the database")
)

// All returns the catalogue sorted by id.
func All() []Permission {
	out := make([]Permission, 0, len(catalogue))
	for _, p := range catalogue {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup returns the permission with id.
func Lookup(id string) (Permission, bool) {
	p, ok := catalogue[id]
	return p, ok
}

// Models converts the catalogue into rows for the permissions table.
func Models() []model.Permission {
	all := All()
	out := make([]model.Permission, len(all))
	for i, p := range all {
		out[i] = model.Permission{ID: p.ID, Description: p.Description}
	}
	return out
}

// Holder is anything whose permissions can be checked.
type Holder interface {
	IsSuperuser() bool
	HasPermission(id string) bool
}

// Allowed is the single gatekeeper: superusers pass everything, everyone
// else needs the permission itself. A zero Permission means the action is
// unrestricted.
func Allowed(h Holder, p Permission) bool {
	if p.ID == "" {
		return true
	}
	if h == nil {
		return false
	}
	return h.IsSuperuser() || h.HasPermission(p.ID)
}

// Set is a Holder backed by a set of permission ids.
type Set struct {
	Superuser bool
	IDs       map[string]bool
}

// NewSet builds a Set from a list of ids.
func NewSet(superuser bool, ids []string) Set {
	s := Set{Superuser: superuser, IDs: make(map[string]bool, len(ids))}
	for _, id := range ids {
		s.IDs[id] = true
	}
	return s
}

func (s Set) IsSuperuser() bool            { return s.Superuser }
func (s Set) HasPermission(id string) bool { return s.IDs[id] }
