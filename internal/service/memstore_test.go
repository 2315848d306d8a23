package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory store ──────────────────────────────────────────────────────────

// memStore implements every repository over maps. Rows are copied in and
// out, and relations are loaded the way the GORM repositories preload
// them, so services see what they would see against Postgres.
type memStore struct {
	seq int64

	units       map[string]model.Unit
	stockUnits  map[int64]model.StockUnit
	vatBands    map[string]model.VatBand
	vatRates    []model.VatRate
	depts       map[int64]model.Department
	suppliers   map[int64]model.Supplier
	deliveries  map[int64]model.Delivery
	stockTypes  map[int64]model.StockType
	items       map[int64]model.StockItem
	stockOuts   []model.StockOut
	annotations []model.StockAnnotation
	removeCodes []model.RemoveCode
	finishCodes []model.FinishCode
	lines       map[int64]model.StockLine
	onSale      map[int64]model.StockOnSale
	plus        map[int64]model.PLU
	modifiers   map[string]model.Modifier
	bindings    map[int64]model.KeyboardBinding
	barcodes    map[string]model.Barcode
	sessions    map[int64]model.Session
	totals      []model.SessionTotal
	exports     map[int64]model.SessionExport
	trans       map[int64]model.Transaction
	translines  map[int64]model.Transline
	payments    map[int64]model.Payment
	payTypes    map[string]model.PayType
	users       map[int64]model.User
	tokens      map[string]model.UserToken
	perms       map[string]model.Permission
	groups      map[string]model.Group
	userPerms   map[int64][]string
	userGroups  map[int64][]string
	config      map[string]model.ConfigItem
}

func newMemStore() *memStore {
	return &memStore{
		units:      map[string]model.Unit{},
		stockUnits: map[int64]model.StockUnit{},
		vatBands:   map[string]model.VatBand{},
		depts:      map[int64]model.Department{},
		suppliers:  map[int64]model.Supplier{},
		deliveries: map[int64]model.Delivery{},
		stockTypes: map[int64]model.StockType{},
		items:      map[int64]model.StockItem{},
		lines:      map[int64]model.StockLine{},
		onSale:     map[int64]model.StockOnSale{},
		plus:       map[int64]model.PLU{},
		modifiers:  map[string]model.Modifier{},
		bindings:   map[int64]model.KeyboardBinding{},
		barcodes:   map[string]model.Barcode{},
		sessions:   map[int64]model.Session{},
		exports:    map[int64]model.SessionExport{},
		trans:      map[int64]model.Transaction{},
		translines: map[int64]model.Transline{},
		payments:   map[int64]model.Payment{},
		payTypes:   map[string]model.PayType{},
		users:      map[int64]model.User{},
		tokens:     map[string]model.UserToken{},
		perms:      map[string]model.Permission{},
		groups:     map[string]model.Group{},
		userPerms:  map[int64][]string{},
		userGroups: map[int64][]string{},
		config:     map[string]model.ConfigItem{},
	}
}

var (
	_ repository.UnitRepository        = (*memStore)(nil)
	_ repository.DepartmentRepository  = (*memStore)(nil)
	_ repository.DeliveryRepository    = (*memStore)(nil)
	_ repository.StockTypeRepository   = (*memStore)(nil)
	_ repository.StockRepository       = (*memStore)(nil)
	_ repository.StockLineRepository   = (*memStore)(nil)
	_ repository.PLURepository         = (*memStore)(nil)
	_ repository.KeyboardRepository    = (*memStore)(nil)
	_ repository.TransactionRepository = (*memStore)(nil)
	_ repository.SessionRepository     = (*memStore)(nil)
	_ repository.UserRepository        = (*memStore)(nil)
	_ repository.ConfigRepository      = (*memStore)(nil)
)

// repositories wires the store into every slot of Repositories.
func (m *memStore) repositories(clock Clock) Repositories {
	return Repositories{
		Units:        m,
		Departments:  m,
		Deliveries:   m,
		StockTypes:   m,
		Stock:        m,
		StockLines:   m,
		PLUs:         m,
		Keyboard:     m,
		Transactions: m,
		Sessions:     m,
		Users:        m,
		Config:       m,
		Clock:        clock,
	}
}

func (m *memStore) next() int64 {
	m.seq++
	return m.seq
}

var (
	errNotFound  = gorm.ErrRecordNotFound
	errDuplicate = gorm.ErrDuplicatedKey
)

func sortedKeys[K ~int64 | ~string, V any](mp map[K]V) []K {
	keys := make([]K, 0, len(mp))
	for k := range mp {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ── Units ────────────────────────────────────────────────────────────────────

func (m *memStore) ListUnits(context.Context) ([]model.Unit, error) {
	out := []model.Unit{}
	for _, k := range sortedKeys(m.units) {
		out = append(out, m.units[k])
	}
	return out, nil
}

func (m *memStore) FindUnit(_ context.Context, id string) (*model.Unit, error) {
	u, ok := m.units[id]
	if !ok {
		return nil, errNotFound
	}
	return &u, nil
}

func (m *memStore) CreateUnit(_ context.Context, u *model.Unit) error {
	if _, ok := m.units[u.ID]; ok {
		return errDuplicate
	}
	m.units[u.ID] = *u
	return nil
}

func (m *memStore) stockUnit(su model.StockUnit) model.StockUnit {
	if u, ok := m.units[su.UnitID]; ok {
		su.Unit = &u
	}
	return su
}

func (m *memStore) ListStockUnits(context.Context) ([]model.StockUnit, error) {
	out := []model.StockUnit{}
	for _, k := range sortedKeys(m.stockUnits) {
		out = append(out, m.stockUnit(m.stockUnits[k]))
	}
	return out, nil
}

func (m *memStore) FindStockUnit(_ context.Context, id int64) (*model.StockUnit, error) {
	su, ok := m.stockUnits[id]
	if !ok {
		return nil, errNotFound
	}
	su = m.stockUnit(su)
	return &su, nil
}

func (m *memStore) CreateStockUnit(_ context.Context, su *model.StockUnit) error {
	for _, other := range m.stockUnits {
		if other.Name == su.Name {
			return errDuplicate
		}
	}
	su.ID = m.next()
	row := *su
	row.Unit = nil
	m.stockUnits[su.ID] = row
	return nil
}

// ── Departments and VAT ──────────────────────────────────────────────────────

func (m *memStore) vatBand(band string) (model.VatBand, bool) {
	v, ok := m.vatBands[band]
	if !ok {
		return v, false
	}
	v.Rates = nil
	for _, r := range m.vatRates {
		if r.Band == band {
			v.Rates = append(v.Rates, r)
		}
	}
	return v, true
}

func (m *memStore) ListDepartments(context.Context) ([]model.Department, error) {
	out := []model.Department{}
	for _, k := range sortedKeys(m.depts) {
		out = append(out, m.depts[k])
	}
	return out, nil
}

func (m *memStore) FindDepartment(_ context.Context, id int64) (*model.Department, error) {
	d, ok := m.depts[id]
	if !ok {
		return nil, errNotFound
	}
	if v, ok := m.vatBand(d.VatBandID); ok {
		d.VatBand = &v
	}
	return &d, nil
}

func (m *memStore) CreateDepartment(_ context.Context, d *model.Department) error {
	if _, ok := m.depts[d.ID]; ok {
		return errDuplicate
	}
	row := *d
	row.VatBand = nil
	m.depts[d.ID] = row
	return nil
}

func (m *memStore) UpdateDepartment(_ context.Context, d *model.Department) error {
	row := *d
	row.VatBand = nil
	m.depts[d.ID] = row
	return nil
}

func (m *memStore) ListVatBands(context.Context) ([]model.VatBand, error) {
	out := []model.VatBand{}
	for _, k := range sortedKeys(m.vatBands) {
		v, _ := m.vatBand(k)
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore) FindVatBand(_ context.Context, band string) (*model.VatBand, error) {
	v, ok := m.vatBand(band)
	if !ok {
		return nil, errNotFound
	}
	return &v, nil
}

func (m *memStore) CreateVatBand(_ context.Context, v *model.VatBand) error {
	if _, ok := m.vatBands[v.Band]; ok {
		return errDuplicate
	}
	row := *v
	row.Rates = nil
	m.vatBands[v.Band] = row
	return nil
}

func (m *memStore) CreateVatRate(_ context.Context, v *model.VatRate) error {
	for _, r := range m.vatRates {
		if r.Band == v.Band && time.Time(r.Active).Equal(time.Time(v.Active)) {
			return errDuplicate
		}
	}
	v.ID = m.next()
	m.vatRates = append(m.vatRates, *v)
	return nil
}

// ── Suppliers and deliveries ─────────────────────────────────────────────────

func (m *memStore) ListSuppliers(context.Context) ([]model.Supplier, error) {
	out := []model.Supplier{}
	for _, k := range sortedKeys(m.suppliers) {
		out = append(out, m.suppliers[k])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) FindSupplier(_ context.Context, id int64) (*model.Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return nil, errNotFound
	}
	return &s, nil
}

func (m *memStore) CreateSupplier(_ context.Context, s *model.Supplier) error {
	for _, other := range m.suppliers {
		if other.Name == s.Name {
			return errDuplicate
		}
	}
	s.ID = m.next()
	m.suppliers[s.ID] = *s
	return nil
}

func (m *memStore) UpdateSupplier(_ context.Context, s *model.Supplier) error {
	m.suppliers[s.ID] = *s
	return nil
}

func (m *memStore) delivery(d model.Delivery) model.Delivery {
	if s, ok := m.suppliers[d.SupplierID]; ok {
		d.Supplier = &s
	}
	return d
}

func (m *memStore) ListDeliveries(_ context.Context, checked *bool) ([]model.Delivery, error) {
	out := []model.Delivery{}
	keys := sortedKeys(m.deliveries)
	for i := len(keys) - 1; i >= 0; i-- {
		d := m.deliveries[keys[i]]
		if checked != nil && d.Checked != *checked {
			continue
		}
		out = append(out, m.delivery(d))
	}
	return out, nil
}

func (m *memStore) FindDelivery(_ context.Context, id int64) (*model.Delivery, error) {
	d, ok := m.deliveries[id]
	if !ok {
		return nil, errNotFound
	}
	d = m.delivery(d)
	return &d, nil
}

func (m *memStore) CreateDelivery(_ context.Context, d *model.Delivery) error {
	d.ID = m.next()
	row := *d
	row.Supplier, row.Items = nil, nil
	m.deliveries[d.ID] = row
	return nil
}

func (m *memStore) UpdateDelivery(_ context.Context, d *model.Delivery) error {
	row := *d
	row.Supplier, row.Items = nil, nil
	m.deliveries[d.ID] = row
	return nil
}

func (m *memStore) DeleteDelivery(_ context.Context, id int64) error {
	delete(m.deliveries, id)
	return nil
}

// ── Stock types ──────────────────────────────────────────────────────────────

func (m *memStore) stockType(st model.StockType, withDept bool) model.StockType {
	if u, ok := m.units[st.UnitID]; ok {
		st.Unit = &u
	}
	if withDept {
		if d, ok := m.depts[st.DeptID]; ok {
			if v, ok := m.vatBand(d.VatBandID); ok {
				d.VatBand = &v
			}
			st.Department = &d
		}
	}
	return st
}

func (m *memStore) ListStockTypes(_ context.Context, f repository.StockTypeFilter) ([]model.StockType, error) {
	out := []model.StockType{}
	search := strings.ToLower(f.Search)
	for _, k := range sortedKeys(m.stockTypes) {
		st := m.stockTypes[k]
		if f.DeptID != 0 && st.DeptID != f.DeptID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(st.Manufacturer), search) &&
			!strings.Contains(strings.ToLower(st.Name), search) &&
			!strings.Contains(strings.ToLower(st.ShortName), search) {
			continue
		}
		out = append(out, m.stockType(st, false))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Manufacturer != out[j].Manufacturer {
			return out[i].Manufacturer < out[j].Manufacturer
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memStore) FindStockType(_ context.Context, id int64) (*model.StockType, error) {
	st, ok := m.stockTypes[id]
	if !ok {
		return nil, errNotFound
	}
	st = m.stockType(st, true)
	return &st, nil
}

func (m *memStore) CreateStockType(_ context.Context, st *model.StockType) error {
	for _, other := range m.stockTypes {
		if other.Manufacturer == st.Manufacturer && other.Name == st.Name {
			return errDuplicate
		}
	}
	st.ID = m.next()
	row := *st
	row.Unit, row.Department = nil, nil
	m.stockTypes[st.ID] = row
	return nil
}

func (m *memStore) UpdateStockType(_ context.Context, st *model.StockType) error {
	row := *st
	row.Unit, row.Department = nil, nil
	m.stockTypes[st.ID] = row
	return nil
}

// ── Stock items ──────────────────────────────────────────────────────────────

// used is the net quantity removed from an item.
func (m *memStore) used(itemID int64) decimal.Decimal {
	total := decimal.Zero
	for _, so := range m.stockOuts {
		if so.StockItemID == itemID {
			total = total.Add(so.Qty)
		}
	}
	return total
}

func (m *memStore) stockItem(item model.StockItem) model.StockItem {
	item.Used = m.used(item.ID)
	if st, ok := m.stockTypes[item.StockTypeID]; ok {
		st = m.stockType(st, false)
		item.StockType = &st
	}
	if d, ok := m.deliveries[item.DeliveryID]; ok {
		item.Delivery = &d
	}
	return item
}

func (m *memStore) FindStockItem(_ context.Context, id int64) (*model.StockItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, errNotFound
	}
	item = m.stockItem(item)
	return &item, nil
}

func (m *memStore) ListStockItems(_ context.Context, f repository.StockItemFilter) ([]model.StockItem, error) {
	out := []model.StockItem{}
	for _, k := range sortedKeys(m.items) {
		item := m.items[k]
		if len(f.IDs) > 0 && !containsID(f.IDs, item.ID) {
			continue
		}
		if f.DeliveryID != nil && item.DeliveryID != *f.DeliveryID {
			continue
		}
		if f.StockTypeID != nil && item.StockTypeID != *f.StockTypeID {
			continue
		}
		if f.Live && (item.Finished != nil || !m.deliveries[item.DeliveryID].Checked) {
			continue
		}
		if _, attached := m.onSale[item.ID]; f.Unallocated && attached {
			continue
		}
		out = append(out, m.stockItem(item))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].BestBefore, out[j].BestBefore
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !time.Time(*a).Equal(time.Time(*b)):
			return time.Time(*a).Before(time.Time(*b))
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func stripItem(item model.StockItem) model.StockItem {
	item.Used = decimal.Zero
	item.Delivery, item.StockType, item.StockUnit = nil, nil, nil
	return item
}

func (m *memStore) CreateStockItem(_ context.Context, item *model.StockItem) error {
	item.ID = m.next()
	m.items[item.ID] = stripItem(*item)
	return nil
}

func (m *memStore) UpdateStockItem(_ context.Context, item *model.StockItem) error {
	if _, ok := m.items[item.ID]; !ok {
		return errNotFound
	}
	m.items[item.ID] = stripItem(*item)
	return nil
}

func (m *memStore) DeleteStockItem(_ context.Context, id int64) error {
	delete(m.items, id)
	return nil
}

func (m *memStore) CreateStockOut(_ context.Context, so *model.StockOut) error {
	if _, ok := m.items[so.StockItemID]; !ok {
		return fmt.Errorf("stockout references missing stock item %d", so.StockItemID)
	}
	if so.Time.IsZero() {
		so.Time = time.Now()
	}
	so.ID = m.next()
	m.stockOuts = append(m.stockOuts, *so)
	return nil
}

func (m *memStore) ListStockOutsByTranslines(_ context.Context, translineIDs []int64) ([]model.StockOut, error) {
	out := []model.StockOut{}
	for _, so := range m.stockOuts {
		if so.TranslineID != nil && containsID(translineIDs, *so.TranslineID) {
			out = append(out, so)
		}
	}
	return out, nil
}

func (m *memStore) DeleteStockOutsByTranslines(_ context.Context, translineIDs []int64) error {
	kept := m.stockOuts[:0]
	for _, so := range m.stockOuts {
		if so.TranslineID != nil && containsID(translineIDs, *so.TranslineID) {
			continue
		}
		kept = append(kept, so)
	}
	m.stockOuts = kept
	return nil
}

func (m *memStore) LastStockOutTime(_ context.Context, itemID int64, codes []string) (*time.Time, error) {
	var last *time.Time
	for _, so := range m.stockOuts {
		if so.StockItemID != itemID {
			continue
		}
		match := false
		for _, c := range codes {
			match = match || c == so.RemoveCode
		}
		if match && (last == nil || so.Time.After(*last)) {
			t := so.Time
			last = &t
		}
	}
	return last, nil
}

func (m *memStore) CreateAnnotation(_ context.Context, a *model.StockAnnotation) error {
	if a.Time.IsZero() {
		a.Time = time.Now()
	}
	a.ID = m.next()
	m.annotations = append(m.annotations, *a)
	return nil
}

func (m *memStore) ListAnnotations(_ context.Context, itemID int64) ([]model.StockAnnotation, error) {
	out := []model.StockAnnotation{}
	for _, a := range m.annotations {
		if a.StockItemID == itemID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListRemoveCodes(context.Context) ([]model.RemoveCode, error) {
	out := append([]model.RemoveCode{}, m.removeCodes...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListFinishCodes(context.Context) ([]model.FinishCode, error) {
	out := append([]model.FinishCode{}, m.finishCodes...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ── Stock lines ──────────────────────────────────────────────────────────────

func (m *memStore) stockLine(l model.StockLine) model.StockLine {
	if l.StockTypeID != nil {
		if st, ok := m.stockTypes[*l.StockTypeID]; ok {
			st = m.stockType(st, false)
			l.StockType = &st
		}
	}
	return l
}

func (m *memStore) ListStockLines(_ context.Context, lineType string) ([]model.StockLine, error) {
	out := []model.StockLine{}
	for _, k := range sortedKeys(m.lines) {
		l := m.lines[k]
		if lineType != "" && l.LineType != lineType {
			continue
		}
		out = append(out, m.stockLine(l))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memStore) FindStockLine(_ context.Context, id int64) (*model.StockLine, error) {
	l, ok := m.lines[id]
	if !ok {
		return nil, errNotFound
	}
	l = m.stockLine(l)
	return &l, nil
}

func (m *memStore) CreateStockLine(_ context.Context, l *model.StockLine) error {
	for _, other := range m.lines {
		if other.Name == l.Name {
			return errDuplicate
		}
	}
	l.ID = m.next()
	row := *l
	row.StockType = nil
	m.lines[l.ID] = row
	return nil
}

func (m *memStore) UpdateStockLine(_ context.Context, l *model.StockLine) error {
	for _, other := range m.lines {
		if other.ID != l.ID && other.Name == l.Name {
			return errDuplicate
		}
	}
	row := *l
	row.StockType = nil
	m.lines[l.ID] = row
	return nil
}

func (m *memStore) DeleteStockLine(_ context.Context, id int64) error {
	delete(m.lines, id)
	return nil
}

func (m *memStore) ListOnSale(_ context.Context, lineID int64) ([]model.StockOnSale, error) {
	out := []model.StockOnSale{}
	for _, k := range sortedKeys(m.onSale) {
		if s := m.onSale[k]; s.StockLineID == lineID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) FindOnSale(_ context.Context, itemID int64) (*model.StockOnSale, error) {
	s, ok := m.onSale[itemID]
	if !ok {
		return nil, errNotFound
	}
	return &s, nil
}

func (m *memStore) CreateOnSale(_ context.Context, s *model.StockOnSale) error {
	if _, ok := m.onSale[s.StockItemID]; ok {
		return errDuplicate
	}
	m.onSale[s.StockItemID] = *s
	return nil
}

func (m *memStore) UpdateOnSale(_ context.Context, s *model.StockOnSale) error {
	m.onSale[s.StockItemID] = *s
	return nil
}

func (m *memStore) DeleteOnSale(_ context.Context, itemID int64) error {
	delete(m.onSale, itemID)
	return nil
}

// ── Price lookups ────────────────────────────────────────────────────────────

func (m *memStore) ListPLUs(context.Context) ([]model.PLU, error) {
	out := []model.PLU{}
	for _, k := range sortedKeys(m.plus) {
		out = append(out, m.plus[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Description < out[j].Description })
	return out, nil
}

func (m *memStore) FindPLU(_ context.Context, id int64) (*model.PLU, error) {
	p, ok := m.plus[id]
	if !ok {
		return nil, errNotFound
	}
	return &p, nil
}

func (m *memStore) CreatePLU(_ context.Context, p *model.PLU) error {
	for _, other := range m.plus {
		if other.Description == p.Description {
			return errDuplicate
		}
	}
	p.ID = m.next()
	row := *p
	row.Department = nil
	m.plus[p.ID] = row
	return nil
}

func (m *memStore) UpdatePLU(_ context.Context, p *model.PLU) error {
	for _, other := range m.plus {
		if other.ID != p.ID && other.Description == p.Description {
			return errDuplicate
		}
	}
	row := *p
	row.Department = nil
	m.plus[p.ID] = row
	return nil
}

func (m *memStore) DeletePLU(_ context.Context, id int64) error {
	delete(m.plus, id)
	return nil
}

// ── Keyboard ─────────────────────────────────────────────────────────────────

func (m *memStore) ListModifiers(context.Context) ([]model.Modifier, error) {
	out := []model.Modifier{}
	for _, k := range sortedKeys(m.modifiers) {
		out = append(out, m.modifiers[k])
	}
	return out, nil
}

func (m *memStore) FindModifier(_ context.Context, name string) (*model.Modifier, error) {
	mod, ok := m.modifiers[name]
	if !ok {
		return nil, errNotFound
	}
	return &mod, nil
}

func (m *memStore) SaveModifier(_ context.Context, mod *model.Modifier) error {
	m.modifiers[mod.Name] = *mod
	return nil
}

func (m *memStore) DeleteModifier(_ context.Context, name string) error {
	delete(m.modifiers, name)
	return nil
}

func (m *memStore) ListBindings(_ context.Context, keycode string) ([]model.KeyboardBinding, error) {
	out := []model.KeyboardBinding{}
	for _, k := range sortedKeys(m.bindings) {
		b := m.bindings[k]
		if keycode != "" && b.Keycode != keycode {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Keycode != out[j].Keycode {
			return out[i].Keycode < out[j].Keycode
		}
		return out[i].Menukey < out[j].Menukey
	})
	return out, nil
}

func (m *memStore) CreateBinding(_ context.Context, b *model.KeyboardBinding) error {
	for _, other := range m.bindings {
		if other.Keycode == b.Keycode && other.Menukey == b.Menukey {
			return errDuplicate
		}
	}
	b.ID = m.next()
	m.bindings[b.ID] = *b
	return nil
}

func (m *memStore) DeleteBinding(_ context.Context, id int64) error {
	delete(m.bindings, id)
	return nil
}

func (m *memStore) ListBarcodes(context.Context) ([]model.Barcode, error) {
	out := []model.Barcode{}
	for _, k := range sortedKeys(m.barcodes) {
		out = append(out, m.barcodes[k])
	}
	return out, nil
}

func (m *memStore) FindBarcode(_ context.Context, code string) (*model.Barcode, error) {
	b, ok := m.barcodes[code]
	if !ok {
		return nil, errNotFound
	}
	return &b, nil
}

func (m *memStore) SaveBarcode(_ context.Context, b *model.Barcode) error {
	m.barcodes[b.Code] = *b
	return nil
}

func (m *memStore) DeleteBarcode(_ context.Context, code string) error {
	delete(m.barcodes, code)
	return nil
}

// ── Sessions ─────────────────────────────────────────────────────────────────

func (m *memStore) session(s model.Session) model.Session {
	s.Totals = nil
	for _, t := range m.totals {
		if t.SessionID == s.ID {
			s.Totals = append(s.Totals, t)
		}
	}
	return s
}

func (m *memStore) CreateSession(_ context.Context, s *model.Session) error {
	if s.EndTime == nil {
		for _, other := range m.sessions {
			if other.EndTime == nil {
				return errDuplicate
			}
		}
	}
	s.ID = m.next()
	row := *s
	row.Totals = nil
	m.sessions[s.ID] = row
	return nil
}

func (m *memStore) FindSession(_ context.Context, id int64) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, errNotFound
	}
	s = m.session(s)
	return &s, nil
}

func (m *memStore) FindCurrentSession(context.Context) (*model.Session, error) {
	for _, k := range sortedKeys(m.sessions) {
		if s := m.sessions[k]; s.EndTime == nil {
			return &s, nil
		}
	}
	return nil, errNotFound
}

func (m *memStore) UpdateSession(_ context.Context, s *model.Session) error {
	row := *s
	row.Totals = nil
	m.sessions[s.ID] = row
	return nil
}

func (m *memStore) ListSessions(_ context.Context, page, limit int) ([]model.Session, int64, error) {
	keys := sortedKeys(m.sessions)
	out := []model.Session{}
	skip := (page - 1) * limit
	for i := len(keys) - 1; i >= 0; i-- {
		if skip > 0 {
			skip--
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, m.session(m.sessions[keys[i]]))
	}
	return out, int64(len(keys)), nil
}

func (m *memStore) CreateSessionTotals(_ context.Context, totals []model.SessionTotal) error {
	for _, t := range totals {
		for _, other := range m.totals {
			if other.SessionID == t.SessionID && other.PayTypeID == t.PayTypeID {
				return errDuplicate
			}
		}
	}
	m.totals = append(m.totals, totals...)
	return nil
}

func (m *memStore) DeleteSessionTotals(_ context.Context, sessionID int64) error {
	kept := m.totals[:0]
	for _, t := range m.totals {
		if t.SessionID != sessionID {
			kept = append(kept, t)
		}
	}
	m.totals = kept
	return nil
}

func (m *memStore) FindSessionExport(_ context.Context, sessionID int64) (*model.SessionExport, error) {
	e, ok := m.exports[sessionID]
	if !ok {
		return nil, errNotFound
	}
	return &e, nil
}

func (m *memStore) CreateSessionExport(_ context.Context, e *model.SessionExport) error {
	if _, ok := m.exports[e.SessionID]; ok {
		return errDuplicate
	}
	e.ID = m.next()
	m.exports[e.SessionID] = *e
	return nil
}

func (m *memStore) UpdateSessionExport(_ context.Context, e *model.SessionExport) error {
	m.exports[e.SessionID] = *e
	return nil
}

func (m *memStore) ListPendingExports(_ context.Context, now time.Time, limit int) ([]model.SessionExport, error) {
	out := []model.SessionExport{}
	for _, k := range sortedKeys(m.exports) {
		e := m.exports[k]
		if e.Status == model.ExportPending && e.NextRetryAt != nil && !e.NextRetryAt.After(now) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextRetryAt.Before(*out[j].NextRetryAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── Transactions ─────────────────────────────────────────────────────────────

func (m *memStore) transline(l model.Transline) model.Transline {
	l.StockOuts = nil
	for _, so := range m.stockOuts {
		if so.TranslineID != nil && *so.TranslineID == l.ID {
			l.StockOuts = append(l.StockOuts, so)
		}
	}
	return l
}

func (m *memStore) transaction(t model.Transaction) model.Transaction {
	t.Lines, t.Payments = nil, nil
	for _, k := range sortedKeys(m.translines) {
		if l := m.translines[k]; l.TransID == t.ID {
			t.Lines = append(t.Lines, m.transline(l))
		}
	}
	for _, k := range sortedKeys(m.payments) {
		if p := m.payments[k]; p.TransID == t.ID {
			t.Payments = append(t.Payments, p)
		}
	}
	return t
}

func (m *memStore) CreateTransaction(_ context.Context, t *model.Transaction) error {
	t.ID = m.next()
	row := *t
	row.Lines, row.Payments = nil, nil
	m.trans[t.ID] = row
	return nil
}

func (m *memStore) FindTransaction(_ context.Context, id int64) (*model.Transaction, error) {
	t, ok := m.trans[id]
	if !ok {
		return nil, errNotFound
	}
	t = m.transaction(t)
	return &t, nil
}

func (m *memStore) UpdateTransaction(_ context.Context, t *model.Transaction) error {
	row, ok := m.trans[t.ID]
	if !ok {
		return errNotFound
	}
	row.SessionID, row.Notes, row.Closed = t.SessionID, t.Notes, t.Closed
	m.trans[t.ID] = row
	return nil
}

func (m *memStore) DeleteTransaction(_ context.Context, id int64) error {
	for _, l := range m.translines {
		if l.TransID == id {
			return fmt.Errorf("transaction %d still has lines", id)
		}
	}
	delete(m.trans, id)
	return nil
}

func (m *memStore) ListTransactions(_ context.Context, f repository.TransactionFilter) ([]model.Transaction, error) {
	out := []model.Transaction{}
	for _, k := range sortedKeys(m.trans) {
		t := m.trans[k]
		switch {
		case f.Deferred:
			if t.SessionID != nil {
				continue
			}
		case f.SessionID != nil:
			if t.SessionID == nil || *t.SessionID != *f.SessionID {
				continue
			}
		}
		if f.Open != nil && t.Closed == *f.Open {
			continue
		}
		out = append(out, m.transaction(t))
	}
	return out, nil
}

func (m *memStore) ReattachDeferred(_ context.Context, sessionID int64) (int64, error) {
	var n int64
	for id, t := range m.trans {
		if t.SessionID == nil {
			sid := sessionID
			t.SessionID = &sid
			m.trans[id] = t
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateTransline(_ context.Context, l *model.Transline) error {
	if _, ok := m.trans[l.TransID]; !ok {
		return fmt.Errorf("transline references missing transaction %d", l.TransID)
	}
	if l.VoidOfID != nil {
		for _, other := range m.translines {
			if other.VoidOfID != nil && *other.VoidOfID == *l.VoidOfID {
				return errDuplicate
			}
		}
	}
	if l.Time.IsZero() {
		l.Time = time.Now()
	}
	l.ID = m.next()
	row := *l
	row.StockOuts = nil
	m.translines[l.ID] = row
	return nil
}

func (m *memStore) FindTransline(_ context.Context, id int64) (*model.Transline, error) {
	l, ok := m.translines[id]
	if !ok {
		return nil, errNotFound
	}
	l = m.transline(l)
	return &l, nil
}

func (m *memStore) FindVoidOf(_ context.Context, translineID int64) (*model.Transline, error) {
	for _, k := range sortedKeys(m.translines) {
		if l := m.translines[k]; l.VoidOfID != nil && *l.VoidOfID == translineID {
			return &l, nil
		}
	}
	return nil, errNotFound
}

func (m *memStore) DeleteTranslines(_ context.Context, ids []int64) error {
	for _, id := range ids {
		delete(m.translines, id)
	}
	return nil
}

func (m *memStore) MoveTranslines(_ context.Context, ids []int64, toTransID int64) error {
	for _, id := range ids {
		if l, ok := m.translines[id]; ok {
			l.TransID = toTransID
			m.translines[id] = l
		}
	}
	return nil
}

func (m *memStore) CreatePayment(_ context.Context, p *model.Payment) error {
	if p.Time.IsZero() {
		p.Time = time.Now()
	}
	p.ID = m.next()
	m.payments[p.ID] = *p
	return nil
}

func (m *memStore) DeletePayments(_ context.Context, transID int64) error {
	for id, p := range m.payments {
		if p.TransID == transID {
			delete(m.payments, id)
		}
	}
	return nil
}

func (m *memStore) MovePayments(_ context.Context, fromTransID, toTransID int64) error {
	for id, p := range m.payments {
		if p.TransID == fromTransID {
			p.TransID = toTransID
			m.payments[id] = p
		}
	}
	return nil
}

func (m *memStore) ListPayTypes(context.Context) ([]model.PayType, error) {
	out := []model.PayType{}
	for _, k := range sortedKeys(m.payTypes) {
		out = append(out, m.payTypes[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *memStore) FindPayType(_ context.Context, id string) (*model.PayType, error) {
	p, ok := m.payTypes[id]
	if !ok {
		return nil, errNotFound
	}
	return &p, nil
}

func (m *memStore) CreatePayType(_ context.Context, p *model.PayType) error {
	if _, ok := m.payTypes[p.ID]; ok {
		return errDuplicate
	}
	m.payTypes[p.ID] = *p
	return nil
}

func (m *memStore) sessionOf(transID int64) *int64 {
	return m.trans[transID].SessionID
}

func (m *memStore) SumPaymentsByPayType(_ context.Context, sessionID int64) (map[string]decimal.Decimal, error) {
	out := map[string]decimal.Decimal{}
	for _, p := range m.payments {
		if sid := m.sessionOf(p.TransID); sid != nil && *sid == sessionID {
			out[p.PayTypeID] = out[p.PayTypeID].Add(p.Amount)
		}
	}
	return out, nil
}

func (m *memStore) SumTranslinesByDept(_ context.Context, sessionID int64) (map[int64]decimal.Decimal, error) {
	out := map[int64]decimal.Decimal{}
	for _, l := range m.translines {
		if sid := m.sessionOf(l.TransID); sid != nil && *sid == sessionID {
			out[l.DeptID] = out[l.DeptID].Add(l.Total())
		}
	}
	return out, nil
}

// ── Users ────────────────────────────────────────────────────────────────────

func (m *memStore) user(u model.User) model.User {
	u.Permissions, u.Groups, u.Tokens = nil, nil, nil
	for _, id := range m.userPerms[u.ID] {
		u.Permissions = append(u.Permissions, m.perms[id])
	}
	for _, id := range m.userGroups[u.ID] {
		u.Groups = append(u.Groups, m.groups[id])
	}
	for _, k := range sortedKeys(m.tokens) {
		if t := m.tokens[k]; t.UserID != nil && *t.UserID == u.ID {
			u.Tokens = append(u.Tokens, t)
		}
	}
	return u
}

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	u.ID = m.next()
	row := *u
	row.Permissions, row.Groups, row.Tokens = nil, nil, nil
	m.users[u.ID] = row
	return nil
}

func (m *memStore) FindUser(_ context.Context, id int64) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, errNotFound
	}
	u = m.user(u)
	return &u, nil
}

func (m *memStore) ListUsers(_ context.Context, includeDisabled bool) ([]model.User, error) {
	out := []model.User{}
	for _, k := range sortedKeys(m.users) {
		u := m.users[k]
		if !includeDisabled && !u.Enabled {
			continue
		}
		out = append(out, m.user(u))
	}
	return out, nil
}

func (m *memStore) UpdateUser(_ context.Context, u *model.User) error {
	row, ok := m.users[u.ID]
	if !ok {
		return errNotFound
	}
	row.FullName, row.ShortName = u.FullName, u.ShortName
	row.Enabled, row.Superuser = u.Enabled, u.Superuser
	row.PasswordHash, row.LastSeen = u.PasswordHash, u.LastSeen
	m.users[u.ID] = row
	return nil
}

func (m *memStore) AnonymiseUsers(context.Context) (int64, error) {
	var n int64
	for id, u := range m.users {
		if u.Enabled {
			continue
		}
		name := fmt.Sprintf("Former user %d", id)
		u.FullName, u.ShortName, u.PasswordHash = name, name, nil
		m.users[id] = u
		for tok, t := range m.tokens {
			if t.UserID != nil && *t.UserID == id {
				delete(m.tokens, tok)
			}
		}
		n++
	}
	return n, nil
}

func (m *memStore) FindToken(_ context.Context, token string) (*model.UserToken, error) {
	t, ok := m.tokens[token]
	if !ok {
		return nil, errNotFound
	}
	t.User = nil
	if t.UserID != nil {
		if u, ok := m.users[*t.UserID]; ok {
			u = m.user(u)
			t.User = &u
		}
	}
	return &t, nil
}

func (m *memStore) SaveToken(_ context.Context, t *model.UserToken) error {
	row := *t
	row.User = nil
	m.tokens[t.Token] = row
	return nil
}

func (m *memStore) SyncPermissions(_ context.Context, perms []model.Permission) error {
	for _, p := range perms {
		m.perms[p.ID] = p
	}
	return nil
}

func (m *memStore) ListPermissions(context.Context) ([]model.Permission, error) {
	out := []model.Permission{}
	for _, k := range sortedKeys(m.perms) {
		out = append(out, m.perms[k])
	}
	return out, nil
}

func (m *memStore) GrantPermission(_ context.Context, userID int64, permissionID string) error {
	if _, ok := m.perms[permissionID]; !ok {
		m.perms[permissionID] = model.Permission{ID: permissionID}
	}
	for _, id := range m.userPerms[userID] {
		if id == permissionID {
			return nil
		}
	}
	m.userPerms[userID] = append(m.userPerms[userID], permissionID)
	return nil
}

func (m *memStore) SaveGroup(_ context.Context, g *model.Group) error {
	row := *g
	row.Permissions = nil
	for _, p := range g.Permissions {
		if full, ok := m.perms[p.ID]; ok {
			p = full
		}
		row.Permissions = append(row.Permissions, p)
	}
	m.groups[g.ID] = row
	return nil
}

func (m *memStore) AddUserToGroup(_ context.Context, userID int64, groupID string) error {
	if _, ok := m.groups[groupID]; !ok {
		return errNotFound
	}
	for _, id := range m.userGroups[userID] {
		if id == groupID {
			return nil
		}
	}
	m.userGroups[userID] = append(m.userGroups[userID], groupID)
	return nil
}

// ── Site configuration ───────────────────────────────────────────────────────

func (m *memStore) ListConfig(context.Context) ([]model.ConfigItem, error) {
	out := []model.ConfigItem{}
	for _, k := range sortedKeys(m.config) {
		out = append(out, m.config[k])
	}
	return out, nil
}

func (m *memStore) FindConfig(_ context.Context, key string) (*model.ConfigItem, error) {
	item, ok := m.config[key]
	if !ok {
		return nil, errNotFound
	}
	return &item, nil
}

func (m *memStore) SaveConfig(_ context.Context, item *model.ConfigItem) error {
	m.config[item.Key] = *item
	return nil
}

func (m *memStore) EnsureConfig(_ context.Context, items []model.ConfigItem) error {
	for _, item := range items {
		if _, ok := m.config[item.Key]; !ok {
			m.config[item.Key] = item
		}
	}
	return nil
}
