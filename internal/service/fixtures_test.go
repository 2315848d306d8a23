package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/config"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/permission"
	"github.com/sde1000/quicktill-sub001/internal/printer"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind.String(), apperr.KindOf(err).String(), "error: %v", err)
}

type testClock struct{ t time.Time }

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type staticSite struct{ site config.Site }

func (s *staticSite) Site(context.Context) (config.Site, error) { return s.site, nil }

var _ SiteReader = (*staticSite)(nil)

type recordingDrawer struct {
	kickouts int
	failWith error
	lines    []printer.Line
}

var _ printer.Driver = (*recordingDrawer)(nil)

func (d *recordingDrawer) Available(context.Context) bool { return true }
func (d *recordingDrawer) Start(context.Context) error    { return nil }
func (d *recordingDrawer) PrintLine(l printer.Line) error {
	d.lines = append(d.lines, l)
	return nil
}
func (d *recordingDrawer) PrintQRCode(string) error { return nil }
func (d *recordingDrawer) End() error               { return nil }
func (d *recordingDrawer) Kickout(context.Context) error {
	d.kickouts++
	return d.failWith
}

type recordingQueue struct {
	exports []int64
	reports []int64
}

var _ JobQueue = (*recordingQueue)(nil)

func (q *recordingQueue) EnqueueTakingsExport(_ context.Context, id int64) error {
	q.exports = append(q.exports, id)
	return nil
}

func (q *recordingQueue) EnqueueTakingsReport(_ context.Context, id int64) error {
	q.reports = append(q.reports, id)
	return nil
}

type vetoHooks struct {
	NoHooks
	reason string
}

func (h vetoHooks) PreRecordTakings(context.Context, *model.Session, map[string]decimal.Decimal) error {
	return errors.New(h.reason)
}

// ── Fixture ──────────────────────────────────────────────────────────────────

var staff = Actor{UserID: ptr(int64(1)), Perms: permission.NewSet(true, nil)}

// fixture is a small pub: a beer engine, a crisp shelf and a gin optic,
// one confirmed delivery and the usual payment methods.
type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *memStore
	clock  *testClock
	site   *staticSite
	drawer *recordingDrawer
	queue  *recordingQueue
	repos  Repositories

	register   RegisterService
	sessions   SessionService
	lines      StockLineService
	stock      StockService
	deliveries DeliveryService

	delivery int64
	bitter   int64
	crisps   int64
	gin      int64
	firkin   int64
	box      int64
	bottle   int64
	pump     int64
	shelf    int64
	optic    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := newMemStore()
	clock := newTestClock()
	f := &fixture{
		t:      t,
		ctx:    ctx,
		store:  store,
		clock:  clock,
		site:   &staticSite{site: config.DefaultSite()},
		drawer: &recordingDrawer{},
		queue:  &recordingQueue{},
		repos:  store.repositories(clock.now),
	}
	must := func(err error) {
		t.Helper()
		require.NoError(t, err)
	}

	for _, u := range []model.Unit{
		{ID: "pt", Description: "Pints", BaseName: "pint", BaseNamePlural: "pints", ItemName: "pint", ItemNamePlural: "pints", UnitsPerItem: dec("1")},
		{ID: "item", Description: "Items", BaseName: "item", BaseNamePlural: "items", ItemName: "item", ItemNamePlural: "items", UnitsPerItem: dec("1")},
		{ID: "25ml", Description: "Spirits", BaseName: "25ml", BaseNamePlural: "25ml", ItemName: "shot", ItemNamePlural: "shots", UnitsPerItem: dec("1")},
	} {
		u := u
		must(store.CreateUnit(ctx, &u))
	}
	firkin := &model.StockUnit{Name: "Firkin", UnitID: "pt", Size: dec("72")}
	box := &model.StockUnit{Name: "Box of 48", UnitID: "item", Size: dec("48")}
	bottle := &model.StockUnit{Name: "70cl bottle", UnitID: "25ml", Size: dec("28")}
	for _, su := range []*model.StockUnit{firkin, box, bottle} {
		must(store.CreateStockUnit(ctx, su))
	}
	f.firkin, f.box, f.bottle = firkin.ID, box.ID, bottle.ID

	must(store.CreateVatBand(ctx, &model.VatBand{Band: "A", Description: "Standard", Rate: dec("20")}))
	for _, d := range []model.Department{
		{ID: 1, Description: "Real Ale", VatBandID: "A"},
		{ID: 4, Description: "Spirits", VatBandID: "A"},
		{ID: 7, Description: "Snacks", VatBandID: "A"},
		{ID: 8, Description: "Misc", VatBandID: "A", MinPrice: ptr(dec("0.50")), MaxPrice: ptr(dec("20.00"))},
	} {
		d := d
		must(store.CreateDepartment(ctx, &d))
	}
	must(store.CreatePayType(ctx, &model.PayType{ID: "CASH", Description: "Cash", Order: 1, Active: true, ChangeGiven: true}))
	must(store.CreatePayType(ctx, &model.PayType{ID: "CARD", Description: "Card", Order: 2, Active: true}))
	store.removeCodes = []model.RemoveCode{
		{ID: model.RemoveSold, Reason: "Sold"},
		{ID: model.RemovePullThru, Reason: "Pulled through"},
		{ID: model.RemoveWaste, Reason: "Waste"},
	}
	store.finishCodes = []model.FinishCode{{ID: model.FinishEmpty, Description: "All gone"}}

	supplier := &model.Supplier{Name: "Brewery"}
	must(store.CreateSupplier(ctx, supplier))
	delivery := &model.Delivery{SupplierID: supplier.ID, Date: datatypes.Date(clock.now()), Checked: true}
	must(store.CreateDelivery(ctx, delivery))
	f.delivery = delivery.ID

	bitter := &model.StockType{DeptID: 1, Manufacturer: "Brewery", Name: "Best Bitter", ShortName: "Best", UnitID: "pt", SalePrice: ptr(dec("3.60"))}
	crisps := &model.StockType{DeptID: 7, Manufacturer: "Crispy", Name: "Ready Salted", ShortName: "Crisps", UnitID: "item", SalePrice: ptr(dec("0.90"))}
	gin := &model.StockType{DeptID: 4, Manufacturer: "Distillery", Name: "Dry Gin", ShortName: "Gin", UnitID: "25ml", SalePrice: ptr(dec("2.50"))}
	for _, st := range []*model.StockType{bitter, crisps, gin} {
		must(store.CreateStockType(ctx, st))
	}
	f.bitter, f.crisps, f.gin = bitter.ID, crisps.ID, gin.ID

	must(store.SaveModifier(ctx, &model.Modifier{Name: "Half", Behaviour: "half"}))
	must(store.SaveModifier(ctx, &model.Modifier{Name: "Double", Behaviour: "double"}))

	pump := &model.StockLine{Name: "Pump 1", Location: "Bar", LineType: model.LineRegular, PullThru: ptr(dec("0.5"))}
	shelf := &model.StockLine{Name: "Crisps", Location: "Bar", LineType: model.LineDisplay, StockTypeID: &f.crisps, Capacity: ptr(10)}
	optic := &model.StockLine{Name: "Gin", Location: "Back bar", LineType: model.LineContinuous, StockTypeID: &f.gin}
	for _, l := range []*model.StockLine{pump, shelf, optic} {
		must(store.CreateStockLine(ctx, l))
	}
	f.pump, f.shelf, f.optic = pump.ID, shelf.ID, optic.ID

	f.register = NewRegisterService(nil, f.repos, f.site, f.drawer, nil)
	f.sessions = NewSessionService(nil, f.repos, NewExportHooks(store, f.queue), f.drawer, f.site, nil)
	f.lines = NewStockLineService(nil, f.repos, nil)
	f.stock = NewStockService(nil, f.repos, nil)
	f.deliveries = NewDeliveryService(nil, f.repos, nil, nil)
	return f
}

// receive adds one item of a stock type to the confirmed delivery.
func (f *fixture) receive(stockTypeID, stockUnitID int64) int64 {
	f.t.Helper()
	su := f.store.stockUnits[stockUnitID]
	st := f.store.stockTypes[stockTypeID]
	item := &model.StockItem{
		DeliveryID:  f.delivery,
		StockTypeID: stockTypeID,
		StockUnitID: stockUnitID,
		Size:        su.Size,
		SalePrice:   *st.SalePrice,
	}
	require.NoError(f.t, f.store.CreateStockItem(f.ctx, item))
	return item.ID
}

func (f *fixture) putOnSale(lineID, itemID int64) {
	f.t.Helper()
	_, err := f.lines.PutOnSale(f.ctx, staff, lineID, dto.PutOnSaleRequest{StockItemID: itemID})
	require.NoError(f.t, err)
}

func (f *fixture) startSession() int64 {
	f.t.Helper()
	sess, err := f.sessions.Start(f.ctx, dto.StartSessionRequest{Date: "2026-03-14"})
	require.NoError(f.t, err)
	return sess.ID
}

func (f *fixture) sell(transID *int64, lineID int64, items int, mods ...string) *dto.SaleResponse {
	f.t.Helper()
	resp, err := f.register.SellStockLine(f.ctx, staff, dto.SellStockLineRequest{
		TransID: transID, StockLineID: lineID, Items: items, Modifiers: mods,
	})
	require.NoError(f.t, err)
	return resp
}

func (f *fixture) used(itemID int64) decimal.Decimal { return f.store.used(itemID) }

func (f *fixture) item(itemID int64) model.StockItem { return f.store.items[itemID] }
