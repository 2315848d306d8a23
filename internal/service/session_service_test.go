package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stubs ────────────────────────────────────────────────────────────────────

type unreachableAccounts struct{ NoHooks }

func (unreachableAccounts) FetchReconciledTakings(context.Context, *model.Session) (*string, error) {
	return nil, errors.New("dial tcp: connection refused")
}

// endedSession runs a session with one cash and one card sale and ends it.
func endedSession(f *fixture) int64 {
	f.t.Helper()
	sid := f.startSession()
	cash := openTab(f, 2)
	_, err := f.register.Pay(f.ctx, staff, cash, dto.PaymentRequest{PayType: "CASH", Amount: ptr(dec("10.00"))})
	require.NoError(f.t, err)
	card := openTab(f, 1)
	_, err = f.register.Pay(f.ctx, staff, card, dto.PaymentRequest{PayType: "CARD"})
	require.NoError(f.t, err)
	_, err = f.sessions.End(f.ctx)
	require.NoError(f.t, err)
	return sid
}

func totals(kv ...string) dto.TotalsRequest {
	req := dto.TotalsRequest{Totals: map[string]decimal.Decimal{}}
	for i := 0; i+1 < len(kv); i += 2 {
		req.Totals[kv[i]] = dec(kv[i+1])
	}
	return req
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestSessionStart(t *testing.T) {
	f := newFixture(t)

	sid := f.startSession()

	cur, err := f.sessions.Current(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, sid, cur.ID)
	assert.Equal(t, f.clock.now(), cur.StartTime)

	_, err = f.sessions.Start(f.ctx, dto.StartSessionRequest{Date: "2026-03-14"})
	requireKind(t, err, apperr.KindUser)
	assert.Contains(t, err.Error(), "already in progress")
}

func TestSessionStart_BadDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.sessions.Start(f.ctx, dto.StartSessionRequest{Date: "14/03/2026"})

	requireKind(t, err, apperr.KindUser)
}

func TestSessionCurrent_NoneInProgress(t *testing.T) {
	f := newFixture(t)

	_, err := f.sessions.Current(f.ctx)

	requireKind(t, err, apperr.KindNotFound)
}

func TestSessionEnd(t *testing.T) {
	f := newFixture(t)
	f.startSession()
	tid := openTab(f, 1)

	_, err := f.sessions.End(f.ctx)
	requireKind(t, err, apperr.KindUser)
	assert.Contains(t, err.Error(), "still open")

	_, err = f.register.Pay(f.ctx, staff, tid, dto.PaymentRequest{PayType: "CARD"})
	require.NoError(t, err)
	f.clock.advance(8 * time.Hour)
	sess, err := f.sessions.End(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, sess.EndTime)
	assert.Equal(t, f.clock.now(), *sess.EndTime)

	_, err = f.sessions.End(f.ctx)
	requireKind(t, err, apperr.KindUser)
}

func TestSessionList_NewestFirst(t *testing.T) {
	f := newFixture(t)
	var ids []int64
	for i := 0; i < 3; i++ {
		ids = append(ids, f.startSession())
		_, err := f.sessions.End(f.ctx)
		require.NoError(t, err)
	}

	page, err := f.sessions.List(f.ctx, dto.SessionListFilter{Page: 1, Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, ids[2], page.Data[0].ID)
	assert.Equal(t, ids[1], page.Data[1].ID)
}

func TestSessionTransactions(t *testing.T) {
	f := newFixture(t)
	sid := f.startSession()
	openTab(f, 1)
	openTab(f, 2)

	list, err := f.sessions.Transactions(f.ctx, sid)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.sessions.Transactions(f.ctx, 999)
	requireKind(t, err, apperr.KindNotFound)
}

func TestRecordTotals_Summary(t *testing.T) {
	f := newFixture(t)
	sid := endedSession(f)

	sum, err := f.sessions.RecordTotals(f.ctx, sid, totals("CASH", "7.00", "CARD", "3.60"))

	require.NoError(t, err)
	require.Len(t, sum.PayTypes, 2)
	cash, card := sum.PayTypes[0], sum.PayTypes[1]
	assert.Equal(t, "CASH", cash.PayType)
	assert.True(t, dec("7.20").Equal(cash.TillTotal))
	require.NotNil(t, cash.Difference)
	assert.True(t, dec("-0.20").Equal(*cash.Difference))
	assert.Equal(t, "CARD", card.PayType)
	assert.True(t, card.Difference.IsZero())
	assert.True(t, dec("10.80").Equal(sum.Total))
	assert.True(t, dec("10.60").Equal(sum.Declared))
	require.Len(t, sum.Departments, 1)
	assert.Equal(t, "Real Ale", sum.Departments[0].Description)
	assert.True(t, dec("10.80").Equal(sum.Departments[0].Total))

	assert.Equal(t, []int64{sid}, f.queue.exports)
	assert.Equal(t, []int64{sid}, f.queue.reports)
	assert.Equal(t, model.ExportPending, f.store.exports[sid].Status)
}

func TestRecordTotals_Refusals(t *testing.T) {
	f := newFixture(t)
	current := f.startSession()

	_, err := f.sessions.RecordTotals(f.ctx, current, totals("CASH", "0"))
	requireKind(t, err, apperr.KindUser)
	assert.Contains(t, err.Error(), "not ended")

	_, err = f.sessions.End(f.ctx)
	require.NoError(t, err)

	_, err = f.sessions.RecordTotals(f.ctx, current, totals("BITCOIN", "1.00"))
	requireKind(t, err, apperr.KindUser)

	_, err = f.sessions.RecordTotals(f.ctx, 999, totals("CASH", "0"))
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.sessions.RecordTotals(f.ctx, current, totals("CASH", "0"))
	require.NoError(t, err)
	_, err = f.sessions.RecordTotals(f.ctx, current, totals("CASH", "0"))
	requireKind(t, err, apperr.KindUser)
	assert.Contains(t, err.Error(), "already been recorded")
}

func TestRecordTotals_HookVeto(t *testing.T) {
	f := newFixture(t)
	f.sessions = NewSessionService(nil, f.repos, vetoHooks{reason: "the accounts period is closed"}, f.drawer, f.site, nil)
	sid := endedSession(f)

	_, err := f.sessions.RecordTotals(f.ctx, sid, totals("CASH", "7.20", "CARD", "3.60"))

	requireKind(t, err, apperr.KindUser)
	assert.Contains(t, err.Error(), "accounts period is closed")
	assert.Empty(t, f.store.totals)
}

func TestRecordTotals_RoundsToPence(t *testing.T) {
	f := newFixture(t)
	sid := endedSession(f)

	_, err := f.sessions.RecordTotals(f.ctx, sid, totals("CASH", "7.199"))

	require.NoError(t, err)
	require.Len(t, f.store.totals, 1)
	assert.True(t, dec("7.20").Equal(f.store.totals[0].Amount))
}

func TestRecordTotals_EmptySessionRoundTrip(t *testing.T) {
	f := newFixture(t)
	sid := f.startSession()
	_, err := f.sessions.End(f.ctx)
	require.NoError(t, err)

	sum, err := f.sessions.RecordTotals(f.ctx, sid, totals("CASH", "0.00"))

	require.NoError(t, err)
	assert.True(t, sum.Total.IsZero())
	assert.True(t, sum.Declared.IsZero())
	require.Len(t, sum.PayTypes, 1)
	require.NotNil(t, sum.PayTypes[0].Declared)
	assert.True(t, sum.PayTypes[0].Declared.IsZero())
	assert.Empty(t, sum.Departments)
	require.Len(t, sum.Session.Totals, 1)
}

func TestRecordTotals_NothingDeclared(t *testing.T) {
	f := newFixture(t)
	sid := f.startSession()
	_, err := f.sessions.End(f.ctx)
	require.NoError(t, err)

	_, err = f.sessions.RecordTotals(f.ctx, sid, totals())
	requireKind(t, err, apperr.KindUser)
	assert.Contains(t, err.Error(), "no takings declared")
	assert.Empty(t, f.queue.exports)

	_, err = f.sessions.RecordTotals(f.ctx, sid, totals("CASH", "5.00"))
	require.NoError(t, err)
	_, err = f.sessions.RecordTotals(f.ctx, sid, totals("CASH", "5.00"))
	requireKind(t, err, apperr.KindUser)

	_, err = f.sessions.UpdateTotals(f.ctx, sid, totals())
	requireKind(t, err, apperr.KindUser)
	require.Len(t, f.store.totals, 1)
}

func TestUpdateTotals(t *testing.T) {
	f := newFixture(t)
	sid := endedSession(f)

	_, err := f.sessions.UpdateTotals(f.ctx, sid, totals("CASH", "7.20"))
	requireKind(t, err, apperr.KindUser)

	_, err = f.sessions.RecordTotals(f.ctx, sid, totals("CASH", "7.00", "CARD", "3.60"))
	require.NoError(t, err)
	e := f.store.exports[sid]
	e.Status, e.RetryCount = model.ExportFailed, 8
	f.store.exports[sid] = e

	sum, err := f.sessions.UpdateTotals(f.ctx, sid, totals("CASH", "7.20", "CARD", "3.60"))
	require.NoError(t, err)
	assert.True(t, sum.Total.Equal(sum.Declared))
	assert.Equal(t, model.ExportPending, f.store.exports[sid].Status)
	assert.Equal(t, 0, f.store.exports[sid].RetryCount)
	assert.Equal(t, []int64{sid, sid}, f.queue.exports)

	e = f.store.exports[sid]
	e.Status, e.Reference = model.ExportDone, ptr("INV-1042")
	f.store.exports[sid] = e
	_, err = f.sessions.UpdateTotals(f.ctx, sid, totals("CASH", "7.10", "CARD", "3.60"))
	requireKind(t, err, apperr.KindUser)
	assert.Contains(t, err.Error(), "INV-1042")
}

func TestUpdateTotals_ReconciliationCheckFails(t *testing.T) {
	f := newFixture(t)
	f.sessions = NewSessionService(nil, f.repos, unreachableAccounts{}, f.drawer, f.site, nil)
	sid := endedSession(f)
	_, err := f.sessions.RecordTotals(f.ctx, sid, totals("CASH", "7.20"))
	require.NoError(t, err)

	_, err = f.sessions.UpdateTotals(f.ctx, sid, totals("CASH", "7.00"))

	requireKind(t, err, apperr.KindExternal)
}

func TestPrintSummary(t *testing.T) {
	f := newFixture(t)
	sid := endedSession(f)
	_, err := f.sessions.RecordTotals(f.ctx, sid, totals("CASH", "7.20", "CARD", "3.60"))
	require.NoError(t, err)

	require.NoError(t, f.sessions.PrintSummary(f.ctx, sid))

	require.NotEmpty(t, f.drawer.lines)
	assert.Equal(t, f.site.site.SiteName, f.drawer.lines[0].Centre)
	var sawCash bool
	for _, l := range f.drawer.lines {
		if l.Left == "Cash" {
			sawCash = true
			assert.Equal(t, "7.20", l.Centre)
			assert.Equal(t, "7.20", l.Right)
		}
	}
	assert.True(t, sawCash)
}
