package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/infra"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ── stubs ────────────────────────────────────────────────────────────────────

// stubSessionRepo implements only the export methods; anything else panics.
type stubSessionRepo struct {
	repository.SessionRepository
	exports map[int64]*model.SessionExport
}

func newStubSessionRepo(exports ...model.SessionExport) *stubSessionRepo {
	r := &stubSessionRepo{exports: make(map[int64]*model.SessionExport)}
	for i := range exports {
		e := exports[i]
		r.exports[e.SessionID] = &e
	}
	return r
}

func (r *stubSessionRepo) FindSessionExport(_ context.Context, sessionID int64) (*model.SessionExport, error) {
	e, ok := r.exports[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *stubSessionRepo) UpdateSessionExport(_ context.Context, e *model.SessionExport) error {
	cp := *e
	r.exports[e.SessionID] = &cp
	return nil
}

func (r *stubSessionRepo) ListPendingExports(_ context.Context, now time.Time, limit int) ([]model.SessionExport, error) {
	var out []model.SessionExport
	for _, e := range r.exports {
		if e.Status == model.ExportPending && e.NextRetryAt != nil && !e.NextRetryAt.After(now) {
			out = append(out, *e)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type stubSummaries struct {
	printed []int64
	err     error
}

func (s *stubSummaries) Summary(_ context.Context, id int64) (*dto.SessionSummary, error) {
	cash := decimal.RequireFromString("120.50")
	return &dto.SessionSummary{
		Session: model.Session{ID: id, Date: datatypes.Date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		PayTypes: []dto.PayTypeTotal{
			{PayType: "CASH", TillTotal: cash, Declared: &cash},
			{PayType: "CARD", TillTotal: decimal.NewFromInt(30)},
		},
		Departments: []dto.DeptTotal{{DeptID: 1, Description: "Beer", Total: decimal.NewFromInt(150)}},
	}, nil
}

func (s *stubSummaries) PrintSummary(_ context.Context, id int64) error {
	if s.err != nil {
		return s.err
	}
	s.printed = append(s.printed, id)
	return nil
}

type stubAccounts struct {
	calls    []infra.TakingsPayload
	failures int
	ref      string
}

func (a *stubAccounts) Configured() bool { return true }

func (a *stubAccounts) PostTakings(_ context.Context, p infra.TakingsPayload) (*infra.TakingsReceipt, error) {
	a.calls = append(a.calls, p)
	if a.failures > 0 {
		a.failures--
		return nil, errors.New("accounts service returned 503")
	}
	return &infra.TakingsReceipt{Reference: a.ref}, nil
}

type stubMailer struct {
	sent []string
	err  error
}

func (m *stubMailer) Configured() bool { return true }
func (m *stubMailer) Send(to, subject, _, attachment string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+subject+"|"+attachment)
	return nil
}

type fixedPrintout string

func (f fixedPrintout) LastFile() string { return string(f) }

func jobPayload(t *testing.T, sessionID int64) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(SessionJobPayload{SessionID: sessionID})
	require.NoError(t, err)
	return raw
}

func newTestExportWorker(repo *stubSessionRepo, acc *stubAccounts, cb *infra.CircuitBreaker) *ExportWorker {
	return NewExportWorker(ExportWorkerConfig{
		Sessions: repo,
		Summary:  &stubSummaries{},
		Accounts: acc,
		CB:       cb,
		Terminal: "bar",
		Attempts: 1,
	})
}

// ── export worker ────────────────────────────────────────────────────────────

func TestExportWorker_BooksDeclaredTakings(t *testing.T) {
	repo := newStubSessionRepo(model.SessionExport{SessionID: 7, Status: model.ExportPending})
	acc := &stubAccounts{ref: "INV-0042"}
	w := newTestExportWorker(repo, acc, nil)

	w.Process(context.Background(), jobPayload(t, 7))

	require.Len(t, acc.calls, 1)
	sent := acc.calls[0]
	assert.Equal(t, int64(7), sent.SessionID)
	assert.Equal(t, "2024-03-01", sent.Date)
	assert.Equal(t, "bar", sent.Terminal)
	assert.Len(t, sent.Takings, 1, "only declared takings are sent")
	assert.True(t, sent.Takings["CASH"].Equal(decimal.RequireFromString("120.50")))
	assert.True(t, sent.Departments["1"].Equal(decimal.NewFromInt(150)))

	e := repo.exports[7]
	assert.Equal(t, model.ExportDone, e.Status)
	require.NotNil(t, e.Reference)
	assert.Equal(t, "INV-0042", *e.Reference)
	assert.Nil(t, e.NextRetryAt)
}

func TestExportWorker_FailureSchedulesRetry(t *testing.T) {
	repo := newStubSessionRepo(model.SessionExport{SessionID: 7, Status: model.ExportPending})
	acc := &stubAccounts{failures: 1, ref: "INV-1"}
	w := newTestExportWorker(repo, acc, nil)
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	w.Process(context.Background(), jobPayload(t, 7))

	e := repo.exports[7]
	assert.Equal(t, model.ExportPending, e.Status)
	assert.Equal(t, 1, e.RetryCount)
	require.NotNil(t, e.LastError)
	assert.Contains(t, *e.LastError, "503")
	require.NotNil(t, e.NextRetryAt)
	assert.Equal(t, now.Add(time.Minute), *e.NextRetryAt)

	// The cron picks it up once due.
	now = now.Add(2 * time.Minute)
	processRetries(context.Background(), w)

	e = repo.exports[7]
	assert.Equal(t, model.ExportDone, e.Status)
	assert.Equal(t, "INV-1", *e.Reference)
}

func TestExportWorker_GivesUpAfterMaxRetries(t *testing.T) {
	repo := newStubSessionRepo(model.SessionExport{SessionID: 3, Status: model.ExportPending, RetryCount: MaxExportRetries - 1})
	acc := &stubAccounts{failures: 1}
	w := newTestExportWorker(repo, acc, nil)

	w.Process(context.Background(), jobPayload(t, 3))

	e := repo.exports[3]
	assert.Equal(t, model.ExportFailed, e.Status)
	assert.Equal(t, MaxExportRetries, e.RetryCount)
	assert.Nil(t, e.NextRetryAt)
}

func TestExportWorker_SkipsCompletedExports(t *testing.T) {
	ref := "INV-9"
	repo := newStubSessionRepo(model.SessionExport{SessionID: 5, Status: model.ExportDone, Reference: &ref})
	acc := &stubAccounts{}
	w := newTestExportWorker(repo, acc, nil)

	w.Process(context.Background(), jobPayload(t, 5))

	assert.Empty(t, acc.calls)
}

func TestRetryCron_SkipsWhileBreakerOpen(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	repo := newStubSessionRepo(model.SessionExport{SessionID: 4, Status: model.ExportPending, RetryCount: 1, NextRetryAt: &past})
	acc := &stubAccounts{}
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour})
	_ = cb.Execute(func() error { return errors.New("down") })
	require.Equal(t, infra.CBOpen, cb.State())
	w := newTestExportWorker(repo, acc, cb)

	processRetries(context.Background(), w)

	assert.Empty(t, acc.calls)
	assert.Equal(t, model.ExportPending, repo.exports[4].Status)
}

func TestComputeRetryBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, computeRetryBackoff(0))
	assert.Equal(t, time.Minute, computeRetryBackoff(1))
	assert.Equal(t, 4*time.Minute, computeRetryBackoff(3))
	assert.Equal(t, time.Hour, computeRetryBackoff(7))
	assert.Equal(t, time.Hour, computeRetryBackoff(60))
}

func TestWithRetry_StopsOnOpenCircuit(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, func(int) error {
		calls++
		return infra.ErrCircuitOpen
	})
	assert.ErrorIs(t, err, infra.ErrCircuitOpen)
	assert.Equal(t, 1, calls)
}

// ── report worker ────────────────────────────────────────────────────────────

func TestReportWorker_MailsPrintedSummary(t *testing.T) {
	sums := &stubSummaries{}
	m := &stubMailer{}
	w := NewReportWorker(sums, fixedPrintout("/tmp/summary.pdf"), m, "office@example.com", "The Tiny Pub")

	w.Process(context.Background(), jobPayload(t, 11))

	assert.Equal(t, []int64{11}, sums.printed)
	require.Len(t, m.sent, 1)
	assert.Equal(t, "office@example.com|The Tiny Pub: Takings for session 11|/tmp/summary.pdf", m.sent[0])
}

func TestReportWorker_NoAddressSkips(t *testing.T) {
	sums := &stubSummaries{}
	m := &stubMailer{}
	w := NewReportWorker(sums, fixedPrintout(""), m, "", "")

	w.Process(context.Background(), jobPayload(t, 11))

	assert.Empty(t, sums.printed)
	assert.Empty(t, m.sent)
}

func TestReportWorker_PrintFailureSendsNothing(t *testing.T) {
	sums := &stubSummaries{err: errors.New("disk full")}
	m := &stubMailer{}
	w := NewReportWorker(sums, fixedPrintout(""), m, "office@example.com", "")

	w.Process(context.Background(), jobPayload(t, 2))

	assert.Empty(t, m.sent)
}

func TestReportWorker_MailFailureIsKept(t *testing.T) {
	sums := &stubSummaries{}
	m := &stubMailer{err: errors.New("relay access denied")}
	w := NewReportWorker(sums, fixedPrintout("/tmp/summary.pdf"), m, "office@example.com", "")
	list := newMemList()
	w.KeepFailures(newFailedJobs(list))

	w.Process(context.Background(), jobPayload(t, 6))

	jobs, err := w.failed.List(context.Background(), QueueTakingsReport, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(6), jobs[0].SessionID)
	assert.Contains(t, jobs[0].Reason, "relay access denied")
}
