package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/printer"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SessionService is the session ledger: accounting days, the takings
// declared for them and the summaries reconciling the two.
type SessionService interface {
	Start(ctx context.Context, req dto.StartSessionRequest) (*model.Session, error)
	End(ctx context.Context) (*model.Session, error)
	Current(ctx context.Context) (*model.Session, error)
	Get(ctx context.Context, id int64) (*model.Session, error)
	List(ctx context.Context, filter dto.SessionListFilter) (*dto.SessionListResponse, error)
	Transactions(ctx context.Context, id int64) ([]dto.TransactionResponse, error)

	RecordTotals(ctx context.Context, id int64, req dto.TotalsRequest) (*dto.SessionSummary, error)
	UpdateTotals(ctx context.Context, id int64, req dto.TotalsRequest) (*dto.SessionSummary, error)
	Summary(ctx context.Context, id int64) (*dto.SessionSummary, error)
	PrintSummary(ctx context.Context, id int64) error
}

type sessionService struct {
	db       *gorm.DB
	sessions repository.SessionRepository
	trans    repository.TransactionRepository
	depts    repository.DepartmentRepository
	hooks    SessionHooks
	printer  printer.Driver
	locker   Locker
	site     SiteReader
	now      Clock
}

func NewSessionService(db *gorm.DB, repos Repositories, hooks SessionHooks, pr printer.Driver, site SiteReader, locker Locker) SessionService {
	if hooks == nil {
		hooks = NoHooks{}
	}
	if pr == nil {
		pr = printer.Null{}
	}
	now := repos.Clock
	if now == nil {
		now = time.Now
	}
	return &sessionService{
		db:       db,
		sessions: repos.Sessions,
		trans:    repos.Transactions,
		depts:    repos.Departments,
		hooks:    hooks,
		printer:  pr,
		locker:   locker,
		site:     site,
		now:      now,
	}
}

const sessionLock = "session"

// Start opens a new session and moves deferred transactions into it.
// Two terminals racing to start a session meet on the unique index of
// current sessions; the loser retries once and then sees the winner's
// session.
func (s *sessionService) Start(ctx context.Context, req dto.StartSessionRequest) (*model.Session, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	var out *model.Session
	var reattached int64
	err = withLock(ctx, s.locker, sessionLock, func() error {
		start := func() error {
			return runTx(ctx, s.db, func(ctx context.Context) error {
				cur, err := s.sessions.FindCurrentSession(ctx)
				if err == nil {
					return apperr.User("session %d is already in progress", cur.ID)
				}
				if !repository.IsNotFound(err) {
					return err
				}
				sess := &model.Session{Date: date, StartTime: s.now()}
				if err := s.sessions.CreateSession(ctx, sess); err != nil {
					return err
				}
				if reattached, err = s.trans.ReattachDeferred(ctx, sess.ID); err != nil {
					return err
				}
				out = sess
				return nil
			})
		}
		err := start()
		if repository.IsDuplicate(err) {
			err = start()
			if repository.IsDuplicate(err) {
				return apperr.User("another terminal is starting a session; try again")
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("session_id", out.ID).Str("date", req.Date).Int64("reattached", reattached).Msg("session started")
	return out, nil
}

// End closes the current session. Every transaction in it must be
// closed; deferred transactions have already left it.
func (s *sessionService) End(ctx context.Context) (*model.Session, error) {
	var out *model.Session
	err := withLock(ctx, s.locker, sessionLock, func() error {
		return runTx(ctx, s.db, func(ctx context.Context) error {
			sess, err := s.sessions.FindCurrentSession(ctx)
			if repository.IsNotFound(err) {
				return apperr.User("no session is in progress")
			}
			if err != nil {
				return err
			}
			open := true
			ts, err := s.trans.ListTransactions(ctx, repository.TransactionFilter{SessionID: &sess.ID, Open: &open})
			if err != nil {
				return err
			}
			if len(ts) > 0 {
				return apperr.User("%d transactions are still open; close, cancel or defer them first", len(ts))
			}
			end := s.now()
			sess.EndTime = &end
			sess.Totals = nil
			out = sess
			return s.sessions.UpdateSession(ctx, sess)
		})
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("session_id", out.ID).Msg("session ended")
	return out, nil
}

func (s *sessionService) Current(ctx context.Context) (*model.Session, error) {
	sess, err := s.sessions.FindCurrentSession(ctx)
	if repository.IsNotFound(err) {
		return nil, apperr.NotFound("no session is in progress")
	}
	return sess, err
}

func (s *sessionService) Get(ctx context.Context, id int64) (*model.Session, error) {
	sess, err := s.sessions.FindSession(ctx, id)
	if repository.IsNotFound(err) {
		return nil, apperr.NotFound("session %d not found", id)
	}
	return sess, err
}

func (s *sessionService) List(ctx context.Context, filter dto.SessionListFilter) (*dto.SessionListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	out, total, err := s.sessions.ListSessions(ctx, filter.Page, filter.Limit)
	if err != nil {
		return nil, err
	}
	return &dto.SessionListResponse{Data: out, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *sessionService) Transactions(ctx context.Context, id int64) ([]dto.TransactionResponse, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	ts, err := s.trans.ListTransactions(ctx, repository.TransactionFilter{SessionID: &id})
	if err != nil {
		return nil, err
	}
	out := make([]dto.TransactionResponse, len(ts))
	for i := range ts {
		out[i] = *dto.NewTransactionResponse(&ts[i])
	}
	return out, nil
}

// veto turns a hook's refusal into a user error.
func veto(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.User("%s", err.Error())
}

// checkTotals rounds the declared amounts and rejects unknown payment
// methods. At least one amount is required, so recorded takings are
// never empty; a session that took nothing is declared as zero cash.
func (s *sessionService) checkTotals(ctx context.Context, sessionID int64, req dto.TotalsRequest) ([]model.SessionTotal, map[string]decimal.Decimal, error) {
	if len(req.Totals) == 0 {
		return nil, nil, apperr.User("no takings declared; enter 0.00 for a payment method that took nothing")
	}
	pts, err := s.trans.ListPayTypes(ctx)
	if err != nil {
		return nil, nil, err
	}
	known := make(map[string]bool, len(pts))
	for _, pt := range pts {
		known[pt.ID] = true
	}
	keys := make([]string, 0, len(req.Totals))
	for k := range req.Totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]model.SessionTotal, 0, len(keys))
	totals := make(map[string]decimal.Decimal, len(keys))
	for _, k := range keys {
		if !known[k] {
			return nil, nil, apperr.User("unknown payment method %q", k)
		}
		amount := req.Totals[k].Round(2)
		rows = append(rows, model.SessionTotal{SessionID: sessionID, PayTypeID: k, Amount: amount})
		totals[k] = amount
	}
	return rows, totals, nil
}

// RecordTotals stores the counted takings of an ended session. The
// hooks may refuse them; once stored they are passed on.
func (s *sessionService) RecordTotals(ctx context.Context, id int64, req dto.TotalsRequest) (*dto.SessionSummary, error) {
	var sess *model.Session
	var totals map[string]decimal.Decimal
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		if sess, err = s.Get(ctx, id); err != nil {
			return err
		}
		if sess.Current() {
			return apperr.User("session %d has not ended yet", id)
		}
		if len(sess.Totals) > 0 {
			return apperr.User("takings for session %d have already been recorded", id)
		}
		var rows []model.SessionTotal
		if rows, totals, err = s.checkTotals(ctx, id, req); err != nil {
			return err
		}
		if err := s.hooks.PreRecordTakings(ctx, sess, totals); err != nil {
			return veto(err)
		}
		return s.sessions.CreateSessionTotals(ctx, rows)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("session_id", id).Msg("session takings recorded")
	if err := s.hooks.PostRecordTakings(ctx, sess, totals); err != nil {
		log.Error().Err(err).Int64("session_id", id).Msg("post-record takings hook failed")
	}
	return s.Summary(ctx, id)
}

// UpdateTotals replaces the declared takings unless an external system
// has already accepted them.
func (s *sessionService) UpdateTotals(ctx context.Context, id int64, req dto.TotalsRequest) (*dto.SessionSummary, error) {
	var sess *model.Session
	var totals map[string]decimal.Decimal
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		if sess, err = s.Get(ctx, id); err != nil {
			return err
		}
		if len(sess.Totals) == 0 {
			return apperr.User("takings for session %d have not been recorded", id)
		}
		ref, err := s.hooks.FetchReconciledTakings(ctx, sess)
		if err != nil {
			return apperr.External(err, "could not check whether session %d has been reconciled", id)
		}
		if ref != nil {
			return apperr.User("takings for session %d were accepted as %s and can't be changed", id, *ref)
		}
		var rows []model.SessionTotal
		if rows, totals, err = s.checkTotals(ctx, id, req); err != nil {
			return err
		}
		if err := s.hooks.PreUpdateTakings(ctx, sess, totals); err != nil {
			return veto(err)
		}
		if err := s.sessions.DeleteSessionTotals(ctx, id); err != nil {
			return err
		}
		return s.sessions.CreateSessionTotals(ctx, rows)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("session_id", id).Msg("session takings updated")
	if err := s.hooks.PostUpdateTakings(ctx, sess, totals); err != nil {
		log.Error().Err(err).Int64("session_id", id).Msg("post-update takings hook failed")
	}
	return s.Summary(ctx, id)
}

// Summary reconciles what the till took with what was declared, per
// payment method, and breaks sales down by department.
func (s *sessionService) Summary(ctx context.Context, id int64) (*dto.SessionSummary, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	paid, err := s.trans.SumPaymentsByPayType(ctx, id)
	if err != nil {
		return nil, err
	}
	byDept, err := s.trans.SumTranslinesByDept(ctx, id)
	if err != nil {
		return nil, err
	}
	pts, err := s.trans.ListPayTypes(ctx)
	if err != nil {
		return nil, err
	}
	depts, err := s.depts.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	declared := make(map[string]decimal.Decimal, len(sess.Totals))
	for _, t := range sess.Totals {
		declared[t.PayTypeID] = t.Amount
	}

	out := &dto.SessionSummary{Session: *sess, PayTypes: []dto.PayTypeTotal{}, Departments: []dto.DeptTotal{}}
	for _, pt := range pts {
		till, tookAny := paid[pt.ID]
		dec, wasDeclared := declared[pt.ID]
		if !tookAny && !wasDeclared {
			continue
		}
		row := dto.PayTypeTotal{PayType: pt.ID, Description: pt.Description, TillTotal: till}
		if wasDeclared {
			d := dec
			diff := dec.Sub(till)
			row.Declared, row.Difference = &d, &diff
			out.Declared = out.Declared.Add(dec)
		}
		out.Total = out.Total.Add(till)
		out.PayTypes = append(out.PayTypes, row)
	}
	for _, d := range depts {
		total, ok := byDept[d.ID]
		if !ok {
			continue
		}
		out.Departments = append(out.Departments, dto.DeptTotal{DeptID: d.ID, Description: d.Description, Total: total})
	}
	return out, nil
}

// PrintSummary prints the session summary on the receipt printer.
func (s *sessionService) PrintSummary(ctx context.Context, id int64) error {
	sum, err := s.Summary(ctx, id)
	if err != nil {
		return err
	}
	siteName := ""
	if s.site != nil {
		if site, err := s.site.Site(ctx); err == nil {
			siteName = site.SiteName
		}
	}
	err = printer.Print(ctx, s.printer, func(p printer.Driver) error {
		lines := []printer.Line{
			{Centre: siteName, Emph: true},
			{Centre: fmt.Sprintf("Session %d", sum.Session.ID), Emph: true},
			{Left: "Date", Right: time.Time(sum.Session.Date).Format(dateLayout)},
			{},
			{Left: "Payment", Centre: "Till", Right: "Declared", Emph: true},
		}
		for _, pt := range sum.PayTypes {
			declared := ""
			if pt.Declared != nil {
				declared = pt.Declared.StringFixed(2)
			}
			lines = append(lines, printer.Line{Left: pt.Description, Centre: pt.TillTotal.StringFixed(2), Right: declared})
		}
		lines = append(lines, printer.Line{Left: "Total", Centre: sum.Total.StringFixed(2), Right: sum.Declared.StringFixed(2), Emph: true}, printer.Line{})
		for _, d := range sum.Departments {
			lines = append(lines, printer.Line{Left: d.Description, Right: d.Total.StringFixed(2)})
		}
		for _, l := range lines {
			if err := p.PrintLine(l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int64("session_id", id).Msg("session summary print failed")
		return apperr.External(err, "printing the summary of session %d failed", id)
	}
	return nil
}
