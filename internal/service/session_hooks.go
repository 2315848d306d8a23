package service

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SessionHooks lets a site act on declared takings. The Pre hooks may
// veto by returning an error; the Post hooks run after the totals are
// committed and can't undo them.
type SessionHooks interface {
	PreRecordTakings(ctx context.Context, sess *model.Session, totals map[string]decimal.Decimal) error
	PostRecordTakings(ctx context.Context, sess *model.Session, totals map[string]decimal.Decimal) error
	PreUpdateTakings(ctx context.Context, sess *model.Session, totals map[string]decimal.Decimal) error
	// FetchReconciledTakings returns the reference under which an
	// external system has accepted the session's takings, or nil.
	FetchReconciledTakings(ctx context.Context, sess *model.Session) (*string, error)
	PostUpdateTakings(ctx context.Context, sess *model.Session, totals map[string]decimal.Decimal) error
}

// NoHooks accepts everything and does nothing.
type NoHooks struct{}

func (NoHooks) PreRecordTakings(context.Context, *model.Session, map[string]decimal.Decimal) error {
	return nil
}
func (NoHooks) PostRecordTakings(context.Context, *model.Session, map[string]decimal.Decimal) error {
	return nil
}
func (NoHooks) PreUpdateTakings(context.Context, *model.Session, map[string]decimal.Decimal) error {
	return nil
}
func (NoHooks) FetchReconciledTakings(context.Context, *model.Session) (*string, error) {
	return nil, nil
}
func (NoHooks) PostUpdateTakings(context.Context, *model.Session, map[string]decimal.Decimal) error {
	return nil
}

// JobQueue hands session follow-up work to the background workers.
type JobQueue interface {
	EnqueueTakingsExport(ctx context.Context, sessionID int64) error
	EnqueueTakingsReport(ctx context.Context, sessionID int64) error
}

type exportHooks struct {
	NoHooks
	sessions repository.SessionRepository
	queue    JobQueue
}

// NewExportHooks sends recorded takings to the accounts service and
// mails the takings report. Takings the accounts service has accepted
// can no longer be changed.
func NewExportHooks(sessions repository.SessionRepository, queue JobQueue) SessionHooks {
	return &exportHooks{sessions: sessions, queue: queue}
}

func (h *exportHooks) PostRecordTakings(ctx context.Context, sess *model.Session, _ map[string]decimal.Decimal) error {
	if _, err := h.sessions.FindSessionExport(ctx, sess.ID); repository.IsNotFound(err) {
		if err := h.sessions.CreateSessionExport(ctx, &model.SessionExport{SessionID: sess.ID, Status: model.ExportPending}); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	return h.enqueue(ctx, sess.ID)
}

func (h *exportHooks) FetchReconciledTakings(ctx context.Context, sess *model.Session) (*string, error) {
	e, err := h.sessions.FindSessionExport(ctx, sess.ID)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.Status != model.ExportDone {
		return nil, nil
	}
	return e.Reference, nil
}

func (h *exportHooks) PostUpdateTakings(ctx context.Context, sess *model.Session, _ map[string]decimal.Decimal) error {
	e, err := h.sessions.FindSessionExport(ctx, sess.ID)
	switch {
	case repository.IsNotFound(err):
		e = &model.SessionExport{SessionID: sess.ID, Status: model.ExportPending}
		if err := h.sessions.CreateSessionExport(ctx, e); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		e.Status, e.RetryCount, e.NextRetryAt, e.LastError = model.ExportPending, 0, nil, nil
		if err := h.sessions.UpdateSessionExport(ctx, e); err != nil {
			return err
		}
	}
	return h.enqueue(ctx, sess.ID)
}

func (h *exportHooks) enqueue(ctx context.Context, sessionID int64) error {
	if err := h.queue.EnqueueTakingsExport(ctx, sessionID); err != nil {
		return err
	}
	if err := h.queue.EnqueueTakingsReport(ctx, sessionID); err != nil {
		log.Error().Err(err).Int64("session_id", sessionID).Msg("takings report not queued")
	}
	return nil
}
