package worker

// export_worker.go
// Delivers a session's declared takings to the accounts service. A job is
// attempted a few times in quick succession; after that the export is left
// pending with a next_retry_at for the retry cron, and after
// MaxExportRetries it is marked failed and kept in the failed takings jobs.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/infra"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const MaxExportRetries = 8

// TakingsPoster is the accounts service as seen by the export worker.
type TakingsPoster interface {
	Configured() bool
	PostTakings(ctx context.Context, payload infra.TakingsPayload) (*infra.TakingsReceipt, error)
}

// Summarizer produces the summary of a session.
type Summarizer interface {
	Summary(ctx context.Context, id int64) (*dto.SessionSummary, error)
}

// ExportWorker processes QueueTakingsExport jobs.
type ExportWorker struct {
	sessions repository.SessionRepository
	summary  Summarizer
	accounts TakingsPoster
	cb       *infra.CircuitBreaker
	failed   *FailedJobs
	terminal string
	attempts int
	now      func() time.Time
}

type ExportWorkerConfig struct {
	Sessions repository.SessionRepository
	Summary  Summarizer
	Accounts TakingsPoster
	CB       *infra.CircuitBreaker
	RDB      *redis.Client // nil keeps no record of given-up exports
	Terminal string
	Attempts int // immediate attempts per job, default 3
}

func NewExportWorker(cfg ExportWorkerConfig) *ExportWorker {
	w := &ExportWorker{
		sessions: cfg.Sessions,
		summary:  cfg.Summary,
		accounts: cfg.Accounts,
		cb:       cfg.CB,
		terminal: cfg.Terminal,
		attempts: cfg.Attempts,
		failed:   NewFailedJobs(cfg.RDB),
		now:      time.Now,
	}
	if w.cb == nil {
		w.cb = infra.NewCircuitBreaker(infra.DefaultCBConfig())
	}
	if w.attempts <= 0 {
		w.attempts = 3
	}
	return w
}

func (w *ExportWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload SessionJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.SessionID == 0 {
		log.Error().Err(err).Str("payload", string(raw)).Msg("export_worker: invalid payload")
		return
	}
	e, err := w.sessions.FindSessionExport(ctx, payload.SessionID)
	if err != nil {
		log.Error().Err(err).Int64("session_id", payload.SessionID).Msg("export_worker: export record not found")
		return
	}
	if e.Status != model.ExportPending {
		log.Debug().Int64("session_id", e.SessionID).Str("status", e.Status).Msg("export_worker: nothing to do")
		return
	}
	w.export(ctx, e, w.attempts)
}

// export makes up to attempts calls and records the outcome on e.
func (w *ExportWorker) export(ctx context.Context, e *model.SessionExport, attempts int) {
	if !w.accounts.Configured() {
		log.Debug().Int64("session_id", e.SessionID).Msg("export_worker: no accounts service configured")
		return
	}
	payload, err := w.payload(ctx, e.SessionID)
	if err != nil {
		w.fail(ctx, e, err)
		return
	}

	var receipt *infra.TakingsReceipt
	err = withRetry(ctx, attempts, func(attempt int) error {
		return w.cb.Execute(func() error {
			r, err := w.accounts.PostTakings(ctx, payload)
			if err != nil {
				log.Warn().Err(err).Int("attempt", attempt+1).Int64("session_id", e.SessionID).
					Msg("export_worker: accounts attempt failed")
				return err
			}
			receipt = r
			return nil
		})
	})
	if err != nil {
		w.fail(ctx, e, err)
		return
	}

	ref := receipt.Reference
	e.Status = model.ExportDone
	e.Reference = &ref
	e.NextRetryAt = nil
	e.LastError = nil
	if err := w.sessions.UpdateSessionExport(ctx, e); err != nil {
		log.Error().Err(err).Int64("session_id", e.SessionID).Msg("export_worker: failed to record export")
		return
	}
	log.Info().Str("reference", ref).Int64("session_id", e.SessionID).Int("retries", e.RetryCount).
		Msg("export_worker: takings booked")
}

func (w *ExportWorker) fail(ctx context.Context, e *model.SessionExport, cause error) {
	e.RetryCount++
	msg := cause.Error()
	e.LastError = &msg
	if e.RetryCount >= MaxExportRetries {
		e.Status = model.ExportFailed
		e.NextRetryAt = nil
		log.Error().Int64("session_id", e.SessionID).Int("retries", e.RetryCount).
			Msg("export_worker: max retries exceeded")
		raw, _ := json.Marshal(SessionJobPayload{SessionID: e.SessionID})
		w.failed.File(ctx, QueueTakingsExport, JobTakingsExport, raw,
			fmt.Sprintf("max retries (%d) exceeded: %s", MaxExportRetries, msg), e.RetryCount)
	} else {
		next := w.now().Add(computeRetryBackoff(e.RetryCount))
		e.NextRetryAt = &next
		log.Warn().Int64("session_id", e.SessionID).Int("retry_count", e.RetryCount).Time("next_retry_at", next).
			Msg("export_worker: export failed, scheduled next attempt")
	}
	if err := w.sessions.UpdateSessionExport(ctx, e); err != nil {
		log.Error().Err(err).Int64("session_id", e.SessionID).Msg("export_worker: failed to record failure")
	}
}

func (w *ExportWorker) payload(ctx context.Context, sessionID int64) (infra.TakingsPayload, error) {
	sum, err := w.summary.Summary(ctx, sessionID)
	if err != nil {
		return infra.TakingsPayload{}, err
	}
	p := infra.TakingsPayload{
		SessionID:   sessionID,
		Date:        time.Time(sum.Session.Date).Format("2006-01-02"),
		Takings:     make(map[string]decimal.Decimal, len(sum.PayTypes)),
		Departments: make(map[string]decimal.Decimal, len(sum.Departments)),
		Terminal:    w.terminal,
	}
	for _, pt := range sum.PayTypes {
		if pt.Declared != nil {
			p.Takings[pt.PayType] = *pt.Declared
		}
	}
	for _, d := range sum.Departments {
		p.Departments[strconv.FormatInt(d.DeptID, 10)] = d.Total
	}
	return p, nil
}

// withRetry calls fn up to maxAttempts times with exponential backoff:
// immediately, then after 1s, 2s and so on. An open circuit stops early.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err := fn(i)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, infra.ErrCircuitOpen) {
			break
		}
	}
	return lastErr
}

// computeRetryBackoff spaces cron retries out: 1m, 2m, 4m ... capped at 1h.
func computeRetryBackoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	d := time.Minute << uint(retryCount-1)
	if d > time.Hour || d <= 0 {
		return time.Hour
	}
	return d
}
