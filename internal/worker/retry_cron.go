package worker

// retry_cron.go
// Background goroutine that periodically re-attempts takings exports left
// pending with a next_retry_at in the past. The circuit breaker keeps it
// from hammering an accounts service that is down.

import (
	"context"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/infra"

	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10
)

// StartRetryCron launches a goroutine that ticks every 30s until ctx is
// cancelled.
func StartRetryCron(ctx context.Context, w *ExportWorker) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, w)
			}
		}
	}()
}

func processRetries(ctx context.Context, w *ExportWorker) {
	if w.cb.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	pending, err := w.sessions.ListPendingExports(ctx, w.now(), retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending exports")
		return
	}
	if len(pending) == 0 {
		return
	}

	log.Info().Int("count", len(pending)).Msg("retry_cron: retrying pending exports")

	for i := range pending {
		// The breaker may trip mid-batch
		if w.cb.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}
		w.export(ctx, &pending[i], 1)
	}
}
