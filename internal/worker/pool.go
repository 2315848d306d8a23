package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueTakingsExport = "jobs:takings_export"
	QueueTakingsReport = "jobs:takings_report"
)

const (
	JobTakingsExport = "takings_export"
	JobTakingsReport = "takings_report"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SessionJobPayload names the session a job is about.
type SessionJobPayload struct {
	SessionID int64 `json:"session_id"`
}

// Processor handles the payload of one job type.
type Processor interface {
	Process(ctx context.Context, raw json.RawMessage)
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb redis.Cmdable
}

func NewDispatcher(rdb redis.Cmdable) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueTakingsExport queues delivery of a session's takings to the
// accounts service.
func (d *Dispatcher) EnqueueTakingsExport(ctx context.Context, sessionID int64) error {
	return d.enqueue(ctx, QueueTakingsExport, JobTakingsExport, SessionJobPayload{SessionID: sessionID})
}

// EnqueueTakingsReport queues the mailed takings report.
func (d *Dispatcher) EnqueueTakingsReport(ctx context.Context, sessionID int64) error {
	return d.enqueue(ctx, QueueTakingsReport, JobTakingsReport, SessionJobPayload{SessionID: sessionID})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool routes dequeued jobs to their processors.
type Pool struct {
	rdb        *redis.Client
	failed     *FailedJobs
	processors map[string]Processor
}

func NewPool(rdb *redis.Client) *Pool {
	return &Pool{rdb: rdb, failed: NewFailedJobs(rdb), processors: make(map[string]Processor)}
}

// Failed is where the pool keeps jobs it gave up on.
func (p *Pool) Failed() *FailedJobs { return p.failed }

// Handle registers p for jobs of the given type.
func (p *Pool) Handle(jobType string, proc Processor) {
	p.processors[jobType] = proc
}

// Start launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	queues := []string{QueueTakingsExport, QueueTakingsReport}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop; waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		p.failed.File(ctx, queue, "unknown", json.RawMessage(raw), "malformed envelope: "+err.Error(), 0)
		return
	}
	proc, ok := p.processors[job.Type]
	if !ok {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no processor for job type")
		p.failed.File(ctx, queue, job.Type, job.Payload, "no processor registered", 0)
		return
	}
	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("processing job")
	proc.Process(ctx, job.Payload)
}
