package worker

// Takings jobs the till gave up on. An export that used its last retry,
// or a job no processor claims, is kept in failed:{queue} so the manager
// can see which sessions never reached the accounts service or never had
// their report mailed. The SessionExport row stays the record of truth;
// these lists only say why.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const failedPrefix = "failed:"

// FailedQueues are the queues whose failures are kept.
var FailedQueues = []string{QueueTakingsExport, QueueTakingsReport}

// FailedList is the part of redis the failed-job lists use.
type FailedList interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// FailedJob is one takings job that will not be retried.
type FailedJob struct {
	Queue     string          `json:"queue"`
	JobType   string          `json:"job_type"`
	SessionID int64           `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Reason    string          `json:"reason"`
	Attempts  int             `json:"attempts"`
	FailedAt  time.Time       `json:"failed_at"`
}

// FailedJobs files and lists failed takings jobs. Without redis it only
// logs.
type FailedJobs struct {
	list FailedList
	now  func() time.Time
}

// NewFailedJobs keeps failures in rdb; a nil client keeps nothing.
func NewFailedJobs(rdb *redis.Client) *FailedJobs {
	if rdb == nil {
		return &FailedJobs{now: time.Now}
	}
	return newFailedJobs(rdb)
}

func newFailedJobs(list FailedList) *FailedJobs {
	return &FailedJobs{list: list, now: time.Now}
}

// Enabled reports whether failures are being kept.
func (f *FailedJobs) Enabled() bool { return f != nil && f.list != nil }

// File records that a job on queue was given up on. The session is read
// from the payload when it names one.
func (f *FailedJobs) File(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
	job := FailedJob{
		Queue:    queue,
		JobType:  jobType,
		Payload:  payload,
		Reason:   reason,
		Attempts: attempts,
		FailedAt: f.now().UTC(),
	}
	var p SessionJobPayload
	if json.Unmarshal(payload, &p) == nil {
		job.SessionID = p.SessionID
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Int64("session_id", job.SessionID).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("takings job given up")

	if !f.Enabled() {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("failed job not kept")
		return
	}
	if err := f.list.LPush(ctx, failedPrefix+queue, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("failed job not kept")
	}
}

// List returns up to limit failures on queue, newest first.
func (f *FailedJobs) List(ctx context.Context, queue string, limit int64) ([]FailedJob, error) {
	if !f.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	raw, err := f.list.LRange(ctx, failedPrefix+queue, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]FailedJob, 0, len(raw))
	for _, r := range raw {
		var j FailedJob
		if err := json.Unmarshal([]byte(r), &j); err != nil {
			log.Warn().Err(err).Str("queue", queue).Msg("unreadable failed job skipped")
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Counts returns the number of failures kept per queue.
func (f *FailedJobs) Counts(ctx context.Context) (map[string]int64, error) {
	if !f.Enabled() {
		return nil, nil
	}
	counts := make(map[string]int64, len(FailedQueues))
	for _, q := range FailedQueues {
		n, err := f.list.LLen(ctx, failedPrefix+q).Result()
		if err != nil {
			return nil, err
		}
		counts[q] = n
	}
	return counts, nil
}
