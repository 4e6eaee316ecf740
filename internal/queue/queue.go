// Package queue implements a durable Redis-backed work queue with
// deduplicated enqueue, fixed retry attempts, and exponential backoff.
// Claimed tasks sit on a processing list under a lease; if the consumer
// dies mid-task the lease expires and the task returns to the ready list.
// Delivery is at-least-once and ordering is not guaranteed.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Task is one unit of work delivered to a handler.
type Task struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
}

// Options controls retry policy for an enqueued task. JobID doubles as the
// deduplication key: enqueueing the same id twice is a no-op, which makes
// admission-side resubmission idempotent.
type Options struct {
	JobID    string
	Attempts int
	Backoff  time.Duration
}

// Handler processes one task. A returned error triggers redelivery until the
// task's attempts are exhausted.
type Handler func(ctx context.Context, task *Task) error

const (
	dedupeTTL       = 24 * time.Hour
	popTimeout      = time.Second
	promoteInterval = 500 * time.Millisecond
	defaultLease    = 5 * time.Minute
)

// Queue is a named Redis work queue. One ready list feeds all workers; a
// delayed sorted set holds tasks waiting out a retry backoff; a processing
// list plus a lease sorted set track claimed tasks so a crashed consumer's
// work can be reclaimed.
type Queue struct {
	client  *redis.Client
	name    string
	logger  *slog.Logger
	backoff time.Duration
	lease   time.Duration
}

// New creates a Queue from a Redis URL. lease bounds how long a claimed task
// may sit unfinished before another consumer reclaims it, so it must exceed
// the longest handler runtime; a non-positive value uses the default.
func New(redisURL, name string, backoff, lease time.Duration, logger *slog.Logger) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if lease <= 0 {
		lease = defaultLease
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		client:  redis.NewClient(opts),
		name:    name,
		logger:  logger,
		backoff: backoff,
		lease:   lease,
	}, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) readyKey() string           { return "queue:" + q.name + ":ready" }
func (q *Queue) delayedKey() string         { return "queue:" + q.name + ":delayed" }
func (q *Queue) processingKey() string      { return "queue:" + q.name + ":processing" }
func (q *Queue) leaseKey() string           { return "queue:" + q.name + ":leases" }
func (q *Queue) jobKey(id string) string    { return "queue:" + q.name + ":job:" + id }
func (q *Queue) dedupeKey(id string) string { return "queue:" + q.name + ":id:" + id }

// Enqueue stores the task body and pushes its id onto the ready list. The
// task survives process restarts; only a Redis failure surfaces as an error.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload any, opts Options) error {
	if opts.JobID == "" {
		return fmt.Errorf("enqueue %s: job id is required", taskType)
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	ok, err := q.client.SetNX(ctx, q.dedupeKey(opts.JobID), 1, dedupeTTL).Result()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	if !ok {
		// Already queued under this id; idempotent resubmission.
		return nil
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(opts.JobID), map[string]any{
		"type":         taskType,
		"payload":      string(body),
		"attempt":      0,
		"max_attempts": opts.Attempts,
	})
	pipe.Expire(ctx, q.jobKey(opts.JobID), dedupeTTL)
	pipe.LPush(ctx, q.readyKey(), opts.JobID)
	if _, err := pipe.Exec(ctx); err != nil {
		// Roll the dedupe marker back so a later resubmission is not silently dropped.
		q.client.Del(context.WithoutCancel(ctx), q.dedupeKey(opts.JobID))
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

// Run consumes tasks with a fixed pool of workers until ctx is done. Tasks in
// flight when ctx is cancelled finish their current attempt.
func (q *Queue) Run(ctx context.Context, handler Handler, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.maintenanceLoop(ctx)
	}()

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.workLoop(ctx, handler)
		}()
	}
	wg.Wait()
}

// workLoop claims tasks by moving them onto the processing list, never by
// popping them: a task id must exist somewhere in Redis at every moment, or
// a crash between pop and finish would lose it while its tracking record
// stays processing forever.
func (q *Queue) workLoop(ctx context.Context, handler Handler) {
	for {
		if ctx.Err() != nil {
			return
		}
		id, err := q.client.BLMove(ctx, q.readyKey(), q.processingKey(), "RIGHT", "LEFT", popTimeout).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.logger.Error("queue claim failed", "queue", q.name, "error", err)
			time.Sleep(popTimeout)
			continue
		}
		// Stamp the lease. If this write is lost the maintenance loop adopts
		// the entry, so processing may proceed regardless.
		if err := q.client.ZAdd(ctx, q.leaseKey(), redis.Z{
			Score: float64(time.Now().UnixMilli()), Member: id,
		}).Err(); err != nil {
			q.logger.Error("queue lease write failed", "queue", q.name, "job_id", id, "error", err)
		}
		q.process(ctx, handler, id)
	}
}

func (q *Queue) process(ctx context.Context, handler Handler, id string) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil || len(fields) == 0 {
		q.logger.Error("queue job body missing", "queue", q.name, "job_id", id, "error", err)
		q.ack(ctx, id)
		return
	}

	attempt, _ := strconv.Atoi(fields["attempt"])
	maxAttempts, _ := strconv.Atoi(fields["max_attempts"])
	attempt++

	task := &Task{
		ID:          id,
		Type:        fields["type"],
		Payload:     json.RawMessage(fields["payload"]),
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
	}

	if err := handler(ctx, task); err != nil {
		q.retryOrDrop(ctx, task, err)
		return
	}
	q.ack(ctx, id)
}

// retryOrDrop schedules the next attempt with exponential backoff, or removes
// the task once attempts are exhausted. The handler persists its own failure
// state, so a dropped task is already reflected in the tracking record.
func (q *Queue) retryOrDrop(ctx context.Context, task *Task, cause error) {
	if task.Attempt >= task.MaxAttempts {
		q.logger.Error("task failed permanently",
			"queue", q.name, "job_id", task.ID, "type", task.Type,
			"attempt", task.Attempt, "error", cause)
		q.ack(ctx, task.ID)
		return
	}

	delay := q.backoff * time.Duration(1<<(task.Attempt-1))
	due := time.Now().Add(delay)
	q.logger.Warn("task failed, scheduling retry",
		"queue", q.name, "job_id", task.ID, "type", task.Type,
		"attempt", task.Attempt, "retry_in", delay, "error", cause)

	ctx = context.WithoutCancel(ctx)
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(task.ID), "attempt", task.Attempt)
	pipe.LRem(ctx, q.processingKey(), 1, task.ID)
	pipe.ZRem(ctx, q.leaseKey(), task.ID)
	pipe.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(due.UnixMilli()), Member: task.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		q.logger.Error("schedule retry failed", "queue", q.name, "job_id", task.ID, "error", err)
	}
}

// ack releases the claim and deletes the task body and dedupe marker.
func (q *Queue) ack(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey(), 1, id)
	pipe.ZRem(ctx, q.leaseKey(), id)
	pipe.Del(ctx, q.jobKey(id), q.dedupeKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		q.logger.Error("queue cleanup failed", "queue", q.name, "job_id", id, "error", err)
	}
}

// maintenanceLoop promotes delayed tasks whose backoff has elapsed and
// reclaims tasks whose consumer died mid-claim.
func (q *Queue) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.promoteDue(ctx)
			q.reclaimStale(ctx)
		}
	}
}

func (q *Queue) promoteDue(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 100,
	}).Result()
	if err != nil || len(ids) == 0 {
		return
	}
	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.delayedKey(), id)
		pipe.LPush(ctx, q.readyKey(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		q.logger.Error("promote delayed tasks failed", "queue", q.name, "error", err)
	}
}

// reclaimStale returns tasks on the processing list whose lease has expired
// to the ready list. A processing entry with no lease at all means its
// claimer died between the claim and the lease write; it is adopted with a
// fresh lease so it ages out on the normal schedule instead of lingering.
func (q *Queue) reclaimStale(ctx context.Context) {
	ids, err := q.client.LRange(ctx, q.processingKey(), 0, -1).Result()
	if err != nil || len(ids) == 0 {
		return
	}
	cutoff := time.Now().Add(-q.lease).UnixMilli()
	for _, id := range ids {
		score, err := q.client.ZScore(ctx, q.leaseKey(), id).Result()
		if errors.Is(err, redis.Nil) {
			q.client.ZAddNX(ctx, q.leaseKey(), redis.Z{
				Score: float64(time.Now().UnixMilli()), Member: id,
			})
			continue
		}
		if err != nil || int64(score) > cutoff {
			continue
		}
		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, q.processingKey(), 1, id)
		pipe.ZRem(ctx, q.leaseKey(), id)
		pipe.LPush(ctx, q.readyKey(), id)
		if _, err := pipe.Exec(ctx); err != nil {
			q.logger.Error("reclaim stalled task failed", "queue", q.name, "job_id", id, "error", err)
			continue
		}
		q.logger.Warn("reclaimed stalled task", "queue", q.name, "job_id", id)
	}
}
