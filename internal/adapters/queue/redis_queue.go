package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/observability"
	redisclient "github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/redis"
)

// Handler processes one delivered job. Returning an error marks the
// delivery failed; retry policy lives with the handler, not the queue.
type Handler func(ctx context.Context, job *entities.Job) error

const (
	promoteInterval = time.Second
	popTimeout      = 2 * time.Second
	promoteBatch    = 100
)

// RedisQueue is a durable job queue on Redis: one ready list and one
// delayed sorted set per job type. Delayed members are promoted to the
// ready list when due. Delivery is at-least-once: a consumer crash
// between BRPOP and completion loses no durable state beyond that one
// delivery, and keyed upserts downstream absorb duplicates.
type RedisQueue struct {
	client *redisclient.Client
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	promoting map[entities.JobType]bool
	closed    bool
}

// NewRedisQueue creates a new Redis-backed queue.
func NewRedisQueue(client *redisclient.Client) *RedisQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisQueue{
		client:    client,
		logger:    observability.ComponentLogger("queue"),
		ctx:       ctx,
		cancel:    cancel,
		promoting: make(map[entities.JobType]bool),
	}
}

func readyKey(jobType entities.JobType) string {
	return fmt.Sprintf("jobs:%s:ready", jobType)
}

func delayedKey(jobType entities.JobType) string {
	return fmt.Sprintf("jobs:%s:delayed", jobType)
}

// Enqueue schedules a job for delivery after the given delay.
func (q *RedisQueue) Enqueue(ctx context.Context, job *entities.Job, delay time.Duration) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.ScheduledAt = time.Now().UTC().Add(delay)

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	rdb := q.client.Client()
	if delay <= 0 {
		if err := rdb.LPush(ctx, readyKey(job.Type), payload).Err(); err != nil {
			return fmt.Errorf("failed to enqueue job: %w", err)
		}
		return nil
	}

	score := float64(job.ScheduledAt.Unix())
	if err := rdb.ZAdd(ctx, delayedKey(job.Type), redis.Z{Score: score, Member: payload}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue delayed job: %w", err)
	}
	return nil
}

// StartWorker runs `concurrency` consumers for one job type plus a
// promoter loop moving due delayed jobs onto the ready list.
func (q *RedisQueue) StartWorker(jobType entities.JobType, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if !q.promoting[jobType] {
		q.promoting[jobType] = true
		q.wg.Add(1)
		go q.promoteLoop(jobType)
	}
	q.mu.Unlock()

	for i := 0; i < concurrency; i++ {
		q.wg.Add(1)
		go q.consumeLoop(jobType, handler)
	}

	q.logger.Info().
		Str("job_type", string(jobType)).
		Int("concurrency", concurrency).
		Msg("queue worker started")
}

// promoteLoop moves due members of the delayed set to the ready list.
// ZRem is the claim: only the caller that removed the member pushes it.
func (q *RedisQueue) promoteLoop(jobType entities.JobType) {
	defer q.wg.Done()

	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.promoteDue(jobType)
		}
	}
}

func (q *RedisQueue) promoteDue(jobType entities.JobType) {
	rdb := q.client.Client()
	now := strconv.FormatInt(time.Now().UTC().Unix(), 10)

	members, err := rdb.ZRangeByScore(q.ctx, delayedKey(jobType), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: promoteBatch,
	}).Result()
	if err != nil {
		q.logger.Error().Err(err).Str("job_type", string(jobType)).Msg("failed to scan delayed jobs")
		return
	}

	for _, member := range members {
		removed, err := rdb.ZRem(q.ctx, delayedKey(jobType), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := rdb.LPush(q.ctx, readyKey(jobType), member).Err(); err != nil {
			q.logger.Error().Err(err).Str("job_type", string(jobType)).Msg("failed to promote delayed job")
		}
	}
}

func (q *RedisQueue) consumeLoop(jobType entities.JobType, handler Handler) {
	defer q.wg.Done()

	rdb := q.client.Client()
	for {
		select {
		case <-q.ctx.Done():
			return
		default:
		}

		res, err := rdb.BRPop(q.ctx, popTimeout, readyKey(jobType)).Result()
		if err != nil {
			if err == redis.Nil || q.ctx.Err() != nil {
				continue
			}
			q.logger.Error().Err(err).Str("job_type", string(jobType)).Msg("failed to pop job")
			select {
			case <-q.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		var job entities.Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.logger.Error().Err(err).Str("job_type", string(jobType)).Msg("failed to unmarshal job, dropping")
			continue
		}

		q.dispatch(&job, handler)
	}
}

// dispatch runs the handler with panic isolation: one job's crash
// must not take down the worker.
func (q *RedisQueue) dispatch(job *entities.Job, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().
				Str("job_id", job.ID).
				Str("job_type", string(job.Type)).
				Interface("panic", r).
				Msg("job handler panicked")
		}
	}()

	// Close cancels q.ctx to stop the pop loops; a job already popped
	// runs on a context that survives the cancel so it finishes or
	// fails on its own terms.
	if err := handler(context.WithoutCancel(q.ctx), job); err != nil {
		q.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Str("job_type", string(job.Type)).
			Str("encounter_id", job.EncounterID).
			Int("attempts_made", job.AttemptsMade).
			Msg("job failed")
	}
}

// Close stops all workers; in-flight jobs finish or fail naturally.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	q.logger.Info().Msg("queue closed")
	return nil
}
