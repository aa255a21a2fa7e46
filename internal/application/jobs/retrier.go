package jobs

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/providers"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/observability"
	"github.com/zatekoja/Chartreviewautomation/pkg/config"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
	"github.com/zatekoja/Chartreviewautomation/pkg/retry"
)

// transientSignatures catches transient upstream failures whose error
// chain lost its typed classification.
var transientSignatures = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"overloaded",
	"status 429",
	"status 502",
	"status 503",
	"status 504",
}

// Retrier decides what happens to a failed job: transient failures
// re-enqueue with exponential backoff up to the attempt cap, fatal
// failures stop.
type Retrier struct {
	queue   providers.JobQueue
	metrics *observability.Metrics
	cfg     config.JobsConfig
	logger  zerolog.Logger
}

// NewRetrier creates a new retry policy.
func NewRetrier(queue providers.JobQueue, metrics *observability.Metrics, cfg config.JobsConfig) *Retrier {
	return &Retrier{
		queue:   queue,
		metrics: metrics,
		cfg:     cfg,
		logger:  observability.ComponentLogger("retrier"),
	}
}

// HandleFailure classifies the error and, for transient failures under
// the attempt cap, re-enqueues the job with backoff. The re-enqueued
// job is a fresh instance carrying the incremented attempt counter.
// Returns nil when the failure was absorbed by a retry.
func (r *Retrier) HandleFailure(ctx context.Context, job *entities.Job, cause error) error {
	if !IsTransientFailure(cause) {
		r.logger.Error().
			Err(cause).
			Str("job_id", job.ID).
			Str("job_type", string(job.Type)).
			Str("encounter_id", job.EncounterID).
			Msg("fatal job failure, not retrying")
		return cause
	}

	if job.AttemptsMade+1 >= r.cfg.MaxAttempts {
		r.logger.Error().
			Err(cause).
			Str("job_id", job.ID).
			Str("job_type", string(job.Type)).
			Str("encounter_id", job.EncounterID).
			Int("attempts_made", job.AttemptsMade+1).
			Msg("retry attempts exhausted")
		return cause
	}

	next := *job
	next.ID = ""
	next.AttemptsMade = job.AttemptsMade + 1

	delay := retry.DelayFor(job.AttemptsMade, r.cfg.BackoffBase, r.cfg.BackoffCap)
	if err := r.queue.Enqueue(ctx, &next, delay); err != nil {
		r.logger.Error().Err(err).Str("encounter_id", job.EncounterID).Msg("failed to re-enqueue job")
		return cause
	}

	observability.RecordRetryMetric(ctx, r.metrics, string(job.Type), next.AttemptsMade)
	r.logger.Warn().
		Err(cause).
		Str("job_type", string(job.Type)).
		Str("encounter_id", job.EncounterID).
		Int("attempt", next.AttemptsMade).
		Dur("delay", delay).
		Msg("transient failure, job re-enqueued")
	return nil
}

// IsTransientFailure reports whether the error warrants a retry:
// typed transient errors, context deadline expiry, or a known
// transient signature in the message.
func IsTransientFailure(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.IsTransient(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, signature := range transientSignatures {
		if strings.Contains(msg, signature) {
			return true
		}
	}
	return false
}
