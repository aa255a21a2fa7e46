package jobs

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/zatekoja/Chartreviewautomation/internal/adapters/queue"
	"github.com/zatekoja/Chartreviewautomation/internal/application/services"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/observability"
)

// Workers binds queue deliveries to the pipeline services.
type Workers struct {
	analysis    *services.AnalysisService
	remediation *services.RemediationService
	eligibility *services.EligibilityService
	retrier     *Retrier
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

// NewWorkers creates the worker bindings.
func NewWorkers(
	analysis *services.AnalysisService,
	remediation *services.RemediationService,
	eligibility *services.EligibilityService,
	retrier *Retrier,
	metrics *observability.Metrics,
) *Workers {
	return &Workers{
		analysis:    analysis,
		remediation: remediation,
		eligibility: eligibility,
		retrier:     retrier,
		metrics:     metrics,
		logger:      observability.ComponentLogger("workers"),
	}
}

// Register starts the queue consumers.
func (w *Workers) Register(q *queue.RedisQueue, noteCheckConcurrency int) {
	q.StartWorker(entities.JobTypeNoteCheck, noteCheckConcurrency, w.HandleNoteCheck)
	q.StartWorker(entities.JobTypeEligibilityCheck, 1, w.HandleEligibilityCheck)
}

// HandleNoteCheck runs one documentation analysis job. Any completed
// result carrying issues gets a remediation task; the task upsert is
// keyed on (encounter, check result), so a retried job replaces
// rather than duplicates.
func (w *Workers) HandleNoteCheck(ctx context.Context, job *entities.Job) error {
	result, err := w.analysis.Analyze(ctx, job.EncounterID, job.Force, job.TriggeredBy)
	if err != nil {
		observability.RecordJobMetric(ctx, w.metrics, string(job.Type), true)
		return w.retrier.HandleFailure(ctx, job, err)
	}
	observability.RecordJobMetric(ctx, w.metrics, string(job.Type), false)

	if result.HasIssues() && result.LifecycleStatus == entities.LifecycleCompleted {
		if err := w.remediation.CreateForResult(ctx, job.PatientID, result); err != nil {
			w.logger.Error().
				Err(err).
				Str("encounter_id", job.EncounterID).
				Msg("remediation task creation failed")
			return w.retrier.HandleFailure(ctx, job, err)
		}
	}
	return nil
}

// HandleEligibilityCheck runs one coverage verification job.
func (w *Workers) HandleEligibilityCheck(ctx context.Context, job *entities.Job) error {
	if err := w.eligibility.Verify(ctx, job); err != nil {
		observability.RecordJobMetric(ctx, w.metrics, string(job.Type), true)
		return w.retrier.HandleFailure(ctx, job, err)
	}
	observability.RecordJobMetric(ctx, w.metrics, string(job.Type), false)
	return nil
}
