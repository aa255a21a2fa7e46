package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/providers"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/repositories"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/ehr"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/observability"
	"github.com/zatekoja/Chartreviewautomation/pkg/config"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
)

// EligibilitySummary reports one eligibility scheduling cycle.
type EligibilitySummary struct {
	Scanned  int
	Eligible int
	Queued   int
	Skipped  int
}

// EligibilityService schedules and performs insurance coverage checks
// for upcoming appointments. Scheduling dedups on
// (encounter, coverage date): one verification per appointment day.
type EligibilityService struct {
	ehrClient ehr.Client
	tokens    *TokenService
	checks    repositories.EligibilityRepository
	queue     providers.JobQueue
	bus       providers.EventBus
	cfg       config.JobsConfig
	pageSize  int
	logger    zerolog.Logger
}

// NewEligibilityService creates a new eligibility service.
func NewEligibilityService(
	ehrClient ehr.Client,
	tokens *TokenService,
	checks repositories.EligibilityRepository,
	queue providers.JobQueue,
	bus providers.EventBus,
	cfg config.JobsConfig,
	pageSize int,
) *EligibilityService {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &EligibilityService{
		ehrClient: ehrClient,
		tokens:    tokens,
		checks:    checks,
		queue:     queue,
		bus:       bus,
		cfg:       cfg,
		pageSize:  pageSize,
		logger:    observability.ComponentLogger("eligibility"),
	}
}

// RunCycle scans upcoming appointments inside the verification window
// and queues coverage checks for patients with a payer on file.
func (s *EligibilityService) RunCycle(ctx context.Context) (*EligibilitySummary, error) {
	ctx, span := observability.StartSpan(ctx, "eligibility.run_cycle")
	defer span.End()

	summary := &EligibilitySummary{}

	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return summary, err
	}

	now := time.Now().UTC()
	windowEnd := now.Add(s.cfg.EligibilityWindow)
	offset := 0

	for {
		page, err := s.ehrClient.ListEncounters(ctx, token.AccessToken, ehr.ListEncountersRequest{
			Offset: offset,
			Limit:  s.pageSize,
		})
		if err != nil {
			observability.RecordError(span, err)
			return summary, err
		}
		if len(page.Data) == 0 {
			break
		}

		for i := range page.Data {
			if summary.Scanned >= s.cfg.DiscoveryCap {
				s.logSummary(summary)
				return summary, nil
			}
			summary.Scanned++
			s.consider(ctx, &page.Data[i], now, windowEnd, summary)
		}

		offset += len(page.Data)
	}

	s.logSummary(summary)
	return summary, nil
}

func (s *EligibilityService) consider(ctx context.Context, enc *entities.Encounter, now, windowEnd time.Time, summary *EligibilitySummary) {
	if enc.Status != entities.EncounterStatusScheduled || !enc.PayerOnFile {
		return
	}
	if !enc.ServiceDate.After(now) || enc.ServiceDate.After(windowEnd) {
		return
	}

	coverageDate := enc.ServiceDate.UTC().Truncate(24 * time.Hour)

	if enc.PatientID == "" {
		s.recordError(ctx, enc.ID, "", coverageDate, "encounter missing patient identifier")
		summary.Skipped++
		return
	}

	summary.Eligible++

	exists, err := s.checks.RecentExists(ctx, enc.ID, coverageDate)
	if err != nil {
		s.logger.Error().Err(err).Str("encounter_id", enc.ID).Msg("eligibility dedup lookup failed, skipping")
		summary.Skipped++
		return
	}
	if exists {
		summary.Skipped++
		return
	}

	queued := &entities.EligibilityCheck{
		EncounterID:  enc.ID,
		PatientID:    enc.PatientID,
		CoverageDate: coverageDate,
		Status:       entities.EligibilityQueued,
	}
	if err := s.checks.Upsert(ctx, queued); err != nil {
		s.logger.Error().Err(err).Str("encounter_id", enc.ID).Msg("failed to record queued eligibility check")
		summary.Skipped++
		return
	}

	job := &entities.Job{
		Type:         entities.JobTypeEligibilityCheck,
		EncounterID:  enc.ID,
		PatientID:    enc.PatientID,
		CoverageDate: &coverageDate,
		TriggeredBy:  "eligibility_cycle",
	}
	delay := time.Duration(summary.Queued) * s.cfg.Stagger
	if err := s.queue.Enqueue(ctx, job, delay); err != nil {
		s.logger.Error().Err(err).Str("encounter_id", enc.ID).Msg("failed to enqueue eligibility check")
		summary.Skipped++
		return
	}
	summary.Queued++
}

// Verify performs one coverage check against the upstream payer
// endpoint and records the outcome. Transient upstream failures
// propagate so the retrier can re-enqueue the job.
func (s *EligibilityService) Verify(ctx context.Context, job *entities.Job) error {
	ctx, span := observability.StartSpan(ctx, "eligibility.verify")
	defer span.End()

	if job.PatientID == "" || job.CoverageDate == nil {
		return apperrors.NewValidationError("eligibility job missing patient id or coverage date")
	}
	coverageDate := *job.CoverageDate

	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	coverage, err := s.ehrClient.GetCoverage(ctx, token.AccessToken, job.PatientID)
	if err != nil {
		observability.RecordError(span, err)
		if !apperrors.IsTransient(err) {
			s.recordError(ctx, job.EncounterID, job.PatientID, coverageDate, err.Error())
		}
		return err
	}

	now := time.Now().UTC()
	check := &entities.EligibilityCheck{
		EncounterID:  job.EncounterID,
		PatientID:    job.PatientID,
		CoverageDate: coverageDate,
		Status:       entities.EligibilityVerified,
		Detail:       coverage.Detail,
		CheckedAt:    &now,
	}
	if !coverage.Active {
		check.Status = entities.EligibilityInactive
	}
	if err := s.checks.Upsert(ctx, check); err != nil {
		observability.RecordError(span, err)
		return err
	}

	s.publishVerified(ctx, check)
	s.logger.Info().
		Str("encounter_id", job.EncounterID).
		Str("status", string(check.Status)).
		Msg("eligibility verified")
	return nil
}

func (s *EligibilityService) recordError(ctx context.Context, encounterID, patientID string, coverageDate time.Time, detail string) {
	check := &entities.EligibilityCheck{
		EncounterID:  encounterID,
		PatientID:    patientID,
		CoverageDate: coverageDate,
		Status:       entities.EligibilityError,
		Detail:       detail,
	}
	if err := s.checks.Upsert(ctx, check); err != nil {
		s.logger.Error().Err(err).Str("encounter_id", encounterID).Msg("failed to record eligibility error")
	}
}

func (s *EligibilityService) publishVerified(ctx context.Context, check *entities.EligibilityCheck) {
	event := &entities.PipelineEvent{
		ID:          uuid.New().String(),
		Type:        entities.EventEligibilityVerified,
		EncounterID: check.EncounterID,
		Data: map[string]string{
			"status":        string(check.Status),
			"coverage_date": check.CoverageDate.Format("2006-01-02"),
		},
		Timestamp: time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, providers.EventChannelEligibility, event); err != nil {
		s.logger.Warn().Err(err).Str("encounter_id", check.EncounterID).Msg("failed to publish eligibility event")
	}
}

func (s *EligibilityService) logSummary(summary *EligibilitySummary) {
	s.logger.Info().
		Int("scanned", summary.Scanned).
		Int("eligible", summary.Eligible).
		Int("queued", summary.Queued).
		Int("skipped", summary.Skipped).
		Msg("eligibility cycle finished")
}
