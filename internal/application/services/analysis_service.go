package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/providers"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/repositories"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/ehr"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// checkedByReuse marks results copied from a stored fingerprint match
// rather than produced by a fresh model run.
const checkedByReuse = "fingerprint_reuse"

// AnalysisService runs the documentation check pipeline for one
// encounter: fetch note, normalize, fingerprint dedup, concurrent
// checks, merged verdict, persisted result.
type AnalysisService struct {
	ehrClient ehr.Client
	tokens    *TokenService
	results   repositories.CheckResultRepository
	checks    []documentationCheck
	bus       providers.EventBus
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewAnalysisService creates the analysis orchestrator with the fixed
// check set bound to the given AI provider and models.
func NewAnalysisService(
	ehrClient ehr.Client,
	tokens *TokenService,
	results repositories.CheckResultRepository,
	completer providers.ChatCompleter,
	bus providers.EventBus,
	metrics *observability.Metrics,
	models CheckModels,
) *AnalysisService {
	return &AnalysisService{
		ehrClient: ehrClient,
		tokens:    tokens,
		results:   results,
		checks:    buildCheckSet(completer, models),
		bus:       bus,
		metrics:   metrics,
		logger:    observability.ComponentLogger("analysis"),
	}
}

// NewAnalysisModels builds the per-check model binding from config
// values.
func NewAnalysisModels(chronicity, plan, structure string) CheckModels {
	return CheckModels{Chronicity: chronicity, Plan: plan, Structure: structure}
}

// Analyze runs the full check pipeline for one encounter and returns
// the persisted result. Unless force is set, a stored completed result
// with the same content fingerprint is reused without any model calls.
func (s *AnalysisService) Analyze(ctx context.Context, encounterID string, force bool, triggeredBy string) (*entities.CheckResult, error) {
	ctx, span := observability.StartSpan(ctx, "analysis.analyze")
	defer span.End()
	started := time.Now()

	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	doc, err := s.ehrClient.GetNote(ctx, token.AccessToken, encounterID)
	if err != nil {
		observability.RecordError(span, err)
		s.recordFailure(ctx, encounterID, err)
		return nil, err
	}

	normalized := NormalizeNote(doc)
	fingerprint := Fingerprint(normalized)

	if !force {
		if reused, ok := s.reuseByFingerprint(ctx, encounterID, fingerprint, normalized); ok {
			observability.RecordAnalysisMetric(ctx, s.metrics, time.Since(started), true)
			return reused, nil
		}
	}

	outcomes, err := s.runChecks(ctx, doc, normalized)
	if err != nil {
		observability.RecordError(span, err)
		s.recordFailure(ctx, encounterID, err)
		return nil, err
	}

	result := s.mergeOutcomes(encounterID, fingerprint, normalized, triggeredBy, outcomes)
	if err := s.results.Upsert(ctx, result); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	s.publishCheckCompleted(ctx, result)
	observability.RecordAnalysisMetric(ctx, s.metrics, time.Since(started), false)

	s.logger.Info().
		Str("encounter_id", encounterID).
		Str("status", string(result.Status)).
		Int("issue_count", len(result.Issues)).
		Msg("analysis completed")
	return result, nil
}

// reuseByFingerprint copies a stored completed result onto this
// encounter when the normalized content matches byte for byte.
func (s *AnalysisService) reuseByFingerprint(ctx context.Context, encounterID, fingerprint, normalized string) (*entities.CheckResult, bool) {
	match, err := s.results.GetCompletedByFingerprint(ctx, fingerprint)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Warn().Err(err).Str("encounter_id", encounterID).Msg("fingerprint lookup failed, running full check set")
		}
		return nil, false
	}

	result := &entities.CheckResult{
		ID:              uuid.New().String(),
		EncounterID:     encounterID,
		Status:          match.Status,
		Summary:         match.Summary,
		Issues:          match.Issues,
		Fingerprint:     fingerprint,
		Content:         normalized,
		LifecycleStatus: entities.LifecycleCompleted,
		CheckedBy:       checkedByReuse,
		CheckedAt:       time.Now().UTC(),
	}
	if err := s.results.Upsert(ctx, result); err != nil {
		s.logger.Warn().Err(err).Str("encounter_id", encounterID).Msg("failed to persist reused result, running full check set")
		return nil, false
	}

	s.publishCheckCompleted(ctx, result)
	s.logger.Info().
		Str("encounter_id", encounterID).
		Str("source_encounter_id", match.EncounterID).
		Msg("result reused from fingerprint match")
	return result, true
}

// runChecks fans the check set out concurrently. Any check error
// aborts the whole analysis: a partial verdict could suppress real
// issues, so the job retries instead.
func (s *AnalysisService) runChecks(ctx context.Context, doc *entities.NoteDocument, normalized string) ([]*CheckOutcome, error) {
	return runCheckSet(ctx, s.checks, doc, normalized)
}

func runCheckSet(ctx context.Context, checks []documentationCheck, doc *entities.NoteDocument, normalized string) ([]*CheckOutcome, error) {
	outcomes := make([]*CheckOutcome, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		i, check := i, check
		g.Go(func() error {
			outcome, err := check.Run(gctx, doc, normalized)
			if err != nil {
				return fmt.Errorf("%s check: %w", check.Name(), err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// mergeOutcomes combines per-check outcomes into one verdict. Issues
// keep check-set order; the summary lists distinct categories in
// first-seen order.
func (s *AnalysisService) mergeOutcomes(encounterID, fingerprint, normalized, triggeredBy string, outcomes []*CheckOutcome) *entities.CheckResult {
	var issues []entities.Issue
	var categories []string
	seen := make(map[entities.IssueCategory]bool)

	for _, outcome := range outcomes {
		for _, issue := range outcome.Issues {
			issues = append(issues, issue)
			if !seen[issue.Category] {
				seen[issue.Category] = true
				categories = append(categories, string(issue.Category))
			}
		}
	}

	result := &entities.CheckResult{
		ID:              uuid.New().String(),
		EncounterID:     encounterID,
		Status:          entities.CheckStatusOK,
		Issues:          issues,
		Fingerprint:     fingerprint,
		Content:         normalized,
		LifecycleStatus: entities.LifecycleCompleted,
		CheckedBy:       triggeredBy,
		CheckedAt:       time.Now().UTC(),
	}
	if len(issues) > 0 {
		result.Status = entities.CheckStatusCorrectionsNeeded
		result.Summary = fmt.Sprintf("%d issue(s): %s", len(issues), strings.Join(categories, ", "))
	}
	return result
}

func (s *AnalysisService) recordFailure(ctx context.Context, encounterID string, cause error) {
	if err := s.results.MarkError(ctx, encounterID, cause.Error()); err != nil {
		s.logger.Error().Err(err).Str("encounter_id", encounterID).Msg("failed to mark check result error")
	}
}

func (s *AnalysisService) publishCheckCompleted(ctx context.Context, result *entities.CheckResult) {
	event := &entities.PipelineEvent{
		ID:          uuid.New().String(),
		Type:        entities.EventCheckCompleted,
		EncounterID: result.EncounterID,
		Data: map[string]string{
			"status":      string(result.Status),
			"checked_by":  result.CheckedBy,
			"issue_count": fmt.Sprintf("%d", len(result.Issues)),
		},
		Timestamp: time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, providers.EventChannelChecks, event); err != nil {
		s.logger.Warn().Err(err).Str("encounter_id", result.EncounterID).Msg("failed to publish check event")
	}
}
