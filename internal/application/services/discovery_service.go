package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/providers"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/repositories"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/ehr"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/observability"
	"github.com/zatekoja/Chartreviewautomation/pkg/config"
)

// DiscoverySummary reports one discovery cycle.
type DiscoverySummary struct {
	Scanned    int
	Eligible   int
	Queued     int
	Skipped    int
	CapReached bool
}

// DiscoveryService pages the upstream encounter feed and enqueues
// note-check jobs for encounters whose documentation has sat unsigned
// past the staleness threshold.
type DiscoveryService struct {
	ehrClient ehr.Client
	tokens    *TokenService
	results   repositories.CheckResultRepository
	queue     providers.JobQueue
	cfg       config.JobsConfig
	pageSize  int
	logger    zerolog.Logger
}

// NewDiscoveryService creates a new discovery scheduler.
func NewDiscoveryService(
	ehrClient ehr.Client,
	tokens *TokenService,
	results repositories.CheckResultRepository,
	queue providers.JobQueue,
	cfg config.JobsConfig,
	pageSize int,
) *DiscoveryService {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &DiscoveryService{
		ehrClient: ehrClient,
		tokens:    tokens,
		results:   results,
		queue:     queue,
		cfg:       cfg,
		pageSize:  pageSize,
		logger:    observability.ComponentLogger("discovery"),
	}
}

// RunCycle scans the feed once. Scanning stops at the safety cap even
// if the feed has more pages; the next cycle starts over from offset
// zero, so nothing is permanently skipped.
func (s *DiscoveryService) RunCycle(ctx context.Context) (*DiscoverySummary, error) {
	ctx, span := observability.StartSpan(ctx, "discovery.run_cycle")
	defer span.End()

	summary := &DiscoverySummary{}

	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return summary, err
	}

	cutoff := time.Now().UTC().Add(-s.cfg.NoteStaleness)
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
				summary.CapReached = true
				s.logger.Warn().
					Int("cap", s.cfg.DiscoveryCap).
					Msg("discovery safety cap reached, stopping scan")
				s.logSummary(summary)
				return summary, nil
			}
			summary.Scanned++
			s.consider(ctx, &page.Data[i], cutoff, summary)
		}

		offset += len(page.Data)
	}

	s.logSummary(summary)
	return summary, nil
}

func (s *DiscoveryService) consider(ctx context.Context, enc *entities.Encounter, cutoff time.Time, summary *DiscoverySummary) {
	if enc.ID == "" {
		s.logger.Warn().Msg("encounter missing id, skipping")
		summary.Skipped++
		return
	}
	if enc.PatientID == "" {
		// Definitively ineligible; record it so the encounter is not
		// re-evaluated as a fresh candidate every cycle.
		if err := s.results.MarkError(ctx, enc.ID, "encounter missing patient identifier"); err != nil {
			s.logger.Error().Err(err).Str("encounter_id", enc.ID).Msg("failed to record ineligible encounter")
		}
		summary.Skipped++
		return
	}
	if !enc.Status.AwaitingFinalization() || enc.ServiceDate.After(cutoff) {
		return
	}

	summary.Eligible++

	recent, err := s.results.RecentExists(ctx, enc.ID, s.cfg.ReuseWindow)
	if err != nil {
		s.logger.Error().Err(err).Str("encounter_id", enc.ID).Msg("recent-result lookup failed, skipping")
		summary.Skipped++
		return
	}
	if recent {
		summary.Skipped++
		return
	}

	job := &entities.Job{
		Type:        entities.JobTypeNoteCheck,
		EncounterID: enc.ID,
		PatientID:   enc.PatientID,
		TriggeredBy: "discovery",
	}
	delay := time.Duration(summary.Queued) * s.cfg.Stagger
	if err := s.queue.Enqueue(ctx, job, delay); err != nil {
		s.logger.Error().Err(err).Str("encounter_id", enc.ID).Msg("failed to enqueue note check")
		summary.Skipped++
		return
	}
	summary.Queued++
}

func (s *DiscoveryService) logSummary(summary *DiscoverySummary) {
	s.logger.Info().
		Int("scanned", summary.Scanned).
		Int("eligible", summary.Eligible).
		Int("queued", summary.Queued).
		Int("skipped", summary.Skipped).
		Bool("cap_reached", summary.CapReached).
		Msg("discovery cycle finished")
}
