package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/zatekoja/Chartreviewautomation/internal/application/services"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/observability"
	"github.com/zatekoja/Chartreviewautomation/pkg/config"
)

// Scheduler drives the periodic cycles: discovery, eligibility
// scheduling, and completion polling. Each cycle is serialized with
// itself; a slow cycle skips the next tick instead of overlapping.
type Scheduler struct {
	cron        *cron.Cron
	discovery   *services.DiscoveryService
	eligibility *services.EligibilityService
	remediation *services.RemediationService
	cfg         config.JobsConfig
	logger      zerolog.Logger
}

// NewScheduler creates the cron scheduler.
func NewScheduler(
	discovery *services.DiscoveryService,
	eligibility *services.EligibilityService,
	remediation *services.RemediationService,
	cfg config.JobsConfig,
) *Scheduler {
	logger := observability.ComponentLogger("scheduler")
	cronLogger := &cronLogAdapter{logger: logger}

	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		)),
		discovery:   discovery,
		eligibility: eligibility,
		remediation: remediation,
		cfg:         cfg,
		logger:      logger,
	}
}

// Start registers the cycles and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.DiscoverySpec, func() {
		if _, err := s.discovery.RunCycle(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("discovery cycle failed")
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.cfg.EligibilitySpec, func() {
		if _, err := s.eligibility.RunCycle(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("eligibility cycle failed")
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.cfg.CompletionPollSpec, func() {
		if _, err := s.remediation.PollCompletions(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("completion poll failed")
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("discovery", s.cfg.DiscoverySpec).
		Str("eligibility", s.cfg.EligibilitySpec).
		Str("completion_poll", s.cfg.CompletionPollSpec).
		Msg("scheduler started")
	return nil
}

// Stop stops the cron loop and waits for running cycles to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// cronLogAdapter bridges cron's logger to zerolog.
type cronLogAdapter struct {
	logger zerolog.Logger
}

func (a *cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (a *cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
