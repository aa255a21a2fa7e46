package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zatekoja/Chartreviewautomation/internal/adapters/database"
	"github.com/zatekoja/Chartreviewautomation/internal/adapters/events"
	"github.com/zatekoja/Chartreviewautomation/internal/adapters/queue"
	"github.com/zatekoja/Chartreviewautomation/internal/application/jobs"
	"github.com/zatekoja/Chartreviewautomation/internal/application/services"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/ehr"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/openai"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/redis"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/observability"
	"github.com/zatekoja/Chartreviewautomation/pkg/config"
	"github.com/zatekoja/Chartreviewautomation/pkg/secrets"
)

func main() {
	// Pull secrets into the environment before config reads it.
	vaultResult, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv(""))
	if err != nil {
		log.Fatalf("Failed to load Vault secrets: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))
	logger := observability.ComponentLogger("worker")
	if vaultResult.Enabled {
		logger.Info().
			Str("path", vaultResult.Path).
			Int("loaded", vaultResult.Loaded).
			Int("skipped", vaultResult.Skipped).
			Msg("vault secrets applied")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize infrastructure clients
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize Redis client: %v", err)
	}
	defer redisClient.Close()

	ehrClient, err := ehr.NewHTTPClient(&cfg.EHR)
	if err != nil {
		log.Fatalf("Failed to initialize EHR client: %v", err)
	}

	openaiClient, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Fatalf("Failed to initialize OpenAI client: %v", err)
	}
	defer openaiClient.Close()

	// Initialize adapters
	resultRepo := database.NewCheckResultAdapter(pgClient)
	taskRepo := database.NewCreatedTaskAdapter(pgClient)
	tokenRepo := database.NewTokenAdapter(pgClient)
	eligibilityRepo := database.NewEligibilityAdapter(pgClient)

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	jobQueue := queue.NewRedisQueue(redisClient)

	// Initialize services
	tokenService := services.NewTokenService(ehrClient, tokenRepo, cfg.EHR.Identity, cfg.EHR.Secret)
	analysisService := services.NewAnalysisService(
		ehrClient,
		tokenService,
		resultRepo,
		openaiClient,
		eventBus,
		metrics,
		services.NewAnalysisModels(cfg.OpenAI.ChronicityModel, cfg.OpenAI.PlanModel, cfg.OpenAI.StructureModel),
	)
	remediationService := services.NewRemediationService(ehrClient, tokenService, taskRepo, jobQueue, eventBus)
	discoveryService := services.NewDiscoveryService(ehrClient, tokenService, resultRepo, jobQueue, cfg.Jobs, cfg.EHR.PageSize)
	eligibilityService := services.NewEligibilityService(ehrClient, tokenService, eligibilityRepo, jobQueue, eventBus, cfg.Jobs, cfg.EHR.PageSize)

	// Start queue workers
	retrier := jobs.NewRetrier(jobQueue, metrics, cfg.Jobs)
	workers := jobs.NewWorkers(analysisService, remediationService, eligibilityService, retrier, metrics)
	workers.Register(jobQueue, cfg.Jobs.NoteCheckConcurrency)

	// Start the periodic cycles
	scheduler := jobs.NewScheduler(discoveryService, eligibilityService, remediationService, cfg.Jobs)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	logger.Info().Msg("worker started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")
	scheduler.Stop()
	if err := jobQueue.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing queue")
	}
	cancel()
	logger.Info().Msg("worker stopped")
}
