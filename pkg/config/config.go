package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	EHR      EHRConfig
	OpenAI   OpenAIConfig
	Jobs     JobsConfig
	OTEL     OTELConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// EHRConfig holds upstream EHR API configuration
type EHRConfig struct {
	BaseURL    string
	PracticeID string
	Identity   string
	Secret     string
	PageSize   int
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey          string
	ChronicityModel string
	PlanModel       string
	StructureModel  string
	RateLimitRPM    int
	RateLimitBurst  int
}

// JobsConfig holds queue and scheduling configuration
type JobsConfig struct {
	NoteCheckConcurrency int
	MaxAttempts          int
	BackoffBase          time.Duration
	BackoffCap           time.Duration
	DiscoveryCap         int
	NoteStaleness        time.Duration
	EligibilityWindow    time.Duration
	ReuseWindow          time.Duration
	Stagger              time.Duration
	DiscoverySpec        string
	EligibilitySpec      string
	CompletionPollSpec   string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "chart_review"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		EHR: EHRConfig{
			BaseURL:    getEnv("EHR_BASE_URL", ""),
			PracticeID: getEnv("EHR_PRACTICE_ID", ""),
			Identity:   getEnv("EHR_IDENTITY", ""),
			Secret:     getEnv("EHR_SECRET", ""),
			PageSize:   getEnvAsInt("EHR_PAGE_SIZE", 50),
		},
		OpenAI: OpenAIConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			ChronicityModel: getEnv("OPENAI_CHRONICITY_MODEL", "gpt-4o"),
			PlanModel:       getEnv("OPENAI_PLAN_MODEL", "gpt-4o"),
			StructureModel:  getEnv("OPENAI_STRUCTURE_MODEL", "gpt-4o-mini"),
			RateLimitRPM:    getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst:  getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
		},
		Jobs: JobsConfig{
			NoteCheckConcurrency: getEnvAsInt("JOBS_NOTE_CHECK_CONCURRENCY", 3),
			MaxAttempts:          getEnvAsInt("JOBS_MAX_ATTEMPTS", 5),
			BackoffBase:          getEnvAsDuration("JOBS_BACKOFF_BASE", 30*time.Second),
			BackoffCap:           getEnvAsDuration("JOBS_BACKOFF_CAP", 10*time.Minute),
			DiscoveryCap:         getEnvAsInt("JOBS_DISCOVERY_CAP", 1000),
			NoteStaleness:        getEnvAsDuration("JOBS_NOTE_STALENESS", 2*time.Hour),
			EligibilityWindow:    getEnvAsDuration("JOBS_ELIGIBILITY_WINDOW", 24*time.Hour),
			ReuseWindow:          getEnvAsDuration("JOBS_REUSE_WINDOW", 6*time.Hour),
			Stagger:              getEnvAsDuration("JOBS_STAGGER", 15*time.Second),
			DiscoverySpec:        getEnv("JOBS_DISCOVERY_CRON", "*/30 * * * *"),
			EligibilitySpec:      getEnv("JOBS_ELIGIBILITY_CRON", "0 * * * *"),
			CompletionPollSpec:   getEnv("JOBS_COMPLETION_POLL_CRON", "*/15 * * * *"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "chart-review-automation"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
