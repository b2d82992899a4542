package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/alphalab-research/alphalab/models"
)

// Default values applied when the environment does not override them.
const (
	DefaultDataDir         = "./data"
	DefaultRunsDir         = "./runs"
	DefaultUniverseFile    = "universe.yaml"
	DefaultFetchFrom       = "2020-09-08"
	DefaultFetchTo         = "2025-08-29"
	DefaultFetchWorkers    = 16
	DefaultRequestsPerSec  = 5
	DefaultRequestTimeout  = 30  // seconds
	DefaultMaxRetryElapsed = 300 // seconds
	DefaultInterval        = "1min"
	DefaultForwardHorizon  = 1
	DefaultQuantiles       = 5
	DefaultICWindow        = 390
	DefaultMinObservations = 100
	DefaultMinBreadth      = 20
	DefaultCostBps         = 1.0
	DefaultInitialCapital  = 10000.0
	DefaultServerAddr      = ":8080"
	DefaultLogLevel        = "info"
)

// Load initializes configuration from environment variables.
func Load() (*models.Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &models.Config{
		PolygonAPIKey: os.Getenv("POLYGON_API_KEY"),
		DataDir:       getEnvWithDefault("DATA_DIR", DefaultDataDir),
		RunsDir:       getEnvWithDefault("RUNS_DIR", DefaultRunsDir),
		UniverseFile:  getEnvWithDefault("UNIVERSE_FILE", DefaultUniverseFile),

		FetchFrom:     getEnvWithDefault("FETCH_FROM", DefaultFetchFrom),
		FetchTo:       getEnvWithDefault("FETCH_TO", DefaultFetchTo),
		FetchWorkers:  getEnvIntWithDefault("FETCH_WORKERS", DefaultFetchWorkers),
		FetchAdjusted: getEnvBoolWithDefault("FETCH_ADJUSTED", true),

		RequestsPerSec:  getEnvIntWithDefault("REQUESTS_PER_SEC", DefaultRequestsPerSec),
		RequestTimeout:  time.Duration(getEnvIntWithDefault("REQUEST_TIMEOUT", DefaultRequestTimeout)) * time.Second,
		MaxRetryElapsed: time.Duration(getEnvIntWithDefault("MAX_RETRY_ELAPSED", DefaultMaxRetryElapsed)) * time.Second,

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0),
		LogLevel:       getEnvWithDefault("LOG_LEVEL", DefaultLogLevel),

		Interval:        getEnvWithDefault("INTERVAL", DefaultInterval),
		ForwardHorizon:  getEnvIntWithDefault("FORWARD_HORIZON", DefaultForwardHorizon),
		Quantiles:       getEnvIntWithDefault("QUANTILES", DefaultQuantiles),
		ICWindow:        getEnvIntWithDefault("IC_WINDOW", DefaultICWindow),
		MinObservations: getEnvIntWithDefault("MIN_OBSERVATIONS", DefaultMinObservations),
		MinBreadth:      getEnvIntWithDefault("MIN_BREADTH", DefaultMinBreadth),
		CostBps:         getEnvFloatWithDefault("COST_BPS", DefaultCostBps),
		InitialCapital:  getEnvFloatWithDefault("INITIAL_CAPITAL", DefaultInitialCapital),
		ServerAddr:      getEnvWithDefault("SERVER_ADDR", DefaultServerAddr),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func Validate(cfg *models.Config) error {
	if cfg.FetchWorkers < 1 {
		return fmt.Errorf("fetch workers must be at least 1, got %d", cfg.FetchWorkers)
	}
	if cfg.RequestsPerSec < 1 {
		return fmt.Errorf("requests per second must be at least 1, got %d", cfg.RequestsPerSec)
	}
	if cfg.ForwardHorizon < 1 {
		return fmt.Errorf("forward horizon must be at least 1 bar, got %d", cfg.ForwardHorizon)
	}
	if cfg.Quantiles < 2 {
		return fmt.Errorf("quantiles must be at least 2, got %d", cfg.Quantiles)
	}
	if cfg.ICWindow < 2 {
		return fmt.Errorf("ic window must be at least 2 bars, got %d", cfg.ICWindow)
	}
	if cfg.MinObservations < 3 {
		return fmt.Errorf("min observations must be at least 3, got %d", cfg.MinObservations)
	}
	if cfg.MinBreadth < 2 {
		return fmt.Errorf("min breadth must be at least 2 symbols, got %d", cfg.MinBreadth)
	}
	if cfg.CostBps < 0 {
		return fmt.Errorf("cost bps cannot be negative, got %v", cfg.CostBps)
	}
	if cfg.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %v", cfg.InitialCapital)
	}

	if _, err := time.Parse("2006-01-02", cfg.FetchFrom); err != nil {
		return fmt.Errorf("fetch from %q is not a YYYY-MM-DD date: %w", cfg.FetchFrom, err)
	}
	to, err := time.Parse("2006-01-02", cfg.FetchTo)
	if err != nil {
		return fmt.Errorf("fetch to %q is not a YYYY-MM-DD date: %w", cfg.FetchTo, err)
	}
	from, _ := time.Parse("2006-01-02", cfg.FetchFrom)
	if to.Before(from) {
		return fmt.Errorf("fetch range is inverted: %s after %s", cfg.FetchFrom, cfg.FetchTo)
	}

	return nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
