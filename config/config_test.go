package config

import (
	"strings"
	"testing"

	"github.com/alphalab-research/alphalab/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, DefaultDataDir)
	}
	if cfg.FetchWorkers != DefaultFetchWorkers {
		t.Errorf("FetchWorkers = %d, want %d", cfg.FetchWorkers, DefaultFetchWorkers)
	}
	if cfg.Quantiles != DefaultQuantiles {
		t.Errorf("Quantiles = %d, want %d", cfg.Quantiles, DefaultQuantiles)
	}
	if !cfg.FetchAdjusted {
		t.Error("FetchAdjusted should default to true")
	}
	if cfg.Interval != "1min" {
		t.Errorf("Interval = %q, want 1min", cfg.Interval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLYGON_API_KEY", "test-key")
	t.Setenv("FETCH_WORKERS", "4")
	t.Setenv("QUANTILES", "10")
	t.Setenv("COST_BPS", "2.5")
	t.Setenv("FETCH_ADJUSTED", "false")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123456")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.PolygonAPIKey != "test-key" {
		t.Errorf("PolygonAPIKey = %q, want test-key", cfg.PolygonAPIKey)
	}
	if cfg.FetchWorkers != 4 {
		t.Errorf("FetchWorkers = %d, want 4", cfg.FetchWorkers)
	}
	if cfg.Quantiles != 10 {
		t.Errorf("Quantiles = %d, want 10", cfg.Quantiles)
	}
	if cfg.CostBps != 2.5 {
		t.Errorf("CostBps = %v, want 2.5", cfg.CostBps)
	}
	if cfg.FetchAdjusted {
		t.Error("FetchAdjusted should be false")
	}
	if cfg.TelegramChatID != -100123456 {
		t.Errorf("TelegramChatID = %d, want -100123456", cfg.TelegramChatID)
	}
}

func TestLoadMalformedFallsBack(t *testing.T) {
	t.Setenv("FETCH_WORKERS", "not-a-number")
	t.Setenv("COST_BPS", "abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.FetchWorkers != DefaultFetchWorkers {
		t.Errorf("FetchWorkers = %d, want default %d on malformed input", cfg.FetchWorkers, DefaultFetchWorkers)
	}
	if cfg.CostBps != DefaultCostBps {
		t.Errorf("CostBps = %v, want default %v on malformed input", cfg.CostBps, DefaultCostBps)
	}
}

func TestValidate(t *testing.T) {
	base := func() *models.Config {
		return &models.Config{
			FetchFrom:       "2023-01-01",
			FetchTo:         "2023-06-30",
			FetchWorkers:    8,
			RequestsPerSec:  5,
			ForwardHorizon:  1,
			Quantiles:       5,
			ICWindow:        390,
			MinObservations: 100,
			MinBreadth:      20,
			CostBps:         1.0,
			InitialCapital:  10000,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*models.Config)
		wantErr string
	}{
		{"valid", func(c *models.Config) {}, ""},
		{"zero workers", func(c *models.Config) { c.FetchWorkers = 0 }, "fetch workers"},
		{"one quantile", func(c *models.Config) { c.Quantiles = 1 }, "quantiles"},
		{"zero horizon", func(c *models.Config) { c.ForwardHorizon = 0 }, "forward horizon"},
		{"negative cost", func(c *models.Config) { c.CostBps = -0.5 }, "cost bps"},
		{"bad from date", func(c *models.Config) { c.FetchFrom = "01/02/2023" }, "YYYY-MM-DD"},
		{"inverted range", func(c *models.Config) { c.FetchFrom = "2024-01-01" }, "inverted"},
		{"zero capital", func(c *models.Config) { c.InitialCapital = 0 }, "initial capital"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
