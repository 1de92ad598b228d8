package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEN_BASE_URL", "http://localhost:7860")
	t.Setenv("PORT", "")
	t.Setenv("BATCH_SIZE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.BatchSize != 2 {
		t.Fatalf("BatchSize mismatch: got %d want 2", cfg.BatchSize)
	}
	if cfg.JobRetention != 24*time.Hour {
		t.Fatalf("JobRetention mismatch: got %v", cfg.JobRetention)
	}
}

func TestLoadConfigRequiresGenBaseURL(t *testing.T) {
	t.Setenv("GEN_BASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for missing GEN_BASE_URL")
	}
}

func TestLoadConfigRejectsNonPositiveBatchSize(t *testing.T) {
	t.Setenv("GEN_BASE_URL", "http://localhost:7860")
	t.Setenv("BATCH_SIZE", "-1")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for non-positive BATCH_SIZE")
	}
}
