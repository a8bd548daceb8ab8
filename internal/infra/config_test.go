package infra

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("KLING_API_KEY", "test-key")
	t.Setenv("AIRTABLE_API_KEY", "at-key")
	t.Setenv("AIRTABLE_BASE_ID", "appBase")
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want 8080", cfg.Port)
	}
	if cfg.StoreBackend != StoreBackendAirtable {
		t.Fatalf("StoreBackend mismatch: got %q", cfg.StoreBackend)
	}
	if cfg.AirtableTable != "Video Requests" {
		t.Fatalf("AirtableTable mismatch: got %q", cfg.AirtableTable)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("PollInterval mismatch: got %v", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 80 {
		t.Fatalf("PollMaxAttempts mismatch: got %d", cfg.PollMaxAttempts)
	}
}

func TestLoadConfigRequiresKlingKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("KLING_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when KLING_API_KEY is empty")
	}
}

func TestLoadConfigPostgresBackend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RECORD_STORE", "postgres")
	t.Setenv("AIRTABLE_API_KEY", "")
	t.Setenv("AIRTABLE_BASE_ID", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is missing")
	}

	t.Setenv("DATABASE_URL", "postgres://example")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreBackend != StoreBackendPostgres {
		t.Fatalf("StoreBackend mismatch: got %q", cfg.StoreBackend)
	}
	if cfg.RecordTable != "video_requests" {
		t.Fatalf("RecordTable mismatch: got %q", cfg.RecordTable)
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RECORD_STORE", "dynamo")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unsupported backend")
	}
}

func TestLoadConfigPollOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("POLL_INTERVAL_SECONDS", "1")
	t.Setenv("POLL_MAX_ATTEMPTS", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("PollInterval mismatch: got %v", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 3 {
		t.Fatalf("PollMaxAttempts mismatch: got %d", cfg.PollMaxAttempts)
	}
}
