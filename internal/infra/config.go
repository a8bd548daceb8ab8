package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Record store backends selectable via RECORD_STORE.
const (
	StoreBackendAirtable = "airtable"
	StoreBackendPostgres = "postgres"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	StoreBackend    string
	AirtableAPIKey  string
	AirtableBaseID  string
	AirtableTable   string
	AirtableBaseURL string
	DatabaseURL     string
	RecordTable     string

	KlingAPIKey  string
	KlingBaseURL string

	PollInterval    time.Duration
	PollMaxAttempts int

	ArtifactDir string
	GeoIPDBPath string
	CORSOrigins []string

	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	GenRequestTimeout time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		StoreBackend:      strings.ToLower(getEnv("RECORD_STORE", StoreBackendAirtable)),
		AirtableAPIKey:    os.Getenv("AIRTABLE_API_KEY"),
		AirtableBaseID:    os.Getenv("AIRTABLE_BASE_ID"),
		AirtableTable:     getEnv("AIRTABLE_TABLE_NAME", "Video Requests"),
		AirtableBaseURL:   getEnv("AIRTABLE_BASE_URL", "https://api.airtable.com/v0"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RecordTable:       getEnv("RECORD_TABLE", "video_requests"),
		KlingAPIKey:       os.Getenv("KLING_API_KEY"),
		KlingBaseURL:      getEnv("KLING_BASE_URL", "https://api.kling.ai/v1"),
		PollInterval:      time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		PollMaxAttempts:   getEnvInt("POLL_MAX_ATTEMPTS", 80),
		ArtifactDir:       os.Getenv("ARTIFACT_DIR"),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		CORSOrigins:       splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		GenRequestTimeout: time.Second * time.Duration(getEnvInt("GEN_REQUEST_TIMEOUT_SECONDS", 60)),
	}

	if cfg.KlingAPIKey == "" {
		return nil, fmt.Errorf("KLING_API_KEY is required")
	}

	switch cfg.StoreBackend {
	case StoreBackendAirtable:
		if cfg.AirtableAPIKey == "" {
			return nil, fmt.Errorf("AIRTABLE_API_KEY is required")
		}
		if cfg.AirtableBaseID == "" {
			return nil, fmt.Errorf("AIRTABLE_BASE_ID is required")
		}
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	default:
		return nil, fmt.Errorf("unsupported RECORD_STORE %q", cfg.StoreBackend)
	}

	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
