package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	StoragePath      string
	RegistryPath     string
	GenBaseURL       string
	GenAPIKey        string
	GenModel         string
	GenTimeout       time.Duration
	BatchSize        int
	ItemRetryMax     int
	JobRetention     time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// HTTP_WRITE_TIMEOUT_SECONDS defaults to 0 because the progress stream
// endpoints hold the response open for the lifetime of a job.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		RegistryPath:     getEnv("REGISTRY_PATH", "./registry"),
		GenBaseURL:       os.Getenv("GEN_BASE_URL"),
		GenAPIKey:        os.Getenv("GEN_API_KEY"),
		GenModel:         getEnv("GEN_MODEL", "sdxl-base"),
		GenTimeout:       time.Second * time.Duration(getEnvInt("GEN_TIMEOUT_SECONDS", 120)),
		BatchSize:        getEnvInt("BATCH_SIZE", 2),
		ItemRetryMax:     getEnvInt("ITEM_RETRY_MAX", 3),
		JobRetention:     time.Hour * time.Duration(getEnvInt("JOB_RETENTION_HOURS", 24)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      splitEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.GenBaseURL == "" {
		return nil, fmt.Errorf("GEN_BASE_URL is required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitEnv(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
