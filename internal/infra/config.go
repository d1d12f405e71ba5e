package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bibble/internal/domain"
)

// Service names a remote integration whose settings can be required.
type Service string

const (
	ServiceVideo Service = "video"
	ServiceImage Service = "image"
)

// placeholder is the value the example .env ships with; it never counts as set.
const placeholder = "EMPTY"

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv    string
	LogFile   string
	OutputDir string

	Sora  SoraConfig
	Image ImageConfig

	RequestsPerSecond float64

	Port             string
	DatabaseURL      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
}

// SoraConfig holds the video job API settings.
type SoraConfig struct {
	Endpoint       string
	APIKey         string
	APIVersion     string
	Model          string
	PollInterval   time.Duration
	MaxWait        time.Duration
	MaxPollRetries int
}

// ImageConfig holds the image edit API settings.
type ImageConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	Timeout    time.Duration
}

// ConfigError lists every missing required variable.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", "))
}

func (e *ConfigError) Unwrap() error {
	return domain.ErrConfiguration
}

// LoadConfig loads configuration from environment variables and applies
// defaults. Settings of the listed services are required.
func LoadConfig(required ...Service) (*Config, error) {
	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogFile:   getEnv("LOG_FILE", ""),
		OutputDir: getEnv("OUTPUT_DIR", "generated"),
		Sora: SoraConfig{
			Endpoint:       strings.TrimRight(getEnv("AZURE_SORA_ENDPOINT", ""), "/"),
			APIKey:         getEnv("AZURE_SORA_API_KEY", ""),
			APIVersion:     getEnv("AZURE_SORA_API_VERSION", "preview"),
			Model:          getEnv("AZURE_SORA_MODEL", domain.DefaultVideoModel),
			PollInterval:   time.Second * time.Duration(getEnvInt("SORA_POLL_INTERVAL_SECONDS", 5)),
			MaxWait:        time.Second * time.Duration(getEnvInt("SORA_MAX_WAIT_SECONDS", 1800)),
			MaxPollRetries: getEnvInt("SORA_MAX_POLL_RETRIES", 3),
		},
		Image: ImageConfig{
			Endpoint:   strings.TrimRight(getEnv("AZURE_IMAGE_ENDPOINT", ""), "/"),
			APIKey:     getEnv("AZURE_IMAGE_API_KEY", ""),
			Deployment: getEnv("AZURE_IMAGE_DEPLOYMENT", "gpt-image-1"),
			APIVersion: getEnv("AZURE_IMAGE_API_VERSION", "2025-04-01-preview"),
			Timeout:    time.Second * time.Duration(getEnvInt("IMAGE_TIMEOUT_SECONDS", 180)),
		},
		RequestsPerSecond: getEnvFloat("AZURE_REQUESTS_PER_SECOND", 0),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 210)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:       splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}

	if err := cfg.Require(required...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Require reports a *ConfigError when settings of the given services are missing.
func (c *Config) Require(services ...Service) error {
	var missing []string
	for _, svc := range services {
		switch svc {
		case ServiceVideo:
			if c.Sora.Endpoint == "" {
				missing = append(missing, "AZURE_SORA_ENDPOINT")
			}
			if c.Sora.APIKey == "" {
				missing = append(missing, "AZURE_SORA_API_KEY")
			}
		case ServiceImage:
			if c.Image.Endpoint == "" {
				missing = append(missing, "AZURE_IMAGE_ENDPOINT")
			}
			if c.Image.APIKey == "" {
				missing = append(missing, "AZURE_IMAGE_API_KEY")
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		v = strings.TrimSpace(v)
		if v != "" && v != placeholder {
			return v
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
