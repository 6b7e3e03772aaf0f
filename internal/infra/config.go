package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultModelVersion = "jagilley/controlnet-pose:0304f7f774ba7341ef754231f794b1ba3d129e3c46af3022241325ae0c50fb99"

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	ReplicateToken   string
	ReplicateBaseURL string
	ModelVersion     string
	UpstreamRPS      float64
	MaxGenerations   int
	PollInterval     time.Duration
	PollTimeout      time.Duration
	PollConcurrency  int
	SessionIdleTTL   time.Duration
	PromptSuffix     string
	MaxPoseBytes     int64
	StoragePath      string
	AllowedOrigins   []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	HTTPReadHeaderTimeout time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		ReplicateToken:   strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL: getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ModelVersion:     getEnv("REPLICATE_MODEL_VERSION", defaultModelVersion),
		UpstreamRPS:      float64(getEnvInt("REPLICATE_REQUESTS_PER_SEC", 5)),
		MaxGenerations:   getEnvInt("MAX_GENERATIONS", 5),
		PollInterval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 10)),
		PollTimeout:      time.Second * time.Duration(getEnvInt("POLL_TIMEOUT_SECONDS", 15)),
		PollConcurrency:  getEnvInt("POLL_CONCURRENCY", 5),
		SessionIdleTTL:   time.Minute * time.Duration(getEnvInt("SESSION_IDLE_TTL_MINUTES", 60)),
		PromptSuffix:     getEnvRaw("PROMPT_QUALITY_SUFFIX", "Hyperrealistic detail, good lighting, natural color, cinematic"),
		MaxPoseBytes:     int64(getEnvInt("MAX_POSE_BYTES", 8<<20)),
		StoragePath:      getEnv("STORAGE_PATH", "./outputs"),
		AllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		HTTPReadHeaderTimeout: time.Second * time.Duration(getEnvInt("HTTP_READ_HEADER_TIMEOUT_SECONDS", 5)),
	}

	if cfg.MaxGenerations < 1 {
		return nil, fmt.Errorf("MAX_GENERATIONS must be at least 1, got %d", cfg.MaxGenerations)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("POLL_TIMEOUT_SECONDS must be positive")
	}
	if cfg.MaxPoseBytes <= 0 {
		return nil, fmt.Errorf("MAX_POSE_BYTES must be positive")
	}

	return cfg, nil
}

// UseSynthetic reports whether generations run against the offline service.
func (c *Config) UseSynthetic() bool {
	return c.ReplicateToken == ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// getEnvRaw treats a variable that is set but empty as an explicit value.
func getEnvRaw(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
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

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
