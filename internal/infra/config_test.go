package infra

import (
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REPLICATE_API_TOKEN", "MAX_GENERATIONS", "POLL_INTERVAL_SECONDS", "POLL_TIMEOUT_SECONDS",
		"CORS_ALLOWED_ORIGINS", "MAX_POSE_BYTES", "PORT", "POLL_CONCURRENCY", "HTTP_READ_HEADER_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MaxGenerations != 5 {
		t.Fatalf("MaxGenerations = %d, want 5", cfg.MaxGenerations)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("PollInterval = %s, want 10s", cfg.PollInterval)
	}
	if cfg.PollConcurrency != 5 {
		t.Fatalf("PollConcurrency = %d, want 5", cfg.PollConcurrency)
	}
	if cfg.HTTPReadHeaderTimeout != 5*time.Second {
		t.Fatalf("HTTPReadHeaderTimeout = %s, want 5s", cfg.HTTPReadHeaderTimeout)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if !cfg.UseSynthetic() {
		t.Fatalf("UseSynthetic should be true without a token")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("AllowedOrigins mismatch: %#v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("REPLICATE_API_TOKEN", " r8_token ")
	t.Setenv("MAX_GENERATIONS", "3")
	t.Setenv("POLL_INTERVAL_SECONDS", "2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://pose.example.com, http://localhost:5173 ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ReplicateToken != "r8_token" || cfg.UseSynthetic() {
		t.Fatalf("ReplicateToken = %q", cfg.ReplicateToken)
	}
	if cfg.MaxGenerations != 3 {
		t.Fatalf("MaxGenerations = %d, want 3", cfg.MaxGenerations)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval = %s, want 2s", cfg.PollInterval)
	}
	expected := []string{"https://pose.example.com", "http://localhost:5173"}
	if len(cfg.AllowedOrigins) != len(expected) {
		t.Fatalf("AllowedOrigins mismatch: got %#v want %#v", cfg.AllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.AllowedOrigins[i] != origin {
			t.Fatalf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], origin)
		}
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero generations", key: "MAX_GENERATIONS", value: "0"},
		{name: "negative generations", key: "MAX_GENERATIONS", value: "-2"},
		{name: "zero poll interval", key: "POLL_INTERVAL_SECONDS", value: "0"},
		{name: "zero poll timeout", key: "POLL_TIMEOUT_SECONDS", value: "0"},
		{name: "zero pose size", key: "MAX_POSE_BYTES", value: "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("LoadConfig should reject %s=%s", tc.key, tc.value)
			}
		})
	}
}
