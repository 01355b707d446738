package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Report styles select which prompt template the model is given and how its
// reply is reassembled for the client. The compact style is the newer template
// used by the current Flutter build; detailed is kept for older clients.
const (
	StyleDetailed = "detailed"
	StyleCompact  = "compact"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	EnableDB    bool
	ReportStyle string
	NVIDIA      NVIDIAConfig
}

// NVIDIAConfig holds the settings for the NVIDIA-hosted completion endpoint
// (OpenAI-compatible chat completions).
type NVIDIAConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Configured reports whether an API key is present. Without one the upstream
// rejects every call with an auth error.
func (n NVIDIAConfig) Configured() bool {
	return n.APIKey != ""
}

// Debug reports whether the service runs in development mode.
func (c *Config) Debug() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "5000"),
		Env:         getEnv("APP_ENV", ""),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		EnableDB:    strings.EqualFold(getEnv("ENABLE_DB", "false"), "true"),
		ReportStyle: getEnv("REPORT_STYLE", StyleDetailed),
		NVIDIA: NVIDIAConfig{
			BaseURL:     getEnv("NVIDIA_BASE_URL", "https://integrate.api.nvidia.com/v1"),
			APIKey:      os.Getenv("NVIDIA_API_KEY"),
			Model:       getEnv("NVIDIA_MODEL", "stepfun-ai/step-3.5-flash"),
			Temperature: getEnvAsFloat("NVIDIA_TEMPERATURE", 1),
			TopP:        getEnvAsFloat("NVIDIA_TOP_P", 0.9),
			MaxTokens:   getEnvAsInt("NVIDIA_MAX_TOKENS", 16384),
		},
	}

	if cfg.EnableDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}

	if cfg.ReportStyle != StyleDetailed && cfg.ReportStyle != StyleCompact {
		return nil, fmt.Errorf("REPORT_STYLE must be %q or %q, got %q", StyleDetailed, StyleCompact, cfg.ReportStyle)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
