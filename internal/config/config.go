// Package config loads runtime configuration from the environment.
//
// Values come from, in order of precedence:
//  1. real environment variables
//  2. a local .env / .env.local file (loaded with godotenv, never overriding
//     variables that are already set)
//  3. the defaults below
//
// Both binaries (cmd/server and cmd/trigger) call Load, so the HTTP server
// and the cron trigger always agree on database path and credentials.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every setting the application reads at startup.
type Config struct {
	Port       int
	BaseURL    string // public URL of this service, used for OAuth callbacks
	DBPath     string
	JWTSecret  string
	LogLevel   slog.Level
	CronSecret string

	// OAuthSuccessPath is where the browser lands after a connect flow
	// when the state carries no return path.
	OAuthSuccessPath string

	TwitterClientID      string
	TwitterClientSecret  string
	LinkedInClientID     string
	LinkedInClientSecret string

	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMAPIURL   string

	TranscribeAPIKey string
	TranscribeAPIURL string
	TranscribeModel  string

	ResendAPIKey string
	EmailFrom    string
}

// Load reads configuration. Missing optional values leave the matching
// feature disabled; Validate reports what is strictly required.
func Load() (Config, error) {
	loadDotEnv(".env", ".env.local")

	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:             port,
		DBPath:           getEnv("DB_PATH", "data/voicepost.db"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		LogLevel:         parseLevel(getEnv("LOG_LEVEL", "info")),
		CronSecret:       os.Getenv("CRON_SECRET"),
		OAuthSuccessPath: getEnv("OAUTH_SUCCESS_PATH", "/settings/connections"),

		TwitterClientID:      os.Getenv("TWITTER_CLIENT_ID"),
		TwitterClientSecret:  os.Getenv("TWITTER_CLIENT_SECRET"),
		LinkedInClientID:     os.Getenv("LINKEDIN_CLIENT_ID"),
		LinkedInClientSecret: os.Getenv("LINKEDIN_CLIENT_SECRET"),

		LLMProvider: getEnv("LLM_PROVIDER", "openai"),
		LLMModel:    os.Getenv("LLM_MODEL"),
		LLMAPIKey:   os.Getenv("LLM_API_KEY"),
		LLMAPIURL:   os.Getenv("LLM_API_URL"),

		TranscribeAPIKey: getEnv("TRANSCRIBE_API_KEY", os.Getenv("LLM_API_KEY")),
		TranscribeAPIURL: getEnv("TRANSCRIBE_API_URL", "https://api.openai.com/v1"),
		TranscribeModel:  getEnv("TRANSCRIBE_MODEL", "whisper-1"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnv("EMAIL_FROM", "VoicePost <noreply@voicepost.app>"),
	}
	cfg.BaseURL = strings.TrimRight(getEnv("APP_BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/")

	return cfg, nil
}

// Validate checks the settings without which the server cannot run safely.
func (c Config) Validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("config: JWT_SECRET must be at least 16 characters")
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: DB_PATH must not be empty")
	}
	return nil
}

// TwitterEnabled reports whether Twitter OAuth credentials are configured.
func (c Config) TwitterEnabled() bool {
	return c.TwitterClientID != "" && c.TwitterClientSecret != ""
}

// LinkedInEnabled reports whether LinkedIn OAuth credentials are configured.
func (c Config) LinkedInEnabled() bool {
	return c.LinkedInClientID != "" && c.LinkedInClientSecret != ""
}

// loadDotEnv loads the given files if present. godotenv.Load never
// overrides variables already present in the process environment.
func loadDotEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, value, err)
	}
	return n, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
