// Package config provides centralized configuration loaded from environment
// variables. Shared by every lawdesk-reminders subcommand.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Event store (Supabase)
	SupabaseURL        string
	SupabaseServiceKey string

	// Direct Postgres access; when set it replaces the PostgREST backend.
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Firebase service account + project
	FirebaseClientEmail string
	FirebasePrivateKey  string
	FirebaseProjectID   string
	GoogleTokenURL      string
	FCMBaseURL          string
	FCMRequestsPerMin   int

	// Dispatch
	DispatchWorkers  int
	ReminderSchedule string
	HTTPTimeout      time.Duration

	// API server
	APIHost       string
	APIPort       int
	Environment   string // development, staging, production
	Debug         bool
	TriggerSecret string

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// The store credentials and the Firebase service account are required; every
// missing name is reported in one error.
func Load() (*Config, error) {
	cfg := &Config{
		SupabaseURL:        strings.TrimRight(envOr("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey: envOr("SUPABASE_SERVICE_ROLE_KEY", ""),

		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 4),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		FirebaseClientEmail: envOr("FIREBASE_CLIENT_EMAIL", envOr("client_email", "")),
		FirebasePrivateKey:  envOr("FIREBASE_PRIVATE_KEY", ""),
		FirebaseProjectID:   envOr("FIREBASE_PROJECT_ID", envOr("PROJECT_ID", "")),
		GoogleTokenURL:      envOr("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		FCMBaseURL:          envOr("FCM_BASE_URL", "https://fcm.googleapis.com"),
		FCMRequestsPerMin:   envInt("FCM_REQUESTS_PER_MINUTE", 600),

		DispatchWorkers:  envInt("DISPATCH_WORKERS", 1),
		ReminderSchedule: envOr("REMINDER_SCHEDULE", "@hourly"),
		HTTPTimeout:      time.Duration(envInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,

		APIHost:       envOr("API_HOST", "0.0.0.0"),
		APIPort:       envInt("API_PORT", envInt("PORT", 8000)),
		Environment:   envOr("ENVIRONMENT", "development"),
		Debug:         envBool("DEBUG", false),
		TriggerSecret: envOr("TRIGGER_SECRET", ""),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{"*"}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
	}

	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"SUPABASE_URL", cfg.SupabaseURL},
		{"SUPABASE_SERVICE_ROLE_KEY", cfg.SupabaseServiceKey},
		{"FIREBASE_CLIENT_EMAIL", cfg.FirebaseClientEmail},
		{"FIREBASE_PRIVATE_KEY", cfg.FirebasePrivateKey},
		{"FIREBASE_PROJECT_ID", cfg.FirebaseProjectID},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsePostgres reports whether events are read directly from Postgres.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
