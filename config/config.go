package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Catalog   CatalogConfig
	Report    ReportConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Webhook   WebhookConfig
	Jobs      JobsConfig
	Database  DatabaseConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance backing the automation
// session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: false

	// Stealth injects the anti-bot-detection script before every navigation.
	Stealth bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// UserAgent overrides the browser user agent when set.
	UserAgent string

	// AcceptLanguage is sent as an extra header on every request.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// BlockResources lists resource types the browser never loads.
	// Valid: Image, Stylesheet, Font, Media.
	BlockResources []string // default: ["Image", "Font", "Media"]

	// BlockTrackers drops requests to known analytics and ad hosts.
	BlockTrackers bool // default: true
}

// CatalogConfig controls how the parts catalog is driven.
type CatalogConfig struct {
	// BaseURL is the catalog site root.
	BaseURL string // default: "https://www.rockauto.com"

	// Storefront only affects report styling.
	Storefront string // default: "Karshield"

	// TopCategory is the top-level category link clicked before the
	// listing's own category.
	TopCategory string // default: "Brake & Wheel Hub"

	// MaxCategoryRetries caps the category navigation retry loop.
	MaxCategoryRetries int // default: 3

	// StepTimeout bounds every wait for an element.
	StepTimeout time.Duration // default: 10s

	// FitProbeTimeout bounds the wait for a matching listing after filtering.
	FitProbeTimeout time.Duration // default: 5s

	// RetryPause is the pause between category navigation attempts.
	RetryPause time.Duration // default: 2s

	// SettlePause lets the page react after typing or clicking.
	SettlePause time.Duration // default: 500ms

	// NavigationsPerSecond paces page loads against the catalog.
	NavigationsPerSecond float64 // default: 1

	// InfoFetchTimeout bounds the plain HTTP fetch of an info page.
	InfoFetchTimeout time.Duration // default: 10s
}

// ReportConfig controls where reports are written.
type ReportConfig struct {
	// OutputDir receives the table, trace and specification files.
	OutputDir string // default: "results"

	CompatibilityFile  string // default: "compatibility.xlsx"
	TraceFile          string // default: "extraInfo.txt"
	SpecificationsFile string // default: "specifications.xlsx"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5

	// FitmentPerHour is the sustained fitment job submission rate per key.
	FitmentPerHour float64 // default: 12

	// FitmentBurst is how many jobs a key may submit back to back.
	FitmentBurst int // default: 2
}

// CacheConfig controls the specification table cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached tables.
	MaxEntries int // default: 500

	// MaxAge is how long a cached table stays valid.
	MaxAge time.Duration // default: 24h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// WebhookConfig controls job completion callbacks.
type WebhookConfig struct {
	// Secret signs webhook bodies when a job does not bring its own.
	Secret string
}

// JobsConfig controls how long finished fitment jobs stay pollable.
type JobsConfig struct {
	TTL           time.Duration // default: 1h
	SweepInterval time.Duration // default: 5m

	// ShutdownGrace is how long running jobs may finish on shutdown.
	ShutdownGrace time.Duration // default: 30s
}

// DatabaseConfig controls optional persistence of fitment rows.
type DatabaseConfig struct {
	// URL is a PostgreSQL connection string; empty disables persistence.
	URL string

	MaxConns int // default: 5
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PARTFIT_HOST", "0.0.0.0"),
			Port: envIntOr("PARTFIT_PORT", 8080),
			Mode: envOr("PARTFIT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("PARTFIT_HEADLESS", false),
			Stealth:        envBoolOr("PARTFIT_STEALTH", true),
			NoSandbox:      envBoolOr("PARTFIT_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("PARTFIT_BROWSER_BIN"),
			Proxy:          os.Getenv("PARTFIT_PROXY"),
			UserAgent:      os.Getenv("PARTFIT_USER_AGENT"),
			AcceptLanguage: envOr("PARTFIT_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			BlockResources: envSliceOr("PARTFIT_BLOCK_RESOURCES", []string{"Image", "Font", "Media"}),
			BlockTrackers:  envBoolOr("PARTFIT_BLOCK_TRACKERS", true),
		},
		Catalog: CatalogConfig{
			BaseURL:              strings.TrimRight(envOr("PARTFIT_CATALOG_URL", "https://www.rockauto.com"), "/"),
			Storefront:           envOr("PARTFIT_STOREFRONT", "Karshield"),
			TopCategory:          envOr("PARTFIT_TOP_CATEGORY", "Brake & Wheel Hub"),
			MaxCategoryRetries:   envIntOr("PARTFIT_CATEGORY_RETRIES", 3),
			StepTimeout:          envDurationOr("PARTFIT_STEP_TIMEOUT", 10*time.Second),
			FitProbeTimeout:      envDurationOr("PARTFIT_FIT_TIMEOUT", 5*time.Second),
			RetryPause:           envDurationOr("PARTFIT_RETRY_PAUSE", 2*time.Second),
			SettlePause:          envDurationOr("PARTFIT_SETTLE_PAUSE", 500*time.Millisecond),
			NavigationsPerSecond: envFloatOr("PARTFIT_NAV_RPS", 1.0),
			InfoFetchTimeout:     envDurationOr("PARTFIT_INFO_TIMEOUT", 10*time.Second),
		},
		Report: ReportConfig{
			OutputDir:          envOr("PARTFIT_OUTPUT_DIR", "results"),
			CompatibilityFile:  envOr("PARTFIT_COMPAT_FILE", "compatibility.xlsx"),
			TraceFile:          envOr("PARTFIT_TRACE_FILE", "extraInfo.txt"),
			SpecificationsFile: envOr("PARTFIT_SPECS_FILE", "specifications.xlsx"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PARTFIT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PARTFIT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PARTFIT_RATE_RPS", 2.0),
			Burst:             envIntOr("PARTFIT_RATE_BURST", 5),
			FitmentPerHour:    envFloatOr("PARTFIT_FITMENT_PER_HOUR", 12),
			FitmentBurst:      envIntOr("PARTFIT_FITMENT_BURST", 2),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("PARTFIT_CACHE_MAX_ENTRIES", 500),
			MaxAge:     envDurationOr("PARTFIT_CACHE_MAX_AGE", 24*time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("PARTFIT_LOG_LEVEL", "info"),
			Format: envOr("PARTFIT_LOG_FORMAT", "json"),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("PARTFIT_WEBHOOK_SECRET"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("PARTFIT_DATABASE_URL"),
			MaxConns: envIntOr("PARTFIT_DATABASE_MAX_CONNS", 5),
		},
		Jobs: JobsConfig{
			TTL:           envDurationOr("PARTFIT_JOB_TTL", time.Hour),
			SweepInterval: envDurationOr("PARTFIT_JOB_SWEEP", 5*time.Minute),
			ShutdownGrace: envDurationOr("PARTFIT_SHUTDOWN_GRACE", 30*time.Second),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
