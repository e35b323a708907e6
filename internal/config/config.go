// Package config loads gemdesk settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Portal defaults. Every endpoint and budget can be overridden via GEMDESK_*
// env vars, mostly so tests and staging portals can point elsewhere.
const (
	defaultLoginURL      = "https://www.cbc.ca/account/login?returnto=https%3A%2F%2Fwww.cbc.ca%2F&referrer=https%3A%2F%2Fwww.cbc.ca%2F"
	defaultLandingURL    = "https://www.cbc.ca/account/landing"
	defaultCatalogURL    = "https://services.radio-canada.ca/ott/catalog/v2/gem/section/olympics"
	defaultValidationURL = "https://services.radio-canada.ca/media/validation/v2/"
)

// Config holds portal endpoints, login-flow budgets, and host server settings.
type Config struct {
	// Host API
	ListenAddr string
	LogLevel   string // debug | info | warn | error
	LogFormat  string // json | text

	// Login flow
	LoginURL        string
	LandingURL      string        // prefix that marks a completed login
	PollInterval    time.Duration // surface poll interval
	MaxPollAttempts int           // poll ceiling; interval x attempts bounds the flow
	SessionTTL      time.Duration

	// Catalog
	CatalogURL   string
	PageSize     int
	MaxPages     int           // safety ceiling against a misbehaving upstream
	PageInterval time.Duration // pacing between page requests

	// Manifest
	ValidationURL string

	// Browser surface. BrowserControlURL attaches to an already-running
	// browser's DevTools endpoint; empty means launch one on first login.
	BrowserControlURL string
	BrowserHeadless   bool
}

// LoadEnv loads a .env file into the process environment. A missing file is
// not an error so a plain environment-only deployment works unchanged.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Load reads config from the environment. Call LoadEnv(".env") before Load()
// to use a .env file.
func Load() *Config {
	c := &Config{
		ListenAddr:        getEnv("GEMDESK_LISTEN_ADDR", "127.0.0.1:8475"),
		LogLevel:          getEnv("GEMDESK_LOG_LEVEL", "info"),
		LogFormat:         getEnv("GEMDESK_LOG_FORMAT", "text"),
		LoginURL:          getEnv("GEMDESK_LOGIN_URL", defaultLoginURL),
		LandingURL:        getEnv("GEMDESK_LANDING_URL", defaultLandingURL),
		PollInterval:      getEnvDuration("GEMDESK_POLL_INTERVAL", 500*time.Millisecond),
		MaxPollAttempts:   getEnvInt("GEMDESK_MAX_POLL_ATTEMPTS", 600),
		SessionTTL:        getEnvDuration("GEMDESK_SESSION_TTL", 24*time.Hour),
		CatalogURL:        getEnv("GEMDESK_CATALOG_URL", defaultCatalogURL),
		PageSize:          getEnvInt("GEMDESK_PAGE_SIZE", 6),
		MaxPages:          getEnvInt("GEMDESK_MAX_PAGES", 10),
		PageInterval:      getEnvDuration("GEMDESK_PAGE_INTERVAL", 200*time.Millisecond),
		ValidationURL:     getEnv("GEMDESK_VALIDATION_URL", defaultValidationURL),
		BrowserControlURL: os.Getenv("GEMDESK_BROWSER_CONTROL_URL"),
		BrowserHeadless:   getEnvBool("GEMDESK_BROWSER_HEADLESS", false),
	}
	if c.PageSize <= 0 {
		c.PageSize = 6
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = 600
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	return c
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
