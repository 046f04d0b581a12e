// Package config loads process configuration from the environment.
//
// A .env file in the working directory is loaded first when present; values
// already set in the real environment win over the file. Missing required
// values fail with ErrMissingRequiredValue and malformed values with
// ErrInvalidValue, and main refuses to start on either.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type Environment string

const (
	Production  Environment = "production"
	Staging     Environment = "staging"
	Development Environment = "development"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

const minSessionSecretLength = 16

type Config struct {
	Env      Environment
	LogLevel slog.Level
	LogJSON  bool

	HTTP      HTTPConfig
	OAuth     OAuthConfig
	Frontend  FrontendConfig
	Store     StoreConfig
	GitHub    GitHubConfig
	Scan      ScanConfig
	RateLimit RateLimitConfig
	Keepalive KeepaliveConfig

	SessionSecret        string
	SentryDSN            string
	DebugEndpointEnabled bool
}

type HTTPConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

type FrontendConfig struct {
	SuccessURL string
	FailureURL string
}

type StoreConfig struct {
	Driver string
	// DBPath is the SQLite file. Only used by the sqlite driver.
	DBPath string
	// Credentials is only set for the mongo driver.
	Credentials *StoreCredentials
}

type GitHubConfig struct {
	// APIURL overrides the REST base URL (GitHub Enterprise, tests).
	APIURL string
	// FallbackToken is used when a user record has no access token.
	FallbackToken string
}

type ScanConfig struct {
	PageSize        int
	PageDelay       time.Duration
	RepoDelay       time.Duration
	QuickPageDelay  time.Duration
	QuickEventPages int
	Timeout         time.Duration
}

type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

type KeepaliveConfig struct {
	URL      string
	Interval time.Duration
}

func (c *Config) IsProduction() bool {
	return c.Env == Production
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf("Config{env: %s, port: %d, store: %s, debugEndpoint: %t, ...}",
		c.Env, c.HTTP.Port, c.Store.Driver, c.DebugEndpointEnabled)
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment alone.
func FromEnv() (Config, error) {
	r := &reader{}

	port := r.int("PORT", 8080)

	cfg := Config{
		Env:      Environment(r.oneOf("ENVIRONMENT", string(Development), string(Production), string(Staging), string(Development))),
		LogLevel: r.level("LOG_LEVEL", slog.LevelInfo),
		LogJSON:  r.oneOf("LOG_FORMAT", "text", "text", "json") == "json",

		HTTP: HTTPConfig{
			Port:            port,
			ReadTimeout:     r.duration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    r.duration("HTTP_WRITE_TIMEOUT", 3*time.Minute),
			IdleTimeout:     r.duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: r.duration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		OAuth: OAuthConfig{
			ClientID:     r.require("GITHUB_CLIENT_ID"),
			ClientSecret: r.require("GITHUB_CLIENT_SECRET"),
			CallbackURL:  r.url("GITHUB_CALLBACK_URL", fmt.Sprintf("http://localhost:%d/auth/github/callback", port)),
		},
		GitHub: GitHubConfig{
			APIURL:        r.url("GITHUB_API_URL", ""),
			FallbackToken: r.string("GITHUB_TOKEN", ""),
		},
		Scan: ScanConfig{
			PageSize:        r.int("SCAN_PAGE_SIZE", 100),
			PageDelay:       r.duration("SCAN_PAGE_DELAY", 100*time.Millisecond),
			RepoDelay:       r.duration("SCAN_REPO_DELAY", 200*time.Millisecond),
			QuickPageDelay:  r.duration("QUICK_PAGE_DELAY", 25*time.Millisecond),
			QuickEventPages: r.int("QUICK_EVENT_PAGES", 3),
			Timeout:         r.duration("SCAN_TIMEOUT", 2*time.Minute),
		},
		RateLimit: RateLimitConfig{
			PerSecond: r.float("RATE_LIMIT_PER_SECOND", 2),
			Burst:     r.int("RATE_LIMIT_BURST", 10),
		},
		Keepalive: KeepaliveConfig{
			URL:      r.url("KEEPALIVE_URL", ""),
			Interval: r.duration("KEEPALIVE_INTERVAL", 14*time.Minute),
		},
		SessionSecret:        r.require("SESSION_SECRET"),
		SentryDSN:            r.string("SENTRY_DSN", ""),
		DebugEndpointEnabled: r.bool("DEBUG_ENDPOINT_ENABLED", false),
	}

	successURL := r.requireURL("FRONTEND_URL")
	cfg.Frontend = FrontendConfig{
		SuccessURL: successURL,
		FailureURL: r.url("FRONTEND_FAILURE_URL", strings.TrimSuffix(successURL, "/")+"/login?error=auth_failed"),
	}

	cfg.Store = StoreConfig{
		Driver: r.oneOf("STORE_DRIVER", DriverSQLite, DriverSQLite, DriverMongo),
		DBPath: r.string("DB_PATH", "data/gitpoints.db"),
	}
	if cfg.Store.Driver == DriverMongo && r.err == nil {
		raw := r.require("STORE_CREDENTIALS")
		if r.err == nil {
			creds, err := ParseStoreCredentials(raw)
			if err != nil {
				r.fail(err)
			}
			cfg.Store.Credentials = creds
		}
	}

	if r.err != nil {
		return Config{}, r.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	invalid := func(key, reason string) error {
		return fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, reason)
	}

	if len(c.SessionSecret) < minSessionSecretLength {
		return invalid("SESSION_SECRET", fmt.Sprintf("must be at least %d characters", minSessionSecretLength))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return invalid("PORT", "out of range")
	}
	if c.Scan.PageSize <= 0 {
		return invalid("SCAN_PAGE_SIZE", "must be positive")
	}
	if c.Scan.QuickEventPages <= 0 {
		return invalid("QUICK_EVENT_PAGES", "must be positive")
	}
	if c.Scan.Timeout <= 0 {
		return invalid("SCAN_TIMEOUT", "must be positive")
	}
	if c.HTTP.WriteTimeout <= c.Scan.Timeout {
		return invalid("HTTP_WRITE_TIMEOUT", "must exceed SCAN_TIMEOUT")
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return invalid("RATE_LIMIT_PER_SECOND/RATE_LIMIT_BURST", "must be positive")
	}
	if c.Keepalive.URL != "" && c.Keepalive.Interval <= 0 {
		return invalid("KEEPALIVE_INTERVAL", "must be positive")
	}
	return nil
}

// reader keeps the first error so FromEnv can read every key in one pass.
type reader struct {
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) invalid(key, raw string) {
	r.fail(fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, raw))
}

func (r *reader) string(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (r *reader) require(key string) string {
	v := os.Getenv(key)
	if v == "" {
		r.fail(fmt.Errorf("%w: %s", ErrMissingRequiredValue, key))
	}
	return v
}

func (r *reader) int(key string, def int) int {
	raw := r.string(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.invalid(key, raw)
		return def
	}
	return v
}

func (r *reader) float(key string, def float64) float64 {
	raw := r.string(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.invalid(key, raw)
		return def
	}
	return v
}

func (r *reader) bool(key string, def bool) bool {
	raw := r.string(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.invalid(key, raw)
		return def
	}
	return v
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := r.string(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		r.invalid(key, raw)
		return def
	}
	return v
}

func (r *reader) oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(r.string(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	r.invalid(key, v)
	return def
}

func (r *reader) level(key string, def slog.Level) slog.Level {
	raw := r.string(key, "")
	if raw == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(raw)); err != nil {
		r.invalid(key, raw)
		return def
	}
	return l
}

func (r *reader) url(key, def string) string {
	raw := r.string(key, def)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		r.invalid(key, raw)
		return def
	}
	return raw
}

func (r *reader) requireURL(key string) string {
	if r.require(key) == "" {
		return ""
	}
	return r.url(key, "")
}
