package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/statuspulse/statuspulse/pkg/configwatch"
	"github.com/statuspulse/statuspulse/pkg/logger"
	"github.com/statuspulse/statuspulse/server/internal/alerts/condition"
	"github.com/statuspulse/statuspulse/server/internal/series"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "error_rate > 5", "total < 100",
	// "success_rate < 99", "status == error".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultGRPCPort          = 50051
	DefaultHTTPPort          = 8080
	DefaultLogLevel          = "info"
	DefaultRetention         = 7*24*time.Hour + time.Hour
	DefaultMaxRowsPerService = int(DefaultRetention / MinRowSpacing)
	DefaultIngestRate        = 50.0
	DefaultIngestBurst       = 100
	DefaultBroadcastInterval = 5 * time.Second
	DefaultBroadcastProfile  = series.Profile1Hour
)

// MinRowSpacing is the closest spacing between one service's rows that the row
// cap must still hold a full 7day window of. It matches the agent's minimum
// scrape interval.
const MinRowSpacing = 15 * time.Second

// envPrefix namespaces the environment overrides, e.g. STATUSPULSE_HTTP_PORT.
const envPrefix = "STATUSPULSE_"

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC health service listens on (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Auth configures how the server authenticates incoming gRPC and REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Store controls in-memory row retention.
	Store StoreConfig `yaml:"store"`

	// Ingest throttles POST /api/v1/ingest.
	Ingest IngestConfig `yaml:"ingest"`

	// Broadcast controls the WebSocket push and gRPC health sync.
	Broadcast BroadcastConfig `yaml:"broadcast"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// StoreConfig controls in-memory row retention.
type StoreConfig struct {
	// Retention is how long ingested rows are kept. It must cover the longest
	// profile window (7 days). Default: 169h.
	Retention time.Duration `yaml:"retention"`

	// MaxRowsPerService caps each service's history; oldest rows go first.
	// Zero disables the cap.
	MaxRowsPerService int `yaml:"max_rows_per_service"`
}

// IngestConfig throttles the ingest endpoint.
type IngestConfig struct {
	// RateLimit is the sustained number of ingest requests per second.
	// Zero disables throttling.
	RateLimit float64 `yaml:"rate_limit"`

	// Burst is the maximum number of requests admitted at once.
	Burst int `yaml:"burst"`
}

// BroadcastConfig controls the periodic snapshot push.
type BroadcastConfig struct {
	// Interval between WebSocket snapshot broadcasts and health syncs.
	Interval time.Duration `yaml:"interval"`

	// Profile is the time-range profile the snapshot and health use.
	Profile string `yaml:"profile"`
}

// envOverrides lists the settings that may be overridden from the environment.
// Fields are pre-filled from the YAML so unset variables leave values alone.
type envOverrides struct {
	GRPCPort  int           `env:"GRPC_PORT"`
	HTTPPort  int           `env:"HTTP_PORT"`
	LogLevel  string        `env:"LOG_LEVEL"`
	AuthMode  string        `env:"AUTH_MODE"`
	Retention time.Duration `env:"STORE_RETENTION"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation, and
// STATUSPULSE_* environment variables override the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("server config: env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Watch reloads the file at path on every change and calls onChange with
// the new config. Invalid configs are logged and skipped. It blocks until
// ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return configwatch.Watch(ctx, path, Load, onChange)
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			LogLevel: DefaultLogLevel,
			Store: StoreConfig{
				Retention:         DefaultRetention,
				MaxRowsPerService: DefaultMaxRowsPerService,
			},
			Ingest: IngestConfig{
				RateLimit: DefaultIngestRate,
				Burst:     DefaultIngestBurst,
			},
			Broadcast: BroadcastConfig{
				Interval: DefaultBroadcastInterval,
				Profile:  DefaultBroadcastProfile,
			},
		},
	}
}

func applyEnv(cfg *Config) error {
	s := &cfg.Server
	o := envOverrides{
		GRPCPort:  s.GRPCPort,
		HTTPPort:  s.HTTPPort,
		LogLevel:  s.LogLevel,
		AuthMode:  s.Auth.Mode,
		Retention: s.Store.Retention,
	}
	if err := env.ParseWithOptions(&o, env.Options{Prefix: envPrefix}); err != nil {
		return err
	}
	s.GRPCPort = o.GRPCPort
	s.HTTPPort = o.HTTPPort
	s.LogLevel = o.LogLevel
	s.Auth.Mode = o.AuthMode
	s.Store.Retention = o.Retention
	return nil
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if _, err := logger.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("server.log_level: %w", err)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Auth.Mode == "apikey" && s.Auth.KeyEnv == "" {
		return fmt.Errorf("server.auth.key_env is required when mode is apikey")
	}
	if s.Store.Retention < series.MustProfile(series.Profile7Days).Window() {
		return fmt.Errorf("server.store.retention %v is shorter than the 7day window", s.Store.Retention)
	}
	if s.Store.MaxRowsPerService < 0 {
		return fmt.Errorf("server.store.max_rows_per_service must not be negative")
	}
	if floor := minRowsPerService(); s.Store.MaxRowsPerService > 0 && s.Store.MaxRowsPerService < floor {
		return fmt.Errorf("server.store.max_rows_per_service %d cannot hold a 7day window at %v spacing: want 0 (no cap) or at least %d",
			s.Store.MaxRowsPerService, MinRowSpacing, floor)
	}
	if s.Ingest.RateLimit < 0 {
		return fmt.Errorf("server.ingest.rate_limit must not be negative")
	}
	if s.Ingest.RateLimit > 0 && s.Ingest.Burst < 1 {
		return fmt.Errorf("server.ingest.burst must be at least 1 when rate_limit is set")
	}
	if s.Broadcast.Interval <= 0 {
		return fmt.Errorf("server.broadcast.interval must be positive")
	}
	if _, err := series.ParseProfile(s.Broadcast.Profile); err != nil {
		return fmt.Errorf("server.broadcast.profile: %w", err)
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d] %q: condition is required", i, r.Name)
		}
		if _, err := condition.Parse(r.Condition); err != nil {
			return fmt.Errorf("server.alerts.rules[%d] %q: %w", i, r.Name, err)
		}
	}
	return nil
}

// minRowsPerService is the smallest row cap that keeps every row of a 7day
// window at MinRowSpacing.
func minRowsPerService() int {
	return int(series.MustProfile(series.Profile7Days).Window() / MinRowSpacing)
}
