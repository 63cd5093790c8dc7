package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/statuspulse/statuspulse/pkg/configwatch"
	"github.com/statuspulse/statuspulse/pkg/logger"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultScrapeInterval = 30 * time.Second
	DefaultShipInterval   = 15 * time.Second
	DefaultBufferSize     = 1000
	DefaultLogLevel       = "info"
	DefaultMetric         = "http_requests_total"
	DefaultLabel          = "code"
	DefaultServerHeader   = "x-api-key"

	// MinScrapeInterval is the fastest supported scrape. The server's default
	// row cap holds a full week of rows at this spacing.
	MinScrapeInterval = 15 * time.Second
)

// Classification schemes for Source.Classify.
const (
	ClassifyStatusCode = "status_code"
	ClassifyOutcome    = "outcome"
)

// Config is the top-level configuration. The agent reads only the `agent:`
// section; the `server:` key in the same file is ignored.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the base URL of statuspulse-server, e.g. http://pulse:8080.
	ServerEndpoint string `yaml:"server_endpoint"`

	// ScrapeInterval controls how often each source is polled.
	ScrapeInterval time.Duration `yaml:"scrape_interval"`

	// ShipInterval controls how often buffered rows are sent to the server.
	ShipInterval time.Duration `yaml:"ship_interval"`

	// BufferSize is the maximum number of rows held per source when the
	// server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Sources is the list of services to scrape.
	Sources []Source `yaml:"sources"`

	// ServerAuth configures how the agent authenticates to statuspulse-server.
	ServerAuth ServerAuthConfig `yaml:"server_auth"`
}

// Source describes one scraped service.
type Source struct {
	// ID is the service_id the rows are filed under on the server.
	ID string `yaml:"id"`

	// Endpoint is the full URL of the service's Prometheus metrics endpoint.
	Endpoint string `yaml:"endpoint"`

	// Metric is the counter family counting requests (default http_requests_total).
	Metric string `yaml:"metric"`

	// Label is the label on Metric that carries the outcome (default "code").
	Label string `yaml:"label"`

	// Classify selects how Label values map to ok/warning/error:
	// status_code (default) or outcome.
	Classify string `yaml:"classify"`

	// Auth configures how the agent authenticates to this source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for a source.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// API key fields, used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// Bearer token fields, used when Mode == "bearer".
	// TokenEnv is the name of the environment variable that holds the token.
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields, used when Mode == "basic".
	// Username is the literal username (safe to store in config).
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	return getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	return getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	return getenv(a.PasswordEnv)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// ServerAuthConfig configures how the agent authenticates its ingest calls.
type ServerAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header carrying the key (default "x-api-key").
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the server API key resolved from the environment.
func (a ServerAuthConfig) Key() string {
	return getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a ServerAuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultServerHeader
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applySourceDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Watch monitors the config file at path and calls onChange with the newly
// parsed Config whenever the file is modified. It blocks until ctx is
// cancelled. Invalid configs are logged and the previous one stays active.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return configwatch.Watch(ctx, path, Load, onChange)
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ScrapeInterval: DefaultScrapeInterval,
			ShipInterval:   DefaultShipInterval,
			BufferSize:     DefaultBufferSize,
			LogLevel:       DefaultLogLevel,
		},
	}
}

// applySourceDefaults fills per-source fields that yaml cannot default
// because they live inside a list.
func applySourceDefaults(cfg *Config) {
	for i := range cfg.Agent.Sources {
		src := &cfg.Agent.Sources[i]
		if src.Metric == "" {
			src.Metric = DefaultMetric
		}
		if src.Label == "" {
			src.Label = DefaultLabel
		}
		if src.Classify == "" {
			src.Classify = ClassifyStatusCode
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if u, err := url.Parse(a.ServerEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("agent.server_endpoint %q must be an http(s) URL", a.ServerEndpoint)
	}
	if a.ScrapeInterval < MinScrapeInterval {
		return fmt.Errorf("agent.scrape_interval %v is below the %v minimum", a.ScrapeInterval, MinScrapeInterval)
	}
	if a.ShipInterval <= 0 {
		return fmt.Errorf("agent.ship_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if _, err := logger.ParseLevel(a.LogLevel); err != nil {
		return fmt.Errorf("agent.log_level: %w", err)
	}
	switch a.ServerAuth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth.mode %q unknown: want apikey|none", a.ServerAuth.Mode)
	}

	seen := make(map[string]bool, len(a.Sources))
	for i, src := range a.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true
		if src.Endpoint == "" {
			return fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID)
		}
		switch src.Classify {
		case ClassifyStatusCode, ClassifyOutcome:
		default:
			return fmt.Errorf("sources[%d] %q: unknown classify %q: want status_code|outcome", i, src.ID, src.Classify)
		}
		switch src.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
		if src.Auth.Mode == "mtls" && (src.Auth.CertFile == "" || src.Auth.KeyFile == "") {
			return fmt.Errorf("sources[%d] %q: mtls requires cert_file and key_file", i, src.ID)
		}
	}
	return nil
}
