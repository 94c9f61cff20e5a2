package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultScrapeInterval = 30 * time.Second
	DefaultBufferSize     = 1000
	DefaultAuthHeader     = "x-api-key"
)

// Default exporter metric names.
const (
	DefaultProducedMetric    = "machine_units_produced_total"
	DefaultRejectedMetric    = "machine_units_rejected_total"
	DefaultStandbyMetric     = "machine_standby_seconds_total"
	DefaultEnergyMetric      = "machine_energy_kwh_total"
	DefaultMaintenanceMetric = "machine_maintenance_interval_days"
)

// EnvPrefix prefixes every environment override, e.g.
// EFFICIENCY_AGENT_SERVER_ENDPOINT.
const EnvPrefix = "EFFICIENCY_AGENT_"

// Config is the agent configuration file.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
	Log   LogConfig   `yaml:"log"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the gRPC address of efficiency-server (host:port).
	ServerEndpoint string `yaml:"server_endpoint" env:"SERVER_ENDPOINT"`

	// ScrapeInterval controls how often each machine exporter is polled.
	ScrapeInterval time.Duration `yaml:"scrape_interval" env:"SCRAPE_INTERVAL"`

	// BufferSize is the maximum number of reports held in memory while the
	// server is unreachable.
	BufferSize int `yaml:"buffer_size" env:"BUFFER_SIZE"`

	// Machines is the list of exporters to scrape.
	Machines []Machine `yaml:"machines"`

	// ServerAuth configures how the agent authenticates to efficiency-server.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// Machine describes one machine exporter.
type Machine struct {
	// Name identifies the machine in the server catalog. It is created there
	// on the first report when ID is zero.
	Name string `yaml:"name"`

	// ID pins the report to an existing catalog entry.
	ID int64 `yaml:"id"`

	// Endpoint is the full URL of the exporter's metrics endpoint.
	Endpoint string `yaml:"endpoint"`

	// Metrics names the exporter series each measurement is read from.
	Metrics MetricNames `yaml:"metrics"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// MetricNames maps measurements to exporter metric names. Produced, rejected,
// standby and energy are counters; maintenance interval is a gauge.
type MetricNames struct {
	Produced            string `yaml:"produced"`
	Rejected            string `yaml:"rejected"`
	StandbySeconds      string `yaml:"standby_seconds"`
	EnergyKWh           string `yaml:"energy_kwh"`
	MaintenanceInterval string `yaml:"maintenance_interval"`
}

func (n *MetricNames) fill() {
	if n.Produced == "" {
		n.Produced = DefaultProducedMetric
	}
	if n.Rejected == "" {
		n.Rejected = DefaultRejectedMetric
	}
	if n.StandbySeconds == "" {
		n.StandbySeconds = DefaultStandbyMetric
	}
	if n.EnergyKWh == "" {
		n.EnergyKWh = DefaultEnergyMetric
	}
	if n.MaintenanceInterval == "" {
		n.MaintenanceInterval = DefaultMaintenanceMetric
	}
}

// AuthConfig specifies an authentication mode.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header carries the API key. Defaults to x-api-key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds a bearer token.
	TokenEnv string `yaml:"token_env"`

	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns Header or the default API key header.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAuthHeader
}

// TLSConfig holds per-exporter TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Load reads and parses the YAML config file at path, then applies
// environment overrides. Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	for i := range cfg.Agent.Machines {
		cfg.Agent.Machines[i].Metrics.fill()
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ScrapeInterval: DefaultScrapeInterval,
			BufferSize:     DefaultBufferSize,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Agent.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if cfg.Agent.ScrapeInterval <= 0 {
		return fmt.Errorf("agent.scrape_interval must be positive")
	}
	if cfg.Agent.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if err := validAuthMode("agent.server_auth", cfg.Agent.ServerAuth.Mode); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.Agent.Machines))
	for i, m := range cfg.Agent.Machines {
		if m.Name == "" {
			return fmt.Errorf("machines[%d]: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("machines[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
		if m.ID < 0 {
			return fmt.Errorf("machines[%d] %q: id must not be negative", i, m.Name)
		}
		if u, err := url.Parse(m.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("machines[%d] %q: endpoint must be an http(s) URL", i, m.Name)
		}
		if err := validAuthMode(fmt.Sprintf("machines[%d] %q", i, m.Name), m.Auth.Mode); err != nil {
			return err
		}
	}
	return nil
}

func validAuthMode(where, mode string) error {
	switch mode {
	case "apikey", "bearer", "basic", "none", "":
		return nil
	}
	return fmt.Errorf("%s: unknown auth mode %q", where, mode)
}
