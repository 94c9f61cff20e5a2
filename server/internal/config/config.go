package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. EFFICIENCY_HTTP_PORT.
const EnvPrefix = "EFFICIENCY_"

// Default values for the server configuration.
const (
	DefaultGRPCPort       = 50051
	DefaultHTTPPort       = 8080
	DefaultMetricsPort    = 9100
	DefaultStreamInterval = 5 * time.Second
	DefaultAlertCooldown  = 15 * time.Minute
	DefaultPGMaxOpenConns = 5
	DefaultPGMaxIdleConns = 5
	DefaultPGConnLifetime = 5 * time.Minute
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config holds the server configuration parsed from config.yaml. The
// `agent:` key in the same file is ignored.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Storage   StorageConfig   `yaml:"storage"`
	Stream    StreamConfig    `yaml:"stream"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	// GRPCPort is the port the measurement receiver listens on (default 50051).
	GRPCPort int `yaml:"grpc_port" env:"GRPC_PORT"`

	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`

	// MetricsPort serves /metrics. Zero disables the metrics listener.
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`

	// Auth configures how the server authenticates gRPC and REST clients.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode" env:"AUTH_MODE"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key and HTTP header to read the key from.
	// Defaults to "x-api-key".
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

// ModelConfig selects and tunes the rule base.
type ModelConfig struct {
	// Path is a YAML rule base. Empty selects the built-in one.
	Path string `yaml:"path" env:"MODEL_PATH"`

	// Fallback overrides the score returned when no rule fires.
	Fallback *float64 `yaml:"fallback"`

	// Resolution overrides the number of centroid samples. Zero keeps the
	// rule base's value.
	Resolution int `yaml:"resolution"`
}

// AnalyticsConfig holds the business constants used by the analytics layer.
// Zero values take the analytics defaults.
type AnalyticsConfig struct {
	LaborHoursPerDay      float64 `yaml:"labor_hours_per_day"`
	EnergyRate            float64 `yaml:"energy_rate" env:"ENERGY_RATE"`
	OperationalCostPerDay float64 `yaml:"operational_cost_per_day"`
	MaintenanceHourlyRate float64 `yaml:"maintenance_hourly_rate"`
	SavingsUnitValue      float64 `yaml:"savings_unit_value"`
}

// StorageConfig selects the machine catalog backend.
type StorageConfig struct {
	// Backend is one of: memory | postgres (default memory).
	Backend  string         `yaml:"backend" env:"STORAGE_BACKEND"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig configures the postgres catalog.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn" env:"PG_DSN" json:"-"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"PG_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PG_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"PG_CONN_MAX_LIFETIME"`

	// Migrate creates the machines table on startup.
	Migrate bool `yaml:"migrate" env:"PG_MIGRATE"`
}

// StreamConfig controls the WebSocket statistics stream.
type StreamConfig struct {
	// Interval between statistics broadcasts (default 5s).
	Interval time.Duration `yaml:"interval" env:"STREAM_INTERVAL"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "efficiency_score < 50",
	// "error_margin > 10", "status == very_bad".
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

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error (default info).
	Level string `yaml:"level" env:"LOG_LEVEL"`

	// Format is one of: json | text | tint (default json).
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Load reads the config file at path, applies environment overrides and
// validates the result. An empty path means defaults plus environment only.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("server config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("server config: parse yaml: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("server config: load .env: %w", err)
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("server config: env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort:    DefaultGRPCPort,
			HTTPPort:    DefaultHTTPPort,
			MetricsPort: DefaultMetricsPort,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Postgres: PostgresConfig{
				MaxOpenConns:    DefaultPGMaxOpenConns,
				MaxIdleConns:    DefaultPGMaxIdleConns,
				ConnMaxLifetime: DefaultPGConnLifetime,
			},
		},
		Stream: StreamConfig{Interval: DefaultStreamInterval},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if err := validPort("server.grpc_port", cfg.Server.GRPCPort); err != nil {
		return err
	}
	if err := validPort("server.http_port", cfg.Server.HTTPPort); err != nil {
		return err
	}
	if cfg.Server.MetricsPort != 0 {
		if err := validPort("server.metrics_port", cfg.Server.MetricsPort); err != nil {
			return err
		}
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Model.Resolution < 0 || cfg.Model.Resolution == 1 {
		return fmt.Errorf("model.resolution %d must be 0 or at least 2", cfg.Model.Resolution)
	}

	a := cfg.Analytics
	for name, v := range map[string]float64{
		"labor_hours_per_day":      a.LaborHoursPerDay,
		"energy_rate":              a.EnergyRate,
		"operational_cost_per_day": a.OperationalCostPerDay,
		"maintenance_hourly_rate":  a.MaintenanceHourlyRate,
		"savings_unit_value":       a.SavingsUnitValue,
	} {
		if v < 0 {
			return fmt.Errorf("analytics.%s must not be negative", name)
		}
	}

	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend %q unknown: want memory|postgres", cfg.Storage.Backend)
	}

	if cfg.Stream.Interval <= 0 {
		return fmt.Errorf("stream.interval must be positive")
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" || r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d]: name and condition are required", i)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d].severity %q unknown: want critical|warning|info", i, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "teams", "slack", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d].type %q unknown: want teams|slack|http", i, w.Type)
		}
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text", "tint":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text|tint", cfg.Log.Format)
	}
	return nil
}

func validPort(name string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s %d is out of range [1, 65535]", name, port)
	}
	return nil
}
