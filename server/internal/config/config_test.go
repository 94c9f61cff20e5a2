package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Only the agent section is present; the server falls back to defaults.
	p := writeConfig(t, `agent:
  server_endpoint: "localhost:50051"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", cfg.Server.GRPCPort, DefaultGRPCPort)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.MetricsPort != DefaultMetricsPort {
		t.Errorf("metrics_port: got %d, want %d", cfg.Server.MetricsPort, DefaultMetricsPort)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("storage.backend: got %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Stream.Interval != DefaultStreamInterval {
		t.Errorf("stream.interval: got %v, want %v", cfg.Stream.Interval, DefaultStreamInterval)
	}
	if cfg.Model.Fallback != nil {
		t.Errorf("model.fallback: got %v, want nil", *cfg.Model.Fallback)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("log: got %+v", cfg.Log)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `server:
  grpc_port: 9090
  http_port: 9091
  metrics_port: 0
  auth:
    mode: apikey
    key_env: MY_KEY
    header: x-machine-key
model:
  path: rules.yaml
  fallback: 50
  resolution: 501
analytics:
  energy_rate: 2.5
storage:
  backend: postgres
  postgres:
    dsn: postgres://localhost/efficiency
    migrate: true
stream:
  interval: 30s
alerts:
  rules:
    - name: low efficiency
      condition: efficiency_score < 40
      severity: warning
      cooldown: 1h
  webhooks:
    - type: slack
      url_env: SLACK_URL
log:
  level: debug
  format: tint
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != 9090 || cfg.Server.MetricsPort != 0 {
		t.Errorf("ports: got %+v", cfg.Server)
	}
	if cfg.Server.Auth.EffectiveHeader() != "x-machine-key" {
		t.Errorf("header: got %q, want x-machine-key", cfg.Server.Auth.EffectiveHeader())
	}
	if cfg.Model.Fallback == nil || *cfg.Model.Fallback != 50 || cfg.Model.Resolution != 501 {
		t.Errorf("model: got %+v", cfg.Model)
	}
	if cfg.Analytics.EnergyRate != 2.5 {
		t.Errorf("analytics.energy_rate: got %v, want 2.5", cfg.Analytics.EnergyRate)
	}
	if !cfg.Storage.Postgres.Migrate || cfg.Storage.Postgres.MaxOpenConns != DefaultPGMaxOpenConns {
		t.Errorf("postgres: got %+v", cfg.Storage.Postgres)
	}
	if cfg.Stream.Interval != 30*time.Second {
		t.Errorf("stream.interval: got %v, want 30s", cfg.Stream.Interval)
	}
	if len(cfg.Alerts.Rules) != 1 || cfg.Alerts.Rules[0].Cooldown != time.Hour {
		t.Errorf("alerts: got %+v", cfg.Alerts.Rules)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EFFICIENCY_HTTP_PORT", "7070")
	t.Setenv("EFFICIENCY_STORAGE_BACKEND", "postgres")
	t.Setenv("EFFICIENCY_PG_DSN", "postgres://env/db")
	t.Setenv("EFFICIENCY_STREAM_INTERVAL", "2s")
	t.Setenv("EFFICIENCY_LOG_FORMAT", "text")

	p := writeConfig(t, `server:
  http_port: 9091
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 7070 {
		t.Errorf("http_port: got %d, want 7070 from env", cfg.Server.HTTPPort)
	}
	if cfg.Storage.Backend != BackendPostgres || cfg.Storage.Postgres.DSN != "postgres://env/db" {
		t.Errorf("storage: got %+v", cfg.Storage)
	}
	if cfg.Stream.Interval != 2*time.Second {
		t.Errorf("stream.interval: got %v, want 2s", cfg.Stream.Interval)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("log.format: got %q, want text", cfg.Log.Format)
	}
}

func TestLoad_KeyEnvResolution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_SERVER_KEY
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown auth mode", "server:\n  auth:\n    mode: oauth2\n", "server.auth.mode"},
		{"port out of range", "server:\n  http_port: 70000\n", "server.http_port"},
		{"resolution of one", "model:\n  resolution: 1\n", "model.resolution"},
		{"negative rate", "analytics:\n  energy_rate: -1\n", "analytics.energy_rate"},
		{"postgres without dsn", "storage:\n  backend: postgres\n", "storage.postgres.dsn"},
		{"unknown backend", "storage:\n  backend: mongo\n", "storage.backend"},
		{"zero interval", "stream:\n  interval: 0s\n", "stream.interval"},
		{"rule without condition", "alerts:\n  rules:\n    - name: x\n", "alerts.rules[0]"},
		{"unknown severity", "alerts:\n  rules:\n    - name: x\n      condition: efficiency_score < 1\n      severity: loud\n", "severity"},
		{"unknown webhook", "alerts:\n  webhooks:\n    - type: pager\n", "alerts.webhooks[0]"},
		{"unknown log format", "log:\n  format: xml\n", "log.format"},
		{"bad yaml", "server: [\n", "parse yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
