package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every env key the loader reads so ambient CI variables
// cannot leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"KESTREL_PORT",
		"DATABASE_URL",
		"KESTREL_PG_MAX_CONNS",
		"KESTREL_PG_MIN_CONNS",
		"KESTREL_PG_MAX_CONN_LIFETIME",
		"KESTREL_PG_MAX_CONN_IDLE_TIME",
		"NATS_URL",
		"KESTREL_LOG_LEVEL",
		"KESTREL_LOG_SERVICE",
		"KESTREL_LOG_ASYNC",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
		"KESTREL_APPROVAL_MODE",
		"KESTREL_GRANTS_PATH",
		"KESTREL_CONCURRENCY",
		"KESTREL_CACHE_SIZE_MB",
		"KESTREL_CARD_TTL",
		"KESTREL_WORKSPACE",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kestrel.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "" {
		t.Errorf("Postgres.DSN = %q, want empty", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 10 || cfg.Postgres.MinConns != 1 {
		t.Errorf("Postgres conns = %d/%d, want 10/1", cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	}
	if cfg.Postgres.MaxConnLifetime != time.Hour || cfg.Postgres.MaxConnIdleTime != 10*time.Minute {
		t.Errorf("Postgres lifetimes = %v/%v", cfg.Postgres.MaxConnLifetime, cfg.Postgres.MaxConnIdleTime)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Service != "kestrel" || cfg.Logging.Async {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Approval.Mode != "default" || cfg.Approval.Concurrency != 4 {
		t.Errorf("Approval = %+v", cfg.Approval)
	}
	if cfg.Cache.MaxSizeMB != 64 || cfg.Cache.CardTTL != 5*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Workspace.Root != "." {
		t.Errorf("Workspace.Root = %q, want .", cfg.Workspace.Root)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
server:
  port: "9090"
approval:
  mode: plan
  concurrency: 2
logging:
  level: debug
  async: true
remote:
  agents:
    - name: reviewer
      endpoint: https://reviewer.example.com
      auth:
        type: env
        env: REVIEWER_TOKEN
mcp:
  servers:
    - name: files
      transport: stdio
      command: mcp-files
      args: ["--root", "/tmp"]
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Approval.Mode != "plan" || cfg.Approval.Concurrency != 2 {
		t.Errorf("Approval = %+v", cfg.Approval)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Async {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Logging.Service != "kestrel" {
		t.Errorf("unset YAML fields must keep defaults, got service %q", cfg.Logging.Service)
	}

	if len(cfg.Remote.Agents) != 1 {
		t.Fatalf("expected 1 remote agent, got %d", len(cfg.Remote.Agents))
	}
	agent := cfg.Remote.Agents[0]
	if agent.Name != "reviewer" || agent.Endpoint != "https://reviewer.example.com" {
		t.Errorf("agent = %+v", agent)
	}
	if agent.Auth.Type != "env" || agent.Auth.Env != "REVIEWER_TOKEN" {
		t.Errorf("agent auth = %+v", agent.Auth)
	}

	if len(cfg.MCP.Servers) != 1 {
		t.Fatalf("expected 1 mcp server, got %d", len(cfg.MCP.Servers))
	}
	srv := cfg.MCP.Servers[0]
	if srv.Name != "files" || srv.Transport != "stdio" || srv.Command != "mcp-files" {
		t.Errorf("mcp server = %+v", srv)
	}
	if len(srv.Args) != 2 || srv.Args[1] != "/tmp" {
		t.Errorf("mcp args = %v", srv.Args)
	}
}

func TestLoadYAMLMalformed(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, "server:\n  port: [broken\n")
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("KESTREL_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://localhost/kestrel")
	t.Setenv("KESTREL_PG_MAX_CONNS", "25")
	t.Setenv("KESTREL_LOG_LEVEL", "warn")
	t.Setenv("KESTREL_APPROVAL_MODE", "yolo")
	t.Setenv("KESTREL_CONCURRENCY", "8")
	t.Setenv("KESTREL_CARD_TTL", "90s")
	t.Setenv("KESTREL_WORKSPACE", "/srv/work")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Server.Port = %q, want 7070", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://localhost/kestrel" || cfg.Postgres.MaxConns != 25 {
		t.Errorf("Postgres = %+v", cfg.Postgres)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Approval.Mode != "yolo" || cfg.Approval.Concurrency != 8 {
		t.Errorf("Approval = %+v", cfg.Approval)
	}
	if cfg.Cache.CardTTL != 90*time.Second {
		t.Errorf("Cache.CardTTL = %v, want 90s", cfg.Cache.CardTTL)
	}
	if cfg.Workspace.Root != "/srv/work" {
		t.Errorf("Workspace.Root = %q, want /srv/work", cfg.Workspace.Root)
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("KESTREL_PG_MAX_CONNS", "lots")
	t.Setenv("KESTREL_CONCURRENCY", "many")
	t.Setenv("KESTREL_CARD_TTL", "soon")
	t.Setenv("KESTREL_LOG_ASYNC", "sometimes")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Postgres.MaxConns != 10 {
		t.Errorf("Postgres.MaxConns = %d, want default 10", cfg.Postgres.MaxConns)
	}
	if cfg.Approval.Concurrency != 4 {
		t.Errorf("Approval.Concurrency = %d, want default 4", cfg.Approval.Concurrency)
	}
	if cfg.Cache.CardTTL != 5*time.Minute {
		t.Errorf("Cache.CardTTL = %v, want default 5m", cfg.Cache.CardTTL)
	}
	if cfg.Logging.Async {
		t.Error("Logging.Async = true, want default false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: true,
		},
		{
			name:    "unknown approval mode",
			mutate:  func(c *Config) { c.Approval.Mode = "careful" },
			wantErr: true,
		},
		{
			name:   "plan mode is valid",
			mutate: func(c *Config) { c.Approval.Mode = "plan" },
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Approval.Concurrency = -1 },
			wantErr: true,
		},
		{
			name: "dsn set with zero max conns",
			mutate: func(c *Config) {
				c.Postgres.DSN = "postgres://localhost/kestrel"
				c.Postgres.MaxConns = 0
			},
			wantErr: true,
		},
		{
			name: "remote agent missing name",
			mutate: func(c *Config) {
				c.Remote.Agents = []RemoteAgent{{Endpoint: "https://a.example.com"}}
			},
			wantErr: true,
		},
		{
			name: "remote agent missing endpoint",
			mutate: func(c *Config) {
				c.Remote.Agents = []RemoteAgent{{Name: "a"}}
			},
			wantErr: true,
		},
		{
			name: "remote agent unknown auth type",
			mutate: func(c *Config) {
				c.Remote.Agents = []RemoteAgent{{
					Name:     "a",
					Endpoint: "https://a.example.com",
					Auth:     Auth{Type: "oauth"},
				}}
			},
			wantErr: true,
		},
		{
			name: "remote agent without auth",
			mutate: func(c *Config) {
				c.Remote.Agents = []RemoteAgent{{Name: "a", Endpoint: "https://a.example.com"}}
			},
		},
		{
			name: "remote agent ambient auth",
			mutate: func(c *Config) {
				c.Remote.Agents = []RemoteAgent{{
					Name:     "a",
					Endpoint: "https://a.example.com",
					Auth:     Auth{Type: "ambient", TokenURL: "http://169.254.169.254/token"},
				}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
