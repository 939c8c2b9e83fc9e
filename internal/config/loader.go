package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "kestrel.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "KESTREL_PORT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "KESTREL_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "KESTREL_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "KESTREL_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "KESTREL_PG_MAX_CONN_IDLE_TIME")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "KESTREL_LOG_LEVEL")
	setString(&cfg.Logging.Service, "KESTREL_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "KESTREL_LOG_ASYNC")
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Approval.Mode, "KESTREL_APPROVAL_MODE")
	setString(&cfg.Approval.GrantsPath, "KESTREL_GRANTS_PATH")
	setInt(&cfg.Approval.Concurrency, "KESTREL_CONCURRENCY")
	setInt64(&cfg.Cache.MaxSizeMB, "KESTREL_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.CardTTL, "KESTREL_CARD_TTL")
	setString(&cfg.Workspace.Root, "KESTREL_WORKSPACE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Approval.Mode {
	case "default", "autoEdit", "plan", "yolo":
	default:
		return fmt.Errorf("approval.mode %q is not one of default, autoEdit, plan, yolo", cfg.Approval.Mode)
	}
	if cfg.Approval.Concurrency < 0 {
		return errors.New("approval.concurrency must be >= 0")
	}
	if cfg.Postgres.DSN != "" && cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	for i, agent := range cfg.Remote.Agents {
		if agent.Name == "" {
			return fmt.Errorf("remote.agents[%d]: name is required", i)
		}
		if agent.Endpoint == "" {
			return fmt.Errorf("remote.agents[%d]: endpoint is required", i)
		}
		switch agent.Auth.Type {
		case "", "static", "env", "command", "ambient":
		default:
			return fmt.Errorf("remote.agents[%d]: auth.type %q is not one of static, env, command, ambient", i, agent.Auth.Type)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
