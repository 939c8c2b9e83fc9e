// Package config provides hierarchical configuration loading for Kestrel.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the Kestrel orchestrator.
type Config struct {
	Server    Server    `yaml:"server"`
	Postgres  Postgres  `yaml:"postgres"`
	NATS      NATS      `yaml:"nats"`
	Logging   Logging   `yaml:"logging"`
	Telemetry Telemetry `yaml:"telemetry"`
	Approval  Approval  `yaml:"approval"`
	Cache     Cache     `yaml:"cache"`
	Remote    Remote    `yaml:"remote"`
	MCP       MCP       `yaml:"mcp"`
	Workspace Workspace `yaml:"workspace"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port string `yaml:"port"`
}

// Postgres holds PostgreSQL connection configuration. An empty DSN disables
// the audit trail store.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// NATS holds NATS JetStream configuration. An empty URL disables the
// out-of-process confirmation bridge.
type NATS struct {
	URL string `yaml:"url"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Telemetry holds OpenTelemetry export configuration. An empty endpoint
// disables export.
type Telemetry struct {
	Endpoint string `yaml:"endpoint"`
}

// Approval holds the session approval configuration.
type Approval struct {
	// Mode is the starting approval mode: default, autoEdit, plan, or yolo.
	Mode string `yaml:"mode"`
	// GrantsPath persists "proceed always" grants across sessions.
	GrantsPath string `yaml:"grants_path"`
	// Concurrency bounds parallel tool invocations; zero means unbounded.
	Concurrency int `yaml:"concurrency"`
}

// Cache holds in-process cache configuration (agent card cache).
type Cache struct {
	MaxSizeMB int64         `yaml:"max_size_mb"`
	CardTTL   time.Duration `yaml:"card_ttl"`
}

// Remote holds remote agent configuration.
type Remote struct {
	Agents []RemoteAgent `yaml:"agents"`
}

// RemoteAgent describes one remote agent endpoint and its credentials.
type RemoteAgent struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
	Auth     Auth   `yaml:"auth"`
}

// Auth selects a credential source for a remote agent.
type Auth struct {
	// Type is one of "", "static", "env", "command", or "ambient". Empty
	// disables auth.
	Type string `yaml:"type"`
	// Header is the header the credential is sent in; defaults to Authorization.
	Header string `yaml:"header"`
	// Token is the literal credential for type static.
	Token string `yaml:"token"`
	// Env names the environment variable holding the credential for type env.
	Env string `yaml:"env"`
	// Command is executed to mint a credential for type command. It is split
	// on whitespace into the binary and its arguments.
	Command string `yaml:"command"`
	// TokenURL is the metadata endpoint queried for a token for type ambient.
	TokenURL string `yaml:"token_url"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Servers []MCPServer `yaml:"servers"`
}

// MCPServer describes one MCP server whose tools join the registry.
type MCPServer struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"`
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
}

// Workspace holds local tool execution configuration.
type Workspace struct {
	// Root is the directory file and shell tools operate in.
	Root string `yaml:"root"`
}

// Defaults returns a Config with sensible default values for local use.
func Defaults() Config {
	return Config{
		Server: Server{
			Port: "8080",
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
		},
		Logging: Logging{
			Level:   "info",
			Service: "kestrel",
		},
		Approval: Approval{
			Mode:        "default",
			Concurrency: 4,
		},
		Cache: Cache{
			MaxSizeMB: 64,
			CardTTL:   5 * time.Minute,
		},
		Workspace: Workspace{
			Root: ".",
		},
	}
}
