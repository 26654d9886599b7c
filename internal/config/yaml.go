package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level csvdeck configuration file. Keys match
// the viper keys used by the CLI, so the same file serves both.
type YAMLConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreYAML     `yaml:"store"`
	Upload  UploadConfig  `yaml:"upload"`
	Query   QueryConfig   `yaml:"query"`
	MCP     MCPConfig     `yaml:"mcp"`
	Logging LoggingConfig `yaml:"logging"`
	DataDir string        `yaml:"data_dir,omitempty"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string          `yaml:"host"`
	Port            int             `yaml:"port"`
	MaxBodySize     string          `yaml:"max_body_size"`
	ShutdownTimeout string          `yaml:"shutdown_timeout"`
	CORS            CORSConfig      `yaml:"cors"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// RateLimitConfig sets per-IP request budgets per minute. Zero disables.
type RateLimitConfig struct {
	Query  int `yaml:"query"`
	Upload int `yaml:"upload"`
}

// StoreYAML defines the physical store that uploaded tables live in.
type StoreYAML struct {
	Driver         string          `yaml:"driver"`
	DSN            string          `yaml:"dsn"`
	Schema         string          `yaml:"schema,omitempty"`
	PrivateKeyPath string          `yaml:"private_key_path,omitempty"`
	Pool           *PoolYAMLConfig `yaml:"pool,omitempty"`
}

// PoolYAMLConfig controls the connection pool for the store.
type PoolYAMLConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

// UploadConfig controls CSV ingestion.
type UploadConfig struct {
	BatchSize     int    `yaml:"batch_size"`
	SampleRows    int    `yaml:"sample_rows"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	MaxWait       string `yaml:"max_wait"`
}

// QueryConfig bounds ad hoc and paginated reads.
type QueryConfig struct {
	Timeout     string `yaml:"timeout"`
	MaxRows     int    `yaml:"max_rows"`
	MaxPageSize int    `yaml:"max_page_size"`
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Transport string `yaml:"transport"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxBodySize:     "100MB",
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
				Methods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			},
			RateLimit: RateLimitConfig{
				Query:  120,
				Upload: 30,
			},
		},
		Store: StoreYAML{
			Driver: "sqlite",
		},
		Upload: UploadConfig{
			BatchSize:     500,
			SampleRows:    0,
			MaxConcurrent: 4,
			MaxWait:       "5s",
		},
		Query: QueryConfig{
			Timeout:     "30s",
			MaxRows:     10000,
			MaxPageSize: 1000,
		},
		MCP: MCPConfig{
			Transport: "stdio",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
