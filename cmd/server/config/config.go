// Package config provides configuration structures for the NL2SQL API server.
package config

import (
	"fmt"
	"time"
)

// Config represents the server configuration.
type Config struct {
	// Server settings
	Address         string        `yaml:"address" json:"address"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Database configuration
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Model configuration
	Model ModelConfig `yaml:"model" json:"model"`

	// Agent configuration
	Agent AgentConfig `yaml:"agent" json:"agent"`

	// Query guard configuration
	Guard GuardConfig `yaml:"guard" json:"guard"`

	// Result optimizer configuration
	Optimizer OptimizerConfig `yaml:"optimizer" json:"optimizer"`

	// Schema cache configuration
	Schema SchemaConfig `yaml:"schema" json:"schema"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// CORS configuration
	CORS CORSConfig `yaml:"cors" json:"cors"`
}

// DatabaseConfig represents PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL             string        `yaml:"url" json:"url"`
	MaxConnections  int32         `yaml:"max_connections" json:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout" json:"query_timeout"`
}

// ModelConfig represents the language model configuration.
type ModelConfig struct {
	Name            string  `yaml:"name" json:"name"`
	APIKey          string  `yaml:"api_key" json:"-"`
	PricePerMInput  float64 `yaml:"price_per_m_input" json:"price_per_m_input"`
	PricePerMOutput float64 `yaml:"price_per_m_output" json:"price_per_m_output"`
}

// AgentConfig represents reasoning loop configuration.
type AgentConfig struct {
	MaxIterations   int `yaml:"max_iterations" json:"max_iterations"`
	MaxSchemaTables int `yaml:"max_schema_tables" json:"max_schema_tables"`
}

// GuardConfig represents query guard configuration.
type GuardConfig struct {
	MaxRows int `yaml:"max_rows" json:"max_rows"`
}

// OptimizerConfig represents result optimizer configuration.
type OptimizerConfig struct {
	MaxRows          int `yaml:"max_rows" json:"max_rows"`
	MaxCharsPerField int `yaml:"max_chars_per_field" json:"max_chars_per_field"`
}

// SchemaConfig represents schema cache configuration.
type SchemaConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// CORSConfig represents CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// Validate validates the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Model.APIKey == "" {
		return fmt.Errorf("model API key is required")
	}

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}

	// Database defaults
	if c.Database.MaxConnections <= 0 {
		c.Database.MaxConnections = 20
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Database.QueryTimeout <= 0 {
		c.Database.QueryTimeout = 30 * time.Second
	}

	// Model defaults
	if c.Model.Name == "" {
		c.Model.Name = "gemini-2.0-flash"
	}
	if c.Model.PricePerMInput <= 0 {
		c.Model.PricePerMInput = 0.075
	}
	if c.Model.PricePerMOutput <= 0 {
		c.Model.PricePerMOutput = 0.30
	}

	// Agent defaults
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 10
	}
	if c.Agent.MaxSchemaTables <= 0 {
		c.Agent.MaxSchemaTables = 10
	}

	// Guard and optimizer defaults
	if c.Guard.MaxRows <= 0 {
		c.Guard.MaxRows = 50
	}
	if c.Optimizer.MaxRows <= 0 {
		c.Optimizer.MaxRows = 20
	}
	if c.Optimizer.MaxCharsPerField <= 0 {
		c.Optimizer.MaxCharsPerField = 100
	}

	// Schema defaults
	if c.Schema.CacheTTL <= 0 {
		c.Schema.CacheTTL = 5 * time.Minute
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	return nil
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:         "0.0.0.0:8080",
		LogLevel:        "info",
		ShutdownTimeout: 30 * time.Second,
		Database: DatabaseConfig{
			MaxConnections:  20,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    30 * time.Second,
		},
		Model: ModelConfig{
			Name:            "gemini-2.0-flash",
			PricePerMInput:  0.075,
			PricePerMOutput: 0.30,
		},
		Agent: AgentConfig{
			MaxIterations:   10,
			MaxSchemaTables: 10,
		},
		Guard: GuardConfig{
			MaxRows: 50,
		},
		Optimizer: OptimizerConfig{
			MaxRows:          20,
			MaxCharsPerField: 100,
		},
		Schema: SchemaConfig{
			CacheTTL: 5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}
