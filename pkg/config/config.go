package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/retry"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/services"
	sqlpkg "github.com/ekaya-inc/ekaya-sqlagent/pkg/sql"
)

// DefaultPath is the config file Load reads when it exists.
const DefaultPath = "config.yaml"

// Config holds all configuration for ekaya-sqlagent.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Database the agent queries
	Datasource DatasourceConfig `yaml:"datasource"`

	// Language model used for generation, correction and summaries
	LLM LLMConfig `yaml:"llm"`

	// Statement safety policy
	Safety SafetyConfig `yaml:"safety"`

	// Retry loop and tool behaviour
	Agent AgentConfig `yaml:"agent"`

	Logging LoggingConfig `yaml:"logging"`
}

// DatasourceConfig selects and connects to the database the agent queries.
type DatasourceConfig struct {
	// Type is a registered adapter: "postgres", "sqlite" or "sqlserver".
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"sqlite"`
	URL      string `yaml:"-" env:"DATASOURCE_URL"` // Secret - may embed credentials
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"` // 0 uses the adapter default
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:""`

	// Path is the SQLite database file.
	Path     string `yaml:"path" env:"DATASOURCE_PATH" env-default:"sqlagent.db"`
	ReadOnly bool   `yaml:"read_only" env:"DATASOURCE_READ_ONLY" env-default:"true"`

	// SQL Server transport options.
	Encrypt                bool `yaml:"encrypt" env:"DATASOURCE_ENCRYPT" env-default:"true"`
	TrustServerCertificate bool `yaml:"trust_server_certificate" env:"DATASOURCE_TRUST_SERVER_CERTIFICATE" env-default:"false"`

	// QueryTimeoutSeconds bounds every statement the agent runs.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"DATASOURCE_QUERY_TIMEOUT_SECONDS" env-default:"30"`
	// SampleRows is how many rows per table the schema prompt shows. 0 disables sampling.
	SampleRows int `yaml:"sample_rows" env:"DATASOURCE_SAMPLE_ROWS" env-default:"2"`
}

// LLMConfig selects the model provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint    string  `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""`
	Model       string  `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey      string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2000"`
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.1"`
	Thinking    bool    `yaml:"thinking" env:"LLM_THINKING" env-default:"false"`

	// Transient provider errors are retried with exponential backoff.
	MaxRetries       int `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"2"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" env:"LLM_INITIAL_BACKOFF_MS" env-default:"500"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" env:"LLM_MAX_BACKOFF_MS" env-default:"8000"`

	// The circuit opens after CircuitThreshold consecutive transient failures.
	CircuitThreshold    int `yaml:"circuit_threshold" env:"LLM_CIRCUIT_THRESHOLD" env-default:"5"`
	CircuitResetSeconds int `yaml:"circuit_reset_seconds" env:"LLM_CIRCUIT_RESET_SECONDS" env-default:"30"`
}

// SafetyConfig is the statement policy.
type SafetyConfig struct {
	SafeMode               bool     `yaml:"safe_mode" env:"SAFE_MODE" env-default:"true"`
	BlockedKeywords        []string `yaml:"blocked_keywords" env:"BLOCKED_KEYWORDS" env-separator:"," env-default:"DELETE,DROP,ALTER,TRUNCATE,CREATE,INSERT,UPDATE"`
	MaxQueryLength         int      `yaml:"max_query_length" env:"MAX_QUERY_LENGTH" env-default:"10000"`
	DefaultRowLimit        int      `yaml:"default_row_limit" env:"DEFAULT_ROW_LIMIT" env-default:"1000"`
	DetectLiteralInjection bool     `yaml:"detect_literal_injection" env:"DETECT_LITERAL_INJECTION" env-default:"true"`
	// AllowedTables restricts queries to these tables. Empty means every discovered table.
	AllowedTables []string `yaml:"allowed_tables" env:"ALLOWED_TABLES" env-separator:","`
}

// AgentConfig shapes the retry loop.
type AgentConfig struct {
	MaxIterations    int  `yaml:"max_iterations" env:"AGENT_MAX_ITERATIONS" env-default:"3"`
	EnableCorrection bool `yaml:"enable_correction" env:"AGENT_ENABLE_CORRECTION" env-default:"true"`
	EnableTools      bool `yaml:"enable_tools" env:"AGENT_ENABLE_TOOLS" env-default:"true"`
	MemorySize       int  `yaml:"memory_size" env:"AGENT_MEMORY_SIZE" env-default:"10"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT" env-default:"false"`
}

// Load reads config.yaml when present, with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultPath, version)
}

// LoadFrom reads the YAML file at path with environment variable overrides.
// A missing file is not an error: configuration then comes from the
// environment and defaults alone.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// Validate checks values that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	switch c.Dialect() {
	case sqlpkg.DialectPostgres, sqlpkg.DialectSQLite, sqlpkg.DialectSQLServer:
	default:
		return fmt.Errorf("unsupported datasource type %q (want postgres, sqlite or sqlserver)", c.Datasource.Type)
	}

	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.MemorySize < 1 {
		return fmt.Errorf("agent.memory_size must be at least 1, got %d", c.Agent.MemorySize)
	}
	if c.Datasource.QueryTimeoutSeconds < 1 {
		return fmt.Errorf("datasource.query_timeout_seconds must be at least 1, got %d", c.Datasource.QueryTimeoutSeconds)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature)
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// If both provided, verify files exist (actual readability checked by tls.LoadX509KeyPair at startup)
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// Dialect returns the SQL dialect of the configured datasource. "mssql" is
// accepted as an alias for "sqlserver" and "postgresql" for "postgres".
func (c *Config) Dialect() sqlpkg.Dialect {
	switch strings.ToLower(strings.TrimSpace(c.Datasource.Type)) {
	case "postgres", "postgresql":
		return sqlpkg.DialectPostgres
	case "sqlite", "sqlite3":
		return sqlpkg.DialectSQLite
	case "sqlserver", "mssql":
		return sqlpkg.DialectSQLServer
	}
	return sqlpkg.Dialect(c.Datasource.Type)
}

// AdapterConfig returns the map the datasource adapter factory expects.
func (c *Config) AdapterConfig() map[string]any {
	ds := c.Datasource
	switch c.Dialect() {
	case sqlpkg.DialectSQLite:
		return map[string]any{
			"path":      ds.Path,
			"read_only": ds.ReadOnly,
		}
	case sqlpkg.DialectSQLServer:
		m := map[string]any{
			"host":                     ResolveHostForDocker(ds.Host),
			"database":                 ds.Database,
			"user":                     ds.User,
			"password":                 ds.Password,
			"encrypt":                  ds.Encrypt,
			"trust_server_certificate": ds.TrustServerCertificate,
		}
		if ds.Port > 0 {
			m["port"] = ds.Port
		}
		return m
	default:
		m := map[string]any{
			"url":      ds.URL,
			"host":     ResolveHostForDocker(ds.Host),
			"user":     ds.User,
			"password": ds.Password,
			"database": ds.Database,
		}
		if ds.Port > 0 {
			m["port"] = ds.Port
		}
		if ds.SSLMode != "" {
			m["ssl_mode"] = ds.SSLMode
		}
		return m
	}
}

// QueryTimeout returns the per-statement timeout.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Datasource.QueryTimeoutSeconds) * time.Second
}

// Policy builds the immutable statement policy.
func (c *Config) Policy() *sqlpkg.Policy {
	return sqlpkg.NewPolicy(sqlpkg.PolicyConfig{
		SafeMode:               c.Safety.SafeMode,
		BlockedKeywords:        c.Safety.BlockedKeywords,
		MaxQueryLength:         c.Safety.MaxQueryLength,
		DefaultRowLimit:        c.Safety.DefaultRowLimit,
		AllowedTables:          c.Safety.AllowedTables,
		DetectLiteralInjection: c.Safety.DetectLiteralInjection,
		Dialect:                c.Dialect(),
	})
}

// AgentConfig converts the agent and llm sections into the agent's settings.
func (c *Config) AgentConfig() services.AgentConfig {
	return services.AgentConfig{
		MaxIterations:    c.Agent.MaxIterations,
		EnableCorrection: c.Agent.EnableCorrection,
		EnableTools:      c.Agent.EnableTools,
		Temperature:      c.LLM.Temperature,
		Thinking:         c.LLM.Thinking,
		MemorySize:       c.Agent.MemorySize,
	}
}

// LLMClientConfig returns the provider client settings.
func (c *Config) LLMClientConfig() *llm.Config {
	return &llm.Config{
		Provider:  c.LLM.Provider,
		Endpoint:  c.LLM.Endpoint,
		Model:     c.LLM.Model,
		APIKey:    c.LLM.APIKey,
		MaxTokens: c.LLM.MaxTokens,
	}
}

// RetryConfig returns the backoff used for transient provider errors.
func (c *Config) RetryConfig() *retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = c.LLM.MaxRetries
	if c.LLM.InitialBackoffMs > 0 {
		rc.InitialDelay = time.Duration(c.LLM.InitialBackoffMs) * time.Millisecond
	}
	if c.LLM.MaxBackoffMs > 0 {
		rc.MaxDelay = time.Duration(c.LLM.MaxBackoffMs) * time.Millisecond
	}
	return rc
}

// CircuitBreakerConfig returns the provider circuit breaker settings.
func (c *Config) CircuitBreakerConfig() llm.CircuitBreakerConfig {
	cb := llm.DefaultCircuitBreakerConfig()
	if c.LLM.CircuitThreshold > 0 {
		cb.Threshold = c.LLM.CircuitThreshold
	}
	if c.LLM.CircuitResetSeconds > 0 {
		cb.ResetAfter = time.Duration(c.LLM.CircuitResetSeconds) * time.Second
	}
	return cb
}
