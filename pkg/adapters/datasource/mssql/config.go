package mssql

import (
	"errors"
	"fmt"
)

// Authentication methods.
const (
	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

const (
	defaultPort              = 1433
	defaultConnectionTimeout = 30
)

// Config holds SQL Server connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod is AuthSQL or AuthServicePrincipal.
	AuthMethod string

	Username string
	Password string

	// Azure AD application credentials.
	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int { return defaultPort }

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int { return defaultConnectionTimeout }

// FromMap builds a Config from adapter settings. Without an explicit
// auth_method, a client_id selects service principal auth and a user selects
// SQL auth.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Host:                   stringValue(m, "host"),
		Port:                   intValue(m, "port", defaultPort),
		Database:               stringValue(m, "database"),
		AuthMethod:             stringValue(m, "auth_method"),
		Username:               stringValue(m, "user", "username"),
		Password:               stringValue(m, "password"),
		TenantID:               stringValue(m, "tenant_id"),
		ClientID:               stringValue(m, "client_id"),
		ClientSecret:           stringValue(m, "client_secret"),
		Encrypt:                encryptValue(m["encrypt"]),
		TrustServerCertificate: m["trust_server_certificate"] == true,
		ConnectionTimeout:      intValue(m, "connection_timeout", defaultConnectionTimeout),
	}

	if cfg.AuthMethod == "" {
		switch {
		case cfg.ClientID != "":
			cfg.AuthMethod = AuthServicePrincipal
		case cfg.Username != "":
			cfg.AuthMethod = AuthSQL
		default:
			return nil, errors.New("no credentials provided: set user or client_id")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields required by the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Database == "" {
		return errors.New("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case AuthSQL:
		if c.Username == "" {
			return errors.New("user is required for SQL authentication")
		}
	case AuthServicePrincipal:
		for field, v := range map[string]string{"tenant_id": c.TenantID, "client_id": c.ClientID, "client_secret": c.ClientSecret} {
			if v == "" {
				return fmt.Errorf("%s is required for service principal authentication", field)
			}
		}
	default:
		return fmt.Errorf("invalid auth method %q: must be %s or %s", c.AuthMethod, AuthSQL, AuthServicePrincipal)
	}
	return nil
}

// stringValue returns the first non-empty string stored under any of keys.
func stringValue(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func intValue(m map[string]any, key string, fallback int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// encryptValue accepts a bool or the driver's "true"/"false"/"strict" strings.
// Anything else keeps encryption on.
func encryptValue(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "false" && val != "disable"
	}
	return true
}
