package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
)

// open validates the config and opens a pool for the configured auth method.
// The pool is pinged before it is returned.
func open(ctx context.Context, cfg *Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var (
		db  *sql.DB
		err error
	)
	switch cfg.AuthMethod {
	case AuthSQL:
		db, err = sql.Open("sqlserver", sqlAuthConnectionString(cfg))
	case AuthServicePrincipal:
		db, err = sql.Open("azuresql", servicePrincipalConnectionString(cfg))
	default:
		return nil, fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
	if err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}
	return db, nil
}

func connectionOptions(cfg *Config) url.Values {
	query := url.Values{}
	query.Add("database", cfg.Database)
	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}
	return query
}

// sqlAuthConnectionString builds a sqlserver:// URL for SQL Server authentication.
func sqlAuthConnectionString(cfg *Config) string {
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		connectionOptions(cfg).Encode(),
	)
}

// servicePrincipalConnectionString builds a URL for the azuresql driver using
// Azure AD client credentials.
func servicePrincipalConnectionString(cfg *Config) string {
	query := connectionOptions(cfg)
	query.Add("fedauth", "ActiveDirectoryServicePrincipal")
	query.Add("user id", cfg.ClientID)
	query.Add("password", cfg.ClientSecret)
	query.Add("tenant id", cfg.TenantID)

	return fmt.Sprintf("sqlserver://%s:%d?%s", cfg.Host, cfg.Port, query.Encode())
}

// Adapter provides SQL Server connectivity checks.
type Adapter struct {
	db *sql.DB
}

// NewAdapter opens and pings a SQL Server pool.
func NewAdapter(ctx context.Context, cfg *Config) (*Adapter, error) {
	db, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Adapter{db: db}, nil
}

// TestConnection verifies the database is reachable with valid credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

// Close releases the pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

var _ datasource.ConnectionTester = (*Adapter)(nil)
