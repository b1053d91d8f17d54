package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver for database/sql

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
)

// open opens the database with a single connection. SQLite serializes writers and
// in-memory databases are private to a connection, so one handle keeps every
// statement on the same view.
func open(cfg *Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Adapter provides SQLite connectivity checks.
type Adapter struct {
	db *sql.DB
}

// NewAdapter opens the configured database file.
func NewAdapter(cfg *Config) (*Adapter, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return &Adapter{db: db}, nil
}

// TestConnection verifies the file opens and answers a trivial query.
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

// Close closes the database handle.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// QuoteIdentifier quotes a SQLite identifier with double quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ datasource.ConnectionTester = (*Adapter)(nil)
