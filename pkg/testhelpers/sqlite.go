package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// NewSQLiteDB returns an in-memory SQLite database seeded with EmployeesFixture.
// The database lives until the test finishes.
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := Seed(context.Background(), db); err != nil {
		t.Fatalf("failed to seed sqlite: %v", err)
	}
	return db
}

// NewSQLiteFile creates a seeded SQLite database file in the test's temp dir and
// returns its path. Use it when the code under test opens the database itself.
func NewSQLiteFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open sqlite file: %v", err)
	}
	defer db.Close()

	if err := Seed(context.Background(), db); err != nil {
		t.Fatalf("failed to seed sqlite file: %v", err)
	}
	return path
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Seed creates and fills the fixture tables.
func Seed(ctx context.Context, db Execer) error {
	for _, stmt := range EmployeesFixture {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed fixture: %w", err)
		}
	}
	return nil
}
