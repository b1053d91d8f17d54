package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
)

// QueryRunner runs validated statements against SQLite.
type QueryRunner struct {
	db    *sql.DB
	owned bool
}

// NewQueryRunner opens the configured database.
func NewQueryRunner(cfg *Config) (*QueryRunner, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return &QueryRunner{db: db, owned: true}, nil
}

// NewQueryRunnerFromDB wraps an existing handle. Close leaves it open.
func NewQueryRunnerFromDB(db *sql.DB) *QueryRunner {
	return &QueryRunner{db: db}
}

// Run executes the statement and materializes every row.
func (r *QueryRunner) Run(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	rows, err := r.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return datasource.ScanSQLRows(rows)
}

// Explain returns the EXPLAIN QUERY PLAN tree as indented text.
func (r *QueryRunner) Explain(ctx context.Context, sqlQuery string) (*datasource.ExplainResult, error) {
	rows, err := r.db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("EXPLAIN QUERY PLAN failed: %w", err)
	}
	defer rows.Close()

	depth := map[int64]int{}
	var planLines []string
	for rows.Next() {
		var id, parent, notUsed int64
		var detail string
		if err := rows.Scan(&id, &parent, &notUsed, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan EXPLAIN output: %w", err)
		}
		d := 0
		if pd, ok := depth[parent]; ok {
			d = pd + 1
		}
		depth[id] = d
		planLines = append(planLines, strings.Repeat("  ", d)+detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading EXPLAIN output: %w", err)
	}

	return &datasource.ExplainResult{
		Plan:             strings.Join(planLines, "\n"),
		PerformanceHints: generatePerformanceHints(planLines),
	}, nil
}

// generatePerformanceHints inspects EXPLAIN QUERY PLAN details.
func generatePerformanceHints(planLines []string) []string {
	var hints []string
	for _, line := range planLines {
		detail := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(detail, "SCAN ") && !strings.Contains(detail, "USING"):
			hints = append(hints, fmt.Sprintf("Full table scan (%s) - consider an index on the filtered columns", detail))
		case strings.Contains(detail, "USE TEMP B-TREE"):
			hints = append(hints, fmt.Sprintf("Temporary b-tree (%s) - an index matching the ORDER BY or GROUP BY may avoid it", detail))
		}
	}
	if len(hints) == 0 {
		hints = append(hints, "Query plan looks efficient - no obvious optimization opportunities detected")
	}
	return hints
}

// Dialect returns "sqlite".
func (r *QueryRunner) Dialect() string { return "sqlite" }

// Close closes the handle when the runner opened it.
func (r *QueryRunner) Close() error {
	if r.owned {
		return r.db.Close()
	}
	return nil
}

var _ datasource.QueryRunner = (*QueryRunner)(nil)
