package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
)

// QueryRunner runs validated statements against SQL Server.
type QueryRunner struct {
	db    *sql.DB
	owned bool
}

// NewQueryRunner opens a pool for the configured server.
func NewQueryRunner(ctx context.Context, cfg *Config) (*QueryRunner, error) {
	db, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &QueryRunner{db: db, owned: true}, nil
}

// NewQueryRunnerFromDB wraps an existing pool. Close leaves it open.
func NewQueryRunnerFromDB(db *sql.DB) *QueryRunner {
	return &QueryRunner{db: db}
}

// Run executes the statement and materializes every row.
// Errors keep mssql.Error reachable through errors.As.
func (r *QueryRunner) Run(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	rows, err := r.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	result, err := datasource.ScanSQLRows(rows)
	if err != nil {
		return nil, err
	}
	for i := range result.Columns {
		result.Columns[i].Type = mapSQLServerType(result.Columns[i].Type)
	}
	return result, nil
}

// Explain returns the SHOWPLAN_TEXT plan. The statement is not executed.
// SHOWPLAN is a session setting, so the whole exchange runs on one pinned connection.
func (r *QueryRunner) Explain(ctx context.Context, sqlQuery string) (*datasource.ExplainResult, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SET SHOWPLAN_TEXT ON"); err != nil {
		return nil, fmt.Errorf("failed to enable showplan: %w", err)
	}
	defer conn.ExecContext(context.WithoutCancel(ctx), "SET SHOWPLAN_TEXT OFF")

	rows, err := conn.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("EXPLAIN query failed: %w", err)
	}
	defer rows.Close()

	// SHOWPLAN_TEXT returns one result set for the statement text and one for the plan.
	var planLines []string
	for {
		for rows.Next() {
			var stmtText sql.NullString
			if err := rows.Scan(&stmtText); err != nil {
				return nil, fmt.Errorf("failed to scan execution plan: %w", err)
			}
			if stmtText.Valid && stmtText.String != "" {
				planLines = append(planLines, stmtText.String)
			}
		}
		if !rows.NextResultSet() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading execution plan: %w", err)
	}

	result := &datasource.ExplainResult{
		PerformanceHints: generatePerformanceHints(planLines),
	}
	if len(planLines) > 0 {
		result.Plan = "SQL Server Execution Plan:\n" + strings.Join(planLines, "\n")
	} else {
		result.Plan = "Execution plan not available. Query syntax may be invalid."
	}
	return result, nil
}

// generatePerformanceHints analyzes a SHOWPLAN_TEXT plan.
func generatePerformanceHints(planLines []string) []string {
	var hints []string
	planText := strings.ToLower(strings.Join(planLines, " "))

	if strings.Contains(planText, "table scan") || strings.Contains(planText, "clustered index scan") {
		hints = append(hints, "Table scan detected - consider adding an index if this table is large")
	}
	if strings.Contains(planText, "missing index") {
		hints = append(hints, "SQL Server suggests a missing index - review the execution plan for index recommendations")
	}
	if strings.Contains(planText, "nested loops") {
		hints = append(hints, "Nested loop join detected - ensure join columns are indexed for better performance")
	}
	if strings.Contains(planText, "hash match") {
		hints = append(hints, "Hash join detected - an index on join columns may improve performance")
	}
	if strings.Contains(planText, "sort(") || strings.Contains(planText, "|--sort") {
		hints = append(hints, "Sort operation detected - consider adding an index to avoid sorting")
	}

	if len(hints) == 0 {
		hints = append(hints, "Query plan looks efficient - no obvious optimization opportunities detected")
	}
	return hints
}

// Dialect returns "sqlserver".
func (r *QueryRunner) Dialect() string { return "sqlserver" }

// Close releases the pool when the runner opened it.
func (r *QueryRunner) Close() error {
	if r.owned {
		return r.db.Close()
	}
	return nil
}

var _ datasource.QueryRunner = (*QueryRunner)(nil)
