package datasource

import "context"

// ConnectionTester tests database connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	// Returns nil if connection is healthy, error otherwise.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// QueryRunner executes already-validated SQL against the database.
// Implementations make exactly one round trip per call and never retry.
// Returned rows are fully materialized; no cursor outlives the call.
type QueryRunner interface {
	// Run executes a read statement and returns every row it produced.
	// Driver errors are returned unwrapped enough for errors.As to reach the
	// driver's own error type.
	Run(ctx context.Context, sqlQuery string) (*QueryResult, error)

	// Explain returns the database's execution plan for a statement.
	Explain(ctx context.Context, sqlQuery string) (*ExplainResult, error)

	// Dialect names the SQL dialect the runner speaks ("postgres", "sqlite", "sqlserver").
	Dialect() string

	// Close releases any resources held by the runner.
	Close() error
}

// SchemaDiscoverer discovers database schema for prompting and table allowlisting.
// Each implementation owns its connection and must be closed when done.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables (excludes system schemas).
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table in ordinal order.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all foreign key relationships.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// SampleRows returns up to limit rows of a table keyed by column name.
	SampleRows(ctx context.Context, schemaName, tableName string, limit int) ([]map[string]any, error)

	// Close releases the database connection.
	Close() error
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryResult holds the rows produced by a statement in column order.
type QueryResult struct {
	Columns []ColumnInfo `json:"columns"`
	Rows    [][]any      `json:"rows"`
}

// ColumnNames returns the result column names in order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// ExplainResult holds an execution plan.
type ExplainResult struct {
	Plan             string   `json:"plan"`                        // Full execution plan as text
	ExecutionTimeMs  float64  `json:"execution_time_ms,omitempty"` // Actual execution time in milliseconds
	PlanningTimeMs   float64  `json:"planning_time_ms,omitempty"`  // Query planning time in milliseconds
	PerformanceHints []string `json:"performance_hints"`           // Suggestions for optimization
}
