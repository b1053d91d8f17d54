package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
)

// QueryRunner runs validated statements against PostgreSQL.
type QueryRunner struct {
	pool      *pgxpool.Pool
	ownedPool bool
}

// NewQueryRunner creates a runner with its own pool.
func NewQueryRunner(ctx context.Context, cfg *Config) (*QueryRunner, error) {
	pool, err := pgxpool.New(ctx, buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &QueryRunner{pool: pool, ownedPool: true}, nil
}

// NewQueryRunnerFromPool wraps an existing pool. Close leaves the pool open.
func NewQueryRunnerFromPool(pool *pgxpool.Pool) *QueryRunner {
	return &QueryRunner{pool: pool}
}

// Run executes the statement and materializes every row.
// Errors keep *pgconn.PgError reachable through errors.As.
func (r *QueryRunner) Run(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	rows, err := r.pool.Query(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: fd.Name,
			Type: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		resultRows = append(resultRows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryResult{
		Columns: columns,
		Rows:    resultRows,
	}, nil
}

// normalizeValue turns pgx wire types into JSON-friendly values.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return v
	}
}

// Explain returns EXPLAIN ANALYZE output with performance insights.
func (r *QueryRunner) Explain(ctx context.Context, sqlQuery string) (*datasource.ExplainResult, error) {
	explainSQL := "EXPLAIN (ANALYZE, BUFFERS, FORMAT TEXT) " + sqlQuery
	rows, err := r.pool.Query(ctx, explainSQL)
	if err != nil {
		return nil, fmt.Errorf("EXPLAIN ANALYZE failed: %w", err)
	}
	defer rows.Close()

	var planLines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan EXPLAIN output: %w", err)
		}
		planLines = append(planLines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading EXPLAIN output: %w", err)
	}

	result := &datasource.ExplainResult{
		Plan: strings.Join(planLines, "\n"),
	}

	var executionTime, planningTime float64
	for _, line := range planLines {
		if strings.Contains(line, "Execution Time:") {
			fmt.Sscanf(strings.TrimSpace(line), "Execution Time: %f ms", &executionTime)
		} else if strings.Contains(line, "Planning Time:") {
			fmt.Sscanf(strings.TrimSpace(line), "Planning Time: %f ms", &planningTime)
		}
	}
	result.ExecutionTimeMs = executionTime
	result.PlanningTimeMs = planningTime
	result.PerformanceHints = generatePerformanceHints(planLines, executionTime)

	return result, nil
}

// generatePerformanceHints analyzes the EXPLAIN plan and provides optimization suggestions.
func generatePerformanceHints(planLines []string, executionTimeMs float64) []string {
	var hints []string
	planText := strings.Join(planLines, "\n")

	if strings.Contains(planText, "Seq Scan") {
		hints = append(hints, "Sequential scan detected - consider adding an index if this table is large")
	}

	if strings.Contains(planText, "Hash Join") && strings.Contains(planText, "Seq Scan") {
		hints = append(hints, "Hash join with sequential scan - an index on join columns may improve performance")
	}

	if strings.Contains(planText, "Nested Loop") {
		hints = append(hints, "Nested loop join detected - ensure join columns are indexed for better performance")
	}

	if strings.Contains(planText, "external merge") || strings.Contains(planText, "Sort Method: external") {
		hints = append(hints, "Sort operation spilled to disk - consider increasing work_mem or reducing result set")
	}

	if strings.Contains(planText, "Bitmap Heap Scan") {
		hints = append(hints, "Bitmap heap scan detected - query may benefit from more selective conditions or better index coverage")
	}

	if executionTimeMs > 1000 {
		hints = append(hints, fmt.Sprintf("Query execution took %.2f ms - consider optimization if this is a frequent query", executionTimeMs))
	} else if executionTimeMs > 100 {
		hints = append(hints, "Query execution is moderately slow - review plan for optimization opportunities")
	}

	if len(hints) == 0 {
		hints = append(hints, "Query plan looks efficient - no obvious optimization opportunities detected")
	}

	return hints
}

// Dialect returns "postgres".
func (r *QueryRunner) Dialect() string { return "postgres" }

// Close releases the pool when the runner created it.
func (r *QueryRunner) Close() error {
	if r.ownedPool && r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// QuoteIdentifier safely quotes a SQL identifier using PostgreSQL double quotes.
func QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// pgTypeNameFromOID maps PostgreSQL type OIDs to human-readable type names.
// This covers the most common types; unknown types return "UNKNOWN".
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case pgtype.BoolOID:
		return "BOOL"
	case pgtype.ByteaOID:
		return "BYTEA"
	case pgtype.Int8OID:
		return "INT8"
	case pgtype.Int2OID:
		return "INT2"
	case pgtype.Int4OID:
		return "INT4"
	case pgtype.TextOID:
		return "TEXT"
	case pgtype.JSONOID:
		return "JSON"
	case pgtype.Float4OID:
		return "FLOAT4"
	case pgtype.Float8OID:
		return "FLOAT8"
	case pgtype.BPCharOID:
		return "BPCHAR"
	case pgtype.VarcharOID:
		return "VARCHAR"
	case pgtype.DateOID:
		return "DATE"
	case pgtype.TimeOID:
		return "TIME"
	case pgtype.TimestampOID:
		return "TIMESTAMP"
	case pgtype.TimestamptzOID:
		return "TIMESTAMPTZ"
	case pgtype.IntervalOID:
		return "INTERVAL"
	case pgtype.NumericOID:
		return "NUMERIC"
	case pgtype.UUIDOID:
		return "UUID"
	case pgtype.JSONBOID:
		return "JSONB"
	case pgtype.TextArrayOID:
		return "TEXT[]"
	case pgtype.Int4ArrayOID:
		return "INT4[]"
	case pgtype.Int8ArrayOID:
		return "INT8[]"
	default:
		return "UNKNOWN"
	}
}

// Ensure QueryRunner implements datasource.QueryRunner at compile time.
var _ datasource.QueryRunner = (*QueryRunner)(nil)
