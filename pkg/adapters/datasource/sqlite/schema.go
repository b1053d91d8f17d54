package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
)

// SchemaDiscoverer reads SQLite's catalog through sqlite_master and the pragma
// table-valued functions.
type SchemaDiscoverer struct {
	db     *sql.DB
	owned  bool
	logger *zap.Logger
}

// NewSchemaDiscoverer opens the configured database.
func NewSchemaDiscoverer(cfg *Config, logger *zap.Logger) (*SchemaDiscoverer, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	d := NewSchemaDiscovererFromDB(db, logger)
	d.owned = true
	return d, nil
}

// NewSchemaDiscovererFromDB wraps an existing handle. Close leaves it open.
func NewSchemaDiscovererFromDB(db *sql.DB, logger *zap.Logger) *SchemaDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaDiscoverer{db: db, logger: logger.Named("sqlite_schema")}
}

// Close closes the handle when the discoverer opened it.
func (d *SchemaDiscoverer) Close() error {
	if d.owned {
		return d.db.Close()
	}
	return nil
}

// DiscoverTables returns user tables with exact row counts. SQLite keeps no
// statistics worth trusting, so each table is counted.
func (d *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	rows.Close()

	tables := make([]datasource.TableMetadata, 0, len(names))
	for _, name := range names {
		var count int64
		if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteIdentifier(name)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count rows in %s: %w", name, err)
		}
		tables = append(tables, datasource.TableMetadata{TableName: name, RowCount: count})
	}

	d.logger.Debug("Discovered tables", zap.Int("count", len(tables)))
	return tables, nil
}

// DiscoverColumns returns the table's columns in declaration order.
func (d *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col := datasource.ColumnMetadata{
			ColumnName:      name,
			DataType:        dataType,
			IsNullable:      notNull == 0 && pk == 0,
			IsPrimaryKey:    pk > 0,
			OrdinalPosition: cid + 1,
		}
		if dflt.Valid {
			v := dflt.String
			col.DefaultValue = &v
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// DiscoverForeignKeys returns every foreign key declared by a user table.
func (d *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT m.name, fk.id, fk."table", fk."from", fk."to"
		FROM sqlite_master m, pragma_foreign_key_list(m.name) fk
		WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
		ORDER BY m.name, fk.id, fk.seq`)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var (
			source, target, from string
			id                   int
			to                   sql.NullString
		)
		if err := rows.Scan(&source, &id, &target, &from, &to); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, datasource.ForeignKeyMetadata{
			ConstraintName: fmt.Sprintf("%s_fk_%d", source, id),
			SourceTable:    source,
			SourceColumn:   from,
			TargetTable:    target,
			TargetColumn:   to.String, // empty when the key references the primary key implicitly
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return fks, nil
}

// SampleRows returns up to limit rows from the table.
func (d *SchemaDiscoverer) SampleRows(ctx context.Context, schemaName, tableName string, limit int) ([]map[string]any, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", QuoteIdentifier(tableName), limit))
	if err != nil {
		return nil, fmt.Errorf("sample rows: %w", err)
	}
	defer rows.Close()

	result, err := datasource.ScanSQLRows(rows)
	if err != nil {
		return nil, err
	}
	return datasource.RowsToMaps(result), nil
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
