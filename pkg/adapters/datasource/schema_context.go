package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
)

// BuildSchemaContext walks a discoverer and assembles the snapshot used for prompting.
// Sample rows are best effort: a table that cannot be sampled is logged and kept
// without samples. sampleRows <= 0 skips sampling.
func BuildSchemaContext(ctx context.Context, d SchemaDiscoverer, sampleRows int, logger *zap.Logger) (*models.SchemaContext, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tables, err := d.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	schema := &models.SchemaContext{
		Tables: make([]models.SchemaTable, 0, len(tables)),
	}
	for _, t := range tables {
		cols, err := d.DiscoverColumns(ctx, t.SchemaName, t.TableName)
		if err != nil {
			return nil, fmt.Errorf("discover columns for %s: %w", t.TableName, err)
		}

		table := models.SchemaTable{
			SchemaName: t.SchemaName,
			TableName:  t.TableName,
			RowCount:   t.RowCount,
			Columns:    make([]models.SchemaColumn, 0, len(cols)),
		}
		for _, c := range cols {
			table.Columns = append(table.Columns, models.SchemaColumn{
				Name:         c.ColumnName,
				DataType:     c.DataType,
				IsNullable:   c.IsNullable,
				IsPrimaryKey: c.IsPrimaryKey,
				DefaultValue: c.DefaultValue,
			})
		}

		if sampleRows > 0 {
			samples, err := d.SampleRows(ctx, t.SchemaName, t.TableName, sampleRows)
			if err != nil {
				logger.Warn("Failed to sample table rows",
					zap.String("schema", t.SchemaName),
					zap.String("table", t.TableName),
					zap.Error(err))
			} else {
				table.SampleRows = samples
			}
		}

		schema.Tables = append(schema.Tables, table)
	}

	fks, err := d.DiscoverForeignKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover foreign keys: %w", err)
	}
	selfRefs := 0
	for _, fk := range fks {
		if fk.SelfReferencing() {
			selfRefs++
		}
		schema.Relationships = append(schema.Relationships, models.SchemaRelationship{
			FromTable:  fk.SourceTable,
			FromColumn: fk.SourceColumn,
			ToTable:    fk.TargetTable,
			ToColumn:   fk.TargetColumn,
		})
	}

	logger.Info("Schema discovered",
		zap.Int("tables", len(schema.Tables)),
		zap.Int("relationships", len(schema.Relationships)),
		zap.Int("self_references", selfRefs))

	return schema, nil
}
