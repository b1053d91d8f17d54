package models

import (
	"fmt"
	"sort"
	"strings"
)

// SchemaColumn describes one column of a discovered table.
type SchemaColumn struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"`
	IsNullable   bool    `json:"is_nullable"`
	IsPrimaryKey bool    `json:"is_primary_key"`
	DefaultValue *string `json:"default_value,omitempty"`
}

// SchemaTable is a discovered table with its ordered columns.
type SchemaTable struct {
	SchemaName string           `json:"schema_name,omitempty"`
	TableName  string           `json:"table_name"`
	RowCount   int64            `json:"row_count"`
	Columns    []SchemaColumn   `json:"columns"`
	SampleRows []map[string]any `json:"sample_rows,omitempty"`
}

// QualifiedName returns schema.table, or just the table when no schema is known.
func (t SchemaTable) QualifiedName() string {
	if t.SchemaName == "" {
		return t.TableName
	}
	return t.SchemaName + "." + t.TableName
}

// SchemaRelationship is a foreign key between two tables.
type SchemaRelationship struct {
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
}

// SchemaContext is a read-only snapshot of the database structure used for prompting
// and for the validator's table allowlist.
type SchemaContext struct {
	Tables        []SchemaTable        `json:"tables"`
	Relationships []SchemaRelationship `json:"relationships,omitempty"`
}

// TableNames returns every table name, both bare and schema-qualified, lower-cased and sorted.
func (s *SchemaContext) TableNames() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(s.Tables)*2)
	for _, t := range s.Tables {
		seen[strings.ToLower(t.TableName)] = struct{}{}
		if t.SchemaName != "" {
			seen[strings.ToLower(t.QualifiedName())] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Describe returns the table name -> ordered columns mapping.
func (s *SchemaContext) Describe() map[string][]SchemaColumn {
	out := make(map[string][]SchemaColumn)
	if s == nil {
		return out
	}
	for _, t := range s.Tables {
		out[t.TableName] = t.Columns
	}
	return out
}

// Prompt renders the schema in the layout the generation and correction prompts expect.
func (s *SchemaContext) Prompt() string {
	var b strings.Builder
	b.WriteString("# Database Schema\n\n")
	if s == nil {
		return b.String()
	}

	for _, t := range s.Tables {
		fmt.Fprintf(&b, "## Table: %s\n", t.QualifiedName())
		fmt.Fprintf(&b, "Row count: %d\n", t.RowCount)
		b.WriteString("\nColumns:\n")
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s (%s)", c.Name, c.DataType)
			if c.IsPrimaryKey {
				b.WriteString(" [PRIMARY KEY]")
			}
			if !c.IsNullable {
				b.WriteString(" [NOT NULL]")
			}
			if c.DefaultValue != nil && *c.DefaultValue != "" {
				fmt.Fprintf(&b, " [DEFAULT: %s]", *c.DefaultValue)
			}
			b.WriteString("\n")
		}

		if len(t.SampleRows) > 0 {
			b.WriteString("\nSample data:\n")
			for i, row := range t.SampleRows {
				if i == 2 {
					break
				}
				parts := make([]string, 0, len(t.Columns))
				for _, c := range t.Columns {
					if v, ok := row[c.Name]; ok {
						parts = append(parts, fmt.Sprintf("%s=%v", c.Name, v))
					}
				}
				fmt.Fprintf(&b, "  %s\n", strings.Join(parts, ", "))
			}
		}
		b.WriteString("\n")
	}

	if len(s.Relationships) > 0 {
		b.WriteString("## Relationships\n\n")
		for _, r := range s.Relationships {
			fmt.Fprintf(&b, "- %s.%s -> %s.%s\n", r.FromTable, r.FromColumn, r.ToTable, r.ToColumn)
		}
		b.WriteString("\n")
	}

	return b.String()
}
