package datasource

// TableMetadata is one user table as reported by the catalog. RowCount may be
// an estimate on engines that keep statistics instead of exact counts.
type TableMetadata struct {
	SchemaName string
	TableName  string
	RowCount   int64
}

// ColumnMetadata is one column of a table in ordinal order. DefaultValue is the
// engine's own rendering of the default expression, nil when there is none.
type ColumnMetadata struct {
	ColumnName      string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	OrdinalPosition int
	DefaultValue    *string
}

// ForeignKeyMetadata is a single-column edge of a foreign key. Composite keys
// appear as one entry per column pair sharing ConstraintName.
type ForeignKeyMetadata struct {
	ConstraintName string
	SourceSchema   string
	SourceTable    string
	SourceColumn   string
	TargetSchema   string
	TargetTable    string
	TargetColumn   string
}

// SelfReferencing reports whether the key points back at its own table, as in
// employees.manager_id -> employees.id.
func (fk ForeignKeyMetadata) SelfReferencing() bool {
	return fk.SourceSchema == fk.TargetSchema && fk.SourceTable == fk.TargetTable
}
