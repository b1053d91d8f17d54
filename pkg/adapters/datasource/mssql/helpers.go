package mssql

import "strings"

// quoteName brackets an identifier the way QUOTENAME() does, doubling any
// closing bracket.
func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// buildFullyQualifiedName renders [schema].[table].
func buildFullyQualifiedName(schema, table string) string {
	return quoteName(schema) + "." + quoteName(table)
}

// portableTypes maps SQL Server type names onto the names the other adapters
// report, so prompts read the same across dialects.
var portableTypes = map[string]string{
	"INT":              "INTEGER",
	"DECIMAL":          "NUMERIC",
	"NUMERIC":          "NUMERIC",
	"MONEY":            "MONEY",
	"SMALLMONEY":       "MONEY",
	"FLOAT":            "DOUBLE PRECISION",
	"CHAR":             "CHAR",
	"NCHAR":            "CHAR",
	"VARCHAR":          "VARCHAR",
	"NVARCHAR":         "VARCHAR",
	"TEXT":             "TEXT",
	"NTEXT":            "TEXT",
	"BINARY":           "BYTEA",
	"VARBINARY":        "BYTEA",
	"IMAGE":            "BLOB",
	"DATETIME":         "TIMESTAMP",
	"DATETIME2":        "TIMESTAMP",
	"SMALLDATETIME":    "TIMESTAMP",
	"DATETIMEOFFSET":   "TIMESTAMP WITH TIME ZONE",
	"BIT":              "BOOLEAN",
	"UNIQUEIDENTIFIER": "UUID",
}

// mapSQLServerType returns the portable name for a SQL Server type. Types with
// no mapping come back upper-cased.
func mapSQLServerType(sqlServerType string) string {
	upper := strings.ToUpper(sqlServerType)
	if mapped, ok := portableTypes[upper]; ok {
		return mapped
	}
	return upper
}

// trimDefinitionParens strips the parentheses SQL Server wraps around stored
// default definitions: "((0))" becomes "0", "(N'active')" becomes "N'active'".
func trimDefinitionParens(def string) string {
	for len(def) >= 2 && def[0] == '(' && def[len(def)-1] == ')' {
		def = def[1 : len(def)-1]
	}
	return def
}
