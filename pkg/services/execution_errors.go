package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
)

// sqlStateRegex matches PostgreSQL SQLSTATE codes in error messages like "(SQLSTATE 42601)"
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

// classifyExecutionError maps a driver error onto a failure kind. Structured
// errors (pgconn.PgError, mssql.Error) are checked first; SQLite reports most
// statement problems with the same generic code, so its messages are matched.
func classifyExecutionError(err error) models.FailureKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.FailureTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}
	if matches := sqlStateRegex.FindStringSubmatch(err.Error()); len(matches) >= 2 {
		return classifySQLState(matches[1])
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return classifySQLServerNumber(msErr.SQLErrorNumber())
	}

	return classifyMessage(err.Error())
}

// classifySQLState maps PostgreSQL SQLSTATE codes.
func classifySQLState(code string) models.FailureKind {
	switch code {
	case "42P01", // undefined_table
		"42703", // undefined_column
		"3F000", // invalid_schema_name
		"42704": // undefined_object
		return models.FailureSchemaError
	case "42501", // insufficient_privilege
		"25006": // read_only_sql_transaction
		return models.FailurePermissionDenied
	case "57014": // query_canceled (statement_timeout)
		return models.FailureTimeout
	}
	if len(code) < 2 {
		return models.FailureDatabaseError
	}
	switch code[:2] {
	case "42", // syntax error or access rule violation
		"22": // data exception
		return models.FailureSyntaxError
	}
	return models.FailureDatabaseError
}

// classifySQLServerNumber maps SQL Server error numbers.
func classifySQLServerNumber(number int32) models.FailureKind {
	switch number {
	case 102, // incorrect syntax
		105,  // unclosed quotation mark
		156,  // incorrect syntax near keyword
		8120, // column not in aggregate or GROUP BY
		245,  // conversion failed
		8134: // divide by zero
		return models.FailureSyntaxError
	case 207, // invalid column name
		208,  // invalid object name
		209,  // ambiguous column name
		4104: // multi-part identifier could not be bound
		return models.FailureSchemaError
	case 229, // permission denied on object
		230, // permission denied on column
		262, // permission denied in database
		3906: // database is read-only
		return models.FailurePermissionDenied
	case 1222: // lock request timeout
		return models.FailureTimeout
	}
	return models.FailureDatabaseError
}

func classifyMessage(msg string) models.FailureKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "no such table"),
		strings.Contains(lower, "no such column"),
		strings.Contains(lower, "ambiguous column name"):
		return models.FailureSchemaError
	case strings.Contains(lower, "syntax error"),
		strings.Contains(lower, "misuse of aggregate"),
		strings.Contains(lower, "unrecognized token"),
		strings.Contains(lower, "incomplete input"),
		strings.Contains(lower, "no such function"),
		strings.Contains(lower, "must appear in the group by"):
		return models.FailureSyntaxError
	case strings.Contains(lower, "attempt to write a readonly database"),
		strings.Contains(lower, "permission denied"):
		return models.FailurePermissionDenied
	case strings.Contains(lower, "interrupted"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "canceling statement"):
		return models.FailureTimeout
	}
	return models.FailureDatabaseError
}

// executionErrorMessage extracts a clean message from a driver error: the
// server's own text without SQLSTATE suffixes or wrapping prefixes.
func executionErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Hint != "" {
			return pgErr.Message + " (hint: " + pgErr.Hint + ")"
		}
		return pgErr.Message
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Message
	}

	msg := err.Error()
	if idx := strings.Index(msg, " (SQLSTATE"); idx != -1 {
		msg = msg[:idx]
	}
	prefixes := []string{
		"query execution failed: ",
		"execute query: ",
		"failed to execute query: ",
		"error iterating rows: ",
		"ERROR: ",
	}
	for _, prefix := range prefixes {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}
