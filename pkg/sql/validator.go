// Package sql provides SQL validation utilities.
package sql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize checks SQL for multiple statements and strips the trailing
// semicolon and trailing comments. It applies no policy; use Validate for that.
func ValidateAndNormalize(sqlQuery string, dialect Dialect) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return ValidationResult{NormalizedSQL: sqlQuery}
	}

	tokens, err := lex(sqlQuery, dialect)
	if err != nil {
		return ValidationResult{Error: err}
	}
	sig := significant(tokens)
	if hasStackedStatement(sig) {
		return ValidationResult{Error: ErrMultipleStatements}
	}
	return ValidationResult{NormalizedSQL: stripTrailing(sqlQuery, sig)}
}

// Validate checks a candidate statement against the policy and returns the verdict.
// Rules are applied in a fixed order so the same input always yields the same code:
// empty, malformed, blocked keyword, length, stacked statements, read-only, table
// allowlist, literal injection. An allowed verdict carries the normalized statement.
func Validate(query string, p *Policy) models.Verdict {
	if p == nil {
		p = DefaultPolicy()
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return models.Deny(models.ReasonEmptyQuery, "query is empty")
	}

	tokens, err := lex(trimmed, p.dialect)
	if err != nil {
		return models.Deny(models.ReasonMalformedQuery, err.Error())
	}
	sig := significant(tokens)
	if len(sig) == 0 || allSemicolons(sig) {
		return models.Deny(models.ReasonEmptyQuery, "query contains no statement")
	}

	if kw := firstBlocked(sig, p); kw != "" {
		return models.Deny(models.ReasonBlockedKeyword, fmt.Sprintf("blocked keyword %s is not allowed", kw))
	}

	if len(query) > p.maxQueryLength {
		return models.Deny(models.ReasonQueryTooLong,
			fmt.Sprintf("query length %d exceeds maximum of %d characters", len(query), p.maxQueryLength))
	}

	if hasStackedStatement(sig) {
		return models.Deny(models.ReasonStackedQuery, ErrMultipleStatements.Error())
	}

	if reason := checkReadOnly(sig); reason != "" {
		return models.Deny(models.ReasonNotReadOnly, reason)
	}

	if p.HasTableAllowlist() {
		for _, ref := range referencedTables(sig) {
			if !p.tableAllowed(ref) {
				return models.Deny(models.ReasonUnknownTable, unknownTableReason(ref, p))
			}
		}
	}

	if p.detectLiteralInjection {
		for _, t := range sig {
			if t.kind != tokString {
				continue
			}
			if res := CheckLiteralForInjection(t.upper); res != nil {
				return models.Deny(models.ReasonSuspiciousLiteral,
					fmt.Sprintf("string literal matches SQL injection fingerprint %s", res.Fingerprint))
			}
		}
	}

	normalized := stripTrailing(trimmed, sig)
	if p.defaultRowLimit > 0 {
		normalized = injectRowLimit(normalized, p.dialect, p.defaultRowLimit)
	}
	return models.Allow(normalized)
}

// FindBlockedKeyword returns the first blocked keyword used as a bare word in query,
// ignoring literals, quoted identifiers and comments as p's dialect quotes them.
// A statement that cannot be lexed yields "".
func FindBlockedKeyword(query string, p *Policy) string {
	tokens, err := lex(query, p.dialect)
	if err != nil {
		return ""
	}
	return firstBlocked(tokens, p)
}

func firstBlocked(tokens []token, p *Policy) string {
	for _, t := range tokens {
		if t.kind == tokWord && p.isBlocked(t.upper) {
			return t.upper
		}
	}
	return ""
}

func allSemicolons(sig []token) bool {
	for _, t := range sig {
		if !t.isSymbol(";") {
			return false
		}
	}
	return true
}

// hasStackedStatement reports a semicolon followed by anything other than more semicolons.
func hasStackedStatement(sig []token) bool {
	last := lastStatementToken(sig)
	for i := 0; i < last; i++ {
		if sig[i].isSymbol(";") {
			return true
		}
	}
	return false
}

// lastStatementToken returns the index of the last token that is not a trailing semicolon.
func lastStatementToken(sig []token) int {
	for i := len(sig) - 1; i >= 0; i-- {
		if !sig[i].isSymbol(";") {
			return i
		}
	}
	return -1
}

// stripTrailing cuts src after the last statement token, dropping trailing
// semicolons, comments and whitespace.
func stripTrailing(src string, sig []token) string {
	last := lastStatementToken(sig)
	if last < 0 {
		return ""
	}
	return strings.TrimSpace(src[:sig[last].end])
}

var writeVerbs = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true,
}

// checkReadOnly returns a rejection reason when the statement is not a plain query.
func checkReadOnly(sig []token) string {
	first := -1
	for i, t := range sig {
		if !t.isSymbol("(") {
			first = i
			break
		}
	}
	if first < 0 {
		return "statement has no leading keyword"
	}

	lead := sig[first]
	if !lead.is("SELECT") && !lead.is("WITH") {
		return fmt.Sprintf("only SELECT or WITH statements are allowed, got %s", strings.ToUpper(lead.text))
	}

	for i, t := range sig {
		if t.kind != tokWord {
			continue
		}
		if writeVerbs[t.upper] && isStatementPosition(sig, i) {
			return fmt.Sprintf("data-modifying statement %s is not allowed", t.upper)
		}
		// SELECT ... INTO creates a table in PostgreSQL and SQL Server.
		if t.upper == "INTO" && t.depth == 0 {
			return "SELECT INTO is not allowed"
		}
	}
	return ""
}

// isStatementPosition reports whether sig[i] starts a statement: first token, after
// an opening parenthesis, or directly after the closing parenthesis of a CTE body.
func isStatementPosition(sig []token, i int) bool {
	if i == 0 {
		return true
	}
	prev := sig[i-1]
	return prev.isSymbol("(") || (prev.isSymbol(")") && prev.depth == 0)
}
