package sql

import "strings"

// RedactedLiteral replaces string literal values in redacted statements.
const RedactedLiteral = "'***'"

// RedactLiterals replaces every string literal in a statement with '***' and
// leaves identifiers, comments and numbers in place. Literals are found with
// PostgreSQL quoting rules, which also cover plain strings in the other dialects.
// A statement that does not lex is cut at its first quote.
func RedactLiterals(query string) string {
	tokens, err := lex(query, DialectPostgres)
	if err != nil {
		if i := strings.IndexByte(query, '\''); i >= 0 {
			return query[:i] + RedactedLiteral
		}
		return query
	}

	var b strings.Builder
	last := 0
	for _, t := range tokens {
		if t.kind != tokString {
			continue
		}
		b.WriteString(query[last:t.start])
		b.WriteString(RedactedLiteral)
		last = t.end
	}
	b.WriteString(query[last:])
	return b.String()
}
