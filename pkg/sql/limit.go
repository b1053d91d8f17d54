package sql

import (
	"fmt"
	"strings"
)

// HasRowLimit reports whether the statement already limits its top-level result
// with LIMIT, FETCH FIRST/NEXT or TOP.
func HasRowLimit(query string, dialect Dialect) bool {
	tokens, err := lex(query, dialect)
	if err != nil {
		return false
	}
	return hasRowLimit(significant(tokens))
}

func hasRowLimit(sig []token) bool {
	for i, t := range sig {
		if t.depth != 0 || t.kind != tokWord {
			continue
		}
		switch t.upper {
		case "LIMIT":
			return true
		case "FETCH":
			if i+1 < len(sig) && (sig[i+1].is("FIRST") || sig[i+1].is("NEXT")) {
				return true
			}
		case "TOP":
			if i > 0 && (sig[i-1].is("SELECT") || sig[i-1].is("DISTINCT") || sig[i-1].is("ALL")) {
				return true
			}
		}
	}
	return false
}

// injectRowLimit adds a row cap to a normalized statement that has none.
func injectRowLimit(query string, dialect Dialect, limit int) string {
	tokens, err := lex(query, dialect)
	if err != nil {
		return query
	}
	sig := significant(tokens)
	if hasRowLimit(sig) {
		return query
	}

	if dialect != DialectSQLServer {
		return fmt.Sprintf("%s LIMIT %d", query, limit)
	}

	if !hasSetOperator(sig) {
		for i, t := range sig {
			if t.depth != 0 || !t.is("SELECT") {
				continue
			}
			at := t.end
			if i+1 < len(sig) && (sig[i+1].is("DISTINCT") || sig[i+1].is("ALL")) {
				at = sig[i+1].end
			}
			var b strings.Builder
			b.WriteString(query[:at])
			fmt.Fprintf(&b, " TOP (%d)", limit)
			b.WriteString(query[at:])
			return b.String()
		}
	}

	// A set operation is capped as a whole: TOP on its first branch would leave the
	// others unbounded. SQL Server rejects ORDER BY and WITH inside a derived table,
	// so a leading CTE list and a trailing ORDER BY stay in the outer query.
	prefix, body, orderBy := "", query, ""
	if at := topLevelOrderBy(sig); at >= 0 {
		body = strings.TrimSpace(query[:sig[at].start])
		orderBy = " " + query[sig[at].start:]
	}
	if len(sig) > 0 && sig[0].is("WITH") {
		for _, t := range sig {
			if t.depth == 0 && t.is("SELECT") {
				prefix, body = query[:t.start], body[t.start:]
				break
			}
		}
	}
	return fmt.Sprintf("%sSELECT TOP (%d) * FROM (%s) AS limited%s", prefix, limit, body, orderBy)
}

func hasSetOperator(sig []token) bool {
	for _, t := range sig {
		if t.depth == 0 && (t.is("UNION") || t.is("INTERSECT") || t.is("EXCEPT")) {
			return true
		}
	}
	return false
}

// topLevelOrderBy returns the index of a top-level ORDER keyword followed by BY, or -1.
func topLevelOrderBy(sig []token) int {
	for i, t := range sig {
		if t.depth == 0 && t.is("ORDER") && i+1 < len(sig) && sig[i+1].is("BY") {
			return i
		}
	}
	return -1
}
