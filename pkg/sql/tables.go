package sql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
)

// Functions whose argument syntax uses FROM without naming a table.
var fromArgumentFunctions = map[string]bool{
	"EXTRACT": true, "SUBSTRING": true, "SUBSTR": true, "TRIM": true, "OVERLAY": true, "POSITION": true,
}

// Words that end a table reference instead of aliasing it.
var clauseKeywords = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true, "OFFSET": true,
	"FETCH": true, "JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"CROSS": true, "OUTER": true, "NATURAL": true, "ON": true, "USING": true, "UNION": true,
	"INTERSECT": true, "EXCEPT": true, "WINDOW": true, "FOR": true, "RETURNING": true,
	"TABLESAMPLE": true, "WITH": true, "LATERAL": true, "AS": true, "SELECT": true, "FROM": true,
	"INTO": true, "PIVOT": true, "UNPIVOT": true, "OPTION": true, "APPLY": true,
}

// ReferencedTables returns the lower-cased table names a statement reads through
// FROM and JOIN, excluding common table expressions. Unparseable input yields nil.
func ReferencedTables(query string, dialect Dialect) []string {
	tokens, err := lex(query, dialect)
	if err != nil {
		return nil
	}
	return referencedTables(significant(tokens))
}

// Words that end the FROM list of the current query level.
var fromListTerminators = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true, "OFFSET": true,
	"FETCH": true, "UNION": true, "INTERSECT": true, "EXCEPT": true, "WINDOW": true,
	"RETURNING": true, "SELECT": true, "OPTION": true,
}

func referencedTables(sig []token) []string {
	ctes := cteNames(sig)
	seen := make(map[string]struct{})
	var refs []string

	add := func(j int) {
		name, ok := readTableRef(sig, j)
		if !ok {
			return
		}
		if _, isCTE := ctes[name]; isCTE {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		refs = append(refs, name)
	}

	// openers[d] is the word before the parenthesis that opened depth d+1.
	// inFrom[d] is set while the query at depth d is inside its FROM list.
	var openers []string
	inFrom := map[int]bool{}
	for i, t := range sig {
		switch {
		case t.isSymbol("("):
			opener := ""
			if i > 0 && sig[i-1].kind == tokWord {
				opener = sig[i-1].upper
			}
			openers = append(openers[:t.depth], opener)
			inFrom[t.depth+1] = false
			// A parenthesized table list such as FROM (a CROSS JOIN b) keeps
			// naming tables inside the parenthesis.
			if inFrom[t.depth] && i > 0 && opensTableList(sig, i) {
				inFrom[t.depth+1] = true
				add(i + 1)
			}

		case t.isSymbol(")"):
			inFrom[t.depth+1] = false

		case t.isSymbol(","):
			if inFrom[t.depth] {
				add(i + 1)
			}

		case t.is("FROM"):
			if t.depth > 0 && t.depth <= len(openers) && fromArgumentFunctions[openers[t.depth-1]] {
				continue
			}
			if i > 0 && sig[i-1].is("DISTINCT") {
				continue // IS [NOT] DISTINCT FROM
			}
			inFrom[t.depth] = true
			add(i + 1)

		case t.is("JOIN") || t.is("APPLY"):
			add(i + 1)

		case t.kind == tokWord && fromListTerminators[t.upper]:
			inFrom[t.depth] = false
		}
	}
	return refs
}

// opensTableList reports whether the parenthesis at sig[i] sits where a table is
// expected and wraps table references rather than a subquery.
func opensTableList(sig []token, i int) bool {
	prev := sig[i-1]
	if !prev.is("FROM") && !prev.is("JOIN") && !prev.is("APPLY") && !prev.isSymbol(",") && !prev.isSymbol("(") {
		return false
	}
	if prev.is("FROM") && i > 1 && sig[i-2].is("DISTINCT") {
		return false
	}
	if i+1 >= len(sig) {
		return false
	}
	next := sig[i+1]
	return !next.is("SELECT") && !next.is("WITH") && !next.is("VALUES")
}

// readTableRef reads a possibly qualified table name at sig[j]. It reports false for
// subqueries and table functions.
func readTableRef(sig []token, j int) (string, bool) {
	for j < len(sig) && (sig[j].is("LATERAL") || sig[j].is("ONLY")) {
		j++
	}
	if j >= len(sig) || !isNamePart(sig[j]) {
		return "", false
	}

	parts := []string{namePartValue(sig[j])}
	j++
	for j+1 < len(sig) && sig[j].isSymbol(".") && isNamePart(sig[j+1]) {
		parts = append(parts, namePartValue(sig[j+1]))
		j += 2
	}
	if j < len(sig) && sig[j].isSymbol("(") {
		return "", false
	}
	return strings.Join(parts, "."), true
}

// skipParens returns the index after the parenthesis that closes sig[j].
func skipParens(sig []token, j int) int {
	depth := sig[j].depth
	for k := j + 1; k < len(sig); k++ {
		if sig[k].isSymbol(")") && sig[k].depth == depth {
			return k + 1
		}
	}
	return len(sig)
}

func isNamePart(t token) bool {
	switch t.kind {
	case tokQuotedIdent:
		return true
	case tokWord:
		return !clauseKeywords[t.upper]
	}
	return false
}

func namePartValue(t token) string {
	if t.kind == tokQuotedIdent {
		return strings.ToLower(t.upper)
	}
	return strings.ToLower(t.text)
}

// cteNames collects names defined by WITH: "name AS (", "name AS [NOT] MATERIALIZED ("
// and "name (cols) AS (".
func cteNames(sig []token) map[string]struct{} {
	names := make(map[string]struct{})
	for i := 1; i < len(sig); i++ {
		prev := sig[i-1]
		if !prev.is("WITH") && !prev.is("RECURSIVE") && !prev.isSymbol(",") {
			continue
		}
		if !isNamePart(sig[i]) {
			continue
		}
		j := i + 1
		if j < len(sig) && sig[j].isSymbol("(") {
			j = skipParens(sig, j)
		}
		if j >= len(sig) || !sig[j].is("AS") {
			continue
		}
		j++
		if j < len(sig) && sig[j].is("NOT") {
			j++
		}
		if j < len(sig) && sig[j].is("MATERIALIZED") {
			j++
		}
		if j < len(sig) && sig[j].isSymbol("(") {
			names[namePartValue(sig[i])] = struct{}{}
		}
	}
	return names
}

// unknownTableReason names the rejected table and, when the allowlist holds its
// singular or plural form, suggests that instead.
func unknownTableReason(ref string, p *Policy) string {
	prefix, bare := "", ref
	if idx := strings.LastIndexByte(ref, '.'); idx >= 0 {
		prefix, bare = ref[:idx+1], ref[idx+1:]
	}

	var suggestions []string
	for _, alt := range []string{inflection.Plural(bare), inflection.Singular(bare)} {
		if alt == bare {
			continue
		}
		if p.tableAllowed(prefix + alt) {
			suggestions = append(suggestions, prefix+alt)
		} else if prefix != "" && p.tableAllowed(alt) {
			suggestions = append(suggestions, alt)
		}
	}
	if len(suggestions) == 0 {
		return fmt.Sprintf("table %q is not in the schema", ref)
	}
	sort.Strings(suggestions)
	return fmt.Sprintf("table %q is not in the schema; did you mean %q?", ref, suggestions[0])
}
