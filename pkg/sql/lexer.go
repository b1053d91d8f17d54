package sql

import (
	"errors"
	"strings"
)

// ErrUnterminated indicates a string literal, quoted identifier or block comment that never closes.
var ErrUnterminated = errors.New("unterminated literal, quoted identifier or comment")

type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuotedIdent
	tokString
	tokNumber
	tokSymbol
	tokLineComment
	tokBlockComment
)

type token struct {
	kind  tokenKind
	text  string // raw source text
	upper string // upper-cased text for words, unquoted value for identifiers and strings
	start int
	end   int
	depth int // parenthesis depth outside this token
}

func (t token) is(word string) bool {
	return t.kind == tokWord && t.upper == word
}

func (t token) isSymbol(sym string) bool {
	return t.kind == tokSymbol && t.text == sym
}

func (t token) isComment() bool {
	return t.kind == tokLineComment || t.kind == tokBlockComment
}

// lexRules are the quoting forms a dialect understands.
type lexRules struct {
	escapeStrings bool // E'...' strings with backslash escapes
	dollarQuotes  bool // $$...$$ and $tag$...$tag$
	brackets      bool // [identifier]
	backticks     bool // `identifier`
}

func rulesFor(d Dialect) lexRules {
	switch d {
	case DialectSQLite:
		return lexRules{brackets: true, backticks: true}
	case DialectSQLServer:
		return lexRules{brackets: true}
	default:
		return lexRules{escapeStrings: true, dollarQuotes: true}
	}
}

// lex splits a statement into tokens using the quoting rules of dialect. Plain
// single-quoted strings only escape a quote by doubling it; backslash escapes
// exist only inside PostgreSQL E'' strings. Block comments do not nest.
func lex(src string, dialect Dialect) ([]token, error) {
	rules := rulesFor(dialect)
	var tokens []token
	depth := 0
	i := 0

	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++

		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src)
			} else {
				end += i
			}
			tokens = append(tokens, token{kind: tokLineComment, text: src[i:end], start: i, end: end, depth: depth})
			i = end

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, ErrUnterminated
			}
			end += i + 4
			tokens = append(tokens, token{kind: tokBlockComment, text: src[i:end], start: i, end: end, depth: depth})
			i = end

		case c == '\'':
			end, value, ok := scanQuoted(src, i, '\'', false)
			if !ok {
				return nil, ErrUnterminated
			}
			tokens = append(tokens, token{kind: tokString, text: src[i:end], upper: value, start: i, end: end, depth: depth})
			i = end

		case c == '"' || (c == '`' && rules.backticks):
			end, value, ok := scanQuoted(src, i, c, false)
			if !ok {
				return nil, ErrUnterminated
			}
			tokens = append(tokens, token{kind: tokQuotedIdent, text: src[i:end], upper: value, start: i, end: end, depth: depth})
			i = end

		case c == '[' && rules.brackets:
			end := strings.IndexByte(src[i:], ']')
			if end < 0 {
				return nil, ErrUnterminated
			}
			end += i + 1
			tokens = append(tokens, token{kind: tokQuotedIdent, text: src[i:end], upper: src[i+1 : end-1], start: i, end: end, depth: depth})
			i = end

		case c == '$' && rules.dollarQuotes && dollarTag(src, i) != "":
			tag := dollarTag(src, i)
			body := i + len(tag)
			end := strings.Index(src[body:], tag)
			if end < 0 {
				return nil, ErrUnterminated
			}
			end += body + len(tag)
			tokens = append(tokens, token{kind: tokString, text: src[i:end], upper: src[body : end-len(tag)], start: i, end: end, depth: depth})
			i = end

		case rules.escapeStrings && (c == 'E' || c == 'e') && i+1 < len(src) && src[i+1] == '\'' && !precededByIdent(src, i):
			end, value, ok := scanQuoted(src, i+1, '\'', true)
			if !ok {
				return nil, ErrUnterminated
			}
			tokens = append(tokens, token{kind: tokString, text: src[i:end], upper: value, start: i, end: end, depth: depth})
			i = end

		case isIdentStart(c):
			end := i + 1
			for end < len(src) && isIdentPart(src[end]) {
				end++
			}
			word := src[i:end]
			tokens = append(tokens, token{kind: tokWord, text: word, upper: strings.ToUpper(word), start: i, end: end, depth: depth})
			i = end

		case c >= '0' && c <= '9':
			end := i + 1
			for end < len(src) && (src[end] >= '0' && src[end] <= '9' || src[end] == '.') {
				end++
			}
			tokens = append(tokens, token{kind: tokNumber, text: src[i:end], start: i, end: end, depth: depth})
			i = end

		case c == '(':
			tokens = append(tokens, token{kind: tokSymbol, text: "(", start: i, end: i + 1, depth: depth})
			depth++
			i++

		case c == ')':
			if depth > 0 {
				depth--
			}
			tokens = append(tokens, token{kind: tokSymbol, text: ")", start: i, end: i + 1, depth: depth})
			i++

		default:
			tokens = append(tokens, token{kind: tokSymbol, text: src[i : i+1], start: i, end: i + 1, depth: depth})
			i++
		}
	}

	return tokens, nil
}

// scanQuoted returns the end offset (exclusive) and unquoted value of a quoted run
// starting at src[start] == quote. Doubled quotes always escape; backslash escapes
// only when allowBackslash is set.
func scanQuoted(src string, start int, quote byte, allowBackslash bool) (int, string, bool) {
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		if allowBackslash && c == '\\' && i+1 < len(src) {
			b.WriteByte(src[i+1])
			i += 2
			continue
		}
		if c == quote {
			if i+1 < len(src) && src[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			return i + 1, b.String(), true
		}
		b.WriteByte(c)
		i++
	}
	return 0, "", false
}

// dollarTag returns the opening tag ($$ or $name$) at src[i], or "" if none.
func dollarTag(src string, i int) string {
	j := i + 1
	for j < len(src) && (isIdentPart(src[j]) && src[j] != '$') {
		if src[j] >= '0' && src[j] <= '9' && j == i+1 {
			return "" // positional parameter like $1
		}
		j++
	}
	if j < len(src) && src[j] == '$' {
		return src[i : j+1]
	}
	return ""
}

func precededByIdent(src string, i int) bool {
	return i > 0 && isIdentPart(src[i-1])
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}

// significant drops comments.
func significant(tokens []token) []token {
	out := make([]token, 0, len(tokens))
	for _, t := range tokens {
		if !t.isComment() {
			out = append(out, t)
		}
	}
	return out
}
