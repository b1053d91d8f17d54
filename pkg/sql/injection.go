package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a string literal.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Literal     string // The unquoted literal that was checked
}

// CheckLiteralForInjection uses libinjection to detect SQL injection patterns in the
// unquoted value of a string literal.
//
// Returns nil if no injection is detected.
//
// Example:
//
//	result := CheckLiteralForInjection("Engineering")
//	// result == nil
//
//	result = CheckLiteralForInjection("' OR 1=1--")
//	// result.IsSQLi == true
func CheckLiteralForInjection(value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Literal:     value,
	}
}

// CheckStatementLiterals fingerprints every string literal in a statement and returns
// the ones that look like injection payloads. Unparseable input yields nil.
func CheckStatementLiterals(query string, dialect Dialect) []*InjectionCheckResult {
	tokens, err := lex(query, dialect)
	if err != nil {
		return nil
	}
	var results []*InjectionCheckResult
	for _, t := range tokens {
		if t.kind != tokString {
			continue
		}
		if result := CheckLiteralForInjection(t.upper); result != nil {
			results = append(results, result)
		}
	}
	return results
}
