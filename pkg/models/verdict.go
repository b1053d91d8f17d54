package models

// ReasonCode identifies why the validator rejected a statement.
type ReasonCode string

const (
	ReasonNone              ReasonCode = ""
	ReasonEmptyQuery        ReasonCode = "EMPTY_QUERY"
	ReasonBlockedKeyword    ReasonCode = "BLOCKED_KEYWORD"
	ReasonQueryTooLong      ReasonCode = "QUERY_TOO_LONG"
	ReasonStackedQuery      ReasonCode = "STACKED_QUERY"
	ReasonNotReadOnly       ReasonCode = "NOT_READ_ONLY"
	ReasonUnknownTable      ReasonCode = "UNKNOWN_TABLE"
	ReasonMalformedQuery    ReasonCode = "MALFORMED_QUERY"
	ReasonSuspiciousLiteral ReasonCode = "SUSPICIOUS_LITERAL"
)

// Verdict is the outcome of validating a candidate.
// NormalizedSQL is only set when Allowed is true and is the text sent to the executor.
type Verdict struct {
	Allowed       bool       `json:"allowed"`
	Code          ReasonCode `json:"code,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	NormalizedSQL string     `json:"normalized_sql,omitempty"`
}

// Allow returns an accepting verdict.
func Allow(normalized string) Verdict {
	return Verdict{Allowed: true, NormalizedSQL: normalized}
}

// Deny returns a rejecting verdict.
func Deny(code ReasonCode, reason string) Verdict {
	return Verdict{Allowed: false, Code: code, Reason: reason}
}
