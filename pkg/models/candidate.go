package models

// Provenance records where a candidate's SQL text came from.
type Provenance string

const (
	ProvenanceGenerated Provenance = "generated"
	ProvenanceCorrected Provenance = "corrected"
)

// Candidate is one proposed SQL statement for a natural-language question.
// Candidates are values: a retry produces a new Candidate, it never edits a prior one.
type Candidate struct {
	SQL        string     `json:"sql"`
	Provenance Provenance `json:"provenance"`
	Attempt    int        `json:"attempt"` // 1-based
	Intent     string     `json:"intent"`  // natural-language question that produced it
}

// NewGeneratedCandidate returns the first candidate of a run.
func NewGeneratedCandidate(sql, intent string) Candidate {
	return Candidate{
		SQL:        sql,
		Provenance: ProvenanceGenerated,
		Attempt:    1,
		Intent:     intent,
	}
}

// Next returns the candidate that follows c with the given corrected SQL.
func (c Candidate) Next(sql string) Candidate {
	return Candidate{
		SQL:        sql,
		Provenance: ProvenanceCorrected,
		Attempt:    c.Attempt + 1,
		Intent:     c.Intent,
	}
}
