package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state recorded for a question.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// MemoryEntry summarizes one finished agent run.
// FinalSQL is empty when no candidate ever passed generation.
type MemoryEntry struct {
	ID                   uuid.UUID `json:"id"`
	NaturalLanguageQuery string    `json:"natural_language_query"`
	FinalSQL             string    `json:"final_sql,omitempty"`
	Outcome              Outcome   `json:"outcome"`
	RowCount             int       `json:"row_count"`
	Error                string    `json:"error,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}
