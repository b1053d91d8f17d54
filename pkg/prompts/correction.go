package prompts

import (
	"fmt"
	"strings"
)

// MaxPreviousQueries caps how many earlier statements the correction prompt carries.
const MaxPreviousQueries = 3

// CorrectionInput describes a failed attempt the model is asked to repair.
type CorrectionInput struct {
	Intent         string
	Dialect        string
	FailedSQL      string
	FailureKind    string
	FailureMessage string
	SchemaPrompt   string
	PreviousSQL    []string // oldest first; only the last MaxPreviousQueries are used
}

// BuildCorrectionPrompt creates the prompt asking for a corrected statement.
func BuildCorrectionPrompt(in CorrectionInput) string {
	var prompt strings.Builder

	prompt.WriteString("Fix the following SQL query that produced an error.\n\n")
	if in.Intent != "" {
		prompt.WriteString(fmt.Sprintf("The query was written to answer: %s\n\n", strings.TrimSpace(in.Intent)))
	}

	prompt.WriteString("Original Query:\n")
	prompt.WriteString("```sql\n")
	prompt.WriteString(in.FailedSQL)
	prompt.WriteString("\n```\n\n")

	prompt.WriteString("Error Message:\n")
	if in.FailureKind != "" {
		prompt.WriteString(fmt.Sprintf("[%s] ", in.FailureKind))
	}
	prompt.WriteString(in.FailureMessage)
	prompt.WriteString("\n\n")

	if in.SchemaPrompt != "" {
		prompt.WriteString(in.SchemaPrompt)
		prompt.WriteString("\n")
	}

	previous := in.PreviousSQL
	if len(previous) > MaxPreviousQueries {
		previous = previous[len(previous)-MaxPreviousQueries:]
	}
	if len(previous) > 0 {
		prompt.WriteString("Previous queries for context:\n")
		for _, q := range previous {
			prompt.WriteString(fmt.Sprintf("- %s\n", q))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString(fmt.Sprintf("Provide the corrected %s query:\n", DialectName(in.Dialect)))
	return prompt.String()
}

// CorrectionSystemMessage returns the system message for query correction.
func CorrectionSystemMessage() string {
	return `You are a SQL expert. Your task is to fix SQL errors.
Given a SQL query that failed with an error, provide ONLY the corrected SQL query.
Do not include any explanation, just the SQL query itself.
Make sure the corrected query is valid, read-only and uses only tables in the schema.`
}
