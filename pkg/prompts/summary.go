package prompts

import (
	"fmt"
	"strings"
)

// SummaryRowLimit is how many result rows are shown to the model when summarizing.
const SummaryRowLimit = 10

// BuildSummaryPrompt creates the prompt that summarizes a result set.
func BuildSummaryPrompt(query string, columns []string, rows [][]any) string {
	var prompt strings.Builder

	sample := rows
	if len(sample) > SummaryRowLimit {
		sample = sample[:SummaryRowLimit]
	}

	columnsStr := "N/A"
	if len(columns) > 0 {
		columnsStr = strings.Join(columns, ", ")
	}

	prompt.WriteString("Summarize the following SQL query results:\n\n")
	prompt.WriteString(fmt.Sprintf("Query: %s\n", query))
	prompt.WriteString(fmt.Sprintf("Columns: %s\n\n", columnsStr))
	prompt.WriteString(fmt.Sprintf("Results (showing first %d of %d rows):\n", len(sample), len(rows)))

	for i, row := range sample {
		prompt.WriteString(fmt.Sprintf("Row %d: %s\n", i+1, formatRow(columns, row)))
	}
	if len(rows) > SummaryRowLimit {
		prompt.WriteString(fmt.Sprintf("... and %d more rows\n", len(rows)-SummaryRowLimit))
	}

	prompt.WriteString("\nProvide a concise summary of the results, highlighting key insights and patterns.\n")
	return prompt.String()
}

// SummarySystemMessage returns the system message for result summaries.
func SummarySystemMessage() string {
	return "You are a data analyst. Summarize SQL query results in a clear, concise manner."
}

func formatRow(columns []string, row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		name := fmt.Sprintf("col%d", i+1)
		if i < len(columns) {
			name = columns[i]
		}
		parts[i] = fmt.Sprintf("%s=%s", name, formatValue(v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
