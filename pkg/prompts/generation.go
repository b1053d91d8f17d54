// Package prompts builds the text sent to the model for SQL generation,
// correction and result summaries.
package prompts

import (
	"fmt"
	"strings"
)

// ToolSummary is a tool advertised to the model in the generation prompt.
type ToolSummary struct {
	Name        string
	Description string
}

// GenerationInput is everything the generation prompt is assembled from.
type GenerationInput struct {
	Question      string
	Dialect       string
	SchemaPrompt  string
	MemoryContext string // "" when there is no history yet
	Tools         []ToolSummary
}

// BuildGenerationPrompt creates the prompt that turns a question into SQL.
func BuildGenerationPrompt(in GenerationInput) string {
	var prompt strings.Builder

	prompt.WriteString("Convert the following natural language query to SQL:\n\n")
	prompt.WriteString(fmt.Sprintf("Query: %s\n\n", strings.TrimSpace(in.Question)))

	if in.SchemaPrompt != "" {
		prompt.WriteString(in.SchemaPrompt)
		prompt.WriteString("\n")
	}

	if in.MemoryContext != "" {
		prompt.WriteString(in.MemoryContext)
		prompt.WriteString("\n")
	}

	if len(in.Tools) > 0 {
		prompt.WriteString("## Available Tools\n\n")
		for _, tool := range in.Tools {
			prompt.WriteString(fmt.Sprintf("- %s: %s\n", tool.Name, tool.Description))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString(fmt.Sprintf("Write the query for %s. ", DialectName(in.Dialect)))
	prompt.WriteString("Provide ONLY the SQL query. Do not include any explanation or markdown formatting.\n")

	return prompt.String()
}

// GenerationSystemMessage returns the system message for SQL generation.
func GenerationSystemMessage(dialect string) string {
	return fmt.Sprintf(`You are an expert SQL developer. Your task is to convert natural language queries to accurate %s queries.

Rules:
1. Generate valid SQL syntax
2. Use appropriate JOINs when needed
3. Use proper WHERE clauses for filtering
4. Return ONLY the SQL query, no explanations
5. Do not include markdown code blocks
6. Use SELECT statements only (read-only queries)
7. Use only tables and columns listed in the schema`, DialectName(dialect))
}

// DialectName returns the product name for a dialect identifier.
func DialectName(dialect string) string {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		return "PostgreSQL"
	case "sqlite":
		return "SQLite"
	case "sqlserver", "mssql":
		return "SQL Server"
	case "":
		return "standard SQL"
	default:
		return dialect
	}
}
