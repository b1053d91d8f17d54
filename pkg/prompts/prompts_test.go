package prompts

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildGenerationPrompt(t *testing.T) {
	prompt := BuildGenerationPrompt(GenerationInput{
		Question:      "  How many employees are in Engineering? ",
		Dialect:       "sqlite",
		SchemaPrompt:  "# Database Schema\n\n## Table: employees\n",
		MemoryContext: "## Recent Query History\n\n1. User: list departments\n",
		Tools: []ToolSummary{
			{Name: "explain_query_plan", Description: "Explains the execution plan"},
		},
	})

	assert.Contains(t, prompt, "Query: How many employees are in Engineering?\n")
	assert.Contains(t, prompt, "## Table: employees")
	assert.Contains(t, prompt, "## Recent Query History")
	assert.Contains(t, prompt, "## Available Tools\n\n- explain_query_plan: Explains the execution plan\n")
	assert.Contains(t, prompt, "Write the query for SQLite.")
	assert.True(t, strings.HasSuffix(prompt, "markdown formatting.\n"))

	// Sections appear in a stable order.
	assert.Less(t, strings.Index(prompt, "# Database Schema"), strings.Index(prompt, "## Recent Query History"))
	assert.Less(t, strings.Index(prompt, "## Recent Query History"), strings.Index(prompt, "## Available Tools"))
}

func TestBuildGenerationPrompt_OmitsEmptySections(t *testing.T) {
	prompt := BuildGenerationPrompt(GenerationInput{Question: "q"})

	assert.NotContains(t, prompt, "## Available Tools")
	assert.NotContains(t, prompt, "## Recent Query History")
	assert.Contains(t, prompt, "standard SQL")
}

func TestGenerationSystemMessage(t *testing.T) {
	msg := GenerationSystemMessage("postgres")
	assert.Contains(t, msg, "accurate PostgreSQL queries")
	assert.Contains(t, msg, "SELECT statements only")
}

func TestDialectName(t *testing.T) {
	assert.Equal(t, "PostgreSQL", DialectName("postgres"))
	assert.Equal(t, "SQL Server", DialectName("SQLSERVER"))
	assert.Equal(t, "SQLite", DialectName("sqlite"))
	assert.Equal(t, "duckdb", DialectName("duckdb"))
}

func TestBuildCorrectionPrompt(t *testing.T) {
	prompt := BuildCorrectionPrompt(CorrectionInput{
		Intent:         "Headcount per department",
		Dialect:        "postgres",
		FailedSQL:      "SELECT department, COUNT(*) FROM employees",
		FailureKind:    "SYNTAX_ERROR",
		FailureMessage: `column "employees.department" must appear in the GROUP BY clause`,
		SchemaPrompt:   "# Database Schema\n",
		PreviousSQL:    []string{"SELECT 1", "SELECT 2", "SELECT 3", "SELECT 4"},
	})

	assert.Contains(t, prompt, "The query was written to answer: Headcount per department")
	assert.Contains(t, prompt, "```sql\nSELECT department, COUNT(*) FROM employees\n```")
	assert.Contains(t, prompt, "[SYNTAX_ERROR] column \"employees.department\" must appear")
	assert.Contains(t, prompt, "# Database Schema")
	assert.NotContains(t, prompt, "- SELECT 1\n", "only the last three previous queries are kept")
	assert.Contains(t, prompt, "- SELECT 2\n- SELECT 3\n- SELECT 4\n")
	assert.Contains(t, prompt, "Provide the corrected PostgreSQL query:")
}

func TestBuildCorrectionPrompt_NoHistory(t *testing.T) {
	prompt := BuildCorrectionPrompt(CorrectionInput{FailedSQL: "SELEC 1", FailureMessage: "syntax error"})

	assert.NotContains(t, prompt, "Previous queries")
	assert.NotContains(t, prompt, "The query was written to answer")
	assert.Contains(t, prompt, "Error Message:\nsyntax error")
}

func TestBuildSummaryPrompt(t *testing.T) {
	rows := make([][]any, 12)
	for i := range rows {
		rows[i] = []any{i + 1, fmt.Sprintf("emp%d", i+1), nil}
	}

	prompt := BuildSummaryPrompt("SELECT id, name, manager FROM employees", []string{"id", "name", "manager"}, rows)

	assert.Contains(t, prompt, "Columns: id, name, manager")
	assert.Contains(t, prompt, "Results (showing first 10 of 12 rows):")
	assert.Contains(t, prompt, `Row 1: {id=1, name="emp1", manager=NULL}`)
	assert.Contains(t, prompt, "Row 10: ")
	assert.NotContains(t, prompt, "Row 11: ")
	assert.Contains(t, prompt, "... and 2 more rows")
}

func TestBuildSummaryPrompt_NoColumns(t *testing.T) {
	prompt := BuildSummaryPrompt("SELECT 1", nil, [][]any{{[]byte("x"), 2}})

	assert.Contains(t, prompt, "Columns: N/A")
	assert.Contains(t, prompt, "Row 1: {col1=x, col2=2}")
	assert.NotContains(t, prompt, "more rows")
}
