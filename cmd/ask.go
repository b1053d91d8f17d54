package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/services"
)

// maxDisplayRows bounds the table printed by ask.
const maxDisplayRows = 50

var (
	askJSON        bool
	askSkipSummary bool
)

// askCmd answers one question, or reads questions from stdin when none is given.
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the database",
	Long: `Translates the question to SQL, validates and runs it, and prints the rows.

With no arguments, ask reads one question per line from stdin until EOF or "exit".
Questions in the same session share query memory.`,
	Example: `  sqlagent ask "How many employees are in Engineering?"
  sqlagent ask --json "Average salary by department"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		opts := services.QueryOptions{SkipSummary: askSkipSummary}
		if len(args) > 0 {
			result := a.agent.QueryWithOptions(cmd.Context(), strings.Join(args, " "), opts)
			if err := printResult(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("query failed: %s", result.ErrorKind)
			}
			return nil
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			if !askJSON {
				pterm.Print(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("? "))
			}
			if !scanner.Scan() {
				return scanner.Err()
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}
			if question == "exit" || question == "quit" {
				return nil
			}
			result := a.agent.QueryWithOptions(cmd.Context(), question, opts)
			if err := printResult(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		}
	},
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full result as JSON")
	askCmd.Flags().BoolVar(&askSkipSummary, "no-summary", false, "skip the natural-language summary of the rows")
	rootCmd.AddCommand(askCmd)
}

func printResult(w io.Writer, result *models.QueryResult) error {
	if askJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.SQLQuery != "" {
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("SQL")).
			WithPadding(1).
			Println(result.SQLQuery)
	}

	if !result.Success {
		pterm.Error.Printfln("%s: %s", result.ErrorKind, result.Error)
		if result.Iterations > 1 {
			pterm.Println(pterm.NewStyle(pterm.FgGray).Sprintf("after %d attempts", result.Iterations))
		}
		pterm.Println()
		return nil
	}

	if len(result.Columns) > 0 {
		if err := renderTable(result); err != nil {
			return err
		}
	}
	pterm.Success.Printfln("%d row(s) in %s, %d attempt(s)", result.RowCount, result.Elapsed.Round(time.Millisecond), result.Iterations)
	if result.Summary != "" {
		pterm.Println()
		pterm.Println(result.Summary)
	}
	pterm.Println()
	return nil
}

func renderTable(result *models.QueryResult) error {
	data := pterm.TableData{result.Columns}
	for i, row := range result.Data {
		if i == maxDisplayRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatCell(v)
		}
		data = append(data, cells)
	}
	if err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	if result.RowCount > maxDisplayRows {
		pterm.Info.Printfln("showing first %d of %d rows", maxDisplayRows, result.RowCount)
	}
	return nil
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

