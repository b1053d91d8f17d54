package cmd

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var schemaPrompt bool

// schemaCmd prints the discovered schema.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the schema the agent prompts with",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newDatasourceApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		schema, err := a.schema.Get(cmd.Context())
		if err != nil {
			return err
		}

		if schemaPrompt {
			fmt.Fprint(cmd.OutOrStdout(), schema.Prompt())
			return nil
		}

		data := pterm.TableData{{"Table", "Rows", "Columns"}}
		for _, t := range schema.Tables {
			cols := make([]string, len(t.Columns))
			for i, c := range t.Columns {
				cols[i] = c.Name
				if c.IsPrimaryKey {
					cols[i] += "*"
				}
			}
			data = append(data, []string{t.QualifiedName(), fmt.Sprint(t.RowCount), strings.Join(cols, ", ")})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}

		if len(schema.Relationships) > 0 {
			pterm.Println()
			pterm.Println(pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint("Relationships"))
			var items []pterm.BulletListItem
			for _, r := range schema.Relationships {
				items = append(items, pterm.BulletListItem{
					Level: 0,
					Text:  fmt.Sprintf("%s.%s -> %s.%s", r.FromTable, r.FromColumn, r.ToTable, r.ToColumn),
				})
			}
			return pterm.DefaultBulletList.WithItems(items).Render()
		}
		return nil
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaPrompt, "prompt", false, "print the schema exactly as it is sent to the model")
	rootCmd.AddCommand(schemaCmd)
}
