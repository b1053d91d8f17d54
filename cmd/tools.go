package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// toolsCmd lists the registered tools.
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the agent can use",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		data := pterm.TableData{{"Name", "Description"}}
		for _, info := range a.registry.List() {
			data = append(data, []string{info.Name, info.Description})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

// toolsRunCmd invokes one tool with a JSON argument object.
var toolsRunCmd = &cobra.Command{
	Use:     "run <name> [json-args]",
	Short:   "Invoke a tool directly",
	Example: `  sqlagent tools run explain_query_plan '{"query":"SELECT * FROM employees"}'`,
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolArgs := map[string]any{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
				return fmt.Errorf("invalid JSON arguments: %w", err)
			}
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.agent.UseTool(cmd.Context(), args[0], toolArgs)
		if err != nil {
			return err
		}
		if !res.Success {
			pterm.Error.Println(res.Output)
			return fmt.Errorf("tool %s failed", args[0])
		}
		pterm.Println(res.Output)
		return nil
	},
}

func init() {
	toolsCmd.AddCommand(toolsRunCmd)
	rootCmd.AddCommand(toolsCmd)
}
