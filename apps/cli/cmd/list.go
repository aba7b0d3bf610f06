package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/restdd/packages/scenario"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the scenarios and steps of scenario files",
	Long: `List the scenarios defined in scenario files with their steps.

Examples:
  restdd list dd/quotes/quotes.json
  restdd list dd/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no scenario files found"))
	}

	for _, file := range files {
		scenarios, err := scenario.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", file)
		for _, scn := range scenarios {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", scn.Name)
			if scn.Description != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", scn.Description)
			}
			for _, step := range scn.Steps {
				line := step.Name()
				if step.Request != nil {
					endpoint := ""
					if step.Request.Endpoint != nil {
						endpoint = *step.Request.Endpoint
					}
					line = fmt.Sprintf("%s: %s %s", line, step.Request.MethodName(), endpoint)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "      %s\n", line)
			}
		}
	}

	return nil
}
