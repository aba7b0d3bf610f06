package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/restdd/packages/scenario"
	"github.com/abdul-hamid-achik/restdd/packages/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate scenario files against the JSON schema",
	Long: `Validate scenario files without executing them. Each file must be
valid JSON, match the scenario schema and decode into scenarios.

Examples:
  restdd validate dd/quotes/quotes.json
  restdd validate dd/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no scenario files found"))
	}

	hasErrors := false
	for _, file := range files {
		problems, err := validateFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
			continue
		}
		if len(problems) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "Invalid: %s\n", file)
			for _, p := range problems {
				fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", p)
			}
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
	}

	if hasErrors {
		return withExitCode(ExitParseError, fmt.Errorf("validation failed"))
	}

	return nil
}

// validateFile returns the schema violations of a file, or an error when
// the file cannot be read or decoded.
func validateFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	violations, err := schema.Validate(data)
	if err != nil {
		return nil, err
	}
	var problems []string
	for _, v := range violations {
		problems = append(problems, v.String())
	}

	scenarios, err := scenario.Parse(data, scenario.RelativeName(path))
	if err != nil {
		return nil, err
	}
	for _, scn := range scenarios {
		for _, step := range scn.Steps {
			if resolvedLater(step) {
				continue
			}
			if err := step.Validate(); err != nil {
				problems = append(problems, fmt.Sprintf("%s/%s: %v", scn.Name, step.Name(), err))
			}
		}
	}
	return problems, nil
}

// resolvedLater reports steps whose method or status code is a placeholder
// and can only be checked once sent.
func resolvedLater(step *scenario.Step) bool {
	if step.Request != nil && step.Request.Method != nil && strings.Contains(*step.Request.Method, "$<") {
		return true
	}
	return step.ExpectedStatusCode != nil && strings.Contains(string(*step.ExpectedStatusCode), "$<")
}
