package cmd

import (
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/restdd/packages/schema"
	"github.com/spf13/cobra"
)

var schemaOutFlag string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of scenario files",
	Long: `Print the JSON schema of scenario files, for editor completion and
CI checks.

Examples:
  restdd schema
  restdd schema --out restdd.schema.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.Generate()
		if err != nil {
			return err
		}
		if schemaOutFlag == "" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		if err := os.WriteFile(schemaOutFlag, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("writing schema: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", schemaOutFlag)
		return nil
	},
}

func init() {
	schemaCmd.Flags().StringVar(&schemaOutFlag, "out", "", "Write the schema to a file instead of stdout")
}
