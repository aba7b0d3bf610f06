package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "restdd",
	Short: "Data-driven REST API scenarios",
	Long: `restdd runs HTTP test scenarios described as JSON data. Each scenario
is an ordered list of steps; later steps reference earlier responses
through $<cache:...> and $<cache_headers:...> placeholders and pull
random or shared values through $<rx:...>, $<date:...> and
$<testdata:...>.`,
	SilenceUsage: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
