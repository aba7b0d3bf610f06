package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/restdd/packages/core/config"
	"github.com/abdul-hamid-achik/restdd/packages/scenario"
	"github.com/abdul-hamid-achik/restdd/packages/testdata"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new restdd project",
	Long: `Initialize a new restdd project in the current directory.

This creates:
  - restdd.yaml                       - Configuration file
  - dd/example/example.json           - Example scenario file
  - testdata/rest/static/example.json - Test data referenced by the example

Examples:
  restdd init
  restdd init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleScenarios = `{
  "globalConfig": {
    "request": {
      "contentType": "application/json",
      "headers": {"Accept": "application/json"}
    },
    "expectedStatusCode": 200
  },
  "createAndReadResource": {
    "testDescription": "Creates a resource and reads it back",
    "steps": {
      "create": {
        "request": {
          "endpoint": "/resources",
          "method": "POST",
          "body": {
            "name": "$<rx:[a-z]{8}>",
            "owner": "$<testdata:static/example:owner>",
            "createdOn": "$<today:yyyy-MM-dd>"
          }
        },
        "expectedStatusCode": 201
      },
      "read": {
        "request": {
          "endpoint": "/resources/{id}",
          "method": "GET",
          "pathParams": {"id": "$<cache:create:id>"}
        },
        "expectedResponse": {"name": "$<cache:create:name>"}
      }
    }
  }
}
`

const exampleTestData = `{
  "owner": {"id": 1, "name": "restdd"}
}
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "restdd.yaml")
	exampleFile := filepath.Join(cwd, scenario.DDFolder, "example", "example.json")
	dataFile := filepath.Join(cwd, filepath.FromSlash(testdata.DefaultRoot), "static", "example.json")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile, dataFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.BaseURI = "http://localhost:3000"
	cfg.DDFolders = []string{"example"}
	cfg.Headers = map[string]string{"User-Agent": "restdd/" + version}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	for path, content := range map[string]string{exampleFile: exampleScenarios, dataFile: exampleTestData} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to create example file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nrestdd project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'restdd run' to execute the example scenarios.\n")

	return nil
}
