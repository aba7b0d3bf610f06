// Package cmd implements the restdd CLI commands using Cobra.
//
// Available commands:
//   - run: Execute scenario files
//   - validate: Check scenario files against the JSON schema
//   - list: Display the scenarios and steps of files
//   - schema: Print the JSON schema of scenario files
//   - init: Create a config file and an example scenario
//   - version: Show restdd version information
//
// Flags of run default from RESTDD_* environment variables and override
// the values of the config file.
package cmd
