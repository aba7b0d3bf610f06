package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/restdd/packages/core/config"
	"github.com/abdul-hamid-achik/restdd/packages/scenario"
)

// scenarioFile is one loaded file and its scenarios in declaration order.
type scenarioFile struct {
	Path      string
	Scenarios []*scenario.Scenario
}

// collectFiles expands files and directories into scenario files, in
// lexical order within each directory.
func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isScenarioFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if isScenarioFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

func isScenarioFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// loadScenarios loads the files named on the command line or, without
// arguments, the configured dd folders and files.
func loadScenarios(cfg *config.Config, args []string) ([]scenarioFile, error) {
	if len(args) > 0 {
		paths, err := collectFiles(args)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no scenario files found in %s", strings.Join(args, ", "))
		}
		out := make([]scenarioFile, 0, len(paths))
		for _, path := range paths {
			scenarios, err := scenario.ParseFile(path)
			if err != nil {
				return nil, err
			}
			out = append(out, scenarioFile{Path: path, Scenarios: scenarios})
		}
		return out, nil
	}

	if len(cfg.DDFolders) == 0 {
		return nil, fmt.Errorf("no scenario files given and no ddFolders configured")
	}
	adapter, err := scenario.NewAdapter(cfg.Root, cfg.DDFolders, scenario.WithAdapterLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := adapter.FromNames(cfg.DDFiles); err != nil {
		return nil, err
	}

	var out []scenarioFile
	for _, path := range adapter.Loaded() {
		out = append(out, scenarioFile{Path: path, Scenarios: adapter.ByFile(path)})
	}
	return out, nil
}
