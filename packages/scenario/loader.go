package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// GlobalConfigMember is the file member merged into every step.
const GlobalConfigMember = "globalConfig"

var ErrInvalidJSON = errors.New("scenario file is not a valid JSON object")

// LoadError reports a scenario file or member that could not be decoded.
type LoadError struct {
	File     string
	Scenario string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Scenario != "" {
		return fmt.Sprintf("%s: scenario %s: %v", e.File, e.Scenario, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Document is the shape of one scenario member. Steps are decoded
// separately to keep their order.
type Document struct {
	TestDescription  string          `json:"testDescription,omitempty" jsonschema:"description=Human readable description of the scenario"`
	CustomParameters map[string]any  `json:"customParameters,omitempty"`
	Steps            map[string]Step `json:"steps" jsonschema:"required"`
}

// ParseFile reads and decodes a scenario file.
func ParseFile(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}
	return Parse(data, RelativeName(path))
}

// RelativeName is the last directory and the file name, e.g.
// "quotes/create.json".
func RelativeName(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == string(filepath.Separator) {
		return filepath.Base(path)
	}
	return filepath.ToSlash(filepath.Join(dir, filepath.Base(path)))
}

// Parse decodes every scenario of a file in document order and merges the
// globalConfig member, if any, into their steps.
func Parse(data []byte, file string) ([]*Scenario, error) {
	if !json.Valid(data) {
		return nil, &LoadError{File: file, Err: ErrInvalidJSON}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &LoadError{File: file, Err: ErrInvalidJSON}
	}

	var global *Step
	var scenarios []*Scenario
	var loadErr error

	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name == GlobalConfigMember {
			step, err := DecodeStep(value.Raw)
			if err != nil {
				loadErr = &LoadError{File: file, Scenario: name, Err: err}
				return false
			}
			global = step
			return true
		}

		scn, err := decodeScenario(name, value)
		if err != nil {
			loadErr = &LoadError{File: file, Scenario: name, Err: err}
			return false
		}
		scn.File = file
		scenarios = append(scenarios, scn)
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}

	for _, scn := range scenarios {
		scn.Merge(global)
	}
	return scenarios, nil
}

func decodeScenario(name string, value gjson.Result) (*Scenario, error) {
	if !value.IsObject() {
		return nil, fmt.Errorf("scenario must be an object")
	}

	var meta struct {
		TestDescription  *string        `json:"testDescription"`
		CustomParameters map[string]any `json:"customParameters"`
	}
	dec := json.NewDecoder(strings.NewReader(value.Raw))
	dec.UseNumber()
	if err := dec.Decode(&meta); err != nil {
		return nil, err
	}

	scn := &Scenario{Name: name}
	if meta.TestDescription != nil {
		scn.Description = *meta.TestDescription
	}
	if meta.CustomParameters != nil {
		scn.CustomParameters = make(map[string]string, len(meta.CustomParameters))
		for k, v := range meta.CustomParameters {
			scn.CustomParameters[k] = Stringify(v)
		}
	}

	steps := value.Get("steps")
	if !steps.Exists() || steps.Type == gjson.Null {
		return nil, ErrNoSteps
	}
	if !steps.IsObject() {
		return nil, fmt.Errorf("steps must be an object keyed by step name")
	}

	var stepErr error
	steps.ForEach(func(key, raw gjson.Result) bool {
		step, err := DecodeStep(raw.Raw)
		if err != nil {
			stepErr = fmt.Errorf("step %s: %w", key.String(), err)
			return false
		}
		if step.StepName == nil {
			step.StepName = String(key.String())
		}
		scn.Steps = append(scn.Steps, step)
		return true
	})
	if stepErr != nil {
		return nil, stepErr
	}
	return scn, nil
}
