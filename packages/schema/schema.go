// Package schema exports a JSON Schema for scenario files and checks files
// against it.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/abdul-hamid-achik/restdd/packages/scenario"
	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

const (
	ID    = "https://github.com/abdul-hamid-achik/restdd/schemas/scenario-file.json"
	Title = "restdd scenario file"
)

var (
	statusCodeType = reflect.TypeOf(scenario.StatusCode(""))
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
)

// Reflect builds the schema of a whole scenario file: an object whose
// members are scenarios, plus an optional globalConfig step.
func Reflect() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		Mapper:                     mapType,
	}
	doc := r.Reflect(&scenario.Document{})

	props := jsonschema.NewProperties()
	props.Set(scenario.GlobalConfigMember, &jsonschema.Schema{
		Ref:         "#/$defs/Step",
		Description: "Step fields merged into every step of the file",
	})

	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		ID:                   ID,
		Title:                Title,
		Description:          "Scenarios keyed by name. Placeholders of the form $<type args> may appear in any string.",
		Type:                 "object",
		Properties:           props,
		AdditionalProperties: &jsonschema.Schema{Ref: "#/$defs/Document"},
		Definitions:          doc.Definitions,
	}
}

func mapType(t reflect.Type) *jsonschema.Schema {
	switch t {
	case statusCodeType:
		return &jsonschema.Schema{
			Description: "Expected HTTP status code; -1 disables the check",
			OneOf: []*jsonschema.Schema{
				{Type: "integer"},
				{Type: "string"},
			},
		}
	case rawMessageType:
		return &jsonschema.Schema{}
	}
	return nil
}

// Generate returns the schema as indented JSON.
func Generate() ([]byte, error) {
	data, err := json.MarshalIndent(Reflect(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

var (
	compileOnce sync.Once
	compiled    *gojsonschema.Schema
	compileErr  error
)

func compile() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		s := Reflect()
		// gojsonschema does not know the 2020-12 meta-schema.
		s.Version = ""
		var data []byte
		if data, compileErr = json.Marshal(s); compileErr != nil {
			return
		}
		compiled, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	})
	return compiled, compileErr
}

// Violation is one place where a document breaks the schema.
type Violation struct {
	Field       string
	Description string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Description
}

// Validate checks a scenario file. Unknown members are reported here even
// though the loader ignores them.
func Validate(data []byte) ([]Violation, error) {
	s, err := compile()
	if err != nil {
		return nil, fmt.Errorf("compiling scenario schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, err
	}

	var out []Violation
	for _, e := range result.Errors() {
		out = append(out, Violation{Field: e.Field(), Description: e.Description()})
	}
	return out, nil
}
