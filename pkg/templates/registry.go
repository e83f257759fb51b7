// pkg/templates/registry.go
package templates

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Registry maps template codes to the schemas their variables must satisfy.
type Registry struct {
	Version   string     `json:"version"`
	Templates []Template `json:"templates"`

	byCode map[string]*Template
}

type Template struct {
	Code            string                 `json:"code"`
	Description     string                 `json:"description"`
	Channels        []string               `json:"channels,omitempty"`
	VariablesSchema map[string]interface{} `json:"variablesSchema"`
}

// defaultSchema is applied to templates absent from the registry: every
// notification payload carries at least a name and a link.
var defaultSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"name": map[string]interface{}{"type": "string", "minLength": 1},
		"link": map[string]interface{}{"type": "string", "minLength": 1},
	},
	"required": []interface{}{"name", "link"},
}

func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	reg.buildIndex()
	return &reg, nil
}

// NewEmptyRegistry returns a registry that validates every template
// against the default schema.
func NewEmptyRegistry() *Registry {
	reg := &Registry{}
	reg.buildIndex()
	return reg
}

func (r *Registry) buildIndex() {
	r.byCode = make(map[string]*Template, len(r.Templates))
	for i := range r.Templates {
		r.byCode[r.Templates[i].Code] = &r.Templates[i]
	}
}

// Validate checks the variables payload against the schema registered for
// code, falling back to the default schema for unknown codes.
func (r *Registry) Validate(code string, variables map[string]interface{}) error {
	schema := defaultSchema
	if tpl, ok := r.byCode[code]; ok && tpl.VariablesSchema != nil {
		schema = tpl.VariablesSchema
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(variables)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("template schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("variables do not satisfy template %q: %s", code, strings.Join(msgs, "; "))
	}
	return nil
}
