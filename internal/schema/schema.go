// Package schema validates the opaque JSON documents the bridge passes to the
// map library: layer definitions, source definitions, filters and property
// dictionaries. Schemas are reflected from the model types and compiled once.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/joeblew999/plat-mapbridge/internal/model"
)

// Layer is the schema name for layer definitions.
const Layer = "layer"

// documents maps a schema name to the model type it is reflected from.
// Source schemas are named after the source type.
var documents = map[string]any{
	Layer:                 &model.LayerDefinition{},
	model.SourceGeoJSON:   &model.GeoJSONSource{},
	model.SourceVector:    &model.VectorSource{},
	model.SourceRaster:    &model.RasterSource{},
	model.SourceRasterDEM: &model.RasterDEMSource{},
	model.SourceImage:     &model.ImageSource{},
	model.SourceVideo:     &model.VideoSource{},
}

// opaque lists properties passed through verbatim, whatever their shape.
var opaque = map[string][]string{
	Layer:               {"filter"},
	model.SourceGeoJSON: {"data"},
}

// Names returns the known schema names, sorted.
func Names() []string {
	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate returns the JSON Schema for a document kind.
func Generate(name string) ([]byte, error) {
	v, ok := documents[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(v)
	s.ID = jsonschema.ID(schemaID(name))
	s.Title = "Map " + name
	for _, prop := range opaque[name] {
		if _, ok := s.Properties.Get(prop); ok {
			s.Properties.Set(prop, &jsonschema.Schema{})
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

func schemaID(name string) string {
	return "https://plat-mapbridge.dev/schemas/" + name + ".schema.json"
}

// Validator validates documents against the compiled schemas.
type Validator struct {
	once    sync.Once
	schemas map[string]*jschema.Schema
	err     error
}

// NewValidator creates a validator. Schemas compile on first use.
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) compile() {
	v.schemas = make(map[string]*jschema.Schema, len(documents))
	c := jschema.NewCompiler()
	for name := range documents {
		data, err := Generate(name)
		if err != nil {
			v.err = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			v.err = fmt.Errorf("failed to parse schema %s: %w", name, err)
			return
		}
		if err := c.AddResource(schemaID(name), doc); err != nil {
			v.err = fmt.Errorf("failed to add schema resource %s: %w", name, err)
			return
		}
	}
	for name := range documents {
		sch, err := c.Compile(schemaID(name))
		if err != nil {
			v.err = fmt.Errorf("failed to compile schema %s: %w", name, err)
			return
		}
		v.schemas[name] = sch
	}
}

// Validate checks doc against the named schema.
func (v *Validator) Validate(name string, doc json.RawMessage) error {
	v.once.Do(v.compile)
	if v.err != nil {
		return v.err
	}
	sch, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Layer validates a layer definition.
func (v *Validator) Layer(doc json.RawMessage) error {
	return v.Validate(Layer, doc)
}

// Source validates a source definition against the schema of its type.
// GeoJSON data is additionally checked for well-formed geometries.
func (v *Validator) Source(doc json.RawMessage) error {
	var head struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
		URL  string          `json:"url"`
		Tile []string        `json:"tiles"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if head.Type == "" {
		return fmt.Errorf("source: type is required")
	}
	if _, ok := documents[head.Type]; !ok || head.Type == Layer {
		return fmt.Errorf("source: unsupported type %q", head.Type)
	}
	if err := v.Validate(head.Type, doc); err != nil {
		return err
	}

	switch head.Type {
	case model.SourceGeoJSON:
		if err := model.ValidateGeoJSON(head.Data); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	case model.SourceVector, model.SourceRaster:
		if head.URL == "" && len(head.Tile) == 0 {
			return fmt.Errorf("%s source: url or tiles is required", head.Type)
		}
	}
	return nil
}

// Filter checks that doc is a filter expression (a JSON array). An empty or
// null document clears the filter.
func Filter(doc json.RawMessage) error {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var expr []any
	if err := json.Unmarshal(trimmed, &expr); err != nil {
		return fmt.Errorf("filter must be an expression array: %w", err)
	}
	if len(expr) == 0 {
		return fmt.Errorf("filter expression is empty")
	}
	if _, ok := expr[0].(string); !ok {
		return fmt.Errorf("filter expression must start with an operator")
	}
	return nil
}

// Value checks that doc is a single well-formed JSON value, as used for
// paint and layout property values.
func Value(doc json.RawMessage) error {
	if len(bytes.TrimSpace(doc)) == 0 {
		return fmt.Errorf("property value is required")
	}
	if !json.Valid(doc) {
		return fmt.Errorf("property value is not valid JSON")
	}
	return nil
}
