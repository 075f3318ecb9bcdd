// Package schemas generates JSON Schemas from Go types and validates
// documents against them.
package schemas

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	parts := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Name    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Name, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Schema is a compiled JSON Schema.
type Schema struct {
	name   string
	source string
	schema *gojsonschema.Schema
}

// Compile parses a schema document.
func Compile(name, source string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "invalid schema", Cause: err}
	}
	return &Schema{name: name, source: source, schema: s}, nil
}

// For generates and compiles the schema of v's type. Fields without
// omitempty are required and unknown properties are rejected.
func For(name string, v any) (*Schema, error) {
	def, err := jsonschema.GenerateSchemaForType(v)
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "cannot generate schema", Cause: err}
	}
	data, err := json.Marshal(def)
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "cannot encode schema", Cause: err}
	}
	return Compile(name, string(data))
}

// MustFor is For for package-level schemas.
func MustFor(name string, v any) *Schema {
	s, err := For(name, v)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the schema document.
func (s *Schema) String() string {
	return s.source
}

// Validate checks a JSON document. A document that is not JSON at all is
// reported as a *ValidationError on the root.
func (s *Schema) Validate(document []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return &ValidationError{Errors: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}

// Decode validates document and unmarshals it into out.
func (s *Schema) Decode(document []byte, out any) error {
	if err := s.Validate(document); err != nil {
		return err
	}
	if err := json.Unmarshal(document, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.name, err)
	}
	return nil
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	s, err := Compile("(string schema)", schemaContent)
	if err != nil {
		return err
	}
	return s.Validate([]byte(jsonContent))
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Schema{}
)

// Cached returns the schema for v's type, generating it once per name.
func Cached(name string, v any) (*Schema, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if s, ok := registry[name]; ok {
		return s, nil
	}
	s, err := For(name, v)
	if err != nil {
		return nil, err
	}
	registry[name] = s
	return s, nil
}
