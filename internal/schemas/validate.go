// Package schemas validates catalog files and AI assessment output against
// the embedded JSON Schemas.
package schemas

import (
	"fmt"
	"os"
	"strings"
	"sync"

	embedded "github.com/jonathan/visa-navigator/schemas"
	"github.com/xeipuuv/gojsonschema"
)

// FieldError is one violation, located by its dotted field path.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every violation a document has against Schema.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	lines := make([]string, 0, len(ve.Errors)+1)
	lines = append(lines, ve.Schema+" validation failed:")
	for i, fe := range ve.Errors {
		lines = append(lines, fmt.Sprintf("  %d. %s: %s", i+1, fe.Field, fe.Message))
	}
	return strings.Join(lines, "\n")
}

// SchemaLoadError means the schema itself is missing or broken.
type SchemaLoadError struct {
	Schema string
	Cause  error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Schema, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error { return e.Cause }

type compiledSchema struct {
	once   sync.Once
	schema *gojsonschema.Schema
	err    error
}

var cache sync.Map // schema name -> *compiledSchema

// lookup compiles an embedded schema on first use.
func lookup(name string) (*gojsonschema.Schema, error) {
	v, _ := cache.LoadOrStore(name, &compiledSchema{})
	c := v.(*compiledSchema)
	c.once.Do(func() {
		content, err := embedded.Get(name)
		if err != nil {
			c.err = &SchemaLoadError{Schema: name, Cause: err}
			return
		}
		if c.schema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(content)); err != nil {
			c.err = &SchemaLoadError{Schema: name, Cause: err}
		}
	})
	return c.schema, c.err
}

// ValidateDocument checks a JSON document against the named embedded schema.
// Violations are returned as a *ValidationError.
func ValidateDocument(schemaName string, document []byte) error {
	schema, err := lookup(schemaName)
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("failed to read document for %s: %w", schemaName, err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Schema: schemaName}
	for _, re := range result.Errors() {
		field := re.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: re.Description()})
	}
	return verr
}

// ValidateFile is ValidateDocument for a file on disk.
func ValidateFile(schemaName, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ValidateDocument(schemaName, data)
}
