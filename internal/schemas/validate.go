// Package schemas validates persisted JSON artifacts against embedded JSON Schemas.
package schemas

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names accepted by Validate.
const (
	Corpus   = "corpus.schema.json"
	Manifest = "manifest.schema.json"
)

//go:embed *.schema.json
var files embed.FS

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s validation failed:", ve.Schema)
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, "\n  %d. %s: %s", i+1, err.Field, err.Message)
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or parsing the schema or document.
type SchemaLoadError struct {
	Schema string
	Cause  error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Schema, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Validate checks document against the named embedded schema. It returns a
// *ValidationError listing every violation, or a *SchemaLoadError when the
// document is not JSON at all.
func Validate(schema string, document []byte) error {
	raw, err := files.ReadFile(schema)
	if err != nil {
		return &SchemaLoadError{Schema: schema, Cause: err}
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(raw),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return &SchemaLoadError{Schema: schema, Cause: err}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Schema: schema,
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
