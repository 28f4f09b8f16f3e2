package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
)

// Validate checks doc against the OpenAPI 3.0 rules enforced by kin-openapi.
// Synthesized documents are not guaranteed to pass: null-typed properties and
// arrays observed empty have no 3.0 representation.
func Validate(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return ValidateData(ctx, data)
}

// ValidateData loads a JSON or YAML OpenAPI document and validates it.
func ValidateData(ctx context.Context, data []byte) error {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	spec, err := loader.LoadFromData(data)
	if err != nil {
		return fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := spec.Validate(ctx); err != nil {
		return fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	return nil
}

// ValidateFile validates the OpenAPI document stored at path.
func ValidateFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read spec file: %w", err)
	}
	return ValidateData(ctx, data)
}
