package openapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrSerialization is returned when a document cannot be encoded.
var ErrSerialization = errors.New("serialization error")

// Format selects the output encoding of a document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks JSON for .json files and YAML for everything else.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Marshal encodes doc in the given format.
func Marshal(doc *Document, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes doc to w in the given format.
func Encode(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
	default:
		return fmt.Errorf("%w: unknown format %q", ErrSerialization, format)
	}
	return nil
}

// EncodeYAML writes doc to w as YAML.
func EncodeYAML(w io.Writer, doc *Document) error {
	return Encode(w, doc, FormatYAML)
}

// EncodeJSON writes doc to w as indented JSON.
func EncodeJSON(w io.Writer, doc *Document) error {
	return Encode(w, doc, FormatJSON)
}

// WriteFile encodes doc in the format implied by path and writes it there.
// The file is left untouched if encoding fails.
func WriteFile(path string, doc *Document) error {
	data, err := Marshal(doc, FormatForPath(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write spec file: %w", err)
	}
	return nil
}
