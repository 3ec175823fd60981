package noise

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// SchemaURL is the $id of the embedded graph document schema.
const SchemaURL = "https://gogpu.dev/terrain/graph.schema.json"

//go:embed graph.schema.json
var schemaSource string

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	errSchema      error
)

// Schema returns the JSON Schema graph documents are validated against.
func Schema() string { return schemaSource }

func graphSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, errSchema = jsonschema.CompileString(SchemaURL, schemaSource)
	})
	return compiledSchema, errSchema
}

// validateDocument checks a decoded JSON value against the schema.
func validateDocument(doc any) error {
	s, err := graphSchema()
	if err != nil {
		return fmt.Errorf("noise: compile graph schema: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return &InvalidNodeError{Reason: "document does not match schema", Err: fmt.Errorf("%w: %w", ErrInvalidDocument, err)}
	}
	return nil
}

// DecodeJSON parses and schema-validates a JSON graph document. Schema
// failures are returned as *InvalidNodeError wrapping ErrInvalidDocument.
// The graph itself is not compiled.
func DecodeJSON(data []byte) (Graph, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Graph{}, fmt.Errorf("noise: parse graph JSON: %w", err)
	}
	if err := validateDocument(doc); err != nil {
		return Graph{}, err
	}

	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("noise: decode graph: %w", err)
	}
	return g, nil
}

// DecodeYAML parses a YAML graph document. It is converted to JSON and
// validated exactly like DecodeJSON.
func DecodeYAML(data []byte) (Graph, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Graph{}, fmt.Errorf("noise: parse graph YAML: %w", err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return Graph{}, fmt.Errorf("noise: convert graph YAML: %w", err)
	}
	return DecodeJSON(js)
}

// Encode returns the canonical JSON encoding of g: indented, with input
// maps in sorted key order.
func Encode(g Graph) ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("noise: encode graph: %w", err)
	}
	return data, nil
}

// EncodeYAML returns g as a YAML document.
func EncodeYAML(g Graph) ([]byte, error) {
	data, err := yaml.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("noise: encode graph YAML: %w", err)
	}
	return data, nil
}

// ReadFile loads a graph document, choosing YAML for .yaml and .yml files
// and JSON otherwise.
func ReadFile(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Graph{}, fmt.Errorf("noise: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return DecodeJSON(data)
	}
}
