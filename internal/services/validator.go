package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrValidation can be used with errors.Is to detect schema validation
// failures.
var ErrValidation = errors.New("validation failed")

// Validator checks incoming request documents against versioned JSON
// schemas loaded at startup.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator loads and compiles every *.json file in schemaDir. The
// schema name is the filename without the .v1.json suffix, so
// "hairstyle_request.v1.json" registers as "hairstyle_request".
func NewValidator(ctx context.Context, schemaDir string) (*Validator, error) {
	_ = ctx
	entries, err := os.ReadDir(schemaDir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %q: %w", schemaDir, err)
	}

	schemas := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		name = strings.TrimSuffix(name, ".v1")
		path := filepath.Join(schemaDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		id := "https://newdo.dev/schemas/" + name
		schemas[name], err = jsonschema.CompileString(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
	}
	if len(schemas) == 0 {
		return nil, fmt.Errorf("no schemas found in %q", schemaDir)
	}

	return &Validator{schemas: schemas}, nil
}

// Validate performs a hard reject: an error means the document does not
// match the named schema.
func (v *Validator) Validate(ctx context.Context, name string, doc json.RawMessage) error {
	_ = ctx
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var parsed interface{}
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
