package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
)

func testSchemaDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "schemas")
}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(context.Background(), testSchemaDir(t))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidator_AcceptsValidRequest(t *testing.T) {
	v := newValidator(t)

	doc := json.RawMessage(`{
		"hairstyle": [{"name":"Bob Cut","value":"bob-cut","cover":"https://cdn.test/bob.webp"}],
		"hair_color": {"name":"Auburn","value":"#A52A2A"},
		"detail": "subtle waves",
		"type": "kie_4o"
	}`)
	if err := v.Validate(context.Background(), "hairstyle_request", doc); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidator_RejectsInvalidRequests(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name string
		doc  string
	}{
		{"empty hairstyle", `{"hairstyle":[],"type":"kie_4o"}`},
		{"missing type", `{"hairstyle":[{"name":"a","value":"a"}]}`},
		{"unknown provider", `{"hairstyle":[{"name":"a","value":"a"}],"type":"dall-e"}`},
		{"unknown field", `{"hairstyle":[{"name":"a","value":"a"}],"type":"kie_4o","bogus":1}`},
		{"not json", `{{{`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(context.Background(), "hairstyle_request", json.RawMessage(tc.doc))
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestValidator_UnknownSchema(t *testing.T) {
	v := newValidator(t)

	err := v.Validate(context.Background(), "no_such_schema", json.RawMessage(`{}`))
	if err == nil || errors.Is(err, ErrValidation) {
		t.Fatalf("expected unknown-schema error, got %v", err)
	}
}
