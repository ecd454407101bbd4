package ingest

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/meridian-ai/meridian/pkg/apperror"
)

//go:embed schema.json
var schemaJSON []byte

// Validator checks raw ingestion payloads against the batch JSON Schema
// before any record touches the store.
type Validator struct {
	resolved *jsonschema.Resolved
}

// NewValidator compiles the embedded schema once at startup.
func NewValidator() (*Validator, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return nil, fmt.Errorf("parse ingest schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve ingest schema: %w", err)
	}
	return &Validator{resolved: resolved}, nil
}

// Validate parses and validates a raw request body, returning the typed
// batch when it conforms.
func (v *Validator) Validate(raw []byte) (*Request, error) {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, apperror.ErrBadRequest.WithMessage("request body is not valid JSON")
	}
	if err := v.resolved.Validate(instance); err != nil {
		return nil, apperror.ErrBadRequest.WithMessage(err.Error())
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, apperror.ErrBadRequest.WithMessage("request body is not valid JSON")
	}
	return &req, nil
}
