// Package schema validates credentials against the JSON schemas named in
// their credentialSchema entries.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// TypeJSONSchema is the credentialSchema type validated by this package.
const TypeJSONSchema = "JsonSchema"

var (
	// ErrSchemaViolation is returned when a document does not satisfy a schema.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrUnknownSchema is returned for a schema id that is neither registered
	// nor fetchable.
	ErrUnknownSchema = errors.New("unknown schema")
)

// Validator validates documents against registered or remote schemas.
// Compiled schemas are kept for reuse.
type Validator struct {
	remote bool

	mu       sync.RWMutex
	sources  map[string]gojsonschema.JSONLoader
	compiled map[string]*gojsonschema.Schema
}

// Option configures a Validator.
type Option func(*Validator)

// WithSchema registers the JSON schema document source under id.
func WithSchema(id, source string) Option {
	return func(v *Validator) {
		v.sources[id] = gojsonschema.NewStringLoader(source)
	}
}

// WithRemoteSchemas allows fetching unregistered schema ids as URLs.
func WithRemoteSchemas() Option {
	return func(v *Validator) {
		v.remote = true
	}
}

// NewValidator creates a validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		sources:  make(map[string]gojsonschema.JSONLoader),
		compiled: make(map[string]*gojsonschema.Schema),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks doc against every schema id given.
func (v *Validator) Validate(doc map[string]any, schemaIDs ...string) error {
	for _, id := range schemaIDs {
		s, err := v.schema(id)
		if err != nil {
			return err
		}

		result, err := s.Validate(gojsonschema.NewGoLoader(doc))
		if err != nil {
			return fmt.Errorf("failed to validate schema %s: %w", id, err)
		}
		if !result.Valid() {
			msgs := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				msgs = append(msgs, e.String())
			}
			return fmt.Errorf("%w: %s: %s", ErrSchemaViolation, id, strings.Join(msgs, "; "))
		}
	}
	return nil
}

func (v *Validator) schema(id string) (*gojsonschema.Schema, error) {
	v.mu.RLock()
	s, ok := v.compiled[id]
	source, registered := v.sources[id]
	v.mu.RUnlock()
	if ok {
		return s, nil
	}

	if !registered {
		if !v.remote {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, id)
		}
		source = gojsonschema.NewReferenceLoader(id)
	}

	s, err := gojsonschema.NewSchema(source)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", id, err)
	}

	v.mu.Lock()
	v.compiled[id] = s
	v.mu.Unlock()
	return s, nil
}
