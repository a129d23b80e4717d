// Package jsonmap provides the generic JSON document type credentials and
// presentations are built on.
package jsonmap

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pilacorp/go-ethr-vc/credential/common/model"
)

// Document field names.
const (
	FieldProof   = "proof"
	FieldSubject = "credentialSubject"
)

// ErrNoProof is returned when the document carries no proof.
var ErrNoProof = errors.New("document has no proof")

// JSONMap represents a JSON object as a map.
type JSONMap map[string]any

// Parse decodes raw JSON into a JSONMap.
func Parse(raw []byte) (JSONMap, error) {
	var m JSONMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: document is null")
	}
	return m, nil
}

// ToJSON serializes the JSONMap to JSON.
func (m JSONMap) ToJSON() ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("JSONMap is nil")
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSONMap: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy normalized to JSON value types
// (map[string]any, []any, string, float64, bool, nil).
func (m JSONMap) Clone() (JSONMap, error) {
	data, err := m.ToJSON()
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Without returns a deep copy of m without the given top-level keys.
func (m JSONMap) Without(keys ...string) (JSONMap, error) {
	c, err := m.Clone()
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		delete(c, key)
	}
	return c, nil
}

// Proofs returns the raw proof entries. A single proof object and an array
// of proofs are both accepted.
func (m JSONMap) Proofs() ([]any, error) {
	raw, ok := m[FieldProof]
	if !ok || raw == nil {
		return nil, ErrNoProof
	}

	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return nil, ErrNoProof
		}
		return v, nil
	case map[string]any:
		return []any{v}, nil
	default:
		return nil, fmt.Errorf("invalid proof format: %T", raw)
	}
}

// Proof parses the first proof.
func (m JSONMap) Proof() (model.Proof, error) {
	proofs, err := m.Proofs()
	if err != nil {
		return model.Proof{}, err
	}
	return model.ParseProof(proofs[0])
}

// SetProof replaces the proof of the document.
func (m JSONMap) SetProof(p model.Proof) error {
	if m == nil {
		return fmt.Errorf("JSONMap is nil")
	}

	pm, err := p.ToMap()
	if err != nil {
		return err
	}

	m[FieldProof] = pm
	return nil
}

// String returns the string value of key, or "".
func (m JSONMap) String(key string) string {
	s, _ := m[key].(string)
	return s
}
