// Package processor turns JSON documents into the canonical byte strings
// proofs are computed over.
package processor

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonicalizer serializes a document deterministically. Two documents with
// equal JSON content canonicalize to equal bytes.
type Canonicalizer interface {
	Name() string
	Canonicalize(doc map[string]any) ([]byte, error)
}

// Canonicalizer names.
const (
	NameJCS    = "jcs"
	NameJSONLD = "urdna2015"
)

// JCS canonicalizes with the JSON Canonicalization Scheme (RFC 8785).
type JCS struct{}

// Name implements Canonicalizer.
func (JCS) Name() string { return NameJCS }

// Canonicalize implements Canonicalizer.
func (JCS) Canonicalize(doc map[string]any) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to canonicalize document: document is nil")
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to transform document: %w", err)
	}

	return canonical, nil
}

// CanonicalizeValue canonicalizes any JSON value (not only objects) with JCS.
func CanonicalizeValue(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to transform value: %w", err)
	}

	return canonical, nil
}

// ComputeDigest computes the SHA-256 digest of the input data.
func ComputeDigest(data []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("failed to compute digest: input data is nil")
	}
	hash := sha256.Sum256(data)
	return hash[:], nil
}

// Digest canonicalizes doc with c and hashes the result.
func Digest(c Canonicalizer, doc map[string]any) ([]byte, error) {
	canonical, err := c.Canonicalize(doc)
	if err != nil {
		return nil, err
	}
	return ComputeDigest(canonical)
}

// Default returns the default canonicalizer.
func Default() Canonicalizer {
	return JCS{}
}
