// Package model holds the proof data model shared by credentials and presentations.
package model

import (
	"encoding/json"
	"fmt"
)

// Proof purposes.
const (
	PurposeAssertionMethod = "assertionMethod"
	PurposeAuthentication  = "authentication"
)

// Proof represents a Linked Data Proof for a Verifiable Credential.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue,omitempty"`
	Challenge          string `json:"challenge,omitempty"`
	Domain             string `json:"domain,omitempty"`

	// Derived (selective disclosure) proofs only.
	Nonce                 string `json:"nonce,omitempty"`
	RevealedAttributeMask []int  `json:"revealedAttributeMask,omitempty"`
}

// Config returns the proof without its proofValue: the part that is signed
// together with the document.
func (p Proof) Config() Proof {
	p.ProofValue = ""
	return p
}

// ToMap converts the proof to its JSON object form.
func (p Proof) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proof: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proof: %w", err)
	}

	return out, nil
}

// ParseProof converts a single proof object into a Proof struct.
func ParseProof(raw any) (Proof, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Proof{}, fmt.Errorf("invalid proof format: expected object, got %T", raw)
	}

	encoded, err := json.Marshal(m)
	if err != nil {
		return Proof{}, fmt.Errorf("failed to marshal proof: %w", err)
	}

	var p Proof
	if err := json.Unmarshal(encoded, &p); err != nil {
		return Proof{}, fmt.Errorf("failed to parse proof: %w", err)
	}

	if p.Type == "" {
		return Proof{}, fmt.Errorf("failed to parse proof: invalid or missing type field")
	}
	if p.VerificationMethod == "" {
		return Proof{}, fmt.Errorf("failed to parse proof: invalid or missing verificationMethod field")
	}

	return p, nil
}
