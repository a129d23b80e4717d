package suite

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/pilacorp/go-ethr-vc/credential/common/crypto"
	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/model"
	"github.com/pilacorp/go-ethr-vc/credential/common/processor"
	"github.com/pilacorp/go-ethr-vc/did"
)

// BbsSignature implements BbsBlsSignature2020: a BBS+ signature over the
// message vector of the document, so that subject leaves can later be
// disclosed selectively.
type BbsSignature struct {
	canonicalizer processor.Canonicalizer
	scheme        crypto.PairingScheme
}

// NewBbsSignature creates the suite.
func NewBbsSignature(c processor.Canonicalizer, scheme crypto.PairingScheme) *BbsSignature {
	return &BbsSignature{canonicalizer: c, scheme: scheme}
}

// Type implements Suite.
func (s *BbsSignature) Type() string { return TypeBbsBlsSignature2020 }

// KeyTypes implements Suite.
func (s *BbsSignature) KeyTypes() []string { return []string{did.TypeBls12381G2Key2020} }

// Sign implements Suite.
func (s *BbsSignature) Sign(_ context.Context, doc jsonmap.JSONMap, key did.KeyMaterial, proof model.Proof) (string, error) {
	if key.Algorithm != did.AlgorithmPairingG2 {
		return "", fmt.Errorf("%w: %s cannot sign with %s", ErrKeyMismatch, s.Type(), key.Algorithm)
	}

	messages, err := BuildMessages(s.canonicalizer, doc, proof)
	if err != nil {
		return "", err
	}

	sig, err := s.scheme.Sign(messages.Messages(), key.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign document: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify implements Suite.
func (s *BbsSignature) Verify(_ context.Context, doc jsonmap.JSONMap, proof model.Proof, method *did.VerificationMethod) error {
	sig, err := base64.StdEncoding.DecodeString(proof.ProofValue)
	if err != nil {
		return fmt.Errorf("%w: failed to decode proofValue: %v", ErrSignatureInvalid, err)
	}

	pub, err := pairingKey(method)
	if err != nil {
		return err
	}

	messages, err := BuildMessages(s.canonicalizer, doc, proof)
	if err != nil {
		return err
	}

	if err := s.scheme.Verify(messages.Messages(), sig, pub); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	return nil
}

func pairingKey(method *did.VerificationMethod) ([]byte, error) {
	pub, err := method.RawKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if len(pub) == 0 {
		return nil, fmt.Errorf("%w: method %s carries no key material", ErrSignatureInvalid, method.ID)
	}
	return pub, nil
}
