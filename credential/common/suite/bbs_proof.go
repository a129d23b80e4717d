package suite

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-ethr-vc/credential/common/crypto"
	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/model"
	"github.com/pilacorp/go-ethr-vc/credential/common/processor"
	"github.com/pilacorp/go-ethr-vc/did"
)

// BbsSignatureProof implements BbsBlsSignatureProof2020: verification of
// proofs derived from a BbsBlsSignature2020 signature. Such proofs are only
// produced by the disclosure engine.
type BbsSignatureProof struct {
	canonicalizer processor.Canonicalizer
	scheme        crypto.PairingScheme
}

// NewBbsSignatureProof creates the suite.
func NewBbsSignatureProof(c processor.Canonicalizer, scheme crypto.PairingScheme) *BbsSignatureProof {
	return &BbsSignatureProof{canonicalizer: c, scheme: scheme}
}

// Type implements Suite.
func (s *BbsSignatureProof) Type() string { return TypeBbsBlsSignatureProof2020 }

// KeyTypes implements Suite.
func (s *BbsSignatureProof) KeyTypes() []string { return []string{did.TypeBls12381G2Key2020} }

// Sign implements Suite.
func (s *BbsSignatureProof) Sign(context.Context, jsonmap.JSONMap, did.KeyMaterial, model.Proof) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrDerivationOnly, s.Type())
}

// Verify implements Suite.
func (s *BbsSignatureProof) Verify(_ context.Context, doc jsonmap.JSONMap, proof model.Proof, method *did.VerificationMethod) error {
	proofValue, err := base64.StdEncoding.DecodeString(proof.ProofValue)
	if err != nil {
		return fmt.Errorf("%w: failed to decode proofValue: %v", ErrSignatureInvalid, err)
	}

	nonce, err := base64.StdEncoding.DecodeString(proof.Nonce)
	if err != nil || len(nonce) == 0 {
		return fmt.Errorf("%w: missing or malformed nonce", ErrSignatureInvalid)
	}

	pub, err := pairingKey(method)
	if err != nil {
		return err
	}

	messages, err := BuildMessages(s.canonicalizer, doc, SignatureConfig(proof))
	if err != nil {
		return err
	}

	if err := ValidateMask(proof.RevealedAttributeMask, messages.Len()); err != nil {
		return err
	}

	// The mask must equal the index set the proof commits to.
	_, revealed, err := s.scheme.ProofIndexes(proofValue)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if !slices.Equal(revealed, proof.RevealedAttributeMask) {
		return fmt.Errorf("%w: mask %v does not match proof indices %v", ErrSignatureInvalid, proof.RevealedAttributeMask, revealed)
	}

	if err := s.scheme.VerifyProof(messages.Messages(), proofValue, nonce, pub); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	return nil
}

// SignatureConfig returns the configuration of the signature a derived proof
// was derived from: the same proof under the signature type, without the
// derivation fields.
func SignatureConfig(p model.Proof) model.Proof {
	p.Type = TypeBbsBlsSignature2020
	p.Nonce = ""
	p.RevealedAttributeMask = nil
	return p.Config()
}

// ValidateMask checks that mask is strictly ascending, reveals the config and
// envelope, and has one entry per revealed message.
func ValidateMask(mask []int, revealed int) error {
	if len(mask) != revealed {
		return fmt.Errorf("%w: mask reveals %d messages, document carries %d", ErrSignatureInvalid, len(mask), revealed)
	}
	if len(mask) < FirstLeafIndex || mask[0] != MessageIndexConfig || mask[1] != MessageIndexEnvelope {
		return fmt.Errorf("%w: mask must reveal proof config and envelope", ErrSignatureInvalid)
	}
	for i := 1; i < len(mask); i++ {
		if mask[i] <= mask[i-1] {
			return fmt.Errorf("%w: mask is not strictly ascending", ErrSignatureInvalid)
		}
	}
	return nil
}
