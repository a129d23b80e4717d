package suite

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pilacorp/go-ethr-vc/credential/common/crypto"
	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/model"
	"github.com/pilacorp/go-ethr-vc/credential/common/processor"
	"github.com/pilacorp/go-ethr-vc/did"
)

// EcdsaRecovery implements EcdsaSecp256k1RecoverySignature2020. The proof
// value is the hex of a 65-byte [R || S || V] signature; verification
// recovers the signer address and compares it to the method's address.
type EcdsaRecovery struct {
	canonicalizer processor.Canonicalizer
}

// NewEcdsaRecovery creates the suite.
func NewEcdsaRecovery(c processor.Canonicalizer) *EcdsaRecovery {
	return &EcdsaRecovery{canonicalizer: c}
}

// Type implements Suite.
func (s *EcdsaRecovery) Type() string { return TypeEcdsaRecoverySignature2020 }

// KeyTypes implements Suite.
func (s *EcdsaRecovery) KeyTypes() []string {
	return []string{did.TypeEcdsaRecoveryMethod2020, did.TypeEcdsaVerificationKey2019}
}

// Sign implements Suite.
func (s *EcdsaRecovery) Sign(_ context.Context, doc jsonmap.JSONMap, key did.KeyMaterial, proof model.Proof) (string, error) {
	if key.Algorithm != did.AlgorithmECDSASecp256k1 {
		return "", fmt.Errorf("%w: %s cannot sign with %s", ErrKeyMismatch, s.Type(), key.Algorithm)
	}

	input, err := s.signingInput(doc, proof)
	if err != nil {
		return "", err
	}

	sig, err := crypto.SignRecoverable(input, key.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign document: %w", err)
	}

	return hex.EncodeToString(sig), nil
}

// Verify implements Suite.
func (s *EcdsaRecovery) Verify(_ context.Context, doc jsonmap.JSONMap, proof model.Proof, method *did.VerificationMethod) error {
	sig, err := hex.DecodeString(strings.TrimPrefix(proof.ProofValue, "0x"))
	if err != nil {
		return fmt.Errorf("%w: failed to decode proofValue: %v", ErrSignatureInvalid, err)
	}

	want, err := method.Address()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	input, err := s.signingInput(doc, proof)
	if err != nil {
		return err
	}

	got, err := crypto.RecoverAddress(input, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if got != want {
		return fmt.Errorf("%w: signer %s is not bound to %s", ErrSignatureInvalid, got.Hex(), method.ID)
	}

	return nil
}

// signingInput hashes the proof configuration (under the document context)
// and the document, and combines both digests.
func (s *EcdsaRecovery) signingInput(doc jsonmap.JSONMap, proof model.Proof) ([]byte, error) {
	config, err := proof.Config().ToMap()
	if err != nil {
		return nil, err
	}
	if ctx, ok := doc["@context"]; ok {
		config["@context"] = ctx
	}

	configDigest, err := processor.Digest(s.canonicalizer, config)
	if err != nil {
		return nil, fmt.Errorf("failed to digest proof config: %w", err)
	}

	docDigest, err := processor.Digest(s.canonicalizer, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to digest document: %w", err)
	}

	return crypto.SigningInput(configDigest, docDigest), nil
}
