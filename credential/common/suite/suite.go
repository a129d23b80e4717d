// Package suite implements the proof suites and the registry that issues and
// verifies proofs by dispatching on the proof type.
package suite

import (
	"context"

	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/model"
	"github.com/pilacorp/go-ethr-vc/did"
)

// Proof types.
const (
	TypeEcdsaRecoverySignature2020 = "EcdsaSecp256k1RecoverySignature2020"
	TypeBbsBlsSignature2020        = "BbsBlsSignature2020"
	TypeBbsBlsSignatureProof2020   = "BbsBlsSignatureProof2020"
)

// Suite signs and verifies one proof type.
type Suite interface {
	// Type returns the proof type handled.
	Type() string
	// KeyTypes returns the verification method types the suite accepts.
	KeyTypes() []string
	// Sign computes the proof value of doc (without proof) under the proof
	// configuration proof.
	Sign(ctx context.Context, doc jsonmap.JSONMap, key did.KeyMaterial, proof model.Proof) (string, error)
	// Verify checks proof over doc (without proof) against method.
	Verify(ctx context.Context, doc jsonmap.JSONMap, proof model.Proof, method *did.VerificationMethod) error
}

// KeyDocument is the signing side of a verification method.
type KeyDocument struct {
	// ID is the verification method id written into proofs.
	ID string
	// Type is the verification method type; it selects the suite.
	Type string
	Key  did.KeyMaterial
}

// NewECDSAKeyDocument binds key to the #controller method of d.
func NewECDSAKeyDocument(d did.DID, key did.KeyMaterial) KeyDocument {
	return KeyDocument{ID: did.ControllerMethodID(d), Type: did.TypeEcdsaRecoveryMethod2020, Key: key}
}

// NewPairingKeyDocument binds key to the #bls-key method of d.
func NewPairingKeyDocument(d did.DID, key did.KeyMaterial) KeyDocument {
	return KeyDocument{ID: did.PairingMethodID(d), Type: did.TypeBls12381G2Key2020, Key: key}
}
