// Package crypto holds the signature primitives proof suites build on:
// recoverable secp256k1 ECDSA and the BBS+ pairing scheme.
package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	digestLen             = 32
	privateKeyLen         = 32
	RecoverableSigLen     = 65
	nonRecoverableSigLen  = 64
	legacyRecoveryIDShift = 27
)

// ErrInvalidSignature is returned when a signature cannot be decoded or recovered.
var ErrInvalidSignature = errors.New("invalid signature")

// ParsePrivateKey parses a private key of type secp256k1 from bytes
// The length of the private key is 32 bytes.
func ParsePrivateKey(privateKeyBytes []byte) (*ecdsa.PrivateKey, error) {
	if len(privateKeyBytes) != privateKeyLen {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", privateKeyLen, len(privateKeyBytes))
	}

	privKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return privKey, nil
}

// SignRecoverable signs a 32-byte digest, producing a 65-byte [R || S || V]
// signature with V in {0, 1}.
func SignRecoverable(digest, privateKey []byte) ([]byte, error) {
	if len(digest) != digestLen {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", digestLen, len(digest))
	}

	privKey, err := ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(digest, privKey)
	if err != nil {
		return nil, fmt.Errorf("ecdsa: sign error: %w", err)
	}

	if len(signature) != RecoverableSigLen {
		return nil, fmt.Errorf("ecdsa: invalid signature length, expected %d bytes", RecoverableSigLen)
	}

	return signature, nil
}

// RecoverAddress returns the address of the key that produced signature over
// digest. V may be given as {0, 1} or {27, 28}.
func RecoverAddress(digest, signature []byte) (common.Address, error) {
	if len(digest) != digestLen {
		return common.Address{}, fmt.Errorf("%w: digest must be %d bytes", ErrInvalidSignature, digestLen)
	}
	if len(signature) != RecoverableSigLen {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, RecoverableSigLen, len(signature))
	}

	sig := make([]byte, RecoverableSigLen)
	copy(sig, signature)
	if sig[64] >= legacyRecoveryIDShift {
		sig[64] -= legacyRecoveryIDShift
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks a 64- or 65-byte signature over digest against a
// compressed or uncompressed secp256k1 public key.
func VerifySignature(publicKey, digest, signature []byte) (bool, error) {
	if len(digest) != digestLen {
		return false, fmt.Errorf("digest must be %d bytes, got %d", digestLen, len(digest))
	}

	switch len(signature) {
	case RecoverableSigLen:
		signature = signature[:nonRecoverableSigLen]
	case nonRecoverableSigLen:
	default:
		return false, fmt.Errorf("%w: invalid signature length %d", ErrInvalidSignature, len(signature))
	}

	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return false, fmt.Errorf("failed to parse public key: %w", err)
	}

	return crypto.VerifySignature(pub.SerializeCompressed(), digest, signature), nil
}

// SigningInput combines the proof-config and document digests into the
// 32-byte value that is signed: SHA-256(configDigest || documentDigest).
func SigningInput(configDigest, documentDigest []byte) []byte {
	h := sha256.New()
	h.Write(configDigest)
	h.Write(documentDigest)
	return h.Sum(nil)
}
