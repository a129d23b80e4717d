package did

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	bls12381 "github.com/kilic/bls12-381"
)

// Algorithm tags the signature family of a key.
type Algorithm string

// Algorithm constants.
const (
	AlgorithmECDSASecp256k1 Algorithm = "ECDSA_SECP256K1"
	AlgorithmPairingG2      Algorithm = "PAIRING_G2"
)

const (
	// ECDSA point sizes.
	ecdsaRawPubKeyLen          = 64
	ecdsaCompressedPubKeyLen   = 33
	ecdsaUncompressedPubKeyLen = 65

	// G2 point sizes.
	g2CompressedLen   = 96
	g2UncompressedLen = 192
)

// ErrInvalidKeyEncoding is returned when public key bytes do not decode to a
// valid point of the tagged algorithm.
var ErrInvalidKeyEncoding = errors.New("invalid key encoding")

// KeyMaterial is an algorithm-tagged key. Key bytes are opaque outside of this
// package and the crypto package; PublicKey is in the algorithm's compressed form
// and PrivateKey is only present on the signing side.
type KeyMaterial struct {
	Algorithm  Algorithm
	PublicKey  []byte
	PrivateKey []byte
}

// Public returns a copy of k without the private key.
func (k KeyMaterial) Public() KeyMaterial {
	return KeyMaterial{Algorithm: k.Algorithm, PublicKey: k.PublicKey}
}

// DeriveAddress maps a public key to its 20-byte ledger address.
//
// ECDSA keys hash the 64-byte x‖y point, pairing keys hash the 192-byte
// uncompressed G2 point. The preimage lengths differ, so the two families
// can never share an address.
func DeriveAddress(key KeyMaterial) (common.Address, error) {
	if len(key.PublicKey) == 0 {
		return common.Address{}, fmt.Errorf("%w: empty public key", ErrInvalidKeyEncoding)
	}

	var preimage []byte
	var err error

	switch key.Algorithm {
	case AlgorithmECDSASecp256k1:
		preimage, err = ecdsaPreimage(key.PublicKey)
	case AlgorithmPairingG2:
		preimage, err = pairingPreimage(key.PublicKey)
	default:
		return common.Address{}, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidKeyEncoding, key.Algorithm)
	}
	if err != nil {
		return common.Address{}, err
	}

	return common.BytesToAddress(crypto.Keccak256(preimage)[12:]), nil
}

// DeriveDID derives a single-address DID for key.
func DeriveDID(method, network string, key KeyMaterial) (DID, error) {
	addr, err := DeriveAddress(key)
	if err != nil {
		return DID{}, err
	}

	return NewDID(method, network, addr)
}

// DeriveDualDID derives a dual-address DID of the default method from one key
// of each family.
func DeriveDualDID(ecdsaKey, pairingKey KeyMaterial, network string) (DID, error) {
	if ecdsaKey.Algorithm != AlgorithmECDSASecp256k1 {
		return DID{}, fmt.Errorf("%w: primary key must be %s, got %q", ErrInvalidKeyEncoding, AlgorithmECDSASecp256k1, ecdsaKey.Algorithm)
	}
	if pairingKey.Algorithm != AlgorithmPairingG2 {
		return DID{}, fmt.Errorf("%w: secondary key must be %s, got %q", ErrInvalidKeyEncoding, AlgorithmPairingG2, pairingKey.Algorithm)
	}

	primary, err := DeriveAddress(ecdsaKey)
	if err != nil {
		return DID{}, fmt.Errorf("failed to derive primary address: %w", err)
	}

	secondary, err := DeriveAddress(pairingKey)
	if err != nil {
		return DID{}, fmt.Errorf("failed to derive secondary address: %w", err)
	}

	return NewDualDID(DefaultMethod, network, primary, secondary)
}

// ecdsaPreimage returns the 64-byte x‖y encoding of a secp256k1 public key.
func ecdsaPreimage(pub []byte) ([]byte, error) {
	switch len(pub) {
	case ecdsaRawPubKeyLen:
		pub = append([]byte{0x04}, pub...)
	case ecdsaCompressedPubKeyLen, ecdsaUncompressedPubKeyLen:
	default:
		return nil, fmt.Errorf("%w: secp256k1 public key must be 33, 64 or 65 bytes, got %d", ErrInvalidKeyEncoding, len(pub))
	}

	parsed, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyEncoding, err)
	}

	return parsed.SerializeUncompressed()[1:], nil
}

// pairingPreimage decompresses a G2 point to x.c1‖x.c0‖y.c1‖y.c0.
func pairingPreimage(pub []byte) ([]byte, error) {
	if len(pub) != g2CompressedLen {
		return nil, fmt.Errorf("%w: G2 public key must be %d bytes, got %d", ErrInvalidKeyEncoding, g2CompressedLen, len(pub))
	}

	g2 := bls12381.NewG2()

	point, err := g2.FromCompressed(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyEncoding, err)
	}

	uncompressed := g2.ToUncompressed(point)
	if len(uncompressed) != g2UncompressedLen {
		return nil, fmt.Errorf("%w: unexpected G2 encoding length %d", ErrInvalidKeyEncoding, len(uncompressed))
	}

	return uncompressed, nil
}
