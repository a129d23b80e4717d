package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/kmscrypto/crypto/primitive/bbs12381g2pub"

	"github.com/pilacorp/go-ethr-vc/did"
)

// NonceLen is the length of generated proof nonces.
const NonceLen = 32

// PairingScheme is a multi-message signature scheme with zero-knowledge
// derivation of partial-disclosure proofs.
type PairingScheme interface {
	// Sign signs all messages with the private key.
	Sign(messages [][]byte, privateKey []byte) ([]byte, error)
	// Verify checks a signature over all messages.
	Verify(messages [][]byte, signature, publicKey []byte) error
	// DeriveProof derives a proof that reveals only messages at revealed
	// (ascending indices), bound to nonce.
	DeriveProof(messages [][]byte, signature, nonce, publicKey []byte, revealed []int) ([]byte, error)
	// VerifyProof checks a derived proof over the revealed messages, given in
	// ascending index order.
	VerifyProof(revealed [][]byte, proof, nonce, publicKey []byte) error
	// ProofIndexes returns the message count of the signature a proof was
	// derived from and the ascending indices the proof reveals.
	ProofIndexes(proof []byte) (count int, revealed []int, err error)
}

// BBS is the BBS+ scheme over BLS12-381 with G2 public keys.
type BBS struct {
	bbs *bbs12381g2pub.BBSG2Pub
}

// NewBBS creates the BBS+ scheme.
func NewBBS() *BBS {
	return &BBS{bbs: bbs12381g2pub.New()}
}

// Sign implements PairingScheme.
func (b *BBS) Sign(messages [][]byte, privateKey []byte) ([]byte, error) {
	sig, err := b.bbs.Sign(messages, privateKey)
	if err != nil {
		return nil, fmt.Errorf("bbs: sign error: %w", err)
	}
	return sig, nil
}

// Verify implements PairingScheme.
func (b *BBS) Verify(messages [][]byte, signature, publicKey []byte) error {
	if err := b.bbs.Verify(messages, signature, publicKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// DeriveProof implements PairingScheme.
func (b *BBS) DeriveProof(messages [][]byte, signature, nonce, publicKey []byte, revealed []int) ([]byte, error) {
	proof, err := b.bbs.DeriveProof(messages, signature, nonce, publicKey, revealed)
	if err != nil {
		return nil, fmt.Errorf("bbs: derive proof error: %w", err)
	}
	return proof, nil
}

// VerifyProof implements PairingScheme.
func (b *BBS) VerifyProof(revealed [][]byte, proof, nonce, publicKey []byte) error {
	if err := b.bbs.VerifyProof(revealed, proof, nonce, publicKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// ProofIndexes implements PairingScheme. A derived proof starts with a
// big-endian uint16 message count followed by a bitvector of the revealed
// indices, stored with its bytes reversed.
func (b *BBS) ProofIndexes(proof []byte) (int, []int, error) {
	if len(proof) < 2 {
		return 0, nil, fmt.Errorf("%w: proof header too short", ErrInvalidSignature)
	}

	count := int(binary.BigEndian.Uint16(proof[:2]))
	end := 2 + count/8 + 1
	if len(proof) < end {
		return 0, nil, fmt.Errorf("%w: proof header too short for %d messages", ErrInvalidSignature, count)
	}

	bitvector := proof[2:end]
	var revealed []int
	for i := 0; i < 8*len(bitvector); i++ {
		if bitvector[len(bitvector)-1-i/8]&(1<<(i%8)) == 0 {
			continue
		}
		if i >= count {
			return 0, nil, fmt.Errorf("%w: proof reveals index %d of %d messages", ErrInvalidSignature, i, count)
		}
		revealed = append(revealed, i)
	}
	return count, revealed, nil
}

// GeneratePairingKey generates a BBS+ key pair. A nil seed draws a random one;
// otherwise the seed must be 32 bytes.
func GeneratePairingKey(seed []byte) (did.KeyMaterial, error) {
	pub, priv, err := bbs12381g2pub.GenerateKeyPair(sha256.New, seed)
	if err != nil {
		return did.KeyMaterial{}, fmt.Errorf("failed to generate pairing key: %w", err)
	}

	pubBytes, err := pub.Marshal()
	if err != nil {
		return did.KeyMaterial{}, fmt.Errorf("failed to marshal pairing public key: %w", err)
	}

	privBytes, err := priv.Marshal()
	if err != nil {
		return did.KeyMaterial{}, fmt.Errorf("failed to marshal pairing private key: %w", err)
	}

	return did.KeyMaterial{
		Algorithm:  did.AlgorithmPairingG2,
		PublicKey:  pubBytes,
		PrivateKey: privBytes,
	}, nil
}

// RandomNonce returns NonceLen random bytes.
func RandomNonce() ([]byte, error) {
	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}
