// Package signer provides the transaction signers used to authorize registry
// updates of a DID.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const signatureLen = 65

// Signer signs 32-byte hashes with the key owning an address.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
	Address() common.Address
}

// DefaultSigner signs with a local private key.
type DefaultSigner struct {
	priv *ecdsa.PrivateKey
}

// NewDefaultSigner creates a signer from a hex private key.
func NewDefaultSigner(privHex string) (*DefaultSigner, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &DefaultSigner{priv: priv}, nil
}

// NewSignerFromKey creates a signer from raw 32-byte private key bytes.
func NewSignerFromKey(privateKey []byte) (*DefaultSigner, error) {
	priv, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &DefaultSigner{priv: priv}, nil
}

// Sign signs hashPayload.
func (s *DefaultSigner) Sign(hashPayload []byte) ([]byte, error) {
	signature, err := crypto.Sign(hashPayload, s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	if len(signature) != signatureLen {
		return nil, fmt.Errorf("invalid signature length: expected %d bytes, got %d", signatureLen, len(signature))
	}

	return signature, nil
}

// Address returns the address of the signing key.
func (s *DefaultSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.priv.PublicKey)
}

// TxSignerFn creates a bind.SignerFn-compatible function using a generic Signer.
// It hashes the transaction with EIP-155 and signs it via the provided Signer.
func TxSignerFn(chainID *big.Int, s Signer) func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
	return func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if address != s.Address() {
			return nil, fmt.Errorf("signer %s cannot sign for %s", s.Address().Hex(), address.Hex())
		}

		eip155Signer := types.NewEIP155Signer(chainID)
		h := eip155Signer.Hash(tx)
		sig, err := s.Sign(h.Bytes())
		if err != nil {
			return nil, err
		}

		return tx.WithSignature(eip155Signer, sig)
	}
}
