package registry

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/pilacorp/go-ethr-vc/did/signer"
)

// SubmitTxResult is a signed transaction ready for broadcast.
type SubmitTxResult struct {
	TxHex  string // Hex-encoded RLP transaction
	TxHash string // Transaction hash
}

// SetAttributeRequest describes a setAttribute call.
type SetAttributeRequest struct {
	Identity common.Address
	Name     string
	Value    []byte
	Validity time.Duration
	Signer   signer.Signer // must be the identity owner
	Nonce    uint64
}

// SetAttributeTx builds and signs, but does not send, a setAttribute transaction.
func (r *EthRegistry) SetAttributeTx(ctx context.Context, req SetAttributeRequest) (*SubmitTxResult, error) {
	if req.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if req.Validity < time.Second {
		return nil, fmt.Errorf("validity must be at least one second, got %s", req.Validity)
	}

	name, err := nameToBytes32(req.Name)
	if err != nil {
		return nil, err
	}

	auth := r.getTransactOpts(ctx, req.Signer, req.Nonce)
	validity := big.NewInt(int64(req.Validity / time.Second))

	tx, err := r.contract.Transact(auth, "setAttribute", req.Identity, name, req.Value, validity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate setAttribute Tx: %w", err)
	}

	return serializeTx(tx)
}

// RevokeAttributeTx builds and signs, but does not send, a revokeAttribute transaction.
func (r *EthRegistry) RevokeAttributeTx(ctx context.Context, identity common.Address, name string, value []byte, s signer.Signer, nonce uint64) (*SubmitTxResult, error) {
	if s == nil {
		return nil, errors.New("signer is required")
	}

	nameBytes, err := nameToBytes32(name)
	if err != nil {
		return nil, err
	}

	tx, err := r.contract.Transact(r.getTransactOpts(ctx, s, nonce), "revokeAttribute", identity, nameBytes, value)
	if err != nil {
		return nil, fmt.Errorf("failed to generate revokeAttribute Tx: %w", err)
	}

	return serializeTx(tx)
}

// PublishPairingKeyTx publishes a compressed G2 public key for identity.
func (r *EthRegistry) PublishPairingKeyTx(ctx context.Context, identity common.Address, pub []byte, validity time.Duration, s signer.Signer, nonce uint64) (*SubmitTxResult, error) {
	return r.SetAttributeTx(ctx, SetAttributeRequest{
		Identity: identity,
		Name:     PairingKeyAttribute().String(),
		Value:    pub,
		Validity: validity,
		Signer:   s,
		Nonce:    nonce,
	})
}

// TxFromHex decodes a transaction produced by one of the builders.
func TxFromHex(rawTxHex string) (*types.Transaction, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(rawTxHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex string: %w", err)
	}
	var tx types.Transaction
	if err := rlp.DecodeBytes(b, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode RLP: %w", err)
	}
	return &tx, nil
}

func serializeTx(tx *types.Transaction) (*SubmitTxResult, error) {
	var buf bytes.Buffer
	if err := rlp.Encode(&buf, tx); err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return &SubmitTxResult{
		TxHex:  hex.EncodeToString(buf.Bytes()),
		TxHash: tx.Hash().Hex(),
	}, nil
}

// getTransactOpts creates the auth options for a transaction that is never sent.
func (r *EthRegistry) getTransactOpts(ctx context.Context, s signer.Signer, nonce uint64) *bind.TransactOpts {
	return &bind.TransactOpts{
		From:     s.Address(),
		Nonce:    new(big.Int).SetUint64(nonce),
		Value:    big.NewInt(0),
		GasLimit: r.gasLimit,
		GasPrice: r.gasPrice,
		Context:  ctx,
		Signer:   signer.TxSignerFn(r.chainID, s),
		NoSend:   true,
	}
}
