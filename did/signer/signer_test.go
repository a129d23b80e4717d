package signer

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestDefaultSigner(t *testing.T) {
	s, err := NewDefaultSigner(testKeyHex)
	require.NoError(t, err)

	hash := crypto.Keccak256([]byte("payload"))

	sig, err := s.Sign(hash)
	require.NoError(t, err)
	require.Len(t, sig, signatureLen)

	pub, err := crypto.SigToPub(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))
}

func TestNewDefaultSignerInvalidKey(t *testing.T) {
	_, err := NewDefaultSigner("0xnothex")
	assert.Error(t, err)
}

func TestTxSignerFn(t *testing.T) {
	s, err := NewDefaultSigner(testKeyHex)
	require.NoError(t, err)

	chainID := big.NewInt(11155111)
	to := common.HexToAddress("0xdca7ef03e98e0dc2b855be647c39abe984fcf21b")
	tx := types.NewTransaction(0, to, big.NewInt(0), 100000, big.NewInt(1), nil)

	signed, err := TxSignerFn(chainID, s)(s.Address(), tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.NewEIP155Signer(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)

	_, err = TxSignerFn(chainID, s)(to, tx)
	assert.Error(t, err)
}

func TestRemoteSigner(t *testing.T) {
	local, err := NewDefaultSigner(testKeyHex)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		var req struct {
			PayloadHex string `json:"payload_hex"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		payload, err := hex.DecodeString(req.PayloadHex)
		require.NoError(t, err)

		sig, err := local.Sign(payload)
		require.NoError(t, err)

		_ = json.NewEncoder(w).Encode(map[string]string{"signature_hex": "0x" + hex.EncodeToString(sig)})
	}))
	defer server.Close()

	remote, err := NewRemoteSigner(server.URL, local.Address(), WithAPIKey("secret"))
	require.NoError(t, err)

	hash := crypto.Keccak256([]byte("payload"))

	sig, err := remote.Sign(hash)
	require.NoError(t, err)

	pub, err := crypto.SigToPub(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, local.Address(), crypto.PubkeyToAddress(*pub))

	_, err = remote.Sign([]byte("short"))
	assert.Error(t, err)
}

func TestRemoteSignerHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	remote, err := NewRemoteSigner(server.URL, common.Address{})
	require.NoError(t, err)

	_, err = remote.Sign(make([]byte, 32))
	assert.ErrorContains(t, err, "403")

	_, err = NewRemoteSigner("  ", common.Address{})
	assert.Error(t, err)
}
