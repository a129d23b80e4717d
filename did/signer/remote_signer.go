package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultRemoteTimeout = 10 * time.Second

// RemoteSigner is a signer that signs a payload using a remote API
type RemoteSigner struct {
	endpoint string
	apiKey   string
	address  common.Address
	client   *http.Client
}

// RemoteOption configures a RemoteSigner.
type RemoteOption func(*RemoteSigner)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(s *RemoteSigner) {
		s.client = client
	}
}

// WithAPIKey sets the x-api-key header.
func WithAPIKey(apiKey string) RemoteOption {
	return func(s *RemoteSigner) {
		s.apiKey = apiKey
	}
}

// NewRemoteSigner creates a new RemoteSigner for the key owning address.
func NewRemoteSigner(endpoint string, address common.Address, opts ...RemoteOption) (*RemoteSigner, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint required")
	}

	s := &RemoteSigner{
		endpoint: endpoint,
		address:  address,
		client: &http.Client{
			Timeout:   defaultRemoteTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Address returns the address the remote key owns.
func (s *RemoteSigner) Address() common.Address {
	return s.address
}

// Sign signs a payload using the remote API
func (s *RemoteSigner) Sign(payload []byte) ([]byte, error) {
	return s.SignContext(context.Background(), payload)
}

// SignContext is Sign bound to ctx.
func (s *RemoteSigner) SignContext(ctx context.Context, payload []byte) ([]byte, error) {
	if len(payload) != 32 {
		return nil, fmt.Errorf("payload must be 32 bytes, got %d", len(payload))
	}

	reqBody, err := json.Marshal(map[string]any{
		"payload_hex": hex.EncodeToString(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create sign request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call remote signer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote signer http %d", resp.StatusCode)
	}

	var out struct {
		SignatureHex string `json:"signature_hex"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode remote signer response: %w", err)
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(out.SignatureHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != signatureLen {
		return nil, fmt.Errorf("invalid signature length %d", len(sig))
	}

	return sig, nil
}
