// Package credentialstatus checks credentialStatus entries against status
// list credentials.
package credentialstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bluele/gcache"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-ethr-vc/credential/common/util"
)

// Checker reports whether a status entry marks its credential as revoked.
type Checker interface {
	IsRevoked(ctx context.Context, entry Entry) (bool, error)
}

// Client fetches status list credentials over HTTP and checks entries
// against them. Fetched lists are cached briefly.
type Client struct {
	httpClient *http.Client
	cache      gcache.Cache
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	cacheSize  int
	cacheTTL   time.Duration
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithListCache sets how many lists are cached and for how long. A zero ttl
// disables caching.
func WithListCache(size int, ttl time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.cacheSize = size
		c.cacheTTL = ttl
	}
}

// NewClient creates a status client.
func NewClient(opts ...ClientOption) *Client {
	cfg := clientConfig{
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cacheSize: 64,
		cacheTTL:  time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Client{httpClient: cfg.httpClient}
	if cfg.cacheTTL > 0 && cfg.cacheSize > 0 {
		c.cache = gcache.New(cfg.cacheSize).LRU().Expiration(cfg.cacheTTL).Build()
	}
	return c
}

// IsRevoked implements Checker. Entries of unknown type or with a purpose
// other than revocation never revoke.
func (c *Client) IsRevoked(ctx context.Context, entry Entry) (bool, error) {
	switch entry.Type {
	case TypeStatusList2021Entry, TypeBitstringStatusListEntry:
	default:
		return false, nil
	}
	if entry.StatusPurpose != "" && entry.StatusPurpose != PurposeRevocation {
		return false, nil
	}

	position, err := strconv.Atoi(entry.StatusListIndex)
	if err != nil {
		return false, fmt.Errorf("invalid statusListIndex %q: %w", entry.StatusListIndex, err)
	}

	list, err := c.FetchStatusListCredential(ctx, entry.StatusListCredential)
	if err != nil {
		return false, err
	}

	return IsRevoked(position, list.CredentialSubject)
}

// FetchStatusListCredential fetches and parses the status list credential
// located at the given statusListCredential URL.
func (c *Client) FetchStatusListCredential(ctx context.Context, statusListCredentialURL string) (*StatusListCredential, error) {
	if statusListCredentialURL == "" {
		return nil, fmt.Errorf("statusListCredential URL is empty")
	}

	if c.cache != nil {
		if v, err := c.cache.Get(statusListCredentialURL); err == nil {
			return v.(*StatusListCredential), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusListCredentialURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status list request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call status list credential endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status list credential API returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status list credential response body: %w", err)
	}

	list, err := decodeStatusList(body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		_ = c.cache.Set(statusListCredentialURL, list)
	}
	return list, nil
}

// decodeStatusList accepts the bare list credential or one wrapped in data.
func decodeStatusList(body []byte) (*StatusListCredential, error) {
	var wrapped StatusListCredentialResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status list credential JSON: %w", err)
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}

	var list StatusListCredential
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status list credential JSON: %w", err)
	}
	if list.CredentialSubject.EncodedList == "" {
		return nil, fmt.Errorf("status list credential has no encodedList")
	}
	return &list, nil
}

// IsRevoked checks whether a credential is revoked based on the encoded list
// and a given status position (index in the bitstring).
func IsRevoked(position int, subject StatusListCredentialSubject) (bool, error) {
	if subject.StatusPurpose != PurposeRevocation {
		return false, nil
	}

	list, err := util.DecompressFromBase64URL(subject.EncodedList)
	if err != nil {
		return false, err
	}

	return util.BitAt(list, position)
}
