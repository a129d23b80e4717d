package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-ethr-vc/did"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTP resolves documents through a universal-resolver style endpoint,
// GET <baseURL>/<did>.
type HTTP struct {
	baseURL string
	client  *http.Client
	methods []string
}

// HTTPOption configures an HTTP resolver.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = client
	}
}

// WithHTTPMethods restricts the DID methods served. Defaults to any.
func WithHTTPMethods(methods ...string) HTTPOption {
	return func(h *HTTP) {
		h.methods = methods
	}
}

// NewHTTP creates an HTTP resolver for baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   defaultHTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Supports implements Resolver.
func (h *HTTP) Supports(id string) bool {
	d, err := parseBase(id)
	if err != nil {
		return false
	}
	return len(h.methods) == 0 || slices.Contains(h.methods, d.Method())
}

// Resolve implements Resolver.
func (h *HTTP) Resolve(ctx context.Context, id string) (*Resolution, error) {
	base, _ := did.SplitURL(id)

	apiURL := h.baseURL + "/" + url.PathEscape(base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create DID resolver request: %w", err)
	}
	req.Header.Set("Accept", "application/did+json, application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request to DID resolver: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, base)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("DID resolver API returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from DID resolver: %w", err)
	}

	doc, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}
	if did.Normalize(doc.ID) != did.Normalize(base) {
		return nil, fmt.Errorf("DID resolver returned document %q for %q", doc.ID, base)
	}

	return fromDocument(doc, id)
}

// decodeDocument accepts either a bare document or a resolution result
// wrapping it in didDocument.
func decodeDocument(body []byte) (*did.DIDDocument, error) {
	var envelope struct {
		Document *did.DIDDocument `json:"didDocument"`
		Metadata map[string]any   `json:"didDocumentMetadata"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DID document JSON: %w", err)
	}
	if envelope.Document != nil {
		if envelope.Document.DocumentMetadata == nil {
			envelope.Document.DocumentMetadata = envelope.Metadata
		}
		return envelope.Document, nil
	}

	var doc did.DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DID document JSON: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("failed to unmarshal DID document JSON: missing id")
	}
	return &doc, nil
}
