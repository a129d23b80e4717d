package resolver

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-ethr-vc/did"
)

// Offline synthesizes the default document of an identity from the
// identifier alone, without ledger access. Its answers are correct for
// identities that were never modified on the ledger.
//
// Pairing keys cannot be recovered from an address, so they are admitted
// through AddPairingKey and only when they commit to the secondary address.
type Offline struct {
	chainID  int64
	methods  []string
	networks []string

	mu          sync.RWMutex
	pairingKeys map[string][]byte
}

// OfflineOption configures an Offline resolver.
type OfflineOption func(*Offline)

// WithMethods restricts the DID methods served. Defaults to "ethr".
func WithMethods(methods ...string) OfflineOption {
	return func(o *Offline) {
		o.methods = methods
	}
}

// WithNetworks restricts the network tags served. Defaults to any.
func WithNetworks(networks ...string) OfflineOption {
	return func(o *Offline) {
		o.networks = networks
	}
}

// NewOffline creates an offline resolver for chainID.
func NewOffline(chainID int64, opts ...OfflineOption) *Offline {
	o := &Offline{
		chainID:     chainID,
		methods:     []string{did.DefaultMethod},
		pairingKeys: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddPairingKey admits the compressed G2 key pub for the dual-address DID d.
func (o *Offline) AddPairingKey(d did.DID, pub []byte) error {
	if _, err := did.PairingMethod(d, pub); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.pairingKeys[did.Format(d)] = append([]byte(nil), pub...)
	return nil
}

// Supports implements Resolver.
func (o *Offline) Supports(id string) bool {
	d, err := parseBase(id)
	if err != nil {
		return false
	}
	if !slices.Contains(o.methods, d.Method()) {
		return false
	}
	return len(o.networks) == 0 || slices.Contains(o.networks, d.Network())
}

// Resolve implements Resolver.
func (o *Offline) Resolve(_ context.Context, id string) (*Resolution, error) {
	d, err := parseBase(id)
	if err != nil {
		return nil, err
	}
	if !o.Supports(id) {
		return nil, fmt.Errorf("%w: offline resolver does not serve %s", ErrNotFound, id)
	}

	var opts []did.DocumentOption
	o.mu.RLock()
	if pub, ok := o.pairingKeys[did.Format(d)]; ok {
		opts = append(opts, did.WithPairingKey(pub))
	}
	o.mu.RUnlock()

	doc, err := did.GenerateDIDDocument(d, o.chainID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize document for %s: %w", d, err)
	}

	return fromDocument(doc, id)
}
