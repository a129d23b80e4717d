package resolver

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-ethr-vc/did"
	"github.com/pilacorp/go-ethr-vc/did/registry"
)

const (
	delegateFragmentPrefix = "delegate-"
	delegateTypeVeriKey    = "veriKey"
	delegateTypeSigAuth    = "sigAuth"
)

// Ledger builds documents from the registry state of an identity: its
// current owner, published key attributes and delegates. It is the
// authoritative resolver.
type Ledger struct {
	reader   registry.Reader
	chainID  int64
	networks []string
	now      func() time.Time
	logger   zerolog.Logger
}

// LedgerOption configures a Ledger resolver.
type LedgerOption func(*Ledger)

// WithLedgerNetworks restricts the network tags served. Defaults to any.
func WithLedgerNetworks(networks ...string) LedgerOption {
	return func(l *Ledger) {
		l.networks = networks
	}
}

// WithLedgerClock sets the clock attribute validity is evaluated against.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithLedgerLogger sets the logger.
func WithLedgerLogger(logger zerolog.Logger) LedgerOption {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// NewLedger creates a ledger resolver reading through reader.
func NewLedger(reader registry.Reader, chainID int64, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		reader:  reader,
		chainID: chainID,
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Supports implements Resolver.
func (l *Ledger) Supports(id string) bool {
	d, err := parseBase(id)
	if err != nil || d.Method() != did.DefaultMethod {
		return false
	}
	return len(l.networks) == 0 || slices.Contains(l.networks, d.Network())
}

// Resolve implements Resolver.
func (l *Ledger) Resolve(ctx context.Context, id string) (*Resolution, error) {
	d, err := parseBase(id)
	if err != nil {
		return nil, err
	}

	state, err := l.reader.ReadIdentity(ctx, d.Primary())
	if err != nil {
		return nil, fmt.Errorf("failed to read identity %s: %w", d, err)
	}

	doc := l.buildDocument(d, state)

	l.logger.Debug().
		Str("did", doc.ID).
		Int("methods", len(doc.VerificationMethod)).
		Bool("deactivated", doc.Deactivated()).
		Msg("resolved document from ledger")

	return fromDocument(doc, id)
}

func (l *Ledger) buildDocument(d did.DID, state *registry.Identity) *did.DIDDocument {
	id := did.Format(d)

	if state.Deactivated() {
		return &did.DIDDocument{
			Context:            append([]string(nil), did.DefaultContext...),
			ID:                 id,
			VerificationMethod: []did.VerificationMethod{},
			Authentication:     []string{},
			AssertionMethod:    []string{},
			DocumentMetadata:   map[string]any{"deactivated": true},
		}
	}

	controllerID := did.ControllerMethodID(d)
	doc := &did.DIDDocument{
		Context: append([]string(nil), did.DefaultContext...),
		ID:      id,
		VerificationMethod: []did.VerificationMethod{{
			ID:                  controllerID,
			Type:                did.TypeEcdsaRecoveryMethod2020,
			Controller:          id,
			BlockchainAccountID: did.BlockchainAccountID(l.chainID, state.Owner),
		}},
		Authentication:  []string{controllerID},
		AssertionMethod: []string{controllerID},
	}
	if state.Changed != 0 {
		doc.DocumentMetadata = map[string]any{"versionId": strconv.FormatUint(state.Changed, 10)}
	}

	now := l.now()
	counter := 0
	nextID := func() string {
		counter++
		return id + "#" + delegateFragmentPrefix + strconv.Itoa(counter)
	}

	for _, delegate := range state.ActiveDelegates(now) {
		if delegate.Type != delegateTypeVeriKey && delegate.Type != delegateTypeSigAuth {
			continue
		}

		vm := did.VerificationMethod{
			ID:                  nextID(),
			Type:                did.TypeEcdsaRecoveryMethod2020,
			Controller:          id,
			BlockchainAccountID: did.BlockchainAccountID(l.chainID, delegate.Delegate),
		}
		doc.VerificationMethod = append(doc.VerificationMethod, vm)
		doc.AssertionMethod = append(doc.AssertionMethod, vm.ID)
		if delegate.Type == delegateTypeSigAuth {
			doc.Authentication = append(doc.Authentication, vm.ID)
		}
	}

	blsKeyTaken, hasPairing := false, false
	for _, attr := range state.ActiveAttributes(now) {
		name, err := registry.ParseKeyAttribute(attr.Name)
		if err != nil {
			continue
		}

		vm, err := l.attributeMethod(d, name, attr.Value, &blsKeyTaken, nextID)
		if err != nil {
			l.logger.Debug().Err(err).Str("did", id).Str("attribute", attr.Name).Msg("skipping attribute")
			continue
		}

		if vm.Type == did.TypeBls12381G2Key2020 {
			hasPairing = true
		}
		doc.VerificationMethod = append(doc.VerificationMethod, *vm)
		doc.AssertionMethod = append(doc.AssertionMethod, vm.ID)
		if name.Purpose == registry.PurposeSigAuth {
			doc.Authentication = append(doc.Authentication, vm.ID)
		}
	}

	if hasPairing {
		doc.Context = append(doc.Context, did.PairingContext)
	}

	return doc
}

// attributeMethod maps a key attribute to a verification method. The first
// pairing key that commits to the secondary address of a dual-address DID
// takes the canonical #bls-key id.
func (l *Ledger) attributeMethod(d did.DID, name registry.KeyAttribute, value []byte, blsKeyTaken *bool, nextID func() string) (*did.VerificationMethod, error) {
	id := did.Format(d)

	switch name.KeyType {
	case registry.KeyTypeSecp256k1:
		vm := &did.VerificationMethod{ID: nextID(), Type: did.TypeEcdsaVerificationKey2019, Controller: id}
		encodeKey(vm, name.Encoding, value)
		return vm, nil
	case registry.KeyTypeBls12381G2:
		if !*blsKeyTaken {
			if vm, err := did.PairingMethod(d, value); err == nil {
				*blsKeyTaken = true
				return vm, nil
			}
		}

		if _, err := did.DeriveAddress(did.KeyMaterial{Algorithm: did.AlgorithmPairingG2, PublicKey: value}); err != nil {
			return nil, err
		}

		vm := &did.VerificationMethod{ID: nextID(), Type: did.TypeBls12381G2Key2020, Controller: id}
		encodeKey(vm, name.Encoding, value)
		return vm, nil
	default:
		return nil, fmt.Errorf("unsupported key type %q", name.KeyType)
	}
}

// encodeKey stores value in the document field named by encoding. base64
// has no document field of its own and is re-encoded as base58.
func encodeKey(vm *did.VerificationMethod, encoding string, value []byte) {
	switch encoding {
	case registry.EncodingHex:
		vm.PublicKeyHex = hex.EncodeToString(value)
	default:
		vm.PublicKeyBase58 = base58.Encode(value)
	}
}
