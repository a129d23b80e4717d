package did

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// Verification method types.
const (
	TypeEcdsaRecoveryMethod2020    = "EcdsaSecp256k1RecoveryMethod2020"
	TypeEcdsaVerificationKey2019   = "EcdsaSecp256k1VerificationKey2019"
	TypeBls12381G2Key2020          = "Bls12381G2Key2020"
	defaultControllerFragment      = "controller"
	defaultPairingKeyFragment      = "bls-key"
	blockchainAccountNamespace     = "eip155"
	blockchainAccountIDSeparator   = ":"
	hexPrefix                      = "0x"
	documentMetadataDeactivatedKey = "deactivated"
)

// KeyEncoding names the field a verification method carries its key in.
type KeyEncoding string

// KeyEncoding constants.
const (
	KeyEncodingNone   KeyEncoding = "none"
	KeyEncodingHex    KeyEncoding = "hex"
	KeyEncodingBase58 KeyEncoding = "base58"
)

// ErrKeyAddressMismatch is returned when a pairing key does not derive to the
// secondary address of the DID it is attached to.
var ErrKeyAddressMismatch = errors.New("key does not match identifier address")

// DefaultContext is the JSON-LD context of generated documents.
var DefaultContext = []string{
	"https://www.w3.org/ns/did/v1",
	"https://w3id.org/security/suites/secp256k1recovery-2020/v2",
}

// PairingContext is appended when a document carries a BLS12-381 key.
const PairingContext = "https://w3id.org/security/suites/bls12381-2020/v1"

// VerificationMethod is a key entry of a DID document.
type VerificationMethod struct {
	ID                  string `json:"id"`
	Type                string `json:"type"`
	Controller          string `json:"controller"`
	PublicKeyHex        string `json:"publicKeyHex,omitempty"`
	PublicKeyBase58     string `json:"publicKeyBase58,omitempty"`
	BlockchainAccountID string `json:"blockchainAccountId,omitempty"`
}

// DIDDocument is the DID document.
type DIDDocument struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	Controller         string               `json:"controller,omitempty"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []string             `json:"authentication"`
	AssertionMethod    []string             `json:"assertionMethod"`
	DocumentMetadata   map[string]any       `json:"didDocumentMetadata,omitempty"`
}

// Encoding returns the key field in use.
func (m *VerificationMethod) Encoding() KeyEncoding {
	switch {
	case m.PublicKeyBase58 != "":
		return KeyEncodingBase58
	case m.PublicKeyHex != "":
		return KeyEncodingHex
	default:
		return KeyEncodingNone
	}
}

// RawKey decodes the public key carried by the method. A method bound only by
// blockchainAccountId has no raw key and returns nil.
func (m *VerificationMethod) RawKey() ([]byte, error) {
	switch m.Encoding() {
	case KeyEncodingBase58:
		key, err := base58.Decode(m.PublicKeyBase58)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode publicKeyBase58: %v", ErrInvalidKeyEncoding, err)
		}

		return key, nil
	case KeyEncodingHex:
		key, err := hex.DecodeString(strings.TrimPrefix(m.PublicKeyHex, hexPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode publicKeyHex: %v", ErrInvalidKeyEncoding, err)
		}

		return key, nil
	default:
		return nil, nil
	}
}

// Algorithm maps the method type to a key algorithm.
func (m *VerificationMethod) Algorithm() (Algorithm, error) {
	switch m.Type {
	case TypeEcdsaRecoveryMethod2020, TypeEcdsaVerificationKey2019:
		return AlgorithmECDSASecp256k1, nil
	case TypeBls12381G2Key2020:
		return AlgorithmPairingG2, nil
	default:
		return "", fmt.Errorf("unsupported verification method type %q", m.Type)
	}
}

// Address returns the ledger address the method is bound to: the account of
// blockchainAccountId when present, the address derived from the raw key otherwise.
func (m *VerificationMethod) Address() (common.Address, error) {
	if m.BlockchainAccountID != "" {
		return ParseBlockchainAccountID(m.BlockchainAccountID)
	}

	key, err := m.RawKey()
	if err != nil {
		return common.Address{}, err
	}
	if key == nil {
		return common.Address{}, fmt.Errorf("%w: method %s carries no key material", ErrInvalidKeyEncoding, m.ID)
	}

	alg, err := m.Algorithm()
	if err != nil {
		return common.Address{}, err
	}

	return DeriveAddress(KeyMaterial{Algorithm: alg, PublicKey: key})
}

// ControllerDID returns the DID part of the method id.
func (m *VerificationMethod) ControllerDID() string {
	base, _ := SplitURL(m.ID)
	return base
}

// FindMethod looks a verification method up by its full id or by fragment.
func (doc *DIDDocument) FindMethod(id string) (*VerificationMethod, bool) {
	_, fragment := SplitURL(id)

	for i := range doc.VerificationMethod {
		vm := &doc.VerificationMethod[i]
		if vm.ID == id {
			return vm, true
		}

		if _, f := SplitURL(vm.ID); fragment != "" && f == fragment && strings.EqualFold(vm.ControllerDID(), doc.ID) {
			return vm, true
		}
	}

	return nil, false
}

// Deactivated reports whether the document metadata marks the DID as deactivated.
func (doc *DIDDocument) Deactivated() bool {
	v, _ := doc.DocumentMetadata[documentMetadataDeactivatedKey].(bool)
	return v
}

// BlockchainAccountID formats a CAIP-10 account id for addr on chainID.
func BlockchainAccountID(chainID int64, addr common.Address) string {
	return strings.Join([]string{blockchainAccountNamespace, strconv.FormatInt(chainID, 10), formatAddress(addr)}, blockchainAccountIDSeparator)
}

// ParseBlockchainAccountID extracts the address from a CAIP-10 account id.
func ParseBlockchainAccountID(id string) (common.Address, error) {
	parts := strings.Split(id, blockchainAccountIDSeparator)
	if len(parts) != 3 || parts[0] != blockchainAccountNamespace {
		return common.Address{}, fmt.Errorf("%w: invalid blockchainAccountId %q", ErrInvalidKeyEncoding, id)
	}

	addr, err := parseAddress(parts[2])
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidKeyEncoding, err)
	}

	return addr, nil
}

type documentOptions struct {
	pairingKey []byte
	metadata   map[string]any
}

// DocumentOption configures GenerateDIDDocument.
type DocumentOption func(*documentOptions)

// WithPairingKey attaches a compressed G2 public key as the #bls-key method.
func WithPairingKey(pub []byte) DocumentOption {
	return func(o *documentOptions) {
		o.pairingKey = pub
	}
}

// WithDocumentMetadata sets didDocumentMetadata.
func WithDocumentMetadata(metadata map[string]any) DocumentOption {
	return func(o *documentOptions) {
		o.metadata = metadata
	}
}

// GenerateDIDDocument builds the default document of an identity that has no
// ledger modifications: a recovery method bound to the primary address and,
// when WithPairingKey is given, a BLS12-381 key that must commit to the
// secondary address.
func GenerateDIDDocument(d DID, chainID int64, opts ...DocumentOption) (*DIDDocument, error) {
	o := &documentOptions{}
	for _, opt := range opts {
		opt(o)
	}

	id := Format(d)
	controllerID := id + "#" + defaultControllerFragment

	doc := &DIDDocument{
		Context: append([]string(nil), DefaultContext...),
		ID:      id,
		VerificationMethod: []VerificationMethod{{
			ID:                  controllerID,
			Type:                TypeEcdsaRecoveryMethod2020,
			Controller:          id,
			BlockchainAccountID: BlockchainAccountID(chainID, d.Primary()),
		}},
		Authentication:   []string{controllerID},
		AssertionMethod:  []string{controllerID},
		DocumentMetadata: o.metadata,
	}

	if o.pairingKey == nil {
		return doc, nil
	}

	vm, err := PairingMethod(d, o.pairingKey)
	if err != nil {
		return nil, err
	}

	doc.Context = append(doc.Context, PairingContext)
	doc.VerificationMethod = append(doc.VerificationMethod, *vm)
	doc.AssertionMethod = append(doc.AssertionMethod, vm.ID)

	return doc, nil
}

// PairingMethod returns the #bls-key verification method of a dual-address DID.
func PairingMethod(d DID, pub []byte) (*VerificationMethod, error) {
	secondary, ok := d.Secondary()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no secondary address", ErrKeyAddressMismatch, d)
	}

	addr, err := DeriveAddress(KeyMaterial{Algorithm: AlgorithmPairingG2, PublicKey: pub})
	if err != nil {
		return nil, fmt.Errorf("failed to derive pairing key address: %w", err)
	}
	if addr != secondary {
		return nil, fmt.Errorf("%w: pairing key derives to %s, want %s", ErrKeyAddressMismatch, formatAddress(addr), formatAddress(secondary))
	}

	id := Format(d)

	return &VerificationMethod{
		ID:              id + "#" + defaultPairingKeyFragment,
		Type:            TypeBls12381G2Key2020,
		Controller:      id,
		PublicKeyBase58: base58.Encode(pub),
	}, nil
}

// ControllerMethodID returns the id of the default recovery method of d.
func ControllerMethodID(d DID) string {
	return Format(d) + "#" + defaultControllerFragment
}

// PairingMethodID returns the id of the default pairing method of d.
func PairingMethodID(d DID) string {
	return Format(d) + "#" + defaultPairingKeyFragment
}
