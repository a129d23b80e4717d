package registry

import (
	"errors"
	"fmt"
	"strings"
)

// MaxAttributeNameLength defines the maximum length for attribute names (32 bytes).
const MaxAttributeNameLength = 32

// Attribute name segments.
const (
	attributePrefix = "did/pub/"

	PurposeVerificationKey = "veriKey"
	PurposeSigAuth         = "sigAuth"

	EncodingHex    = "hex"
	EncodingBase58 = "base58"
	EncodingBase64 = "base64"

	// Key type tags used in attribute names.
	KeyTypeSecp256k1  = "Secp256k1"
	KeyTypeBls12381G2 = "Bls12381G2"
)

// ErrUnsupportedAttribute is returned for attribute names that do not publish a key.
var ErrUnsupportedAttribute = errors.New("unsupported attribute")

// KeyAttribute is a parsed "did/pub/<type>/<purpose>/<encoding>" attribute name.
type KeyAttribute struct {
	KeyType  string
	Purpose  string
	Encoding string
}

// String formats the attribute name.
func (k KeyAttribute) String() string {
	return attributePrefix + k.KeyType + "/" + k.Purpose + "/" + k.Encoding
}

// ParseKeyAttribute parses a key attribute name. The encoding segment is
// optional and defaults to hex.
func ParseKeyAttribute(name string) (KeyAttribute, error) {
	if !strings.HasPrefix(name, attributePrefix) {
		return KeyAttribute{}, fmt.Errorf("%w: %q", ErrUnsupportedAttribute, name)
	}

	parts := strings.Split(strings.TrimPrefix(name, attributePrefix), "/")
	if len(parts) < 1 || len(parts) > 3 || parts[0] == "" {
		return KeyAttribute{}, fmt.Errorf("%w: %q", ErrUnsupportedAttribute, name)
	}

	attr := KeyAttribute{KeyType: parts[0], Purpose: PurposeVerificationKey, Encoding: EncodingHex}
	if len(parts) > 1 {
		attr.Purpose = parts[1]
	}
	if len(parts) > 2 {
		attr.Encoding = parts[2]
	}

	switch attr.KeyType {
	case KeyTypeSecp256k1, KeyTypeBls12381G2:
	default:
		return KeyAttribute{}, fmt.Errorf("%w: key type %q", ErrUnsupportedAttribute, attr.KeyType)
	}
	switch attr.Purpose {
	case PurposeVerificationKey, PurposeSigAuth:
	default:
		return KeyAttribute{}, fmt.Errorf("%w: purpose %q", ErrUnsupportedAttribute, attr.Purpose)
	}
	switch attr.Encoding {
	case EncodingHex, EncodingBase58, EncodingBase64:
	default:
		return KeyAttribute{}, fmt.Errorf("%w: encoding %q", ErrUnsupportedAttribute, attr.Encoding)
	}

	return attr, nil
}

// PairingKeyAttribute is the attribute name that publishes a BLS12-381 G2 key.
func PairingKeyAttribute() KeyAttribute {
	return KeyAttribute{KeyType: KeyTypeBls12381G2, Purpose: PurposeVerificationKey, Encoding: EncodingHex}
}

// nameToBytes32 validates and packs an attribute name.
func nameToBytes32(name string) ([32]byte, error) {
	var out [32]byte
	if name == "" {
		return out, fmt.Errorf("name is empty")
	}
	if len(name) > MaxAttributeNameLength {
		return out, fmt.Errorf("name exceeds %d bytes", MaxAttributeNameLength)
	}
	copy(out[:], name)
	return out, nil
}
