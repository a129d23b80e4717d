// Package did provides the identifier codec for ledger-anchored DIDs, the
// derivation of ledger addresses from public keys of both supported
// signature families, and the DID Document model.
//
// Identifiers have the textual form
//
//	did:<method>:[<network>:]0x<40-hex>[:0x<40-hex>]
//
// where the optional second address marks a dual-address DID: the first
// address is owned by an ECDSA secp256k1 key, the second commits to a
// BLS12-381 G2 (BBS+) public key.
package did

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultMethod is the DID method used when none is given.
const DefaultMethod = "ethr"

const (
	schemePrefix  = "did:"
	addressPrefix = "0x"
	addressHexLen = 2 * common.AddressLength
)

var (
	// ErrMalformedIdentifier is returned when a DID string cannot be parsed.
	ErrMalformedIdentifier = errors.New("malformed identifier")

	methodPattern  = regexp.MustCompile(`^[a-z0-9]+$`)
	networkPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// DID is a parsed decentralized identifier. The zero value is not a valid DID;
// values are built by Parse, NewDID or NewDualDID and never mutated.
type DID struct {
	method    string
	network   string
	primary   common.Address
	secondary common.Address
	dual      bool
}

// NewDID creates a single-address DID.
func NewDID(method, network string, primary common.Address) (DID, error) {
	if err := validateHead(method, network); err != nil {
		return DID{}, err
	}

	return DID{method: method, network: network, primary: primary}, nil
}

// NewDualDID creates a DID carrying one address per signature family.
func NewDualDID(method, network string, primary, secondary common.Address) (DID, error) {
	d, err := NewDID(method, network, primary)
	if err != nil {
		return DID{}, err
	}

	d.secondary = secondary
	d.dual = true

	return d, nil
}

// Parse parses the textual form of a DID.
//
// Address segments are matched case-insensitively; the network tag keeps its case.
func Parse(text string) (DID, error) {
	if !strings.HasPrefix(text, schemePrefix) {
		return DID{}, fmt.Errorf("%w: %q must start with %q", ErrMalformedIdentifier, text, schemePrefix)
	}
	if strings.ContainsAny(text, "#?/") {
		return DID{}, fmt.Errorf("%w: %q is a DID URL, not a DID", ErrMalformedIdentifier, text)
	}

	parts := strings.Split(text[len(schemePrefix):], ":")
	if len(parts) < 2 {
		return DID{}, fmt.Errorf("%w: %q has no address segment", ErrMalformedIdentifier, text)
	}

	for _, part := range parts {
		if part == "" {
			return DID{}, fmt.Errorf("%w: %q has an empty segment", ErrMalformedIdentifier, text)
		}
	}

	method, rest := parts[0], parts[1:]

	network := ""
	if !looksLikeAddress(rest[0]) {
		network, rest = rest[0], rest[1:]
	}

	if len(rest) == 0 || len(rest) > 2 {
		return DID{}, fmt.Errorf("%w: %q must carry one or two addresses, got %d", ErrMalformedIdentifier, text, len(rest))
	}

	addrs := make([]common.Address, 0, len(rest))
	for _, seg := range rest {
		addr, err := parseAddress(seg)
		if err != nil {
			return DID{}, fmt.Errorf("%w: %q: %v", ErrMalformedIdentifier, text, err)
		}
		addrs = append(addrs, addr)
	}

	if len(addrs) == 2 {
		return NewDualDID(method, network, addrs[0], addrs[1])
	}

	return NewDID(method, network, addrs[0])
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(text string) DID {
	d, err := Parse(text)
	if err != nil {
		panic(err)
	}

	return d
}

// Format returns the canonical textual form of d.
func Format(d DID) string {
	var b strings.Builder

	b.WriteString(schemePrefix)
	b.WriteString(d.method)
	if d.network != "" {
		b.WriteByte(':')
		b.WriteString(d.network)
	}
	b.WriteByte(':')
	b.WriteString(formatAddress(d.primary))
	if d.dual {
		b.WriteByte(':')
		b.WriteString(formatAddress(d.secondary))
	}

	return b.String()
}

// String implements fmt.Stringer.
func (d DID) String() string {
	return Format(d)
}

// Method returns the DID method, e.g. "ethr".
func (d DID) Method() string { return d.method }

// Network returns the network tag or an empty string.
func (d DID) Network() string { return d.network }

// Primary returns the address owned by the ECDSA key.
func (d DID) Primary() common.Address { return d.primary }

// Secondary returns the pairing-key address of a dual-address DID.
func (d DID) Secondary() (common.Address, bool) {
	return d.secondary, d.dual
}

// IsDual reports whether d carries a secondary address.
func (d DID) IsDual() bool { return d.dual }

// IsZero reports whether d is the zero value.
func (d DID) IsZero() bool { return d.method == "" }

// Equal reports whether both identifiers denote the same DID.
func (d DID) Equal(other DID) bool {
	return d.method == other.method &&
		d.network == other.network &&
		d.primary == other.primary &&
		d.dual == other.dual &&
		d.secondary == other.secondary
}

// MarshalText implements encoding.TextMarshaler.
func (d DID) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: empty DID", ErrMalformedIdentifier)
	}

	return []byte(Format(d)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// SplitURL splits a DID URL into the DID and its fragment (without '#').
func SplitURL(id string) (string, string) {
	base, fragment, _ := strings.Cut(id, "#")
	return base, fragment
}

// Normalize returns the canonical form of id when it parses as a DID, and id
// unchanged otherwise.
func Normalize(id string) string {
	d, err := Parse(id)
	if err != nil {
		return id
	}

	return Format(d)
}

func validateHead(method, network string) error {
	if !methodPattern.MatchString(method) {
		return fmt.Errorf("%w: invalid method %q", ErrMalformedIdentifier, method)
	}
	if network == "" {
		return nil
	}
	if !networkPattern.MatchString(network) || looksLikeAddress(network) {
		return fmt.Errorf("%w: invalid network %q", ErrMalformedIdentifier, network)
	}

	return nil
}

// looksLikeAddress reports whether seg has the shape of an address segment.
func looksLikeAddress(seg string) bool {
	return len(seg) == len(addressPrefix)+addressHexLen && strings.EqualFold(seg[:2], addressPrefix)
}

func parseAddress(seg string) (common.Address, error) {
	if !strings.HasPrefix(seg, addressPrefix) {
		return common.Address{}, fmt.Errorf("address %q must be %s-prefixed", seg, addressPrefix)
	}
	if len(seg) != len(addressPrefix)+addressHexLen || !common.IsHexAddress(seg) {
		return common.Address{}, fmt.Errorf("address %q must be %d hex characters", seg, addressHexLen)
	}

	return common.HexToAddress(seg), nil
}

func formatAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
