// Package disclosure derives selective disclosure credentials from BBS+
// signed credentials.
//
// A derived credential keeps the envelope of the original (everything but
// credentialSubject and proof), reveals only the requested subject
// attributes and carries a BbsBlsSignatureProof2020 proof bound to a nonce.
// Derived credentials are terminal: hidden attributes cannot be revealed
// from them later.
package disclosure

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pilacorp/go-ethr-vc/credential/common/crypto"
	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/model"
	"github.com/pilacorp/go-ethr-vc/credential/common/resolver"
	"github.com/pilacorp/go-ethr-vc/credential/common/suite"
	"github.com/pilacorp/go-ethr-vc/credential/vc"
	"github.com/pilacorp/go-ethr-vc/did"
)

var (
	// ErrAlreadyDerived is returned when deriving from a derived credential.
	ErrAlreadyDerived = errors.New("credential is already derived")
	// ErrNotDerivable is returned for credentials without a BBS+ signature.
	ErrNotDerivable = errors.New("credential has no BBS+ signature")
	// ErrUnknownPath is returned for a revealed path no subject attribute
	// matches.
	ErrUnknownPath = errors.New("unknown attribute path")
)

// Engine derives selective disclosure credentials. The resolver supplies the
// issuer public key the derived proof is computed against.
type Engine struct {
	resolver resolver.Resolver
	registry *suite.Registry
	logger   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the registry whose canonicalizer and pairing scheme are
// used. It must match the registry the credential was signed with.
func WithRegistry(reg *suite.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an engine resolving issuer keys through r.
func New(r resolver.Resolver, opts ...Option) *Engine {
	e := &Engine{resolver: r, registry: suite.Default(), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DeriveCredential derives a credential revealing only revealedPaths of the
// subject of cred. A path selects the attribute equal to it and every
// attribute below it. An empty nonce is replaced by a random one.
func (e *Engine) DeriveCredential(ctx context.Context, cred *vc.Credential, revealedPaths []string, nonce []byte) (*vc.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	proof, err := cred.Proof()
	if err != nil {
		return nil, fmt.Errorf("failed to derive credential: %w", err)
	}
	switch proof.Type {
	case suite.TypeBbsBlsSignature2020:
	case suite.TypeBbsBlsSignatureProof2020:
		return nil, ErrAlreadyDerived
	default:
		return nil, fmt.Errorf("%w: proof type %s", ErrNotDerivable, proof.Type)
	}

	doc, err := cred.Document()
	if err != nil {
		return nil, err
	}
	unsigned, err := doc.Without(jsonmap.FieldProof)
	if err != nil {
		return nil, err
	}

	messages, err := suite.BuildMessages(e.registry.Canonicalizer(), unsigned, suite.SignatureConfig(proof))
	if err != nil {
		return nil, fmt.Errorf("failed to derive credential: %w", err)
	}

	revealed, indices, err := selectLeaves(messages.Leaves, revealedPaths)
	if err != nil {
		return nil, err
	}

	signature, err := base64.StdEncoding.DecodeString(proof.ProofValue)
	if err != nil {
		return nil, fmt.Errorf("failed to decode proofValue: %w", err)
	}

	pub, err := e.issuerKey(ctx, proof.VerificationMethod)
	if err != nil {
		return nil, err
	}

	if len(nonce) == 0 {
		if nonce, err = crypto.RandomNonce(); err != nil {
			return nil, err
		}
	}

	proofValue, err := e.registry.PairingScheme().DeriveProof(messages.Messages(), signature, nonce, pub, indices)
	if err != nil {
		return nil, fmt.Errorf("failed to derive proof: %w", err)
	}

	unsigned[jsonmap.FieldSubject] = suite.BuildSubject(revealed)
	if err := unsigned.SetProof(model.Proof{
		Type:                  suite.TypeBbsBlsSignatureProof2020,
		Created:               proof.Created,
		VerificationMethod:    proof.VerificationMethod,
		ProofPurpose:          proof.ProofPurpose,
		Challenge:             proof.Challenge,
		Domain:                proof.Domain,
		ProofValue:            base64.StdEncoding.EncodeToString(proofValue),
		Nonce:                 base64.StdEncoding.EncodeToString(nonce),
		RevealedAttributeMask: indices,
	}); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("credential", cred.ID()).
		Int("revealed", len(revealed)).
		Int("hidden", len(messages.Leaves)-len(revealed)).
		Msg("derived selective disclosure credential")

	return vc.FromJSONMap(unsigned)
}

// selectLeaves returns the revealed leaves in signing order and the mask of
// revealed message indices, config and envelope included.
func selectLeaves(leaves []suite.Leaf, paths []string) ([]suite.Leaf, []int, error) {
	selected := make(map[int]struct{})
	for _, path := range paths {
		matched := false
		for i, leaf := range leaves {
			if leaf.Path == path || strings.HasPrefix(leaf.Path, path+suite.PathSeparator) {
				selected[i] = struct{}{}
				matched = true
			}
		}
		if !matched {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownPath, path)
		}
	}

	positions := make([]int, 0, len(selected))
	for i := range selected {
		positions = append(positions, i)
	}
	sort.Ints(positions)

	revealed := make([]suite.Leaf, 0, len(positions))
	indices := []int{suite.MessageIndexConfig, suite.MessageIndexEnvelope}
	for _, i := range positions {
		revealed = append(revealed, leaves[i])
		indices = append(indices, suite.FirstLeafIndex+i)
	}
	return revealed, indices, nil
}

func (e *Engine) issuerKey(ctx context.Context, methodID string) ([]byte, error) {
	method, err := resolver.ResolveMethod(ctx, e.resolver, methodID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve issuer key %s: %w", methodID, err)
	}
	if method.Type != did.TypeBls12381G2Key2020 {
		return nil, fmt.Errorf("%w: %s is a %s method", ErrNotDerivable, methodID, method.Type)
	}

	pub, err := method.RawKey()
	if err != nil {
		return nil, fmt.Errorf("failed to decode issuer key %s: %w", methodID, err)
	}
	return pub, nil
}
