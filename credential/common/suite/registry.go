package suite

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-ethr-vc/credential/common/crypto"
	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/model"
	"github.com/pilacorp/go-ethr-vc/credential/common/processor"
	"github.com/pilacorp/go-ethr-vc/credential/common/resolver"
	"github.com/pilacorp/go-ethr-vc/did"
)

// Expiration fields, in order of preference.
var expirationFields = []string{"expirationDate", "validUntil"}

// Registry maps proof types to suites. It is populated before first use
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	suites        map[string]Suite
	byKeyType     map[string]Suite
	canonicalizer processor.Canonicalizer
	scheme        crypto.PairingScheme
}

// NewRegistry creates a registry holding the built-in suites.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		suites:        make(map[string]Suite),
		byKeyType:     make(map[string]Suite),
		canonicalizer: processor.Default(),
		scheme:        crypto.NewBBS(),
	}
	for _, opt := range opts {
		opt(r)
	}

	// Order matters: the signature suite owns Bls12381G2Key2020 for issuance.
	for _, s := range []Suite{
		NewEcdsaRecovery(r.canonicalizer),
		NewBbsSignature(r.canonicalizer, r.scheme),
		NewBbsSignatureProof(r.canonicalizer, r.scheme),
	} {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}

	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry with the built-in suites.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register adds a suite. It must not be called concurrently with use.
func (r *Registry) Register(s Suite) error {
	if _, ok := r.suites[s.Type()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSuite, s.Type())
	}

	r.suites[s.Type()] = s
	for _, keyType := range s.KeyTypes() {
		if _, ok := r.byKeyType[keyType]; !ok {
			r.byKeyType[keyType] = s
		}
	}
	return nil
}

// Lookup returns the suite for a proof type.
func (r *Registry) Lookup(proofType string) (Suite, error) {
	s, ok := r.suites[proofType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProofType, proofType)
	}
	return s, nil
}

// Canonicalizer returns the canonicalizer of the built-in suites.
func (r *Registry) Canonicalizer() processor.Canonicalizer { return r.canonicalizer }

// PairingScheme returns the BBS+ implementation of the built-in suites.
func (r *Registry) PairingScheme() crypto.PairingScheme { return r.scheme }

// Issue signs a copy of doc with the suite selected by the key document type
// and returns it with the proof attached. An existing proof is replaced.
func (r *Registry) Issue(ctx context.Context, kd KeyDocument, doc jsonmap.JSONMap, opts ...IssueOption) (jsonmap.JSONMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, ok := r.byKeyType[kd.Type]
	if !ok {
		return nil, fmt.Errorf("%w: no suite signs with %q", ErrUnknownProofType, kd.Type)
	}
	if kd.ID == "" {
		return nil, fmt.Errorf("failed to issue proof: key document has no id")
	}

	cfg := newIssueConfig(opts)
	proof := model.Proof{
		Type:               s.Type(),
		Created:            cfg.created.UTC().Format(time.RFC3339),
		VerificationMethod: kd.ID,
		ProofPurpose:       cfg.purpose,
		Challenge:          cfg.challenge,
		Domain:             cfg.domain,
	}

	unsigned, err := doc.Without(jsonmap.FieldProof)
	if err != nil {
		return nil, err
	}

	value, err := s.Sign(ctx, unsigned, kd.Key, proof)
	if err != nil {
		return nil, fmt.Errorf("failed to issue %s proof: %w", s.Type(), err)
	}
	proof.ProofValue = value

	if err := unsigned.SetProof(proof); err != nil {
		return nil, err
	}
	return unsigned, nil
}

// Outcome is the result of verifying one proof. A failed verification is an
// outcome, not an error: Err carries the reason.
type Outcome struct {
	Verified           bool
	ProofType          string
	VerificationMethod string
	// Controller is the DID controlling the resolved method.
	Controller string
	Err        error
}

// Reason returns a printable failure reason, or "" when verified.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Verify verifies the proof of doc, resolving its verification method
// through res. Expiration is checked regardless of the proof result.
func (r *Registry) Verify(ctx context.Context, doc jsonmap.JSONMap, res resolver.Resolver, opts ...VerifyOption) Outcome {
	cfg := NewVerifyConfig(opts...)

	var out Outcome
	proofErr := r.verifyProof(ctx, doc, res, cfg, &out)
	expiryErr := CheckExpiration(doc, cfg.Now())

	out.Err = errors.Join(proofErr, expiryErr)
	out.Verified = out.Err == nil
	return out
}

func (r *Registry) verifyProof(ctx context.Context, doc jsonmap.JSONMap, res resolver.Resolver, cfg VerifyConfig, out *Outcome) error {
	proof, err := doc.Proof()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingProof, err)
	}
	out.ProofType = proof.Type
	out.VerificationMethod = proof.VerificationMethod

	s, err := r.Lookup(proof.Type)
	if err != nil {
		return err
	}

	if err := checkPolicy(proof, cfg); err != nil {
		return err
	}

	method, err := resolver.ResolveMethod(ctx, res, proof.VerificationMethod)
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrVerificationMethodNotFound, err)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrResolverFailure, err)
	}

	controller := method.Controller
	if controller == "" {
		controller = method.ControllerDID()
	}
	out.Controller = did.Normalize(controller)

	if cfg.ExpectedController != "" && out.Controller != did.Normalize(cfg.ExpectedController) {
		return fmt.Errorf("%w: %s is controlled by %s, want %s", ErrControllerMismatch, method.ID, controller, cfg.ExpectedController)
	}

	if !slices.Contains(s.KeyTypes(), method.Type) {
		return fmt.Errorf("%w: %s cannot verify with a %s method", ErrSignatureInvalid, s.Type(), method.Type)
	}

	unsigned, err := doc.Without(jsonmap.FieldProof)
	if err != nil {
		return err
	}

	if err := s.Verify(ctx, unsigned, proof, method); err != nil {
		if errors.Is(err, ErrSignatureInvalid) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	return nil
}

// checkPolicy compares the proof against the verifier's challenge, domain
// and nonce. Only derived proofs carry a nonce.
func checkPolicy(proof model.Proof, cfg VerifyConfig) error {
	if cfg.Challenge != nil && proof.Challenge != *cfg.Challenge {
		return fmt.Errorf("%w: got %q", ErrChallengeMismatch, proof.Challenge)
	}
	if cfg.Domain != nil && proof.Domain != *cfg.Domain {
		return fmt.Errorf("%w: got %q", ErrDomainMismatch, proof.Domain)
	}
	if cfg.Nonce != nil && proof.Type == TypeBbsBlsSignatureProof2020 {
		nonce, err := base64.StdEncoding.DecodeString(proof.Nonce)
		if err != nil || !bytes.Equal(nonce, cfg.Nonce) {
			return ErrNonceMismatch
		}
	}
	return nil
}

// CheckExpiration fails when doc has expired at now. An unparsable
// expiration counts as expired.
func CheckExpiration(doc jsonmap.JSONMap, now time.Time) error {
	for _, field := range expirationFields {
		raw, ok := doc[field]
		if !ok || raw == nil {
			continue
		}

		s, _ := raw.(string)
		exp, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("%w: invalid %s %v", ErrCredentialExpired, field, raw)
		}
		if now.After(exp) {
			return fmt.Errorf("%w: %s %s", ErrCredentialExpired, field, s)
		}
	}
	return nil
}
