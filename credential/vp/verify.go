package vp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pilacorp/go-ethr-vc/credential/common/resolver"
	"github.com/pilacorp/go-ethr-vc/credential/common/suite"
	"github.com/pilacorp/go-ethr-vc/credential/vc"
)

// VerifyOption configures presentation verification.
type VerifyOption func(*verifyOptions)

type verifyOptions struct {
	registry    *suite.Registry
	challenge   *string
	domain      *string
	now         func() time.Time
	concurrency int
	credOpts    []vc.VerifyOption
}

// WithRegistry sets the proof suite registry. Defaults to suite.Default().
func WithRegistry(reg *suite.Registry) VerifyOption {
	return func(o *verifyOptions) {
		o.registry = reg
	}
}

// WithChallenge requires the holder proof challenge to equal challenge.
func WithChallenge(challenge string) VerifyOption {
	return func(o *verifyOptions) {
		o.challenge = &challenge
	}
}

// WithDomain requires the holder proof domain to equal domain.
func WithDomain(domain string) VerifyOption {
	return func(o *verifyOptions) {
		o.domain = &domain
	}
}

// WithClock sets the clock expiration is evaluated against, for the
// presentation and every credential.
func WithClock(now func() time.Time) VerifyOption {
	return func(o *verifyOptions) {
		o.now = now
	}
}

// WithConcurrency bounds how many proofs are verified at once. Zero or less
// means unbounded.
func WithConcurrency(n int) VerifyOption {
	return func(o *verifyOptions) {
		o.concurrency = n
	}
}

// WithCredentialOptions passes options to the verification of each embedded
// credential.
func WithCredentialOptions(opts ...vc.VerifyOption) VerifyOption {
	return func(o *verifyOptions) {
		o.credOpts = append(o.credOpts, opts...)
	}
}

// Result is the outcome of verifying a presentation: the holder proof plus
// one result per embedded credential, in order.
type Result struct {
	Verified    bool
	Holder      string
	Proof       suite.Outcome
	Credentials []*vc.Result
	// Err joins every failure reason, nil when verified.
	Err error
}

// Reason returns a printable failure reason, or "" when verified.
func (r *Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Verify verifies the holder proof and every embedded credential
// concurrently. The holder proof must be made with a key controlled by the
// holder.
func (p *Presentation) Verify(ctx context.Context, r resolver.Resolver, opts ...VerifyOption) *Result {
	o := &verifyOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = suite.Default()
	}

	proofOpts := []suite.VerifyOption{suite.WithExpectedController(p.Holder())}
	if o.challenge != nil {
		proofOpts = append(proofOpts, suite.WithChallenge(*o.challenge))
	}
	if o.domain != nil {
		proofOpts = append(proofOpts, suite.WithDomain(*o.domain))
	}

	credOpts := append([]vc.VerifyOption{vc.WithRegistry(o.registry)}, o.credOpts...)
	if o.now != nil {
		proofOpts = append(proofOpts, suite.WithClock(o.now))
		credOpts = append(credOpts, vc.WithSuiteOptions(suite.WithClock(o.now)))
	}

	res := &Result{Holder: p.Holder(), Credentials: make([]*vc.Result, len(p.credentials))}

	var g errgroup.Group
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}

	g.Go(func() error {
		res.Proof = o.registry.Verify(ctx, p.doc, r, proofOpts...)
		return nil
	})
	for i, c := range p.credentials {
		g.Go(func() error {
			res.Credentials[i] = c.Verify(ctx, r, credOpts...)
			return nil
		})
	}
	_ = g.Wait()

	errs := []error{}
	if res.Proof.Err != nil {
		errs = append(errs, fmt.Errorf("presentation proof: %w", res.Proof.Err))
	}
	for i, cr := range res.Credentials {
		if cr.Err != nil {
			errs = append(errs, fmt.Errorf("credential %d (%s): %w", i, cr.ID, cr.Err))
		}
	}

	res.Err = errors.Join(errs...)
	res.Verified = res.Err == nil
	return res
}
