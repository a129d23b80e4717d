package vc

import (
	"context"
	"errors"
	"fmt"

	"github.com/pilacorp/go-ethr-vc/credential/common/resolver"
	"github.com/pilacorp/go-ethr-vc/credential/common/suite"
)

// VerifyOption configures credential verification.
type VerifyOption func(*verifyOptions)

type verifyOptions struct {
	registry       *suite.Registry
	status         StatusChecker
	skipRevocation bool
	suiteOpts      []suite.VerifyOption
}

// WithRegistry sets the proof suite registry. Defaults to suite.Default().
func WithRegistry(reg *suite.Registry) VerifyOption {
	return func(o *verifyOptions) {
		o.registry = reg
	}
}

// WithStatusChecker enables revocation checks of credentialStatus entries.
func WithStatusChecker(checker StatusChecker) VerifyOption {
	return func(o *verifyOptions) {
		o.status = checker
	}
}

// WithSkipRevocation disables revocation checks even when a checker is set.
func WithSkipRevocation(skip bool) VerifyOption {
	return func(o *verifyOptions) {
		o.skipRevocation = skip
	}
}

// WithSuiteOptions passes proof policy options (challenge, nonce, clock) to
// the proof suite.
func WithSuiteOptions(opts ...suite.VerifyOption) VerifyOption {
	return func(o *verifyOptions) {
		o.suiteOpts = append(o.suiteOpts, opts...)
	}
}

func newVerifyOptions(opts []VerifyOption) *verifyOptions {
	o := &verifyOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = suite.Default()
	}
	return o
}

// Result is the outcome of verifying one credential.
type Result struct {
	ID       string
	Issuer   string
	Outcome  suite.Outcome
	Revoked  bool
	Verified bool
	// Err joins every reason the credential failed, nil when verified.
	Err error
}

// Reason returns a printable failure reason, or "" when verified.
func (r *Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Verify verifies the proof, expiration and, when a status checker is set,
// revocation status of the credential. The proof must be made with a key
// controlled by the issuer.
func (c *Credential) Verify(ctx context.Context, r resolver.Resolver, opts ...VerifyOption) *Result {
	o := newVerifyOptions(opts)
	res := &Result{ID: c.ID(), Issuer: c.Issuer()}

	var errs []error
	suiteOpts := o.suiteOpts
	if res.Issuer == "" {
		errs = append(errs, fmt.Errorf("credential has no issuer"))
	} else {
		suiteOpts = append(append([]suite.VerifyOption(nil), suiteOpts...), suite.WithExpectedController(res.Issuer))
	}

	res.Outcome = o.registry.Verify(ctx, c.doc, r, suiteOpts...)
	errs = append(errs, res.Outcome.Err)

	if o.status != nil && !o.skipRevocation {
		revoked, err := c.checkStatus(ctx, o.status)
		res.Revoked = revoked
		errs = append(errs, err)
	}

	res.Err = errors.Join(errs...)
	res.Verified = res.Err == nil
	return res
}

// checkStatus fails closed: a status that cannot be checked is an error.
func (c *Credential) checkStatus(ctx context.Context, checker StatusChecker) (bool, error) {
	contents, err := c.Contents()
	if err != nil {
		return false, fmt.Errorf("failed to check credential status: %w", err)
	}

	for _, entry := range contents.CredentialStatus {
		revoked, err := checker.IsRevoked(ctx, entry)
		if err != nil {
			return false, fmt.Errorf("failed to check credential status: %w", err)
		}
		if revoked {
			return true, fmt.Errorf("%w: %s", ErrCredentialRevoked, entry.StatusListCredential)
		}
	}
	return false, nil
}
