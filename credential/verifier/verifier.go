// Package verifier verifies presentations and credentials optimistically:
// first through a fast, possibly stale resolver, falling back to the
// authoritative resolver only when the fast attempt fails.
//
// The final result is always one the authoritative resolver agrees with,
// except that an optimistic success is final. DIDs implicated in failures
// are remembered in a FailureMemory so that later verifications involving
// them go to the authoritative resolver directly.
package verifier

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pilacorp/go-ethr-vc/credential/common/resolver"
	"github.com/pilacorp/go-ethr-vc/credential/common/suite"
	"github.com/pilacorp/go-ethr-vc/credential/vc"
	"github.com/pilacorp/go-ethr-vc/credential/vp"
	"github.com/pilacorp/go-ethr-vc/did"
)

// State is a step of one verification.
type State int

// Verification states.
const (
	StateNotStarted State = iota
	StateOptimisticAttempted
	StateAuthoritativeAttempted
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateOptimisticAttempted:
		return "optimistic_attempted"
	case StateAuthoritativeAttempted:
		return "authoritative_attempted"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Path tells which resolvers produced the final result.
type Path string

// Verification paths.
const (
	// PathOptimistic: the optimistic attempt succeeded.
	PathOptimistic Path = "optimistic"
	// PathFallback: the optimistic attempt failed and the authoritative
	// attempt decided.
	PathFallback Path = "fallback"
	// PathAuthoritative: a marked DID routed straight to the authoritative
	// attempt.
	PathAuthoritative Path = "authoritative"
)

// Verifier runs the optimistic verification protocol. It is safe for
// concurrent use.
type Verifier struct {
	authoritative resolver.Resolver
	optimistic    resolver.Resolver
	memory        *FailureMemory
	registry      *suite.Registry
	status        vc.StatusChecker
	logger        zerolog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithOptimisticResolver sets the resolver of the optimistic attempt.
// Defaults to a cache in front of the authoritative resolver.
func WithOptimisticResolver(r resolver.Resolver) Option {
	return func(v *Verifier) {
		v.optimistic = r
	}
}

// WithFailureMemory enables remembering implicated DIDs.
func WithFailureMemory(m *FailureMemory) Option {
	return func(v *Verifier) {
		v.memory = m
	}
}

// WithRegistry sets the proof suite registry. Defaults to suite.Default().
func WithRegistry(reg *suite.Registry) Option {
	return func(v *Verifier) {
		v.registry = reg
	}
}

// WithStatusChecker enables credential revocation checks.
func WithStatusChecker(checker vc.StatusChecker) Option {
	return func(v *Verifier) {
		v.status = checker
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// New creates a verifier using authoritative as the resolver of record.
func New(authoritative resolver.Resolver, opts ...Option) *Verifier {
	v := &Verifier{
		authoritative: authoritative,
		registry:      suite.Default(),
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.optimistic == nil {
		v.optimistic = resolver.NewCached(authoritative)
	}
	if v.memory != nil {
		v.memory.logger = v.logger
	}
	return v
}

// VerifyOption configures one verification.
type VerifyOption func(*verifyOptions)

type verifyOptions struct {
	challenge      *string
	domain         *string
	nonce          []byte
	skipRevocation bool
	now            func() time.Time
}

// WithChallenge requires the presentation proof challenge to equal challenge.
func WithChallenge(challenge string) VerifyOption {
	return func(o *verifyOptions) {
		o.challenge = &challenge
	}
}

// WithDomain requires the presentation proof domain to equal domain.
func WithDomain(domain string) VerifyOption {
	return func(o *verifyOptions) {
		o.domain = &domain
	}
}

// WithNonce requires derived credentials to be bound to nonce.
func WithNonce(nonce []byte) VerifyOption {
	return func(o *verifyOptions) {
		o.nonce = nonce
	}
}

// WithSkipRevocation disables revocation checks.
func WithSkipRevocation(skip bool) VerifyOption {
	return func(o *verifyOptions) {
		o.skipRevocation = skip
	}
}

// WithClock sets the clock expiration is evaluated against.
func WithClock(now func() time.Time) VerifyOption {
	return func(o *verifyOptions) {
		o.now = now
	}
}

// Result is the outcome of one verification. Presentation or Credential
// holds the detail of the attempt that decided, depending on what was
// verified.
type Result struct {
	State State
	// Transitions lists every state entered, in order.
	Transitions []State
	Path        Path
	Verified    bool

	Presentation *vp.Result
	Credential   *vc.Result

	// OptimisticErr is the failure of the optimistic attempt when the
	// fallback was taken.
	OptimisticErr error
	// Marked lists the DIDs written to the failure memory.
	Marked []string
	Err    error
}

// Reason returns a printable failure reason, or "" when verified.
func (r *Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r *Result) enter(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

// VerifyPresentation verifies p and every credential it embeds.
func (v *Verifier) VerifyPresentation(ctx context.Context, p *vp.Presentation, opts ...VerifyOption) *Result {
	o := newVerifyOptions(opts)

	vpOpts := []vp.VerifyOption{vp.WithRegistry(v.registry), vp.WithCredentialOptions(v.credentialOptions(o)...)}
	if o.challenge != nil {
		vpOpts = append(vpOpts, vp.WithChallenge(*o.challenge))
	}
	if o.domain != nil {
		vpOpts = append(vpOpts, vp.WithDomain(*o.domain))
	}
	if o.now != nil {
		vpOpts = append(vpOpts, vp.WithClock(o.now))
	}

	return v.run(ctx, p.DIDs(), func(ctx context.Context, r resolver.Resolver) attempt {
		res := p.Verify(ctx, r, vpOpts...)

		var implicated []string
		if implicates(res.Proof.Err) {
			implicated = append(implicated, res.Holder)
		}
		for _, cr := range res.Credentials {
			if implicates(cr.Outcome.Err) {
				implicated = append(implicated, cr.Issuer)
			}
		}
		return attempt{verified: res.Verified, err: res.Err, implicated: implicated, presentation: res}
	})
}

// VerifyCredential verifies a single credential.
func (v *Verifier) VerifyCredential(ctx context.Context, c *vc.Credential, opts ...VerifyOption) *Result {
	credOpts := v.credentialOptions(newVerifyOptions(opts))

	return v.run(ctx, []string{did.Normalize(c.Issuer())}, func(ctx context.Context, r resolver.Resolver) attempt {
		res := c.Verify(ctx, r, credOpts...)

		var implicated []string
		if implicates(res.Outcome.Err) {
			implicated = append(implicated, res.Issuer)
		}
		return attempt{verified: res.Verified, err: res.Err, implicated: implicated, credential: res}
	})
}

func newVerifyOptions(opts []VerifyOption) *verifyOptions {
	o := &verifyOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (v *Verifier) credentialOptions(o *verifyOptions) []vc.VerifyOption {
	opts := []vc.VerifyOption{vc.WithRegistry(v.registry), vc.WithSkipRevocation(o.skipRevocation)}
	if v.status != nil {
		opts = append(opts, vc.WithStatusChecker(v.status))
	}

	var suiteOpts []suite.VerifyOption
	if o.nonce != nil {
		suiteOpts = append(suiteOpts, suite.WithExpectedNonce(o.nonce))
	}
	if o.now != nil {
		suiteOpts = append(suiteOpts, suite.WithClock(o.now))
	}
	if len(suiteOpts) > 0 {
		opts = append(opts, vc.WithSuiteOptions(suiteOpts...))
	}
	return opts
}

// attempt is the outcome of one verification pass through one resolver.
type attempt struct {
	verified     bool
	err          error
	implicated   []string
	presentation *vp.Result
	credential   *vc.Result
}

// implicates reports whether a proof failure points at the DID that made
// the proof, as opposed to the document or the verifier's policy.
func implicates(err error) bool {
	return errors.Is(err, suite.ErrVerificationMethodNotFound) ||
		errors.Is(err, suite.ErrSignatureInvalid) ||
		errors.Is(err, suite.ErrControllerMismatch) ||
		errors.Is(err, suite.ErrResolverFailure)
}

func (v *Verifier) run(ctx context.Context, dids []string, verify func(context.Context, resolver.Resolver) attempt) *Result {
	res := &Result{}
	res.enter(StateNotStarted)
	logger := v.logger.With().Strs("dids", dids).Logger()

	if err := ctx.Err(); err != nil {
		res.Err = err
		res.enter(StateFailed)
		return res
	}

	var implicated []string
	if v.memory != nil && v.memory.AnyMarked(ctx, dids) {
		res.Path = PathAuthoritative
		logger.Debug().Msg("marked DID involved, skipping optimistic verification")
	} else {
		res.enter(StateOptimisticAttempted)
		optimistic := verify(ctx, v.optimistic)
		if optimistic.verified {
			res.Path = PathOptimistic
			res.settle(optimistic)
			res.enter(StateSucceeded)
			return res
		}

		res.Path = PathFallback
		res.OptimisticErr = optimistic.err
		implicated = optimistic.implicated
		logger.Debug().Err(optimistic.err).Msg("optimistic verification failed, falling back to authoritative resolution")
	}

	res.enter(StateAuthoritativeAttempted)
	authoritative := verify(ctx, v.authoritative)
	res.settle(authoritative)
	implicated = append(implicated, authoritative.implicated...)

	// A canceled fallback decides nothing and writes nothing.
	if err := ctx.Err(); err != nil {
		res.Verified = false
		res.Err = errors.Join(err, res.Err)
		res.enter(StateFailed)
		return res
	}

	if v.memory != nil {
		res.Marked = v.mark(ctx, logger, implicated)
	}

	if res.Verified {
		res.enter(StateSucceeded)
	} else {
		res.enter(StateFailed)
	}
	logger.Info().
		Str("path", string(res.Path)).
		Bool("verified", res.Verified).
		Strs("marked", res.Marked).
		Msg("authoritative verification completed")
	return res
}

func (r *Result) settle(a attempt) {
	r.Verified = a.verified
	r.Err = a.err
	r.Presentation = a.presentation
	r.Credential = a.credential
}

func (v *Verifier) mark(ctx context.Context, logger zerolog.Logger, ids []string) []string {
	seen := make(map[string]struct{})
	var marked []string
	for _, id := range ids {
		n := did.Normalize(id)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		marked = append(marked, n)
	}
	if len(marked) == 0 {
		return nil
	}

	if err := v.memory.Mark(ctx, marked...); err != nil {
		logger.Warn().Err(err).Strs("dids", marked).Msg("failed to mark DIDs")
		return nil
	}
	return marked
}
