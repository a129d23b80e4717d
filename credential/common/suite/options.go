package suite

import (
	"time"

	"github.com/pilacorp/go-ethr-vc/credential/common/crypto"
	"github.com/pilacorp/go-ethr-vc/credential/common/model"
	"github.com/pilacorp/go-ethr-vc/credential/common/processor"
)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCanonicalizer sets the canonicalizer of the built-in suites. Defaults
// to JCS.
func WithCanonicalizer(c processor.Canonicalizer) RegistryOption {
	return func(r *Registry) {
		r.canonicalizer = c
	}
}

// WithPairingScheme sets the BBS+ implementation of the built-in suites.
func WithPairingScheme(scheme crypto.PairingScheme) RegistryOption {
	return func(r *Registry) {
		r.scheme = scheme
	}
}

// IssueOption configures a single Issue call.
type IssueOption func(*issueConfig)

type issueConfig struct {
	created   time.Time
	purpose   string
	challenge string
	domain    string
}

// WithCreated sets the proof creation time. Defaults to now.
func WithCreated(t time.Time) IssueOption {
	return func(c *issueConfig) {
		c.created = t
	}
}

// WithPurpose sets the proof purpose. Defaults to assertionMethod.
func WithPurpose(purpose string) IssueOption {
	return func(c *issueConfig) {
		c.purpose = purpose
	}
}

// WithProofChallenge embeds a verifier challenge into the proof.
func WithProofChallenge(challenge string) IssueOption {
	return func(c *issueConfig) {
		c.challenge = challenge
	}
}

// WithProofDomain embeds a verifier domain into the proof.
func WithProofDomain(domain string) IssueOption {
	return func(c *issueConfig) {
		c.domain = domain
	}
}

func newIssueConfig(opts []IssueOption) issueConfig {
	c := issueConfig{created: time.Now(), purpose: model.PurposeAssertionMethod}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// VerifyOption configures a single Verify call.
type VerifyOption func(*VerifyConfig)

// VerifyConfig is the verification policy applied on top of the proof check.
type VerifyConfig struct {
	Challenge          *string
	Domain             *string
	Nonce              []byte
	ExpectedController string
	Now                func() time.Time
}

// WithChallenge requires the proof challenge to equal challenge.
func WithChallenge(challenge string) VerifyOption {
	return func(c *VerifyConfig) {
		c.Challenge = &challenge
	}
}

// WithDomain requires the proof domain to equal domain.
func WithDomain(domain string) VerifyOption {
	return func(c *VerifyConfig) {
		c.Domain = &domain
	}
}

// WithExpectedNonce requires a derived proof to be bound to nonce.
func WithExpectedNonce(nonce []byte) VerifyOption {
	return func(c *VerifyConfig) {
		c.Nonce = nonce
	}
}

// WithExpectedController requires the verification method to be controlled
// by the DID id.
func WithExpectedController(id string) VerifyOption {
	return func(c *VerifyConfig) {
		c.ExpectedController = id
	}
}

// WithClock sets the clock expiration is evaluated against.
func WithClock(now func() time.Time) VerifyOption {
	return func(c *VerifyConfig) {
		c.Now = now
	}
}

// NewVerifyConfig applies opts over the defaults.
func NewVerifyConfig(opts ...VerifyOption) VerifyConfig {
	c := VerifyConfig{Now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
