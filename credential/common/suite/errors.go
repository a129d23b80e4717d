package suite

import "errors"

// Verification failure reasons. Outcome.Err wraps one or more of these.
var (
	ErrUnknownProofType           = errors.New("unknown proof type")
	ErrVerificationMethodNotFound = errors.New("verification method not found")
	ErrSignatureInvalid           = errors.New("signature invalid")
	ErrCredentialExpired          = errors.New("credential expired")
	ErrChallengeMismatch          = errors.New("challenge mismatch")
	ErrDomainMismatch             = errors.New("domain mismatch")
	ErrNonceMismatch              = errors.New("nonce mismatch")
	ErrControllerMismatch         = errors.New("controller mismatch")
	ErrMissingProof               = errors.New("missing proof")
	ErrResolverFailure            = errors.New("resolver failure")
)

// Issuance errors.
var (
	ErrDuplicateSuite = errors.New("proof suite already registered")
	ErrDerivationOnly = errors.New("proof type is produced by derivation only")
	ErrKeyMismatch    = errors.New("key does not fit proof suite")
)
