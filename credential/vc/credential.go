// Package vc builds, signs and verifies W3C Verifiable Credentials issued by
// ledger-anchored DIDs.
package vc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	credentialstatus "github.com/pilacorp/go-ethr-vc/credential/common/credential-status"
	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/model"
	"github.com/pilacorp/go-ethr-vc/credential/common/schema"
	"github.com/pilacorp/go-ethr-vc/credential/common/suite"
	"github.com/pilacorp/go-ethr-vc/did"
)

// Well-known contexts and types.
const (
	ContextV1      = "https://www.w3.org/2018/credentials/v1"
	ContextBBSV1   = "https://w3id.org/security/bbs/v1"
	TypeCredential = "VerifiableCredential"
)

var (
	// ErrCredentialRevoked is returned when a status list marks the
	// credential as revoked.
	ErrCredentialRevoked = errors.New("credential revoked")
	// ErrIssuerMismatch is returned when a key that the issuer does not
	// control is used to sign.
	ErrIssuerMismatch = errors.New("signing key is not controlled by the issuer")
)

// StatusChecker reports whether a credentialStatus entry revokes a credential.
type StatusChecker = credentialstatus.Checker

// Status represents one credentialStatus entry.
type Status = credentialstatus.Entry

// CredentialContents represents the structured contents of a Credential.
type CredentialContents struct {
	Context          []any     // JSON-LD contexts
	ID               string    // Credential identifier
	Types            []string  // Credential types
	Issuer           string    // Issuer DID
	IssuanceDate     time.Time // Issuance date
	ExpirationDate   time.Time // Expiration date, zero when absent
	Subject          []Subject // Credential subjects
	Schemas          []Schema  // Credential schemas
	CredentialStatus []Status  // Credential status entries
}

// Subject represents the credentialSubject field.
type Subject struct {
	ID           string         // Subject identifier
	CustomFields map[string]any // Additional subject data
}

// Schema represents a credential schema with an ID and type.
type Schema struct {
	ID   string // Schema identifier
	Type string // Schema type
}

// Credential is a credential document, signed or not. The document is kept
// as parsed so that fields this package does not model survive signing and
// verification untouched.
type Credential struct {
	doc jsonmap.JSONMap
}

// NewCredential builds an unsigned credential from contents. A missing id,
// context or type is filled with the defaults.
func NewCredential(contents CredentialContents) (*Credential, error) {
	if contents.ID == "" {
		contents.ID = "urn:uuid:" + uuid.NewString()
	}
	if len(contents.Context) == 0 {
		contents.Context = []any{ContextV1}
	}
	if len(contents.Types) == 0 {
		contents.Types = []string{TypeCredential}
	}
	if contents.IssuanceDate.IsZero() {
		contents.IssuanceDate = time.Now()
	}

	doc, err := serializeCredentialContents(&contents)
	if err != nil {
		return nil, fmt.Errorf("failed to build credential: %w", err)
	}
	return &Credential{doc: doc}, nil
}

// ParseCredential parses a JSON credential.
func ParseCredential(raw []byte) (*Credential, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("failed to parse credential: input is empty")
	}

	doc, err := jsonmap.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential: %w", err)
	}
	return FromJSONMap(doc)
}

// FromJSONMap wraps an already decoded credential document.
func FromJSONMap(doc jsonmap.JSONMap) (*Credential, error) {
	doc, err := doc.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential: %w", err)
	}

	var contents CredentialContents
	if err := parseCredentialContents(doc, &contents); err != nil {
		return nil, fmt.Errorf("failed to parse credential: %w", err)
	}
	return &Credential{doc: doc}, nil
}

// Document returns a copy of the credential document.
func (c *Credential) Document() (jsonmap.JSONMap, error) {
	return c.doc.Clone()
}

// ToJSON serializes the credential.
func (c *Credential) ToJSON() ([]byte, error) {
	return c.doc.ToJSON()
}

// MarshalJSON implements json.Marshaler.
func (c *Credential) MarshalJSON() ([]byte, error) {
	return c.ToJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Credential) UnmarshalJSON(data []byte) error {
	parsed, err := ParseCredential(data)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

var _ json.Marshaler = (*Credential)(nil)

// ID returns the credential id.
func (c *Credential) ID() string {
	return c.doc.String("id")
}

// Issuer returns the issuer DID. Both the string form and the {"id": ...}
// object form are accepted.
func (c *Credential) Issuer() string {
	return issuerID(c.doc["issuer"])
}

// Contents parses the structured contents.
func (c *Credential) Contents() (CredentialContents, error) {
	var contents CredentialContents
	if err := parseCredentialContents(c.doc, &contents); err != nil {
		return CredentialContents{}, err
	}
	return contents, nil
}

// Proof returns the first proof of the credential.
func (c *Credential) Proof() (model.Proof, error) {
	return c.doc.Proof()
}

// IsDerived reports whether the credential carries a selective disclosure
// proof.
func (c *Credential) IsDerived() bool {
	proof, err := c.doc.Proof()
	return err == nil && proof.Type == suite.TypeBbsBlsSignatureProof2020
}

// AddProof signs the credential with the issuer key described by kd. The key
// must belong to the issuer DID. An existing proof is replaced.
func (c *Credential) AddProof(ctx context.Context, reg *suite.Registry, kd suite.KeyDocument, opts ...suite.IssueOption) error {
	if reg == nil {
		reg = suite.Default()
	}

	base, _ := did.SplitURL(kd.ID)
	issuer := c.Issuer()
	if issuer == "" || did.Normalize(base) != did.Normalize(issuer) {
		return fmt.Errorf("%w: %s does not belong to %q", ErrIssuerMismatch, kd.ID, issuer)
	}

	signed, err := reg.Issue(ctx, kd, c.doc, opts...)
	if err != nil {
		return fmt.Errorf("failed to add proof: %w", err)
	}

	c.doc = signed
	return nil
}

// ValidateSchema validates the credential against its JsonSchema entries.
func (c *Credential) ValidateSchema(v *schema.Validator) error {
	contents, err := c.Contents()
	if err != nil {
		return err
	}

	var ids []string
	for _, s := range contents.Schemas {
		if s.Type == schema.TypeJSONSchema {
			ids = append(ids, s.ID)
		}
	}

	unsigned, err := c.doc.Without(jsonmap.FieldProof)
	if err != nil {
		return err
	}
	return v.Validate(unsigned, ids...)
}
