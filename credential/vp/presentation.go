// Package vp builds, signs and verifies Verifiable Presentations.
package vp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/model"
	"github.com/pilacorp/go-ethr-vc/credential/common/suite"
	"github.com/pilacorp/go-ethr-vc/credential/vc"
	"github.com/pilacorp/go-ethr-vc/did"
)

// TypePresentation is the base presentation type.
const TypePresentation = "VerifiablePresentation"

// ErrHolderMismatch is returned when a key that the holder does not control
// is used to sign.
var ErrHolderMismatch = errors.New("signing key is not controlled by the holder")

// PresentationContents represents the structured contents of a Presentation.
type PresentationContents struct {
	Context               []any
	ID                    string
	Types                 []string
	Holder                string
	VerifiableCredentials []*vc.Credential
}

// Presentation is a holder-signed envelope of credentials.
type Presentation struct {
	doc         jsonmap.JSONMap
	credentials []*vc.Credential
}

// NewPresentation builds an unsigned presentation. A missing id, context or
// type is filled with the defaults.
func NewPresentation(contents PresentationContents) (*Presentation, error) {
	if contents.ID == "" {
		contents.ID = "urn:uuid:" + uuid.NewString()
	}
	if len(contents.Context) == 0 {
		contents.Context = []any{vc.ContextV1}
	}
	if len(contents.Types) == 0 {
		contents.Types = []string{TypePresentation}
	}

	doc, err := serializePresentationContents(&contents)
	if err != nil {
		return nil, fmt.Errorf("failed to build presentation: %w", err)
	}
	return fromDocument(doc)
}

// ParsePresentation parses a JSON presentation, embedded credentials
// included.
func ParsePresentation(raw []byte) (*Presentation, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("failed to parse presentation: input is empty")
	}

	doc, err := jsonmap.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse presentation: %w", err)
	}
	return fromDocument(doc)
}

func fromDocument(doc jsonmap.JSONMap) (*Presentation, error) {
	var contents PresentationContents
	if err := parsePresentationContents(doc, &contents); err != nil {
		return nil, fmt.Errorf("failed to parse presentation: %w", err)
	}
	return &Presentation{doc: doc, credentials: contents.VerifiableCredentials}, nil
}

// Document returns a copy of the presentation document.
func (p *Presentation) Document() (jsonmap.JSONMap, error) {
	return p.doc.Clone()
}

// ToJSON serializes the presentation.
func (p *Presentation) ToJSON() ([]byte, error) {
	return p.doc.ToJSON()
}

// MarshalJSON implements json.Marshaler.
func (p *Presentation) MarshalJSON() ([]byte, error) {
	return p.ToJSON()
}

// ID returns the presentation id.
func (p *Presentation) ID() string {
	return p.doc.String("id")
}

// Holder returns the holder DID.
func (p *Presentation) Holder() string {
	return p.doc.String("holder")
}

// Credentials returns the embedded credentials.
func (p *Presentation) Credentials() []*vc.Credential {
	return p.credentials
}

// Proof returns the holder proof.
func (p *Presentation) Proof() (model.Proof, error) {
	return p.doc.Proof()
}

// DIDs returns the normalized holder and issuer DIDs, without duplicates,
// holder first.
func (p *Presentation) DIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if id == "" {
			return
		}
		n := did.Normalize(id)
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}

	add(p.Holder())
	for _, c := range p.credentials {
		add(c.Issuer())
	}
	return out
}

// AddProof signs the presentation for authentication with the holder key
// described by kd, binding it to the verifier's challenge and domain.
func (p *Presentation) AddProof(ctx context.Context, reg *suite.Registry, kd suite.KeyDocument, challenge, domain string) error {
	if reg == nil {
		reg = suite.Default()
	}

	base, _ := did.SplitURL(kd.ID)
	if did.Normalize(base) != did.Normalize(p.Holder()) {
		return fmt.Errorf("%w: %s does not belong to %q", ErrHolderMismatch, kd.ID, p.Holder())
	}

	opts := []suite.IssueOption{suite.WithPurpose(model.PurposeAuthentication)}
	if challenge != "" {
		opts = append(opts, suite.WithProofChallenge(challenge))
	}
	if domain != "" {
		opts = append(opts, suite.WithProofDomain(domain))
	}

	signed, err := reg.Issue(ctx, kd, p.doc, opts...)
	if err != nil {
		return fmt.Errorf("failed to add proof: %w", err)
	}

	p.doc = signed
	return nil
}
