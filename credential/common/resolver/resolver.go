// Package resolver maps DIDs and DID URLs to DID documents and verification
// methods. Implementations range from pure computation (Offline) to ledger
// reads (Ledger) and remote endpoints (HTTP).
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/pilacorp/go-ethr-vc/did"
)

// ErrNotFound is returned when a document or a fragment of it does not exist.
var ErrNotFound = errors.New("not found")

// Resolution is the result of resolving an identifier: Document for a bare
// DID, Method (and its Document) for a DID URL with a fragment.
type Resolution struct {
	Document *did.DIDDocument
	Method   *did.VerificationMethod
}

// Resolver resolves identifiers.
type Resolver interface {
	// Supports reports whether the resolver handles id, without I/O.
	Supports(id string) bool
	// Resolve resolves a DID or DID URL.
	Resolve(ctx context.Context, id string) (*Resolution, error)
}

// ResolveMethod resolves a verification method id through r.
func ResolveMethod(ctx context.Context, r Resolver, id string) (*did.VerificationMethod, error) {
	if _, fragment := did.SplitURL(id); fragment == "" {
		return nil, fmt.Errorf("%w: %q has no fragment", ErrNotFound, id)
	}

	res, err := r.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Method == nil {
		return nil, fmt.Errorf("%w: method %s", ErrNotFound, id)
	}

	return res.Method, nil
}

// fromDocument answers id out of doc, selecting the fragment when present.
func fromDocument(doc *did.DIDDocument, id string) (*Resolution, error) {
	_, fragment := did.SplitURL(id)
	if fragment == "" {
		return &Resolution{Document: doc}, nil
	}

	vm, ok := doc.FindMethod(id)
	if !ok {
		return nil, fmt.Errorf("%w: method %s", ErrNotFound, id)
	}

	return &Resolution{Document: doc, Method: vm}, nil
}

// parseBase parses the DID part of id.
func parseBase(id string) (did.DID, error) {
	base, _ := did.SplitURL(id)
	return did.Parse(base)
}
