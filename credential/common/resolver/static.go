package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/pilacorp/go-ethr-vc/did"
)

// Static serves a fixed set of documents from memory.
type Static struct {
	mu   sync.RWMutex
	docs map[string]*did.DIDDocument
}

// NewStatic creates a static resolver holding docs.
func NewStatic(docs ...*did.DIDDocument) *Static {
	s := &Static{docs: make(map[string]*did.DIDDocument, len(docs))}
	for _, doc := range docs {
		s.Add(doc)
	}
	return s
}

// Add registers or replaces a document.
func (s *Static) Add(doc *did.DIDDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[did.Normalize(doc.ID)] = doc
}

// Supports implements Resolver.
func (s *Static) Supports(id string) bool {
	_, ok := s.lookup(id)
	return ok
}

// Resolve implements Resolver.
func (s *Static) Resolve(_ context.Context, id string) (*Resolution, error) {
	doc, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return fromDocument(doc, id)
}

func (s *Static) lookup(id string) (*did.DIDDocument, bool) {
	base, _ := did.SplitURL(id)

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[did.Normalize(base)]
	return doc, ok
}
