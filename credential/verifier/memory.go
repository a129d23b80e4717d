package verifier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pilacorp/go-ethr-vc/credential/common/storage"
	"github.com/pilacorp/go-ethr-vc/did"
)

// FailureMemory remembers DIDs implicated in failed verifications, so their
// next verification skips the optimistic attempt. It is advisory: a store
// that cannot be read reports every DID as unmarked.
type FailureMemory struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewFailureMemory creates a failure memory backed by store. A nil store
// means an in-memory one.
func NewFailureMemory(store storage.Store) *FailureMemory {
	if store == nil {
		store = storage.NewMemStore()
	}
	return &FailureMemory{store: store, logger: zerolog.Nop()}
}

// IsMarked reports whether id is marked.
func (m *FailureMemory) IsMarked(ctx context.Context, id string) bool {
	ok, err := m.store.Has(ctx, did.Normalize(id))
	if err != nil {
		m.logger.Warn().Err(err).Str("did", id).Msg("failure memory read failed, treating as unmarked")
		return false
	}
	return ok
}

// AnyMarked reports whether any of ids is marked.
func (m *FailureMemory) AnyMarked(ctx context.Context, ids []string) bool {
	for _, id := range ids {
		if m.IsMarked(ctx, id) {
			return true
		}
	}
	return false
}

// Mark marks every id, or none of them. Marking is idempotent.
func (m *FailureMemory) Mark(ctx context.Context, ids ...string) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, did.Normalize(id))
	}
	if err := m.store.Set(ctx, keys...); err != nil {
		return fmt.Errorf("failed to mark %v: %w", ids, err)
	}
	return nil
}

// Forget removes the mark of id.
func (m *FailureMemory) Forget(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, did.Normalize(id)); err != nil {
		return fmt.Errorf("failed to forget %s: %w", id, err)
	}
	return nil
}
