package verifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-ethr-vc/credential/common/crypto"
	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/resolver"
	"github.com/pilacorp/go-ethr-vc/credential/common/storage"
	"github.com/pilacorp/go-ethr-vc/credential/common/suite"
	"github.com/pilacorp/go-ethr-vc/credential/disclosure"
	"github.com/pilacorp/go-ethr-vc/credential/vc"
	"github.com/pilacorp/go-ethr-vc/credential/vp"
	"github.com/pilacorp/go-ethr-vc/did"
)

// staleResolver wraps a resolver and answers NotFound for DIDs it has not
// caught up with yet.
type staleResolver struct {
	next  resolver.Resolver
	calls atomic.Int32

	mu      sync.Mutex
	missing map[string]bool
}

func newStaleResolver(next resolver.Resolver, missing ...did.DID) *staleResolver {
	s := &staleResolver{next: next, missing: make(map[string]bool)}
	for _, d := range missing {
		s.missing[did.Normalize(d.String())] = true
	}
	return s
}

func (s *staleResolver) Supports(id string) bool { return s.next.Supports(id) }

func (s *staleResolver) Resolve(ctx context.Context, id string) (*resolver.Resolution, error) {
	s.calls.Add(1)

	base, _ := did.SplitURL(id)
	s.mu.Lock()
	missing := s.missing[did.Normalize(base)]
	s.mu.Unlock()
	if missing {
		return nil, resolver.ErrNotFound
	}
	return s.next.Resolve(ctx, id)
}

// countingResolver counts calls and may cancel the caller's context.
type countingResolver struct {
	next   resolver.Resolver
	calls  atomic.Int32
	cancel context.CancelFunc
}

func (c *countingResolver) Supports(id string) bool { return c.next.Supports(id) }

func (c *countingResolver) Resolve(ctx context.Context, id string) (*resolver.Resolution, error) {
	c.calls.Add(1)
	if c.cancel != nil {
		c.cancel()
		return nil, ctx.Err()
	}
	return c.next.Resolve(ctx, id)
}

type failingStore struct{ storage.Store }

func (failingStore) Has(context.Context, string) (bool, error) { return false, errors.New("disk on fire") }

// batchStore records every Set call and may refuse them.
type batchStore struct {
	*storage.MemStore
	fail bool

	mu      sync.Mutex
	batches [][]string
}

func (b *batchStore) Set(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	b.batches = append(b.batches, keys)
	b.mu.Unlock()
	if b.fail {
		return errors.New("deadline exceeded")
	}
	return b.MemStore.Set(ctx, keys...)
}

type party struct {
	did        did.DID
	ecdsaKey   did.KeyMaterial
	pairingKey did.KeyMaterial
}

type world struct {
	offline *resolver.Offline
	holder  *party
	issuers []*party
}

func newWorld(t *testing.T, issuers int) *world {
	t.Helper()

	w := &world{offline: resolver.NewOffline(1)}
	w.holder = w.newParty(t)
	for i := 0; i < issuers; i++ {
		w.issuers = append(w.issuers, w.newParty(t))
	}
	return w
}

func (w *world) newParty(t *testing.T) *party {
	t.Helper()

	ecdsaKey, err := did.GenerateECDSAKey()
	require.NoError(t, err)
	pairingKey, err := crypto.GeneratePairingKey(nil)
	require.NoError(t, err)
	d, err := did.DeriveDualDID(ecdsaKey, pairingKey, "")
	require.NoError(t, err)
	require.NoError(t, w.offline.AddPairingKey(d, pairingKey.PublicKey))

	return &party{did: d, ecdsaKey: ecdsaKey, pairingKey: pairingKey}
}

func (w *world) credential(t *testing.T, issuer *party, expires time.Time) *vc.Credential {
	t.Helper()

	cred, err := vc.NewCredential(vc.CredentialContents{
		Issuer:         issuer.did.String(),
		IssuanceDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: expires,
		Subject: []vc.Subject{{
			ID:           w.holder.did.String(),
			CustomFields: map[string]any{"firstName": "John", "lastName": "Doe", "passportNumber": "P1"},
		}},
	})
	require.NoError(t, err)
	require.NoError(t, cred.AddProof(context.Background(), nil, suite.NewPairingKeyDocument(issuer.did, issuer.pairingKey)))
	return cred
}

func (w *world) presentation(t *testing.T, creds ...*vc.Credential) *vp.Presentation {
	t.Helper()

	p, err := vp.NewPresentation(vp.PresentationContents{Holder: w.holder.did.String(), VerifiableCredentials: creds})
	require.NoError(t, err)
	require.NoError(t, p.AddProof(context.Background(), nil,
		suite.NewECDSAKeyDocument(w.holder.did, w.holder.ecdsaKey), "challenge-1", "verifier.example.com"))
	return p
}

func (w *world) validPresentation(t *testing.T) *vp.Presentation {
	t.Helper()

	creds := make([]*vc.Credential, 0, len(w.issuers))
	for _, issuer := range w.issuers {
		creds = append(creds, w.credential(t, issuer, time.Time{}))
	}
	return w.presentation(t, creds...)
}

func normalized(d did.DID) string { return did.Normalize(d.String()) }

func TestHappyPathNeverMarks(t *testing.T) {
	w := newWorld(t, 3)
	p := w.validPresentation(t)

	optimistic := newStaleResolver(w.offline)
	authoritative := &countingResolver{next: w.offline}
	store := storage.NewMemStore()
	v := New(authoritative, WithOptimisticResolver(optimistic), WithFailureMemory(NewFailureMemory(store)))

	res := v.VerifyPresentation(context.Background(), p, WithChallenge("challenge-1"), WithDomain("verifier.example.com"))
	require.NoError(t, res.Err)
	assert.True(t, res.Verified)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, PathOptimistic, res.Path)
	assert.Equal(t, []State{StateNotStarted, StateOptimisticAttempted, StateSucceeded}, res.Transitions)
	require.NotNil(t, res.Presentation)
	assert.Len(t, res.Presentation.Credentials, 3)

	assert.Positive(t, optimistic.calls.Load())
	assert.Zero(t, authoritative.calls.Load(), "happy path never resolves authoritatively")
	assert.Zero(t, store.Len())
	assert.Empty(t, res.Marked)
}

func TestStaleOptimisticFallsBackAndMarks(t *testing.T) {
	w := newWorld(t, 2)
	p := w.validPresentation(t)

	optimistic := newStaleResolver(w.offline, w.issuers[1].did)
	authoritative := &countingResolver{next: w.offline}
	memory := NewFailureMemory(nil)
	v := New(authoritative, WithOptimisticResolver(optimistic), WithFailureMemory(memory))

	res := v.VerifyPresentation(context.Background(), p, WithChallenge("challenge-1"))
	require.NoError(t, res.Err)
	assert.True(t, res.Verified)
	assert.Equal(t, PathFallback, res.Path)
	assert.Equal(t, []State{StateNotStarted, StateOptimisticAttempted, StateAuthoritativeAttempted, StateSucceeded}, res.Transitions)
	assert.ErrorIs(t, res.OptimisticErr, suite.ErrVerificationMethodNotFound)
	assert.Equal(t, []string{normalized(w.issuers[1].did)}, res.Marked)
	assert.True(t, memory.IsMarked(context.Background(), w.issuers[1].did.String()))
	assert.False(t, memory.IsMarked(context.Background(), w.issuers[0].did.String()))

	optimisticCalls := optimistic.calls.Load()
	res = v.VerifyPresentation(context.Background(), p, WithChallenge("challenge-1"))
	require.NoError(t, res.Err)
	assert.Equal(t, PathAuthoritative, res.Path)
	assert.Equal(t, []State{StateNotStarted, StateAuthoritativeAttempted, StateSucceeded}, res.Transitions)
	assert.Equal(t, optimisticCalls, optimistic.calls.Load(), "marked DID skips the optimistic attempt")
}

func TestMarksAreWrittenTogether(t *testing.T) {
	w := newWorld(t, 2)
	p := w.validPresentation(t)
	optimistic := newStaleResolver(w.offline, w.issuers[0].did, w.issuers[1].did)

	store := &batchStore{MemStore: storage.NewMemStore()}
	v := New(w.offline, WithOptimisticResolver(optimistic), WithFailureMemory(NewFailureMemory(store)))

	res := v.VerifyPresentation(context.Background(), p, WithChallenge("challenge-1"))
	require.NoError(t, res.Err)
	assert.ElementsMatch(t, []string{normalized(w.issuers[0].did), normalized(w.issuers[1].did)}, res.Marked)
	require.Len(t, store.batches, 1)
	assert.ElementsMatch(t, res.Marked, store.batches[0])
	assert.Equal(t, 2, store.Len())

	refusing := &batchStore{MemStore: storage.NewMemStore(), fail: true}
	v = New(w.offline, WithOptimisticResolver(optimistic), WithFailureMemory(NewFailureMemory(refusing)))

	res = v.VerifyPresentation(context.Background(), p, WithChallenge("challenge-1"))
	require.NoError(t, res.Err)
	assert.True(t, res.Verified, "failure memory is advisory")
	assert.Empty(t, res.Marked)
	assert.Zero(t, refusing.Len())
}

func TestMarkedDIDIsDeterministic(t *testing.T) {
	w := newWorld(t, 2)
	p := w.validPresentation(t)

	doc, err := p.Document()
	require.NoError(t, err)
	creds := doc["verifiableCredential"].([]any)
	creds[0].(map[string]any)[jsonmap.FieldSubject].(map[string]any)["firstName"] = "Hacker"
	raw, err := doc.ToJSON()
	require.NoError(t, err)
	tampered, err := vp.ParsePresentation(raw)
	require.NoError(t, err)

	memory := NewFailureMemory(storage.NewMemStore())
	require.NoError(t, memory.Mark(context.Background(), w.issuers[1].did.String()))

	optimistic := newStaleResolver(w.offline)
	v := New(w.offline, WithOptimisticResolver(optimistic), WithFailureMemory(memory))

	first := v.VerifyPresentation(context.Background(), tampered)
	second := v.VerifyPresentation(context.Background(), tampered)

	assert.Zero(t, optimistic.calls.Load())
	for _, res := range []*Result{first, second} {
		assert.False(t, res.Verified)
		assert.Equal(t, StateFailed, res.State)
		assert.Equal(t, PathAuthoritative, res.Path)
		assert.False(t, res.Presentation.Credentials[0].Verified)
		assert.True(t, res.Presentation.Credentials[1].Verified)
	}
	assert.Equal(t, first.Reason(), second.Reason())
	assert.Contains(t, first.Marked, normalized(w.issuers[0].did))
	assert.Contains(t, first.Marked, normalized(w.holder.did), "holder proof covers the tampered credential")
}

func TestPolicyFailuresDoNotMark(t *testing.T) {
	w := newWorld(t, 1)
	expired := w.presentation(t, w.credential(t, w.issuers[0], time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	valid := w.validPresentation(t)

	tests := []struct {
		name string
		p    *vp.Presentation
		opts []VerifyOption
		want error
	}{
		{name: "challenge mismatch", p: valid, opts: []VerifyOption{WithChallenge("challenge-2")}, want: suite.ErrChallengeMismatch},
		{name: "domain mismatch", p: valid, opts: []VerifyOption{WithDomain("evil.example.com")}, want: suite.ErrDomainMismatch},
		{name: "expired credential", p: expired, want: suite.ErrCredentialExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemStore()
			authoritative := &countingResolver{next: w.offline}
			v := New(authoritative, WithOptimisticResolver(w.offline), WithFailureMemory(NewFailureMemory(store)))

			res := v.VerifyPresentation(context.Background(), tt.p, tt.opts...)
			assert.False(t, res.Verified)
			assert.Equal(t, StateFailed, res.State)
			assert.Equal(t, PathFallback, res.Path)
			assert.ErrorIs(t, res.Err, tt.want)
			assert.Positive(t, authoritative.calls.Load())
			assert.Empty(t, res.Marked)
			assert.Zero(t, store.Len())
		})
	}

	v := New(w.offline)
	res := v.VerifyPresentation(context.Background(), expired, WithClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }))
	assert.True(t, res.Verified, "clock is forwarded to credentials")
}

func TestCancellationWritesNothing(t *testing.T) {
	w := newWorld(t, 1)
	p := w.validPresentation(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewMemStore()
	optimistic := newStaleResolver(w.offline, w.issuers[0].did)
	authoritative := &countingResolver{next: w.offline, cancel: cancel}
	v := New(authoritative, WithOptimisticResolver(optimistic), WithFailureMemory(NewFailureMemory(store)))

	res := v.VerifyPresentation(ctx, p)
	assert.False(t, res.Verified)
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, res.Marked)
	assert.Zero(t, store.Len())

	res = v.VerifyPresentation(ctx, p)
	assert.Equal(t, []State{StateNotStarted, StateFailed}, res.Transitions)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestVerifyCredentialWithDisclosure(t *testing.T) {
	w := newWorld(t, 1)
	cred := w.credential(t, w.issuers[0], time.Time{})
	nonce := []byte("session-nonce")

	derived, err := disclosure.New(w.offline).DeriveCredential(context.Background(), cred, []string{"firstName"}, nonce)
	require.NoError(t, err)

	memory := NewFailureMemory(nil)
	v := New(w.offline, WithFailureMemory(memory))

	res := v.VerifyCredential(context.Background(), derived, WithNonce(nonce))
	require.NoError(t, res.Err)
	assert.Equal(t, PathOptimistic, res.Path)
	require.NotNil(t, res.Credential)
	assert.Nil(t, res.Presentation)

	res = v.VerifyCredential(context.Background(), derived, WithNonce([]byte("replayed")))
	assert.False(t, res.Verified)
	assert.ErrorIs(t, res.Err, suite.ErrNonceMismatch)
	assert.Empty(t, res.Marked, "nonce mismatch is a policy failure")
}

func TestVerifyCredentialRevoked(t *testing.T) {
	w := newWorld(t, 1)
	cred := w.credential(t, w.issuers[0], time.Time{})

	v := New(w.offline, WithStatusChecker(revokedChecker{}), WithFailureMemory(NewFailureMemory(nil)))

	// No status entry: nothing to revoke.
	assert.True(t, v.VerifyCredential(context.Background(), cred).Verified)

	contents, err := cred.Contents()
	require.NoError(t, err)
	contents.ID = ""
	contents.CredentialStatus = []vc.Status{{Type: "StatusList2021Entry", StatusListIndex: "1", StatusListCredential: "https://example.com/status/1"}}
	withStatus, err := vc.NewCredential(contents)
	require.NoError(t, err)
	require.NoError(t, withStatus.AddProof(context.Background(), nil, suite.NewECDSAKeyDocument(w.issuers[0].did, w.issuers[0].ecdsaKey)))

	res := v.VerifyCredential(context.Background(), withStatus)
	assert.False(t, res.Verified)
	assert.ErrorIs(t, res.Err, vc.ErrCredentialRevoked)
	assert.Empty(t, res.Marked)

	assert.True(t, v.VerifyCredential(context.Background(), withStatus, WithSkipRevocation(true)).Verified)
}

type revokedChecker struct{}

func (revokedChecker) IsRevoked(context.Context, vc.Status) (bool, error) { return true, nil }

func TestFailureMemory(t *testing.T) {
	ctx := context.Background()
	memory := NewFailureMemory(storage.NewMemStore())

	upper := "did:ethr:0x00000000000000000000000000000000000000AA"
	lower := "did:ethr:0x00000000000000000000000000000000000000aa"

	assert.False(t, memory.IsMarked(ctx, lower))
	require.NoError(t, memory.Mark(ctx, upper))
	require.NoError(t, memory.Mark(ctx, upper))
	assert.True(t, memory.IsMarked(ctx, lower))
	assert.True(t, memory.AnyMarked(ctx, []string{"did:ethr:0x00000000000000000000000000000000000000bb", lower}))

	require.NoError(t, memory.Forget(ctx, lower))
	assert.False(t, memory.IsMarked(ctx, upper))

	broken := NewFailureMemory(failingStore{Store: storage.NewMemStore()})
	assert.False(t, broken.IsMarked(ctx, lower), "read errors count as unmarked")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "optimistic_attempted", StateOptimisticAttempted.String())
	assert.Equal(t, "unknown", State(42).String())
}
