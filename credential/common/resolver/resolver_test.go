package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-ethr-vc/credential/common/crypto"
	"github.com/pilacorp/go-ethr-vc/did"
	"github.com/pilacorp/go-ethr-vc/did/registry"
)

const testChainID = 1

func newDualDID(t *testing.T) (did.DID, did.KeyMaterial, did.KeyMaterial) {
	t.Helper()

	ecdsaKey, err := did.GenerateECDSAKey()
	require.NoError(t, err)
	pairingKey, err := crypto.GeneratePairingKey(nil)
	require.NoError(t, err)

	d, err := did.DeriveDualDID(ecdsaKey, pairingKey, "")
	require.NoError(t, err)

	return d, ecdsaKey, pairingKey
}

type countingResolver struct {
	Resolver
	calls atomic.Int32
}

func (c *countingResolver) Resolve(ctx context.Context, id string) (*Resolution, error) {
	c.calls.Add(1)
	return c.Resolver.Resolve(ctx, id)
}

type fakeReader struct {
	identity *registry.Identity
	err      error
}

func (f *fakeReader) ReadIdentity(_ context.Context, addr common.Address) (*registry.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	id := *f.identity
	id.Address = addr
	return &id, nil
}

func TestResolveMethodRequiresFragment(t *testing.T) {
	d, _, _ := newDualDID(t)

	_, err := ResolveMethod(context.Background(), NewOffline(testChainID), d.String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatic(t *testing.T) {
	d, _, _ := newDualDID(t)
	doc, err := did.GenerateDIDDocument(d, testChainID)
	require.NoError(t, err)

	r := NewStatic(doc)
	upper := strings.ToUpper(d.String()[len("did:ethr:"):])
	assert.True(t, r.Supports("did:ethr:"+strings.Replace(upper, "0X", "0x", -1)))
	assert.False(t, r.Supports("did:ethr:0x0000000000000000000000000000000000000001"))

	res, err := r.Resolve(context.Background(), d.String())
	require.NoError(t, err)
	assert.Same(t, doc, res.Document)
	assert.Nil(t, res.Method)

	vm, err := ResolveMethod(context.Background(), r, did.ControllerMethodID(d))
	require.NoError(t, err)
	assert.Equal(t, did.TypeEcdsaRecoveryMethod2020, vm.Type)

	_, err = ResolveMethod(context.Background(), r, d.String()+"#missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(context.Background(), "did:ethr:0x0000000000000000000000000000000000000001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOffline(t *testing.T) {
	d, ecdsaKey, pairingKey := newDualDID(t)
	r := NewOffline(testChainID, WithNetworks(""))

	assert.True(t, r.Supports(d.String()))
	assert.False(t, r.Supports("did:web:example.com"))
	assert.False(t, r.Supports("did:ethr:sepolia:"+d.Primary().Hex()))

	vm, err := ResolveMethod(context.Background(), r, did.ControllerMethodID(d))
	require.NoError(t, err)
	addr, err := vm.Address()
	require.NoError(t, err)
	owner, err := did.DeriveAddress(ecdsaKey)
	require.NoError(t, err)
	assert.Equal(t, owner, addr)

	_, err = ResolveMethod(context.Background(), r, did.PairingMethodID(d))
	assert.ErrorIs(t, err, ErrNotFound)

	other, err := crypto.GeneratePairingKey(nil)
	require.NoError(t, err)
	assert.ErrorIs(t, r.AddPairingKey(d, other.PublicKey), did.ErrKeyAddressMismatch)

	require.NoError(t, r.AddPairingKey(d, pairingKey.PublicKey))
	vm, err = ResolveMethod(context.Background(), r, did.PairingMethodID(d))
	require.NoError(t, err)
	assert.Equal(t, did.TypeBls12381G2Key2020, vm.Type)

	raw, err := vm.RawKey()
	require.NoError(t, err)
	assert.Equal(t, pairingKey.PublicKey, raw)
}

func TestComposite(t *testing.T) {
	d, _, _ := newDualDID(t)
	doc, err := did.GenerateDIDDocument(d, testChainID)
	require.NoError(t, err)
	doc.DocumentMetadata = map[string]any{"source": "static"}

	static := &countingResolver{Resolver: NewStatic(doc)}
	offline := &countingResolver{Resolver: NewOffline(testChainID)}
	r := NewComposite(static, offline)

	res, err := r.Resolve(context.Background(), d.String())
	require.NoError(t, err)
	assert.Equal(t, "static", res.Document.DocumentMetadata["source"])
	assert.EqualValues(t, 1, static.calls.Load())
	assert.EqualValues(t, 0, offline.calls.Load())

	other, _, _ := newDualDID(t)
	_, err = r.Resolve(context.Background(), other.String())
	require.NoError(t, err)
	assert.EqualValues(t, 1, offline.calls.Load())

	_, err = r.Resolve(context.Background(), "did:web:example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, r.Supports("not a did"))
}

func TestLedger(t *testing.T) {
	d, ecdsaKey, pairingKey := newDualDID(t)
	owner, err := did.DeriveAddress(ecdsaKey)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	future := uint64(now.Add(time.Hour).Unix())
	past := uint64(now.Add(-time.Hour).Unix())

	delegate := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	stranger, err := crypto.GeneratePairingKey(nil)
	require.NoError(t, err)

	reader := &fakeReader{identity: &registry.Identity{
		Owner:   owner,
		Changed: 42,
		Delegates: []registry.Delegate{
			{Type: "sigAuth", Delegate: delegate, ValidTo: future},
			{Type: "veriKey", Delegate: common.HexToAddress("0xbb"), ValidTo: past},
		},
		Attributes: []registry.Attribute{
			{Name: "did/pub/Bls12381G2/veriKey/hex", Value: stranger.PublicKey, ValidTo: future},
			{Name: "did/pub/Bls12381G2/veriKey/hex", Value: pairingKey.PublicKey, ValidTo: future},
			{Name: "did/pub/Secp256k1/veriKey/hex", Value: ecdsaKey.PublicKey, ValidTo: past},
			{Name: "did/svc/MessagingService", Value: []byte("https://example.com"), ValidTo: future},
		},
	}}

	r := NewLedger(reader, testChainID, WithLedgerClock(func() time.Time { return now }))
	assert.True(t, r.Supports(d.String()))
	assert.False(t, r.Supports("did:web:example.com"))

	res, err := r.Resolve(context.Background(), d.String())
	require.NoError(t, err)
	doc := res.Document

	assert.False(t, doc.Deactivated())
	assert.Equal(t, "42", doc.DocumentMetadata["versionId"])
	require.Len(t, doc.VerificationMethod, 4)

	ids := make([]string, 0, len(doc.VerificationMethod))
	for _, vm := range doc.VerificationMethod {
		ids = append(ids, vm.ID)
	}
	assert.Equal(t, []string{
		did.ControllerMethodID(d),
		d.String() + "#delegate-1",
		d.String() + "#delegate-2",
		did.PairingMethodID(d),
	}, ids)
	assert.Contains(t, doc.Authentication, d.String()+"#delegate-1")
	assert.NotContains(t, doc.Authentication, d.String()+"#delegate-2")
	assert.Contains(t, doc.Context, did.PairingContext)

	vm, err := ResolveMethod(context.Background(), r, did.PairingMethodID(d))
	require.NoError(t, err)
	raw, err := vm.RawKey()
	require.NoError(t, err)
	assert.Equal(t, pairingKey.PublicKey, raw)

	strangerVM, ok := doc.FindMethod("#delegate-2")
	require.True(t, ok)
	raw, err = strangerVM.RawKey()
	require.NoError(t, err)
	assert.Equal(t, stranger.PublicKey, raw)
}

func TestLedgerForeignPairingKeyOnly(t *testing.T) {
	d, ecdsaKey, _ := newDualDID(t)
	owner, err := did.DeriveAddress(ecdsaKey)
	require.NoError(t, err)
	stranger, err := crypto.GeneratePairingKey(nil)
	require.NoError(t, err)

	r := NewLedger(&fakeReader{identity: &registry.Identity{
		Owner: owner,
		Attributes: []registry.Attribute{
			{Name: "did/pub/Bls12381G2/veriKey/hex", Value: stranger.PublicKey, ValidTo: math.MaxUint64},
		},
	}}, testChainID)

	res, err := r.Resolve(context.Background(), d.String())
	require.NoError(t, err)
	doc := res.Document

	require.Len(t, doc.VerificationMethod, 2)
	assert.Equal(t, d.String()+"#delegate-1", doc.VerificationMethod[1].ID)
	assert.Equal(t, did.TypeBls12381G2Key2020, doc.VerificationMethod[1].Type)
	assert.Contains(t, doc.Context, did.PairingContext)

	_, err = ResolveMethod(context.Background(), r, did.PairingMethodID(d))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerOwnerChanged(t *testing.T) {
	d, _, _ := newDualDID(t)
	newOwner := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	r := NewLedger(&fakeReader{identity: &registry.Identity{Owner: newOwner, Changed: 7}}, testChainID)

	vm, err := ResolveMethod(context.Background(), r, did.ControllerMethodID(d))
	require.NoError(t, err)
	addr, err := vm.Address()
	require.NoError(t, err)
	assert.Equal(t, newOwner, addr)

	_, err = ResolveMethod(context.Background(), r, did.PairingMethodID(d))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerDeactivated(t *testing.T) {
	d, _, _ := newDualDID(t)
	r := NewLedger(&fakeReader{identity: &registry.Identity{}}, testChainID)

	res, err := r.Resolve(context.Background(), d.String())
	require.NoError(t, err)
	assert.True(t, res.Document.Deactivated())
	assert.Empty(t, res.Document.VerificationMethod)

	_, err = ResolveMethod(context.Background(), r, did.ControllerMethodID(d))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerReadError(t *testing.T) {
	d, _, _ := newDualDID(t)
	boom := errors.New("rpc down")
	r := NewLedger(&fakeReader{err: boom}, testChainID)

	_, err := r.Resolve(context.Background(), d.String())
	assert.ErrorIs(t, err, boom)
}

func TestHTTP(t *testing.T) {
	d, _, _ := newDualDID(t)
	doc, err := did.GenerateDIDDocument(d, testChainID)
	require.NoError(t, err)

	wrapped := "did:ethr:0x00000000000000000000000000000000000000dd"
	wrappedDoc, err := did.GenerateDIDDocument(did.MustParse(wrapped), testChainID)
	require.NoError(t, err)

	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		switch strings.TrimPrefix(r.URL.Path, "/1.0/identifiers/") {
		case d.String():
			_ = json.NewEncoder(w).Encode(doc)
		case wrapped:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"didDocument":         wrappedDoc,
				"didDocumentMetadata": map[string]any{"versionId": "3"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	r := NewHTTP(server.URL+"/1.0/identifiers/", WithHTTPClient(server.Client()), WithHTTPMethods("ethr"))
	assert.True(t, r.Supports(d.String()))
	assert.False(t, r.Supports("did:web:example.com"))

	vm, err := ResolveMethod(context.Background(), r, did.ControllerMethodID(d))
	require.NoError(t, err)
	assert.Equal(t, did.ControllerMethodID(d), vm.ID)
	assert.Equal(t, "/1.0/identifiers/"+d.String(), paths[0])

	res, err := r.Resolve(context.Background(), wrapped)
	require.NoError(t, err)
	assert.Equal(t, wrapped, res.Document.ID)
	assert.Equal(t, "3", res.Document.DocumentMetadata["versionId"])

	_, err = r.Resolve(context.Background(), "did:ethr:0x00000000000000000000000000000000000000ee")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPRejectsForeignDocument(t *testing.T) {
	d, _, _ := newDualDID(t)
	other, _, _ := newDualDID(t)
	doc, err := did.GenerateDIDDocument(other, testChainID)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer server.Close()

	_, err = NewHTTP(server.URL).Resolve(context.Background(), d.String())
	assert.Error(t, err)
}

func TestCached(t *testing.T) {
	d, _, _ := newDualDID(t)
	inner := &countingResolver{Resolver: NewOffline(testChainID)}
	r := NewCached(inner, WithCacheSize(8), WithCacheTTL(time.Minute))

	assert.True(t, r.Supports(d.String()))

	for i := 0; i < 3; i++ {
		vm, err := ResolveMethod(context.Background(), r, did.ControllerMethodID(d))
		require.NoError(t, err)
		assert.Equal(t, did.ControllerMethodID(d), vm.ID)
	}
	assert.EqualValues(t, 1, inner.calls.Load())

	_, err := ResolveMethod(context.Background(), r, d.String()+"#missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 1, inner.calls.Load())

	r.Purge()
	_, err = r.Resolve(context.Background(), d.String())
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	inner := &countingResolver{Resolver: NewStatic()}
	r := NewCached(inner)

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), "did:ethr:0x00000000000000000000000000000000000000ff")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.EqualValues(t, 2, inner.calls.Load())
}
