package did_test

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-ethr-vc/did"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		canonical string
		network   string
		dual      bool
		wantErr   bool
	}{
		{
			name:      "single address",
			input:     "did:ethr:0xb9c5714089478a327f09197987f16f9e5d936e8a",
			canonical: "did:ethr:0xb9c5714089478a327f09197987f16f9e5d936e8a",
		},
		{
			name:      "with network",
			input:     "did:ethr:sepolia:0xb9c5714089478a327f09197987f16f9e5d936e8a",
			canonical: "did:ethr:sepolia:0xb9c5714089478a327f09197987f16f9e5d936e8a",
			network:   "sepolia",
		},
		{
			name:      "dual address upper case",
			input:     "did:ethr:0xB9C5714089478A327F09197987F16F9E5D936E8A:0x1111111111111111111111111111111111111111",
			canonical: "did:ethr:0xb9c5714089478a327f09197987f16f9e5d936e8a:0x1111111111111111111111111111111111111111",
			dual:      true,
		},
		{
			name:      "dual address with network",
			input:     "did:ethr:0x5:0xb9c5714089478a327f09197987f16f9e5d936e8a:0x1111111111111111111111111111111111111111",
			canonical: "did:ethr:0x5:0xb9c5714089478a327f09197987f16f9e5d936e8a:0x1111111111111111111111111111111111111111",
			network:   "0x5",
			dual:      true,
		},
		{name: "not a did", input: "ethr:0xb9c5714089478a327f09197987f16f9e5d936e8a", wantErr: true},
		{name: "no address", input: "did:ethr", wantErr: true},
		{name: "network only", input: "did:ethr:sepolia", wantErr: true},
		{name: "three addresses", input: "did:ethr:0x1111111111111111111111111111111111111111:0x2222222222222222222222222222222222222222:0x3333333333333333333333333333333333333333", wantErr: true},
		{name: "empty segment", input: "did:ethr::0xb9c5714089478a327f09197987f16f9e5d936e8a", wantErr: true},
		{name: "short address", input: "did:ethr:0xb9c5714089478a", wantErr: true},
		{name: "not hex", input: "did:ethr:0xzzc5714089478a327f09197987f16f9e5d936e8a", wantErr: true},
		{name: "fragment", input: "did:ethr:0xb9c5714089478a327f09197987f16f9e5d936e8a#controller", wantErr: true},
		{name: "upper case method", input: "did:ETHR:0xb9c5714089478a327f09197987f16f9e5d936e8a", wantErr: true},
		{name: "empty segment after network", input: "did:ethr:sepolia::0xb9c5714089478a327f09197987f16f9e5d936e8a", wantErr: true},
		{name: "trailing colon", input: "did:ethr:0xb9c5714089478a327f09197987f16f9e5d936e8a:", wantErr: true},
		{name: "empty method", input: "did::0xb9c5714089478a327f09197987f16f9e5d936e8a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := did.Parse(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, did.ErrMalformedIdentifier)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.canonical, d.String())
			assert.Equal(t, tt.network, d.Network())
			assert.Equal(t, tt.dual, d.IsDual())
			assert.Equal(t, did.DefaultMethod, d.Method())

			again, err := did.Parse(d.String())
			require.NoError(t, err)
			assert.True(t, again.Equal(d))
		})
	}
}

func TestDualAccessors(t *testing.T) {
	primary := common.HexToAddress("0xb9c5714089478a327f09197987f16f9e5d936e8a")
	secondary := common.HexToAddress("0x1111111111111111111111111111111111111111")

	d, err := did.NewDualDID(did.DefaultMethod, "", primary, secondary)
	require.NoError(t, err)

	got, ok := d.Secondary()
	assert.True(t, ok)
	assert.Equal(t, secondary, got)
	assert.Equal(t, primary, d.Primary())

	single, err := did.NewDID(did.DefaultMethod, "", primary)
	require.NoError(t, err)

	_, ok = single.Secondary()
	assert.False(t, ok)
	assert.False(t, single.Equal(d))
}

func TestTextMarshaling(t *testing.T) {
	type holder struct {
		ID did.DID `json:"id"`
	}

	in := holder{ID: did.MustParse("did:ethr:0xB9C5714089478A327F09197987F16F9E5D936E8A")}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"did:ethr:0xb9c5714089478a327f09197987f16f9e5d936e8a"}`, string(raw))

	var out holder
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, in.ID.Equal(out.ID))

	err = json.Unmarshal([]byte(`{"id":"did:ethr:nope"}`), &out)
	assert.ErrorIs(t, err, did.ErrMalformedIdentifier)
}

func TestSplitURLAndNormalize(t *testing.T) {
	base, fragment := did.SplitURL("did:ethr:0xabc#controller")
	assert.Equal(t, "did:ethr:0xabc", base)
	assert.Equal(t, "controller", fragment)

	base, fragment = did.SplitURL("did:ethr:0xabc")
	assert.Equal(t, "did:ethr:0xabc", base)
	assert.Empty(t, fragment)

	assert.Equal(t,
		"did:ethr:0xb9c5714089478a327f09197987f16f9e5d936e8a",
		did.Normalize("did:ethr:0xB9C5714089478A327F09197987F16F9E5D936E8A"))
	assert.Equal(t, "not-a-did", did.Normalize("not-a-did"))
}
