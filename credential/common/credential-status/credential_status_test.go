package credentialstatus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-ethr-vc/credential/common/util"
)

func encodedList(t *testing.T, revoked ...int) string {
	t.Helper()

	list := util.NewBitstring(64)
	for _, i := range revoked {
		require.NoError(t, util.SetBit(list, i))
	}

	encoded, err := util.CompressToBase64URL(list)
	require.NoError(t, err)
	return encoded
}

func TestIsRevoked(t *testing.T) {
	subject := StatusListCredentialSubject{EncodedList: encodedList(t, 0, 5), StatusPurpose: PurposeRevocation}

	for position, want := range map[int]bool{0: true, 1: false, 5: true, 63: false} {
		got, err := IsRevoked(position, subject)
		require.NoError(t, err)
		assert.Equal(t, want, got, "position %d", position)
	}

	_, err := IsRevoked(64, subject)
	assert.Error(t, err)

	subject.StatusPurpose = PurposeSuspension
	got, err := IsRevoked(0, subject)
	require.NoError(t, err)
	assert.False(t, got, "non-revocation purpose should never revoke")
}

func TestClientIsRevoked(t *testing.T) {
	var calls atomic.Int32
	encoded := encodedList(t, 3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")

		subject := StatusListCredentialSubject{EncodedList: encoded, StatusPurpose: PurposeRevocation, Type: "BitstringStatusList"}
		switch r.URL.Path {
		case "/wrapped":
			_ = json.NewEncoder(w).Encode(StatusListCredentialResponse{Data: &StatusListCredential{
				ID:                "https://example.com/status/1",
				Type:              []string{"VerifiableCredential", "BitstringStatusListCredential"},
				CredentialSubject: subject,
			}})
		case "/bare":
			_ = json.NewEncoder(w).Encode(StatusListCredential{ID: "https://example.com/status/2", CredentialSubject: subject})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))
	ctx := context.Background()

	tests := []struct {
		name    string
		entry   Entry
		want    bool
		wantErr bool
	}{
		{name: "revoked wrapped", entry: Entry{Type: TypeBitstringStatusListEntry, StatusPurpose: PurposeRevocation, StatusListIndex: "3", StatusListCredential: server.URL + "/wrapped"}, want: true},
		{name: "valid wrapped", entry: Entry{Type: TypeBitstringStatusListEntry, StatusPurpose: PurposeRevocation, StatusListIndex: "4", StatusListCredential: server.URL + "/wrapped"}},
		{name: "revoked bare", entry: Entry{Type: TypeStatusList2021Entry, StatusListIndex: "3", StatusListCredential: server.URL + "/bare"}, want: true},
		{name: "suspension entry", entry: Entry{Type: TypeStatusList2021Entry, StatusPurpose: PurposeSuspension, StatusListIndex: "3", StatusListCredential: server.URL + "/bare"}},
		{name: "unknown type", entry: Entry{Type: "CredentialStatusList2017", StatusListIndex: "3"}},
		{name: "bad index", entry: Entry{Type: TypeStatusList2021Entry, StatusListIndex: "x", StatusListCredential: server.URL + "/bare"}, wantErr: true},
		{name: "missing list", entry: Entry{Type: TypeStatusList2021Entry, StatusListIndex: "1", StatusListCredential: server.URL + "/missing"}, wantErr: true},
		{name: "empty url", entry: Entry{Type: TypeStatusList2021Entry, StatusListIndex: "1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.IsRevoked(ctx, tt.entry)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	before := calls.Load()
	_, err := client.IsRevoked(ctx, tests[0].entry)
	require.NoError(t, err)
	assert.Equal(t, before, calls.Load(), "list should be served from cache")
}
