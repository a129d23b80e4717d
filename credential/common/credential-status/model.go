package credentialstatus

// Status entry types understood by the checker.
const (
	TypeStatusList2021Entry      = "StatusList2021Entry"
	TypeBitstringStatusListEntry = "BitstringStatusListEntry"

	PurposeRevocation = "revocation"
	PurposeSuspension = "suspension"
)

// Entry is a credentialStatus entry pointing into a status list.
type Entry struct {
	ID                   string `json:"id,omitempty"`
	Type                 string `json:"type"`
	StatusPurpose        string `json:"statusPurpose,omitempty"`
	StatusListIndex      string `json:"statusListIndex,omitempty"`
	StatusListCredential string `json:"statusListCredential,omitempty"`
}

// StatusListCredentialResponse is the wrapped form some status services
// return the list credential in.
type StatusListCredentialResponse struct {
	Data *StatusListCredential `json:"data"`
}

// StatusListCredential models the Verifiable Credential returned by the
// status list endpoint. Only the fields the checker needs are typed.
type StatusListCredential struct {
	Context           []any                       `json:"@context"`
	CredentialSubject StatusListCredentialSubject `json:"credentialSubject"`
	ID                string                      `json:"id"`
	Issuer            any                         `json:"issuer"`
	Proof             map[string]any              `json:"proof,omitempty"`
	Type              []string                    `json:"type"`
	ValidFrom         string                      `json:"validFrom,omitempty"`
	ValidUntil        string                      `json:"validUntil,omitempty"`
}

// StatusListCredentialSubject represents the credentialSubject of the
// status list credential, including the encoded bitstring list.
type StatusListCredentialSubject struct {
	EncodedList   string `json:"encodedList"`
	ID            string `json:"id"`
	StatusPurpose string `json:"statusPurpose"`
	Type          string `json:"type"`
}
