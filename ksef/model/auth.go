package model

import "time"

type IdentifierType string

const (
	NIP      IdentifierType = "Nip"
	PESEL    IdentifierType = "Pesel"
	Fingerpr IdentifierType = "Fingerprint"
)

type ContextIdentifier struct {
	Type  IdentifierType `json:"type"`
	Value string         `json:"value"`
}

type AuthorisationChallengeResponse struct {
	Challenge string    `json:"challenge"`
	Timestamp time.Time `json:"timestamp"`
}

type InitTokenAuthenticationRequest struct {
	Challenge         string            `json:"challenge"`
	ContextIdentifier ContextIdentifier `json:"contextIdentifier"`
	EncryptedToken    string            `json:"encryptedToken"`
}

type AuthenticationToken struct {
	Token string `json:"token"`
}

type AuthenticationInitResponse struct {
	ReferenceNumber     string              `json:"referenceNumber"`
	AuthenticationToken AuthenticationToken `json:"authenticationToken"`
}

// OperationStatus niesie kod w konwencji HTTP: 200 sukces, >=400 porażka,
// wszystko inne oznacza operację w toku.
type OperationStatus struct {
	Code        int      `json:"code"`
	Description string   `json:"description"`
	Details     []string `json:"details,omitempty"`
}

type AuthenticationStatusResponse struct {
	StartDate time.Time       `json:"startDate"`
	Status    OperationStatus `json:"status"`
}

type TokenInfo struct {
	Token      string    `json:"token"`
	ValidUntil time.Time `json:"validUntil"`
}

type AuthenticationTokensResponse struct {
	AccessToken  TokenInfo `json:"accessToken"`
	RefreshToken TokenInfo `json:"refreshToken"`
}
