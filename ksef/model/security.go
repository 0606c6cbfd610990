package model

import "time"

type KeyUsage string

const (
	// UsageTokenEncryption to klucz do szyfrowania tokena KSeF przy logowaniu.
	UsageTokenEncryption KeyUsage = "KsefTokenEncryption"
	// UsageSymmetricKeyEncryption to klucz do opakowania klucza symetrycznego sesji.
	UsageSymmetricKeyEncryption KeyUsage = "SymmetricKeyEncryption"
)

type PublicKeyCertificate struct {
	Certificate string     `json:"certificate"`
	ValidFrom   time.Time  `json:"validFrom"`
	ValidTo     time.Time  `json:"validTo"`
	Usage       []KeyUsage `json:"usage"`
}
