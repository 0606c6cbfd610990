package model

import "time"

type FormCode struct {
	SystemCode    string `json:"systemCode"`
	SchemaVersion string `json:"schemaVersion"`
	Value         string `json:"value"`
}

// Encryption przenosi zaszyfrowany klucz symetryczny sesji oraz IV,
// oba jako base64.
type Encryption struct {
	EncryptedSymmetricKey string `json:"encryptedSymmetricKey"`
	InitializationVector  string `json:"initializationVector"`
}

type OpenOnlineSessionRequest struct {
	FormCode   FormCode   `json:"formCode"`
	Encryption Encryption `json:"encryption"`
}

type OpenOnlineSessionResponse struct {
	ReferenceNumber string    `json:"referenceNumber"`
	ValidUntil      time.Time `json:"validUntil"`
}

type SendInvoiceRequest struct {
	InvoiceHash             string `json:"invoiceHash"`
	InvoiceSize             int64  `json:"invoiceSize"`
	EncryptedInvoiceHash    string `json:"encryptedInvoiceHash"`
	EncryptedInvoiceSize    int64  `json:"encryptedInvoiceSize"`
	EncryptedInvoiceContent string `json:"encryptedInvoiceContent"`
	OfflineMode             bool   `json:"offlineMode"`
}

type SendInvoiceResponse struct {
	ReferenceNumber string `json:"referenceNumber"`
}

type InvoiceCounts struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type SessionStatusResponse struct {
	Status        OperationStatus `json:"status"`
	ValidUntil    time.Time       `json:"validUntil"`
	InvoiceCounts InvoiceCounts   `json:"invoiceCounts"`
	UpoPages      []string        `json:"upoPages,omitempty"`
}

type FailedInvoice struct {
	ReferenceNumber string          `json:"referenceNumber"`
	OrdinalNumber   int             `json:"ordinalNumber"`
	Status          OperationStatus `json:"status"`
}

type SessionFailedInvoicesResponse struct {
	Invoices          []FailedInvoice `json:"invoices"`
	ContinuationToken string          `json:"continuationToken,omitempty"`
}

// CloseSessionResponse bywa puste: serwis może odpowiedzieć 204 bez ciała
// i jest to pełnoprawny sukces.
type CloseSessionResponse struct {
	ReferenceNumber string `json:"referenceNumber,omitempty"`
}

type InvoiceStatusResponse struct {
	OrdinalNumber   int             `json:"ordinalNumber"`
	KsefNumber      string          `json:"ksefNumber,omitempty"`
	AcquisitionDate time.Time       `json:"acquisitionDate,omitempty"`
	Status          OperationStatus `json:"status"`
}
