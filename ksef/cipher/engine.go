// Package cipher realizuje operacje kryptograficzne protokołu KSeF:
// RSA-OAEP dla sekretów, AES-256-CBC dla dokumentów, skróty SHA-256.
package cipher

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/alapierre/go-ksef-gateway/ksef"
	"github.com/alapierre/go-ksef-gateway/ksef/keys"
	"github.com/alapierre/go-ksef-gateway/ksef/model"
)

type Engine struct {
	keyStore *keys.KeyStore
}

func NewEngine(keyStore *keys.KeyStore) *Engine {
	return &Engine{keyStore: keyStore}
}

// DocumentEncryption to komplet danych po zaszyfrowaniu dokumentu: szyfrogram,
// świeży klucz symetryczny (surowy, do ponownego użycia w ramach sesji),
// klucz opakowany kluczem publicznym serwisu oraz IV.
type DocumentEncryption struct {
	Ciphertext []byte
	Key        []byte
	WrappedKey string // base64
	IV         string // base64
}

// SessionEncryption to wynik szyfrowania kolejnego dokumentu znanym już
// kluczem sesji. IV jest zawsze świeże.
type SessionEncryption struct {
	Ciphertext []byte
	IV         string // base64
}

// Hashes opisuje dokument przed i po zaszyfrowaniu.
type Hashes struct {
	PlainHash  string // base64 SHA-256
	PlainSize  int64
	CipherHash string // base64 SHA-256
	CipherSize int64
}

// EncryptToken szyfruje wiadomość `sekret|epoka_ms` RSA-OAEP/SHA-256 kluczem
// publicznym o przeznaczeniu KsefTokenEncryption. Wynik jest base64.
func (e *Engine) EncryptToken(ctx context.Context, secret string, challengeTimestamp time.Time) (string, error) {
	if secret == "" {
		return "", &ksef.InvalidInputError{Field: "secret", Reason: "must not be empty"}
	}
	if challengeTimestamp.IsZero() {
		return "", &ksef.InvalidInputError{Field: "challengeTimestamp", Reason: "must not be zero"}
	}

	pub, err := e.publicKey(ctx, model.UsageTokenEncryption)
	if err != nil {
		return "", err
	}

	message := fmt.Sprintf("%s|%d", secret, challengeTimestamp.UnixMilli())
	encrypted, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(message), nil)
	if err != nil {
		return "", &ksef.CryptoError{Op: "encrypt token", Err: err}
	}
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// EncryptDocument generuje świeży klucz i IV dla każdego wywołania — klucze
// nigdy nie są współdzielone między dokumentami spoza jednej sesji.
func (e *Engine) EncryptDocument(ctx context.Context, plaintext []byte) (*DocumentEncryption, error) {

	key, err := GenerateRandomKey()
	if err != nil {
		return nil, &ksef.CryptoError{Op: "encrypt document", Err: err}
	}
	iv, err := GenerateRandomIV()
	if err != nil {
		return nil, &ksef.CryptoError{Op: "encrypt document", Err: err}
	}

	ciphertext, err := EncryptAES256CBC(plaintext, key, iv)
	if err != nil {
		return nil, &ksef.CryptoError{Op: "encrypt document", Err: err}
	}

	pub, err := e.publicKey(ctx, model.UsageSymmetricKeyEncryption)
	if err != nil {
		return nil, err
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, &ksef.CryptoError{Op: "wrap symmetric key", Err: err}
	}

	return &DocumentEncryption{
		Ciphertext: ciphertext,
		Key:        key,
		WrappedKey: base64.StdEncoding.EncodeToString(wrapped),
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// EncryptWithSessionKey szyfruje kolejny dokument tym samym kluczem sesji.
// IV musi być świeże przy każdym wywołaniu — powtórzenie IV pod tym samym
// kluczem w trybie CBC łamie poufność, także przy ponowieniach.
func (e *Engine) EncryptWithSessionKey(plaintext, key []byte) (*SessionEncryption, error) {

	iv, err := GenerateRandomIV()
	if err != nil {
		return nil, &ksef.CryptoError{Op: "encrypt with session key", Err: err}
	}

	ciphertext, err := EncryptAES256CBC(plaintext, key, iv)
	if err != nil {
		return nil, &ksef.CryptoError{Op: "encrypt with session key", Err: err}
	}

	return &SessionEncryption{
		Ciphertext: ciphertext,
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Hash liczy SHA-256 i koduje wynik base64
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// DocumentHashes jest deterministyczne: te same wejścia dają te same skróty.
func DocumentHashes(plaintext, ciphertext []byte) Hashes {
	return Hashes{
		PlainHash:  Hash(plaintext),
		PlainSize:  int64(len(plaintext)),
		CipherHash: Hash(ciphertext),
		CipherSize: int64(len(ciphertext)),
	}
}

func (e *Engine) publicKey(ctx context.Context, usage model.KeyUsage) (*rsa.PublicKey, error) {
	cert, err := e.keyStore.PublicKey(ctx, usage)
	if err != nil {
		return nil, err
	}
	pub, err := parseRSAPubFromPEM(cert.PEM)
	if err != nil {
		return nil, &ksef.CryptoError{Op: "parse public key", Err: err}
	}
	return pub, nil
}

func parseRSAPubFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("no CERTIFICATE block in PEM")
	}
	xc, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse x509")
	}
	rsaPub, ok := xc.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.Errorf("certificate does not contain an RSA key (type: %T)", xc.PublicKey)
	}
	return rsaPub, nil
}
