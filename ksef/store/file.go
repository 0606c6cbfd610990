// Package store dostarcza plikową implementację granicy auth.TokenStore:
// długoterminowe sekrety najemców leżą na dysku zaszyfrowane RSA-OAEP,
// a klucz prywatny do ich odszyfrowania jest wczytywany z zaszyfrowanego
// PKCS#8 PEM.
package store

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"

	"github.com/alapierre/go-ksef-gateway/ksef/auth"
	"github.com/alapierre/go-ksef-gateway/ksef/keys"
)

type FileStore struct {
	dir string
	key *rsa.PrivateKey
}

// Open wczytuje klucz prywatny magazynu i przygotowuje katalog danych.
func Open(dir, keyPath string, password []byte) (*FileStore, error) {
	key, err := keys.LoadEncryptedRSAKeyFromFile(keyPath, password)
	if err != nil {
		return nil, err
	}
	return New(dir, key)
}

func New(dir string, key *rsa.PrivateKey) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create store dir")
	}
	return &FileStore{dir: dir, key: key}, nil
}

// SaveLongLivedToken szyfruje sekret kluczem publicznym magazynu. Po zapisie
// sekret istnieje na dysku wyłącznie w postaci zaszyfrowanej.
func (s *FileStore) SaveLongLivedToken(_ context.Context, tenantID, token string) error {
	encrypted, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, &s.key.PublicKey, []byte(token), nil)
	if err != nil {
		return errors.Wrap(err, "encrypt long-lived token")
	}
	if err := os.MkdirAll(s.tenantDir(tenantID), 0o700); err != nil {
		return errors.Wrap(err, "create tenant dir")
	}
	return os.WriteFile(s.tokenPath(tenantID), encrypted, 0o600)
}

// LongLivedToken odszyfrowuje sekret dopiero w chwili użycia.
func (s *FileStore) LongLivedToken(_ context.Context, tenantID string) (string, error) {
	encrypted, err := os.ReadFile(s.tokenPath(tenantID))
	if err != nil {
		return "", errors.Wrapf(err, "read long-lived token for tenant %s", tenantID)
	}
	plain, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, s.key, encrypted, nil)
	if err != nil {
		return "", errors.Wrap(err, "decrypt long-lived token")
	}
	return string(plain), nil
}

type sessionRecord struct {
	AccessToken     string    `json:"accessToken"`
	AccessExpiry    time.Time `json:"accessExpiry"`
	RefreshToken    string    `json:"refreshToken"`
	RefreshExpiry   time.Time `json:"refreshExpiry"`
	ReferenceNumber string    `json:"referenceNumber"`
}

func (s *FileStore) SessionCredential(_ context.Context, tenantID string) (*auth.SessionCredential, error) {
	b, err := os.ReadFile(s.sessionPath(tenantID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read session credential for tenant %s", tenantID)
	}

	var rec sessionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, errors.Wrap(err, "decode session credential")
	}
	return &auth.SessionCredential{
		AccessToken:     rec.AccessToken,
		AccessExpiry:    rec.AccessExpiry,
		RefreshToken:    rec.RefreshToken,
		RefreshExpiry:   rec.RefreshExpiry,
		ReferenceNumber: rec.ReferenceNumber,
	}, nil
}

func (s *FileStore) SaveSessionCredential(_ context.Context, tenantID string, cred *auth.SessionCredential) error {
	rec := sessionRecord{
		AccessToken:     cred.AccessToken,
		AccessExpiry:    cred.AccessExpiry,
		RefreshToken:    cred.RefreshToken,
		RefreshExpiry:   cred.RefreshExpiry,
		ReferenceNumber: cred.ReferenceNumber,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode session credential")
	}
	if err := os.MkdirAll(s.tenantDir(tenantID), 0o700); err != nil {
		return errors.Wrap(err, "create tenant dir")
	}
	return os.WriteFile(s.sessionPath(tenantID), b, 0o600)
}

func (s *FileStore) ClearSessionCredential(_ context.Context, tenantID string) error {
	err := os.Remove(s.sessionPath(tenantID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileStore) tenantDir(tenantID string) string {
	return filepath.Join(s.dir, tenantID)
}

func (s *FileStore) tokenPath(tenantID string) string {
	return filepath.Join(s.tenantDir(tenantID), "token.enc")
}

func (s *FileStore) sessionPath(tenantID string) string {
	return filepath.Join(s.dir, tenantID, "session.json")
}
