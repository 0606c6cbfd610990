package store

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youmark/pkcs8"

	"github.com/alapierre/go-ksef-gateway/ksef/auth"
)

func testStore(t *testing.T) *FileStore {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	store, err := New(t.TempDir(), key)
	require.NoError(t, err)
	return store
}

func TestLongLivedToken_RoundTrip(t *testing.T) {

	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLongLivedToken(ctx, "1234567890", "bardzo-tajny-token"))

	token, err := store.LongLivedToken(ctx, "1234567890")
	require.NoError(t, err)
	assert.Equal(t, "bardzo-tajny-token", token)
}

func TestLongLivedToken_EncryptedAtRest(t *testing.T) {

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	store, err := New(dir, key)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.SaveLongLivedToken(ctx, "1234567890", "bardzo-tajny-token"))

	raw, err := os.ReadFile(filepath.Join(dir, "1234567890", "token.enc"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "bardzo-tajny-token")
}

func TestLongLivedToken_MissingTenant(t *testing.T) {

	store := testStore(t)

	_, err := store.LongLivedToken(context.Background(), "0000000000")
	assert.Error(t, err)
}

func TestSessionCredential_RoundTrip(t *testing.T) {

	store := testStore(t)
	ctx := context.Background()

	cred := &auth.SessionCredential{
		AccessToken:     "A1",
		AccessExpiry:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		RefreshToken:    "R1",
		RefreshExpiry:   time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC),
		ReferenceNumber: "AUTH-REF-1",
	}
	require.NoError(t, store.SaveSessionCredential(ctx, "1234567890", cred))

	loaded, err := store.SessionCredential(ctx, "1234567890")
	require.NoError(t, err)
	assert.Equal(t, cred, loaded)
}

func TestSessionCredential_AbsentIsNilNotError(t *testing.T) {

	store := testStore(t)

	cred, err := store.SessionCredential(context.Background(), "1234567890")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestClearSessionCredential_Idempotent(t *testing.T) {

	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSessionCredential(ctx, "1234567890", &auth.SessionCredential{AccessToken: "A1"}))
	require.NoError(t, store.ClearSessionCredential(ctx, "1234567890"))
	require.NoError(t, store.ClearSessionCredential(ctx, "1234567890"), "clearing an absent credential is not an error")

	cred, err := store.SessionCredential(ctx, "1234567890")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestOpen_WithEncryptedPKCS8Key(t *testing.T) {

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	password := []byte("store-pass")
	der, err := pkcs8.MarshalPrivateKey(key, password, nil)
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "store.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: der})
	require.NoError(t, os.WriteFile(keyPath, pemBytes, 0o600))

	store, err := Open(t.TempDir(), keyPath, password)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.SaveLongLivedToken(ctx, "1234567890", "sekret"))

	token, err := store.LongLivedToken(ctx, "1234567890")
	require.NoError(t, err)
	assert.Equal(t, "sekret", token)
}

func TestOpen_WrongPassword(t *testing.T) {

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := pkcs8.MarshalPrivateKey(key, []byte("correct"), nil)
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "store.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: der})
	require.NoError(t, os.WriteFile(keyPath, pemBytes, 0o600))

	_, err = Open(t.TempDir(), keyPath, []byte("wrong"))
	assert.Error(t, err)
}
