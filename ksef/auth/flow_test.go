package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alapierre/go-ksef-gateway/ksef"
	"github.com/alapierre/go-ksef-gateway/ksef/cipher"
	"github.com/alapierre/go-ksef-gateway/ksef/keys"
	"github.com/alapierre/go-ksef-gateway/ksef/model"
)

// scriptedProtocol odgrywa z góry ułożony scenariusz odpowiedzi serwisu
// i liczy wywołania poszczególnych endpointów.
type scriptedProtocol struct {
	mu sync.Mutex

	key   *rsa.PrivateKey
	certs []model.PublicKeyCertificate

	statusCodes []int

	challengeCalls int
	initCalls      int
	statusCalls    int
	redeemCalls    int

	lastInit model.InitTokenAuthenticationRequest

	accessToken  string
	refreshToken string
}

func newScriptedProtocol(t *testing.T, statusCodes []int) *scriptedProtocol {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "ksef-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return &scriptedProtocol{
		key: key,
		certs: []model.PublicKeyCertificate{{
			Certificate: base64.StdEncoding.EncodeToString(der),
			ValidFrom:   tmpl.NotBefore,
			ValidTo:     tmpl.NotAfter,
			Usage:       []model.KeyUsage{model.UsageTokenEncryption, model.UsageSymmetricKeyEncryption},
		}},
		statusCodes:  statusCodes,
		accessToken:  "T1",
		refreshToken: "R1",
	}
}

func (s *scriptedProtocol) PublicKeyCertificates(context.Context) ([]model.PublicKeyCertificate, error) {
	return s.certs, nil
}

func (s *scriptedProtocol) AuthorisationChallenge(context.Context) (*model.AuthorisationChallengeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challengeCalls++
	return &model.AuthorisationChallengeResponse{
		Challenge: "20240101-CR-ABC",
		Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}, nil
}

func (s *scriptedProtocol) InitTokenAuthentication(_ context.Context, req model.InitTokenAuthenticationRequest) (*model.AuthenticationInitResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initCalls++
	s.lastInit = req
	return &model.AuthenticationInitResponse{
		ReferenceNumber:     "AUTH-REF-1",
		AuthenticationToken: model.AuthenticationToken{Token: "temp-token"},
	}, nil
}

func (s *scriptedProtocol) AuthenticationStatus(context.Context, string, string) (*model.AuthenticationStatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := 100
	if s.statusCalls < len(s.statusCodes) {
		code = s.statusCodes[s.statusCalls]
	}
	s.statusCalls++
	return &model.AuthenticationStatusResponse{
		Status: model.OperationStatus{Code: code, Description: fmt.Sprintf("status %d", code)},
	}, nil
}

func (s *scriptedProtocol) RedeemTokens(context.Context, string) (*model.AuthenticationTokensResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redeemCalls++
	return &model.AuthenticationTokensResponse{
		AccessToken:  model.TokenInfo{Token: s.accessToken, ValidUntil: time.Now().Add(time.Hour)},
		RefreshToken: model.TokenInfo{Token: s.refreshToken, ValidUntil: time.Now().Add(7 * 24 * time.Hour)},
	}, nil
}

func (s *scriptedProtocol) networkCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challengeCalls + s.initCalls + s.statusCalls + s.redeemCalls
}

// sesyjne endpointy nie biorą udziału w uwierzytelnianiu

func (s *scriptedProtocol) OpenOnlineSession(context.Context, model.OpenOnlineSessionRequest, string) (*model.OpenOnlineSessionResponse, error) {
	panic("not used")
}

func (s *scriptedProtocol) SendInvoice(context.Context, string, model.SendInvoiceRequest, string) (*model.SendInvoiceResponse, error) {
	panic("not used")
}

func (s *scriptedProtocol) SessionStatus(context.Context, string, string) (*model.SessionStatusResponse, error) {
	panic("not used")
}

func (s *scriptedProtocol) FailedInvoices(context.Context, string, string, int) (*model.SessionFailedInvoicesResponse, error) {
	panic("not used")
}

func (s *scriptedProtocol) CloseOnlineSession(context.Context, string, string) (*model.CloseSessionResponse, error) {
	panic("not used")
}

func (s *scriptedProtocol) InvoiceStatus(context.Context, string, string, string) (*model.InvoiceStatusResponse, error) {
	panic("not used")
}

func (s *scriptedProtocol) InvoiceUpo(context.Context, string, string, string) ([]byte, error) {
	panic("not used")
}

func newTestFlow(protocol *scriptedProtocol, opts ...FlowOption) *Flow {
	engine := cipher.NewEngine(keys.New(protocol))
	base := []FlowOption{WithPolling(2*time.Millisecond, 15)}
	return NewFlow(protocol, engine, append(base, opts...)...)
}

func TestAuthenticate_SucceedsAfterPending(t *testing.T) {

	protocol := newScriptedProtocol(t, []int{302, 302, 200})
	flow := newTestFlow(protocol)

	start := time.Now()
	cred, err := flow.Authenticate(context.Background(), "1234567890", strings.Repeat("a", 40))
	require.NoError(t, err)

	assert.Equal(t, "T1", cred.AccessToken)
	assert.Equal(t, "R1", cred.RefreshToken)
	assert.Equal(t, "AUTH-REF-1", cred.ReferenceNumber)

	assert.Equal(t, 3, protocol.statusCalls, "first poll immediate, then one per pending status")
	assert.Equal(t, 1, protocol.redeemCalls)
	assert.GreaterOrEqual(t, time.Since(start), 4*time.Millisecond, "two waits between three polls")
}

func TestAuthenticate_SendsEncryptedSecret(t *testing.T) {

	protocol := newScriptedProtocol(t, []int{200})
	flow := newTestFlow(protocol)

	secret := strings.Repeat("a", 40)
	_, err := flow.Authenticate(context.Background(), "1234567890", secret)
	require.NoError(t, err)

	req := protocol.lastInit
	assert.Equal(t, "20240101-CR-ABC", req.Challenge)
	assert.Equal(t, model.NIP, req.ContextIdentifier.Type)
	assert.Equal(t, "1234567890", req.ContextIdentifier.Value)

	raw, err := base64.StdEncoding.DecodeString(req.EncryptedToken)
	require.NoError(t, err)

	plain, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, protocol.key, raw, nil)
	require.NoError(t, err)

	expectedMillis := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, fmt.Sprintf("%s|%d", secret, expectedMillis), string(plain))
}

func TestAuthenticate_TimesOutAfterMaxPolls(t *testing.T) {

	pending := make([]int, 15)
	for i := range pending {
		pending[i] = 302
	}
	protocol := newScriptedProtocol(t, pending)
	flow := newTestFlow(protocol)

	_, err := flow.Authenticate(context.Background(), "1234567890", "secret")
	require.Error(t, err)

	var timeout *ksef.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 15, protocol.statusCalls)
	assert.Zero(t, protocol.redeemCalls)
}

func TestAuthenticate_RemoteRejection(t *testing.T) {

	protocol := newScriptedProtocol(t, []int{400})
	flow := newTestFlow(protocol)

	_, err := flow.Authenticate(context.Background(), "1234567890", "secret")
	require.Error(t, err)

	var apiErr *ksef.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, 1, protocol.statusCalls)
	assert.Zero(t, protocol.redeemCalls)
}

func TestAuthenticate_Preconditions(t *testing.T) {

	protocol := newScriptedProtocol(t, nil)
	flow := newTestFlow(protocol)

	_, err := flow.Authenticate(context.Background(), "123", "secret")
	var invalid *ksef.InvalidInputError
	require.ErrorAs(t, err, &invalid)

	_, err = flow.Authenticate(context.Background(), "1234567890", "")
	require.ErrorAs(t, err, &invalid)

	assert.Zero(t, protocol.networkCalls(), "precondition failures must not touch the network")
}

func TestAuthenticate_ContextCancelledDuringPolling(t *testing.T) {

	protocol := newScriptedProtocol(t, []int{302, 302, 302})
	flow := newTestFlow(protocol, WithPolling(time.Hour, 15))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := flow.Authenticate(ctx, "1234567890", "secret")
	require.ErrorIs(t, err, context.Canceled)
}
