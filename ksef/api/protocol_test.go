package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alapierre/go-ksef-gateway/ksef"
	"github.com/alapierre/go-ksef-gateway/ksef/model"
)

func serviceFor(handler http.HandlerFunc) (ProtocolService, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewProtocolService(NewWithBaseURL(server.URL)), server
}

func TestAuthorisationChallenge(t *testing.T) {

	service, server := serviceFor(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/challenge", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"challenge":"20240101-CR-ABC","timestamp":"2024-01-01T10:00:00Z"}`))
	})
	defer server.Close()

	res, err := service.AuthorisationChallenge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20240101-CR-ABC", res.Challenge)
	assert.Equal(t, 2024, res.Timestamp.Year())
}

func TestErrorResponse_BecomesAPIError(t *testing.T) {

	service, server := serviceFor(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":21101,"description":"Nieprawidłowy token"}}`))
	})
	defer server.Close()

	_, err := service.AuthorisationChallenge(context.Background())
	require.Error(t, err)

	var apiErr *ksef.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "21101")
	assert.NotNil(t, apiErr.Details)
}

func TestUnreachableServer_BecomesNetworkError(t *testing.T) {

	service, server := serviceFor(func(w http.ResponseWriter, r *http.Request) {})
	server.Close() // serwer pada zanim padnie pierwsze żądanie

	_, err := service.AuthorisationChallenge(context.Background())
	require.Error(t, err)

	var netErr *ksef.NetworkError
	assert.ErrorAs(t, err, &netErr)

	var apiErr *ksef.APIError
	assert.False(t, ksef.IsAuthorizationError(err))
	assert.NotErrorAs(t, err, &apiErr)
}

func TestBearerTokenIsSent(t *testing.T) {

	service, server := serviceFor(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":{"code":200,"description":"OK"}}`))
	})
	defer server.Close()

	_, err := service.SessionStatus(context.Background(), "SR-1", "access-123")
	require.NoError(t, err)
}

func TestCloseOnlineSession_EmptyBodyIsSuccess(t *testing.T) {

	service, server := serviceFor(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/online/SR-1/close", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	defer server.Close()

	res, err := service.CloseOnlineSession(context.Background(), "SR-1", "access-123")
	require.NoError(t, err)
	require.NotNil(t, res)
}

func TestInvoiceUpo_RequestsXML(t *testing.T) {

	upo := []byte(`<?xml version="1.0"?><Potwierdzenie/>`)
	service, server := serviceFor(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/SR-1/invoices/IR-1/upo", r.URL.Path)
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write(upo)
	})
	defer server.Close()

	body, err := service.InvoiceUpo(context.Background(), "SR-1", "IR-1", "access-123")
	require.NoError(t, err)
	assert.Equal(t, upo, body)
}

func TestSendInvoice(t *testing.T) {

	service, server := serviceFor(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/online/SR-1/invoices", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"referenceNumber":"IR-9"}`))
	})
	defer server.Close()

	res, err := service.SendInvoice(context.Background(), "SR-1", model.SendInvoiceRequest{
		InvoiceHash: "abc",
		InvoiceSize: 3,
	}, "access-123")
	require.NoError(t, err)
	assert.Equal(t, "IR-9", res.ReferenceNumber)
}

func TestAuthorizationErrorDetection(t *testing.T) {

	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		service, server := serviceFor(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})

		_, err := service.SessionStatus(context.Background(), "SR-1", "stale")
		server.Close()

		require.Error(t, err)
		assert.True(t, ksef.IsAuthorizationError(err), "status %d must be an authorization error", code)
	}

	service, server := serviceFor(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	_, err := service.SessionStatus(context.Background(), "SR-1", "ok")
	require.Error(t, err)
	assert.False(t, ksef.IsAuthorizationError(err))
}
