package api

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/alapierre/go-ksef-gateway/ksef/model"
)

// ProtocolService wystawia po jednej metodzie na każdy endpoint KSeF.
// Metody są bezstanowe: sekwencjonowaniem zajmują się pakiety auth i session.
type ProtocolService interface {
	AuthorisationChallenge(ctx context.Context) (*model.AuthorisationChallengeResponse, error)
	InitTokenAuthentication(ctx context.Context, req model.InitTokenAuthenticationRequest) (*model.AuthenticationInitResponse, error)
	AuthenticationStatus(ctx context.Context, referenceNumber, authToken string) (*model.AuthenticationStatusResponse, error)
	RedeemTokens(ctx context.Context, authToken string) (*model.AuthenticationTokensResponse, error)

	OpenOnlineSession(ctx context.Context, req model.OpenOnlineSessionRequest, accessToken string) (*model.OpenOnlineSessionResponse, error)
	SendInvoice(ctx context.Context, sessionRef string, req model.SendInvoiceRequest, accessToken string) (*model.SendInvoiceResponse, error)
	SessionStatus(ctx context.Context, sessionRef, accessToken string) (*model.SessionStatusResponse, error)
	FailedInvoices(ctx context.Context, sessionRef, accessToken string, pageSize int) (*model.SessionFailedInvoicesResponse, error)
	CloseOnlineSession(ctx context.Context, sessionRef, accessToken string) (*model.CloseSessionResponse, error)
	InvoiceStatus(ctx context.Context, sessionRef, invoiceRef, accessToken string) (*model.InvoiceStatusResponse, error)
	InvoiceUpo(ctx context.Context, sessionRef, invoiceRef, accessToken string) ([]byte, error)

	PublicKeyCertificates(ctx context.Context) ([]model.PublicKeyCertificate, error)
}

type protocol struct {
	client Client
}

var logger = log.WithField("component", "ksef.api")

func NewProtocolService(client Client) ProtocolService {
	return &protocol{client: client}
}

// AuthorisationChallenge pobiera jednorazowe wyzwanie rozpoczynające logowanie
func (p *protocol) AuthorisationChallenge(ctx context.Context) (*model.AuthorisationChallengeResponse, error) {

	logger.Debug("Authorisation challenge")

	res := &model.AuthorisationChallengeResponse{}
	err := p.client.PostJsonNoAuth(ctx, "/auth/challenge", nil, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// InitTokenAuthentication wysyła zaszyfrowany token i otwiera operację uwierzytelniania
func (p *protocol) InitTokenAuthentication(ctx context.Context, req model.InitTokenAuthenticationRequest) (*model.AuthenticationInitResponse, error) {

	logger.Debug("Init token authentication")

	res := &model.AuthenticationInitResponse{}
	err := p.client.PostJsonNoAuth(ctx, "/auth/ksef-token", req, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AuthenticationStatus sprawdza stan operacji uwierzytelniania (bearer = token tymczasowy)
func (p *protocol) AuthenticationStatus(ctx context.Context, referenceNumber, authToken string) (*model.AuthenticationStatusResponse, error) {

	res := &model.AuthenticationStatusResponse{}
	endpoint := fmt.Sprintf("/auth/%s", referenceNumber)
	err := p.client.GetJson(ctx, endpoint, authToken, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RedeemTokens wymienia token tymczasowy na docelową parę access/refresh
func (p *protocol) RedeemTokens(ctx context.Context, authToken string) (*model.AuthenticationTokensResponse, error) {

	logger.Debug("Redeem tokens")

	res := &model.AuthenticationTokensResponse{}
	err := p.client.PostJson(ctx, "/auth/token/redeem", authToken, nil, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// OpenOnlineSession otwiera sesję interaktywną z zadeklarowanym szyfrowaniem
func (p *protocol) OpenOnlineSession(ctx context.Context, req model.OpenOnlineSessionRequest, accessToken string) (*model.OpenOnlineSessionResponse, error) {

	logger.Debug("Open online session")

	res := &model.OpenOnlineSessionResponse{}
	err := p.client.PostJson(ctx, "/sessions/online", accessToken, req, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *protocol) SendInvoice(ctx context.Context, sessionRef string, req model.SendInvoiceRequest, accessToken string) (*model.SendInvoiceResponse, error) {

	logger.Debugf("Send invoice to session %s", sessionRef)

	res := &model.SendInvoiceResponse{}
	endpoint := fmt.Sprintf("/sessions/online/%s/invoices", sessionRef)
	err := p.client.PostJson(ctx, endpoint, accessToken, req, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *protocol) SessionStatus(ctx context.Context, sessionRef, accessToken string) (*model.SessionStatusResponse, error) {

	res := &model.SessionStatusResponse{}
	endpoint := fmt.Sprintf("/sessions/%s", sessionRef)
	err := p.client.GetJson(ctx, endpoint, accessToken, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *protocol) FailedInvoices(ctx context.Context, sessionRef, accessToken string, pageSize int) (*model.SessionFailedInvoicesResponse, error) {

	res := &model.SessionFailedInvoicesResponse{}
	endpoint := fmt.Sprintf("/sessions/%s/invoices/failed?pageSize=%d", sessionRef, pageSize)
	err := p.client.GetJson(ctx, endpoint, accessToken, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CloseOnlineSession zamyka sesję. Serwis może odpowiedzieć 204 bez ciała —
// to pełnoprawny sukces, nie błąd parsowania.
func (p *protocol) CloseOnlineSession(ctx context.Context, sessionRef, accessToken string) (*model.CloseSessionResponse, error) {

	logger.Debugf("Close online session %s", sessionRef)

	res := &model.CloseSessionResponse{}
	endpoint := fmt.Sprintf("/sessions/online/%s/close", sessionRef)
	err := p.client.PostJson(ctx, endpoint, accessToken, nil, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *protocol) InvoiceStatus(ctx context.Context, sessionRef, invoiceRef, accessToken string) (*model.InvoiceStatusResponse, error) {

	res := &model.InvoiceStatusResponse{}
	endpoint := fmt.Sprintf("/sessions/%s/invoices/%s", sessionRef, invoiceRef)
	err := p.client.GetJson(ctx, endpoint, accessToken, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// InvoiceUpo pobiera urzędowe poświadczenie odbioru jako surowy XML
func (p *protocol) InvoiceUpo(ctx context.Context, sessionRef, invoiceRef, accessToken string) ([]byte, error) {

	endpoint := fmt.Sprintf("/sessions/%s/invoices/%s/upo", sessionRef, invoiceRef)
	return p.client.GetRaw(ctx, endpoint, accessToken, "application/xml")
}

func (p *protocol) PublicKeyCertificates(ctx context.Context) ([]model.PublicKeyCertificate, error) {

	var res []model.PublicKeyCertificate
	err := p.client.GetJson(ctx, "/security/public-key-certificates", "", &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}
