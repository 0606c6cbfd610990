package keys

import (
	"context"

	"github.com/alapierre/go-ksef-gateway/ksef/model"
)

// fakeProtocolBase dostarcza niepotrzebne w tych testach metody interfejsu.
type fakeProtocolBase struct{}

func (fakeProtocolBase) AuthorisationChallenge(context.Context) (*model.AuthorisationChallengeResponse, error) {
	panic("not used")
}

func (fakeProtocolBase) InitTokenAuthentication(context.Context, model.InitTokenAuthenticationRequest) (*model.AuthenticationInitResponse, error) {
	panic("not used")
}

func (fakeProtocolBase) AuthenticationStatus(context.Context, string, string) (*model.AuthenticationStatusResponse, error) {
	panic("not used")
}

func (fakeProtocolBase) RedeemTokens(context.Context, string) (*model.AuthenticationTokensResponse, error) {
	panic("not used")
}

func (fakeProtocolBase) OpenOnlineSession(context.Context, model.OpenOnlineSessionRequest, string) (*model.OpenOnlineSessionResponse, error) {
	panic("not used")
}

func (fakeProtocolBase) SendInvoice(context.Context, string, model.SendInvoiceRequest, string) (*model.SendInvoiceResponse, error) {
	panic("not used")
}

func (fakeProtocolBase) SessionStatus(context.Context, string, string) (*model.SessionStatusResponse, error) {
	panic("not used")
}

func (fakeProtocolBase) FailedInvoices(context.Context, string, string, int) (*model.SessionFailedInvoicesResponse, error) {
	panic("not used")
}

func (fakeProtocolBase) CloseOnlineSession(context.Context, string, string) (*model.CloseSessionResponse, error) {
	panic("not used")
}

func (fakeProtocolBase) InvoiceStatus(context.Context, string, string, string) (*model.InvoiceStatusResponse, error) {
	panic("not used")
}

func (fakeProtocolBase) InvoiceUpo(context.Context, string, string, string) ([]byte, error) {
	panic("not used")
}
