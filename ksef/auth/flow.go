// Package auth realizuje uwierzytelnianie tokenem KSeF: challenge →
// zaszyfrowany sekret → inicjacja → polling → wymiana na parę tokenów,
// oraz per-najemcowy cache poświadczeń sesyjnych.
package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/alapierre/go-ksef-gateway/ksef"
	"github.com/alapierre/go-ksef-gateway/ksef/api"
	"github.com/alapierre/go-ksef-gateway/ksef/cipher"
	"github.com/alapierre/go-ksef-gateway/ksef/model"
)

var logger = log.WithField("component", "ksef.auth")

var nipPattern = regexp.MustCompile(`^\d{10}$`)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 15
)

// SessionCredential to komplet poświadczeń sesyjnych dla jednego najemcy.
// Wymieniany wyłącznie w całości, nigdy aktualizowany częściowo.
type SessionCredential struct {
	AccessToken     string
	AccessExpiry    time.Time
	RefreshToken    string
	RefreshExpiry   time.Time
	ReferenceNumber string
}

type Flow struct {
	protocol api.ProtocolService
	engine   *cipher.Engine
	clock    clockwork.Clock

	pollInterval time.Duration
	maxPolls     int
}

type FlowOption func(*Flow)

func WithClock(clock clockwork.Clock) FlowOption {
	return func(f *Flow) { f.clock = clock }
}

func WithPolling(interval time.Duration, maxPolls int) FlowOption {
	return func(f *Flow) {
		f.pollInterval = interval
		f.maxPolls = maxPolls
	}
}

func NewFlow(protocol api.ProtocolService, engine *cipher.Engine, opts ...FlowOption) *Flow {
	f := &Flow{
		protocol:     protocol,
		engine:       engine,
		clock:        clockwork.NewRealClock(),
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Authenticate wykonuje pełny handshake i zwraca świeże poświadczenia.
// Porażka nie zostawia żadnego stanu do przypadkowego ponownego użycia.
func (f *Flow) Authenticate(ctx context.Context, nip, secret string) (*SessionCredential, error) {

	if !nipPattern.MatchString(nip) {
		return nil, &ksef.InvalidInputError{Field: "nip", Reason: "must be exactly 10 digits"}
	}
	if secret == "" {
		return nil, &ksef.InvalidInputError{Field: "secret", Reason: "must not be empty"}
	}

	challenge, err := f.protocol.AuthorisationChallenge(ctx)
	if err != nil {
		return nil, err
	}

	encrypted, err := f.engine.EncryptToken(ctx, secret, challenge.Timestamp)
	if err != nil {
		return nil, err
	}

	initResp, err := f.protocol.InitTokenAuthentication(ctx, model.InitTokenAuthenticationRequest{
		Challenge: challenge.Challenge,
		ContextIdentifier: model.ContextIdentifier{
			Type:  model.NIP,
			Value: nip,
		},
		EncryptedToken: encrypted,
	})
	if err != nil {
		return nil, err
	}

	logger.Debugf("authentication initiated, reference %s", initResp.ReferenceNumber)

	if err := f.waitForAuthorisation(ctx, initResp); err != nil {
		return nil, err
	}

	tokens, err := f.protocol.RedeemTokens(ctx, initResp.AuthenticationToken.Token)
	if err != nil {
		return nil, err
	}

	return &SessionCredential{
		AccessToken:     tokens.AccessToken.Token,
		AccessExpiry:    tokens.AccessToken.ValidUntil,
		RefreshToken:    tokens.RefreshToken.Token,
		RefreshExpiry:   tokens.RefreshToken.ValidUntil,
		ReferenceNumber: initResp.ReferenceNumber,
	}, nil
}

// waitForAuthorisation polluje status operacji: pierwsze zapytanie od razu,
// kolejne co pollInterval. Kod statusu w konwencji HTTP: dokładnie 200
// kończy sukcesem, >=400 porażką z opisem zdalnym, wszystko inne to dalsze
// oczekiwanie. Wyczerpanie budżetu prób jest porażką terminalną.
func (f *Flow) waitForAuthorisation(ctx context.Context, initResp *model.AuthenticationInitResponse) error {

	for attempt := 1; attempt <= f.maxPolls; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-f.clock.After(f.pollInterval):
			}
		}

		status, err := f.protocol.AuthenticationStatus(ctx, initResp.ReferenceNumber, initResp.AuthenticationToken.Token)
		if err != nil {
			return err
		}

		code := status.Status.Code
		switch {
		case code == 200:
			logger.Debugf("authentication authorised after %d polls", attempt)
			return nil
		case code >= 400:
			return &ksef.APIError{
				Endpoint:   "auth status",
				StatusCode: code,
				Body:       status.Status.Description,
			}
		default:
			logger.Debugf("authentication pending, code %d (%s)", code, status.Status.Description)
		}
	}

	return &ksef.TimeoutError{Op: "authentication polling", Attempts: f.maxPolls}
}
