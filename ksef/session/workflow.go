// Package session prowadzi pełną sekwencję wysyłki jednego dokumentu:
// otwarcie sesji interaktywnej, wysyłka, odpytanie o status, pobranie UPO
// i zamknięcie sesji.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/alapierre/go-ksef-gateway/ksef"
	"github.com/alapierre/go-ksef-gateway/ksef/api"
	"github.com/alapierre/go-ksef-gateway/ksef/cipher"
	"github.com/alapierre/go-ksef-gateway/ksef/model"
)

var logger = log.WithField("component", "ksef.session")

const (
	defaultSettleDelay = 2 * time.Second

	// statusStillProcessing to udokumentowana odmowa zamknięcia sesji, w
	// której trwa jeszcze przetwarzanie wysyłek. Serwis domknie ją sam —
	// to oczekiwany wynik, nie anomalia.
	statusStillProcessing = http.StatusConflict
)

// CredentialSource dostarcza ważne tokeny dostępu per najemca.
// Implementuje go auth.CredentialCache.
type CredentialSource interface {
	Valid(ctx context.Context, tenantID string) (string, error)
	ForceRefresh(ctx context.Context, tenantID string) (string, error)
}

type Workflow struct {
	protocol    api.ProtocolService
	engine      *cipher.Engine
	credentials CredentialSource
	clock       clockwork.Clock
	settleDelay time.Duration
}

type Option func(*Workflow)

func WithClock(clock clockwork.Clock) Option {
	return func(w *Workflow) { w.clock = clock }
}

func WithSettleDelay(d time.Duration) Option {
	return func(w *Workflow) { w.settleDelay = d }
}

func NewWorkflow(protocol api.ProtocolService, engine *cipher.Engine, credentials CredentialSource, opts ...Option) *Workflow {
	w := &Workflow{
		protocol:    protocol,
		engine:      engine,
		credentials: credentials,
		clock:       clockwork.NewRealClock(),
		settleDelay: defaultSettleDelay,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Result opisuje wynik wysyłki. Status niesie decyzję serwisu: przyjęcie,
// odrzucenie merytoryczne albo dalsze przetwarzanie — wszystkie trzy to
// poprawnie zakończony protokół, nie błąd warstwy integracyjnej.
type Result struct {
	SessionReference string
	InvoiceReference string
	KsefNumber       string
	Status           model.OperationStatus
	Upo              []byte
}

// Accepted mówi, czy serwis przyjął dokument.
func (r *Result) Accepted() bool {
	return r.Status.Code == 200
}

// SubmitInvoice wysyła jeden dokument XML w imieniu najemcy. Jeżeli pierwsza
// próba kończy się odmową autoryzacyjną, wymuszamy jednorazowe odświeżenie
// poświadczeń i powtarzamy całą sekwencję dokładnie raz — druga odmowa jest
// terminalna.
func (w *Workflow) SubmitInvoice(ctx context.Context, tenantID string, document []byte) (*Result, error) {

	submissionID := uuid.NewString()
	wlog := logger.WithField("submission", submissionID).WithField("tenant", tenantID)

	token, err := w.credentials.Valid(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result, err := w.run(ctx, wlog, token, document)
	if err == nil || !ksef.IsAuthorizationError(err) {
		return result, err
	}

	wlog.Infof("authorization rejected (%d), forcing credential refresh and retrying once", ksef.APIStatus(err))

	token, err = w.credentials.ForceRefresh(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return w.run(ctx, wlog, token, document)
}

func (w *Workflow) run(ctx context.Context, wlog *log.Entry, token string, document []byte) (*Result, error) {

	enc, err := w.engine.EncryptDocument(ctx, document)
	if err != nil {
		return nil, err
	}
	hashes := cipher.DocumentHashes(document, enc.Ciphertext)

	session, err := w.protocol.OpenOnlineSession(ctx, model.OpenOnlineSessionRequest{
		FormCode: model.FormCode{
			SystemCode:    "FA (2)",
			SchemaVersion: "1-0E",
			Value:         "FA",
		},
		Encryption: model.Encryption{
			EncryptedSymmetricKey: enc.WrappedKey,
			InitializationVector:  enc.IV,
		},
	}, token)
	if err != nil {
		return nil, err
	}

	wlog.Debugf("session %s open until %s", session.ReferenceNumber, session.ValidUntil)

	sent, err := w.protocol.SendInvoice(ctx, session.ReferenceNumber, model.SendInvoiceRequest{
		InvoiceHash:             hashes.PlainHash,
		InvoiceSize:             hashes.PlainSize,
		EncryptedInvoiceHash:    hashes.CipherHash,
		EncryptedInvoiceSize:    hashes.CipherSize,
		EncryptedInvoiceContent: base64.StdEncoding.EncodeToString(enc.Ciphertext),
	}, token)
	if err != nil {
		return nil, err
	}

	// krótka przerwa na przetworzenie po stronie serwisu
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.clock.After(w.settleDelay):
	}

	status, err := w.protocol.InvoiceStatus(ctx, session.ReferenceNumber, sent.ReferenceNumber, token)
	if err != nil {
		return nil, err
	}

	result := &Result{
		SessionReference: session.ReferenceNumber,
		InvoiceReference: sent.ReferenceNumber,
		KsefNumber:       status.KsefNumber,
		Status:           status.Status,
	}

	// pobranie UPO jest best-effort: porażka nie obniża już przyjętego wyniku
	if result.Accepted() {
		upo, upoErr := w.protocol.InvoiceUpo(ctx, session.ReferenceNumber, sent.ReferenceNumber, token)
		if upoErr != nil {
			wlog.Warnf("cannot fetch UPO for accepted invoice: %v", upoErr)
		} else {
			result.Upo = upo
		}
	}

	w.closeSession(ctx, wlog, session.ReferenceNumber, token)

	return result, nil
}

// closeSession jest best-effort. Odmowa "sesja jeszcze przetwarza" to
// oczekiwany wynik — serwis domknie sesję sam po zakończeniu przetwarzania.
func (w *Workflow) closeSession(ctx context.Context, wlog *log.Entry, sessionRef, token string) {

	_, err := w.protocol.CloseOnlineSession(ctx, sessionRef, token)
	if err == nil {
		return
	}

	var apiErr *ksef.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == statusStillProcessing {
		wlog.Debugf("session %s still processing, will auto-close", sessionRef)
		return
	}

	wlog.Warnf("cannot close session %s: %v", sessionRef, err)
}
