package auth

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const defaultExpiryBuffer = 5 * time.Minute

// TokenStore to granica z aplikacją: odczyt długoterminowego sekretu najemcy
// (odszyfrowywanego dopiero w chwili użycia) oraz trwały zapis poświadczeń
// sesyjnych do ponownego użycia po restarcie procesu.
type TokenStore interface {
	LongLivedToken(ctx context.Context, tenantID string) (string, error)
	SessionCredential(ctx context.Context, tenantID string) (*SessionCredential, error)
	SaveSessionCredential(ctx context.Context, tenantID string, cred *SessionCredential) error
	ClearSessionCredential(ctx context.Context, tenantID string) error
}

// Authenticator pozwala podmienić pełny handshake w testach.
type Authenticator interface {
	Authenticate(ctx context.Context, nip, secret string) (*SessionCredential, error)
}

// CredentialCache utrzymuje per-najemcowe poświadczenia sesyjne.
// Gwarancja: dla danego najemcy w locie jest najwyżej jedno logowanie —
// współbieżni wywołujący dzielą jego wynik (single-flight). Odświeżenia
// różnych najemców nie blokują się nawzajem.
type CredentialCache struct {
	flow  Authenticator
	store TokenStore
	clock clockwork.Clock

	buffer time.Duration
	group  singleflight.Group
}

type CacheOption func(*CredentialCache)

func WithCacheClock(clock clockwork.Clock) CacheOption {
	return func(c *CredentialCache) { c.clock = clock }
}

func WithExpiryBuffer(d time.Duration) CacheOption {
	return func(c *CredentialCache) { c.buffer = d }
}

func NewCredentialCache(flow Authenticator, store TokenStore, opts ...CacheOption) *CredentialCache {
	c := &CredentialCache{
		flow:   flow,
		store:  store,
		clock:  clockwork.NewRealClock(),
		buffer: defaultExpiryBuffer,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Valid zwraca ważny access token dla najemcy. Zapisane poświadczenia są
// tylko podpowiedzią na zimny start — ważność zawsze sprawdzamy względem
// chwili wygaśnięcia z marginesem bezpieczeństwa.
func (c *CredentialCache) Valid(ctx context.Context, tenantID string) (string, error) {

	cred, err := c.store.SessionCredential(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if cred != nil && c.clock.Now().Before(cred.AccessExpiry.Add(-c.buffer)) {
		return cred.AccessToken, nil
	}

	return c.refresh(ctx, tenantID)
}

// ForceRefresh pomija sprawdzenie ważności i zawsze wykonuje pełne
// logowanie. Używane po odmowie autoryzacyjnej serwera, gdy cache uważał
// poświadczenia za wciąż ważne (przesunięcie zegara, unieważnienie po
// stronie serwera).
func (c *CredentialCache) ForceRefresh(ctx context.Context, tenantID string) (string, error) {
	return c.refresh(ctx, tenantID)
}

// Invalidate czyści zapisane poświadczenia bez wywołań sieciowych.
func (c *CredentialCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.store.ClearSessionCredential(ctx, tenantID)
}

// refresh jest serializowane per najemca: współbieżni wywołujący czekają na
// wynik logowania już będącego w locie zamiast uruchamiać kolejne. Marker
// "w locie" znika niezależnie od wyniku, więc kolejna próba jest możliwa.
func (c *CredentialCache) refresh(ctx context.Context, tenantID string) (string, error) {

	token, err, _ := c.group.Do(tenantID, func() (interface{}, error) {
		secret, err := c.store.LongLivedToken(ctx, tenantID)
		if err != nil {
			return "", err
		}

		cred, err := c.flow.Authenticate(ctx, tenantID, secret)
		if err != nil {
			return "", err
		}

		if err := c.store.SaveSessionCredential(ctx, tenantID, cred); err != nil {
			return "", err
		}
		return cred.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}
