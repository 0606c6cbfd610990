// Package keys pobiera i buforuje certyfikaty kluczy publicznych KSeF,
// z podziałem na przeznaczenie (szyfrowanie tokena vs. opakowanie klucza
// symetrycznego).
package keys

import (
	"context"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/alapierre/go-ksef-gateway/ksef"
	"github.com/alapierre/go-ksef-gateway/ksef/api"
	"github.com/alapierre/go-ksef-gateway/ksef/model"
)

var logger = log.WithField("component", "ksef.keys")

const defaultTTL = 24 * time.Hour

// PemCertificate to sformatowany certyfikat wraz z oknem ważności
// zadeklarowanym przez serwis.
type PemCertificate struct {
	PEM       []byte
	ValidFrom time.Time
	ValidTo   time.Time
}

// KeyStore utrzymuje własny, jawnie posiadany cache certyfikatów.
// Brak globalnego stanu: cykl życia wiąże aplikacja, która go utworzyła.
type KeyStore struct {
	protocol api.ProtocolService
	clock    clockwork.Clock
	ttl      time.Duration

	mu    sync.RWMutex
	cache map[model.KeyUsage]cacheEntry
}

type cacheEntry struct {
	cert      PemCertificate
	fetchedAt time.Time
}

type Option func(*KeyStore)

func WithTTL(ttl time.Duration) Option {
	return func(s *KeyStore) { s.ttl = ttl }
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *KeyStore) { s.clock = clock }
}

func New(protocol api.ProtocolService, opts ...Option) *KeyStore {
	s := &KeyStore{
		protocol: protocol,
		clock:    clockwork.NewRealClock(),
		ttl:      defaultTTL,
		cache:    make(map[model.KeyUsage]cacheEntry),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PublicKey zwraca certyfikat dla zadanego przeznaczenia. Trafienie w cache
// młodsze niż TTL wraca natychmiast; w przeciwnym razie jedno pobranie
// odświeża oba przeznaczenia naraz.
func (s *KeyStore) PublicKey(ctx context.Context, usage model.KeyUsage) (*PemCertificate, error) {

	if cert, ok := s.cached(usage); ok {
		return cert, nil
	}

	return s.fetchAndSelect(ctx, usage)
}

func (s *KeyStore) cached(usage model.KeyUsage) (*PemCertificate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[usage]
	if !ok {
		return nil, false
	}
	if s.clock.Since(entry.fetchedAt) >= s.ttl {
		return nil, false
	}
	cert := entry.cert
	return &cert, true
}

func (s *KeyStore) fetchAndSelect(ctx context.Context, usage model.KeyUsage) (*PemCertificate, error) {

	certs, err := s.protocol.PublicKeyCertificates(ctx)
	if err != nil {
		return nil, &ksef.CryptoError{Op: "fetch public key certificates", Err: err}
	}
	if len(certs) == 0 {
		return nil, &ksef.CryptoError{Op: "fetch public key certificates", Err: errors.New("empty certificate list")}
	}

	// walidacja zamknięta: jedno niekompletne DTO odrzuca całą partię,
	// zamiast po cichu przefiltrować
	for i, c := range certs {
		if err := validate(c); err != nil {
			return nil, &ksef.CryptoError{Op: "validate public key certificates", Err: errors.Wrapf(err, "certificate %d", i)}
		}
	}

	now := s.clock.Now()
	byUsage := map[model.KeyUsage]*model.PublicKeyCertificate{}
	for i := range certs {
		c := certs[i]
		if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
			continue
		}
		for _, u := range c.Usage {
			if prev, ok := byUsage[u]; !ok || c.ValidFrom.After(prev.ValidFrom) {
				byUsage[u] = &certs[i]
			}
		}
	}

	// buforujemy oportunistycznie każde znalezione przeznaczenie
	s.mu.Lock()
	for u, c := range byUsage {
		s.cache[u] = cacheEntry{cert: toPem(*c), fetchedAt: now}
	}
	s.mu.Unlock()

	if c, ok := byUsage[usage]; ok {
		cert := toPem(*c)
		return &cert, nil
	}

	// Zachowanie odziedziczone: przy braku dokładnego przeznaczenia bierzemy
	// certyfikat drugiego. Serwer najpewniej odrzuci tak zaszyfrowane dane,
	// więc logujemy to głośno.
	// TODO: rozważyć twardy błąd zamiast fallbacku
	other := otherUsage(usage)
	if c, ok := byUsage[other]; ok {
		logger.Warnf("no certificate with usage %s, falling back to %s", usage, other)
		cert := toPem(*c)
		return &cert, nil
	}

	return nil, &ksef.CryptoError{Op: "select public key certificate", Err: errors.Errorf("no valid certificate with usage %s", usage)}
}

func validate(c model.PublicKeyCertificate) error {
	if c.Certificate == "" {
		return errors.New("empty certificate body")
	}
	if _, err := base64.StdEncoding.DecodeString(strip(c.Certificate)); err != nil {
		return errors.Wrap(err, "certificate is not valid base64")
	}
	if c.ValidFrom.IsZero() || c.ValidTo.IsZero() {
		return errors.New("missing validity window")
	}
	if len(c.Usage) == 0 {
		return errors.New("empty usage list")
	}
	return nil
}

func otherUsage(usage model.KeyUsage) model.KeyUsage {
	if usage == model.UsageTokenEncryption {
		return model.UsageSymmetricKeyEncryption
	}
	return model.UsageTokenEncryption
}

// toPem zawija base64 DER w linie o stałej szerokości z nagłówkiem i stopką
func toPem(c model.PublicKeyCertificate) PemCertificate {
	der, _ := base64.StdEncoding.DecodeString(strip(c.Certificate)) // zwalidowane wcześniej
	block := &pem.Block{
		Type:  "CERTIFICATE",
		Bytes: der,
	}
	return PemCertificate{
		PEM:       pem.EncodeToMemory(block),
		ValidFrom: c.ValidFrom,
		ValidTo:   c.ValidTo,
	}
}

func strip(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
}
