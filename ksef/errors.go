package ksef

import (
	"errors"
	"fmt"
	"net/http"
)

// InvalidInputError oznacza, że dane wejściowe nie przeszły walidacji
// jeszcze przed jakimkolwiek wywołaniem sieciowym. Nigdy nie ponawiamy.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// NetworkError to błąd transportu (DNS, timeout, connection refused).
// Nie niesie kodu HTTP — serwer nie zdążył nic odpowiedzieć.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError to jawna odmowa serwera: status spoza 2xx wraz z surowym ciałem
// odpowiedzi i zdekodowanymi szczegółami, jeśli ciało było JSON-em.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Details    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s status: %d message: %s", e.Endpoint, e.StatusCode, e.Body)
}

// CryptoError opakowuje każdy błąd kryptograficzny lub błąd pobrania klucza.
// Ponawianie zwykle nic nie zmieni, więc traktujemy go jako terminalny.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto error in %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// TimeoutError sygnalizuje wyczerpanie budżetu pollowania.
type TimeoutError struct {
	Op       string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s did not complete after %d attempts", e.Op, e.Attempts)
}

// IsAuthorizationError rozpoznaje odmowę autoryzacyjną (401/403), po której
// workflow ma prawo jednorazowo wymusić odświeżenie poświadczeń.
func IsAuthorizationError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// APIStatus zwraca kod HTTP z błędu API albo 0, jeśli błąd nie pochodzi
// z odpowiedzi serwera.
func APIStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
