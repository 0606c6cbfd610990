// Package qr buduje link weryfikacyjny przyjętej faktury i renderuje go
// jako kod QR.
package qr

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/skip2/go-qrcode"

	"github.com/alapierre/go-ksef-gateway/ksef"
)

// GenerateVerificationLink buduje link w formacie:
// https://{qr-env}/client-app/invoice/{NIP}/{DD-MM-YYYY}/{Base64URL(SHA256(xml)) no padding}
func GenerateVerificationLink(env ksef.Environment, nip string, issueDate time.Time, invoiceXML []byte) (string, error) {
	baseQR, err := QRBaseURL(env.BaseURL())
	if err != nil {
		return "", err
	}

	normalizedNip, err := normalizeAndValidateNip(nip)
	if err != nil {
		return "", err
	}

	date := issueDate.Format("02-01-2006") // dd-MM-yyyy
	hash := computeInvoiceHashBase64URL(invoiceXML)

	return fmt.Sprintf("%s/client-app/invoice/%s/%s/%s", strings.TrimRight(baseQR, "/"), normalizedNip, date, hash), nil
}

// VerificationQR renderuje link weryfikacyjny jako PNG z kodem QR.
func VerificationQR(env ksef.Environment, nip string, issueDate time.Time, invoiceXML []byte) ([]byte, error) {
	link, err := GenerateVerificationLink(env, nip, issueDate, invoiceXML)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(link, qrcode.Medium, 300)
}

// QRBaseURL mapuje BaseURL() na host qr-...
func QRBaseURL(base string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", errors.New("base URL is empty")
	}

	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", errors.Wrap(err, "invalid base URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("base URL must include scheme and host, got: %q", base)
	}

	host := u.Host
	host = strings.Replace(host, "api-", "qr-", 1)
	host = strings.Replace(host, "api.", "qr.", 1)

	u.Host = host
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}

func computeInvoiceHashBase64URL(invoiceXML []byte) string {
	sum := sha256.Sum256(invoiceXML)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

var nipDigitsRe = regexp.MustCompile(`\D+`)

func normalizeAndValidateNip(nip string) (string, error) {
	digits := nipDigitsRe.ReplaceAllString(nip, "")
	if len(digits) != 10 {
		return "", errors.New("NIP must contain exactly 10 digits")
	}
	return digits, nil
}
