package keys

import (
	"crypto/rsa"
	"encoding/pem"
	"os"

	"github.com/go-faster/errors"
	"github.com/youmark/pkcs8"
)

// LoadEncryptedRSAKeyFromFile ładuje klucz RSA z pliku PEM z blokiem
// ENCRYPTED PRIVATE KEY. Klucz służy magazynowi tokenów do odszyfrowania
// długoterminowych sekretów najemców.
func LoadEncryptedRSAKeyFromFile(path string, password []byte) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read key file")
	}
	return LoadEncryptedRSAKeyFromPEM(b, password)
}

// LoadEncryptedRSAKeyFromPEM ładuje pierwszy znaleziony blok ENCRYPTED PRIVATE KEY.
func LoadEncryptedRSAKeyFromPEM(pemBytes []byte, password []byte) (*rsa.PrivateKey, error) {
	if len(password) == 0 {
		return nil, errors.New("password is required for ENCRYPTED PRIVATE KEY")
	}

	for len(pemBytes) > 0 {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}
		if block.Type != "ENCRYPTED PRIVATE KEY" {
			continue
		}

		keyAny, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, password)
		if err != nil {
			return nil, errors.Wrap(err, "decrypt PKCS#8 encrypted private key")
		}

		key, ok := keyAny.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.Errorf("unsupported key type in PKCS#8: %T (expected RSA)", keyAny)
		}
		return key, nil
	}

	return nil, errors.New("no ENCRYPTED PRIVATE KEY block found in PEM")
}
