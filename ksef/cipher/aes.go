package cipher

import (
	"bytes"
	aes2 "crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/go-faster/errors"
)

// GenerateRandomKey generuje losowy 256-bitowy klucz (32 bajty)
func GenerateRandomKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "generate random key")
	}
	return key, nil
}

// GenerateRandomIV generuje losowy 16-bajtowy wektor inicjalizacji
func GenerateRandomIV() ([]byte, error) {
	iv := make([]byte, aes2.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Wrap(err, "generate random IV")
	}
	return iv, nil
}

// EncryptAES256CBC szyfruje content, używając AES-256-CBC z PKCS#7.
func EncryptAES256CBC(content, key, iv []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, errors.Errorf("invalid key length: %d, expected 32 bytes (AES-256)", len(key))
	}
	if len(iv) != aes2.BlockSize {
		return nil, errors.Errorf("invalid IV length: %d, expected %d", len(iv), aes2.BlockSize)
	}

	block, err := aes2.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "NewCipher")
	}

	padded := pkcs7Pad(content, aes2.BlockSize)
	out := make([]byte, len(padded))

	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out, padded)
	return out, nil
}

// DecryptAES256CBC odszyfrowuje bufor AES-256-CBC z walidacją paddingu PKCS#7.
func DecryptAES256CBC(ciphertext, key, iv []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, errors.Errorf("invalid key length: %d, expected 32 bytes (AES-256)", len(key))
	}
	if len(iv) != aes2.BlockSize {
		return nil, errors.Errorf("invalid IV length: %d, expected %d", len(iv), aes2.BlockSize)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes2.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a multiple of the block size")
	}

	block, err := aes2.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "NewCipher")
	}
	mode := cipher.NewCBCDecrypter(block, iv)

	plain := make([]byte, len(ciphertext))
	mode.CryptBlocks(plain, ciphertext)

	pad := int(plain[len(plain)-1])
	if pad <= 0 || pad > aes2.BlockSize || pad > len(plain) {
		return nil, errors.New("invalid padding")
	}
	for i := 0; i < pad; i++ {
		if plain[len(plain)-1-i] != byte(pad) {
			return nil, errors.New("invalid padding")
		}
	}
	return plain[:len(plain)-pad], nil
}

func pkcs7Pad(src []byte, blockSize int) []byte {
	padLen := blockSize - (len(src) % blockSize)
	if padLen == 0 {
		padLen = blockSize
	}
	return append(src, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}
