package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// EncryptedPrefix marks a value produced by EncryptString.
const EncryptedPrefix = "enc:"

const nonceSize = 24

var (
	ErrMissingKey = errors.New("EXCHANGE_CREDENTIALS_KEY is not set")
	ErrInvalidKey = errors.New("EXCHANGE_CREDENTIALS_KEY must be base64 of 32 bytes")
	ErrDecrypt    = errors.New("cannot decrypt credential")
)

func parseKey(encoded string) (*[32]byte, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, ErrMissingKey
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidKey
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// GenerateKey returns a fresh base64 key suitable for EXCHANGE_CREDENTIALS_KEY.
func GenerateKey() (string, error) {
	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key[:]), nil
}

// EncryptString seals plain with the configured key and returns "enc:<base64(nonce|box)>".
func EncryptString(plain string) (string, error) {
	return EncryptWithKey(GetConfig().ExchangeCRKey, plain)
}

// DecryptString opens a value produced by EncryptString.
func DecryptString(value string) (string, error) {
	return decryptWithKey(GetConfig().ExchangeCRKey, value)
}

// Reveal returns value unchanged unless it carries the encrypted prefix, in which case it is decrypted.
func Reveal(value string) (string, error) {
	if !strings.HasPrefix(value, EncryptedPrefix) {
		return value, nil
	}
	return DecryptString(value)
}

// EncryptWithKey is EncryptString with an explicit base64 key.
func EncryptWithKey(encodedKey, plain string) (string, error) {
	key, err := parseKey(encodedKey)
	if err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, key)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func decryptWithKey(encodedKey, value string) (string, error) {
	key, err := parseKey(encodedKey)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, key)
	if !ok {
		return "", fmt.Errorf("%w: authentication failed", ErrDecrypt)
	}
	return string(plain), nil
}
