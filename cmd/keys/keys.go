package keys

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"posbot/src/auth"
	"posbot/src/security"
)

var ErrNoInput = errors.New("nothing to process, pass the value as argument")

// EncryptSecret prints the enc: form of each value, ready for EXCHANGE_API_KEY / EXCHANGE_API_SECRET.
// With generate set and no key configured, a new key is printed first and used.
func EncryptSecret(out io.Writer, values []string, generate bool) error {
	if len(values) == 0 {
		return ErrNoInput
	}

	key := security.GetConfig().ExchangeCRKey
	if key == "" && generate {
		var err error
		if key, err = security.GenerateKey(); err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if _, err := fmt.Fprintf(out, "EXCHANGE_CREDENTIALS_KEY=%s\n", key); err != nil {
			return err
		}
	}

	for _, v := range values {
		enc, err := security.EncryptWithKey(key, strings.TrimSpace(v))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, enc); err != nil {
			return err
		}
	}
	return nil
}

// HashToken prints the API_TOKEN_HASH line for token.
func HashToken(out io.Writer, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrNoInput
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "API_TOKEN_HASH=%s\n", hash)
	return err
}
