package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setKey(t *testing.T) string {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", key)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	setKey(t)

	enc, err := EncryptString("my-api-secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, EncryptedPrefix))
	assert.NotContains(t, enc, "my-api-secret")

	plain, err := DecryptString(enc)
	require.NoError(t, err)
	assert.Equal(t, "my-api-secret", plain)
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	setKey(t)

	a, err := EncryptString("same")
	require.NoError(t, err)
	b, err := EncryptString("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	setKey(t)
	enc, err := EncryptString("secret")
	require.NoError(t, err)

	setKey(t)
	_, err = DecryptString(enc)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	setKey(t)

	_, err := DecryptString("enc:not-base64!")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = DecryptString("enc:AAAA")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestMissingAndInvalidKey(t *testing.T) {
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", "")
	_, err := EncryptString("x")
	assert.ErrorIs(t, err, ErrMissingKey)

	t.Setenv("EXCHANGE_CREDENTIALS_KEY", "c2hvcnQ=")
	_, err = DecryptString("enc:AAAA")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestReveal(t *testing.T) {
	setKey(t)

	plain, err := Reveal("plain-key")
	require.NoError(t, err)
	assert.Equal(t, "plain-key", plain)

	enc, err := EncryptString("hidden")
	require.NoError(t, err)
	plain, err = Reveal(enc)
	require.NoError(t, err)
	assert.Equal(t, "hidden", plain)
}
