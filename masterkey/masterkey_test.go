package masterkey

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := New("", "")
	require.NoError(t, err)

	for _, plaintext := range []string{
		"",
		"x",
		"exactly 16 bytes",
		"a longer secret spanning multiple AES blocks for good measure",
	} {
		encrypted, err := key.Encrypt([]byte(plaintext))
		require.NoError(t, err)

		decrypted, err := key.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, plaintext, string(decrypted))
	}
}

func TestDifferentPassphrasesDisagree(t *testing.T) {
	a, err := New(base64.StdEncoding.EncodeToString([]byte("passphrase-a")), "")
	require.NoError(t, err)
	b, err := New(base64.StdEncoding.EncodeToString([]byte("passphrase-b")), "")
	require.NoError(t, err)

	encrypted, err := a.Encrypt([]byte("secret"))
	require.NoError(t, err)

	decrypted, err := b.Decrypt(encrypted)
	if err == nil {
		assert.NotEqual(t, "secret", string(decrypted))
	}
}

func TestExplicitIVChangesCiphertext(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("passphrase"))
	derived, err := New(secret, "")
	require.NoError(t, err)
	explicit, err := New(secret, base64.StdEncoding.EncodeToString([]byte("other-iv-seed")))
	require.NoError(t, err)

	a, err := derived.Encrypt([]byte("secret"))
	require.NoError(t, err)
	b, err := explicit.Encrypt([]byte("secret"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsBadInput(t *testing.T) {
	key, err := New("", "")
	require.NoError(t, err)

	_, err = key.Decrypt("not base64 !!!")
	assert.Error(t, err)

	// Valid base64, wrong block length.
	_, err = key.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestNewRejectsBadEncoding(t *testing.T) {
	_, err := New("not base64 !!!", "")
	assert.Error(t, err)

	_, err = New("", "not base64 !!!")
	assert.Error(t, err)
}
