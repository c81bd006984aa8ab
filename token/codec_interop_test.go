package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The wire format is plain HS256 JWT; an off-the-shelf JWT library must be
// able to verify what the codec emits.
func TestEmittedTokensVerifyWithJWTLibrary(t *testing.T) {
	secret := []byte("unit-test-secret")
	codec := NewCodec(NewSigner(secret))
	issued := NewSessionToken("alice", []string{"admin"}, time.Now().Add(time.Hour))

	encoded, err := codec.Encode(issued)
	require.NoError(t, err)

	parsed, err := jwt.Parse(encoded,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "alice", claims["subject"])
	assert.Equal(t, issued.ID, claims["id"])

	// And the wrong key is rejected there too.
	_, err = jwt.Parse(encoded,
		func(*jwt.Token) (any, error) { return []byte("some-other-secret"), nil },
		jwt.WithValidMethods([]string{"HS256"}))
	assert.Error(t, err)
}
