package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompactCodec() *CompactCodec {
	return NewCompactCodec(NewSigner([]byte("unit-test-secret")))
}

func TestCompactRoundTrip(t *testing.T) {
	codec := newTestCompactCodec()
	issued := NewAPIAccessKey("alice", []string{"GET", "PUT"}, []string{"/api/v1/elements(/.*)?"}, false)

	encoded, err := codec.Encode(issued)
	require.NoError(t, err)
	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, issued.ID, decoded.ID)
	assert.Equal(t, issued.UserID, decoded.UserID)
	assert.Equal(t, issued.Methods, decoded.Methods)
	assert.Equal(t, issued.Paths, decoded.Paths)
	assert.Equal(t, issued.Temporary, decoded.Temporary)
	assert.True(t, decoded.IssuedAt.Equal(issued.IssuedAt.Time))
}

func TestCompactUnrestrictedKey(t *testing.T) {
	codec := newTestCompactCodec()
	issued := NewAPIAccessKey("alice", nil, nil, true)

	encoded, err := codec.Encode(issued)
	require.NoError(t, err)
	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)

	assert.Nil(t, decoded.Methods)
	assert.Nil(t, decoded.Paths)
	assert.True(t, decoded.Temporary)
}

func TestCompactEncodeRejectsUnsafeValues(t *testing.T) {
	codec := newTestCompactCodec()

	_, err := codec.Encode(&APIAccessKey{ID: "a:b", UserID: "alice", IssuedAt: NewMillis(time.Now())})
	assert.Error(t, err)

	_, err = codec.Encode(&APIAccessKey{ID: "k1", UserID: "ali:ce", IssuedAt: NewMillis(time.Now())})
	assert.Error(t, err)

	_, err = codec.Encode(&APIAccessKey{ID: "k1", UserID: "alice", Paths: []string{"/a,b"}, IssuedAt: NewMillis(time.Now())})
	assert.Error(t, err)

	_, err = codec.Encode(&APIAccessKey{ID: "k1", UserID: "alice", Methods: []string{"ge:t"}, IssuedAt: NewMillis(time.Now())})
	assert.Error(t, err)
}

func TestCompactDecodeRejectsTampering(t *testing.T) {
	codec := newTestCompactCodec()
	issued := NewAPIAccessKey("alice", []string{"GET"}, nil, false)
	encoded, err := codec.Encode(issued)
	require.NoError(t, err)

	// Change the user inside the signed data and re-encode the outer
	// layer, keeping the original signature.
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	forged := base64.StdEncoding.EncodeToString([]byte(
		"mallory" + string(raw[len("mallory"):])))

	_, err = codec.Decode(forged)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestCompactDecodeRejectsGarbage(t *testing.T) {
	codec := newTestCompactCodec()

	_, err := codec.Decode("not base64 !!!")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	// Valid base64 without a signature delimiter.
	_, err = codec.Decode(base64.StdEncoding.EncodeToString([]byte("no delimiter here")))
	assert.ErrorIs(t, err, ErrTokenMalformed)

	_, err = codec.Decode("")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestCompactDecodeRejectsForeignKey(t *testing.T) {
	codec := newTestCompactCodec()
	other := NewCompactCodec(NewSigner([]byte("some-other-secret")))

	encoded, err := other.Encode(NewAPIAccessKey("alice", nil, nil, false))
	require.NoError(t, err)

	_, err = codec.Decode(encoded)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}
