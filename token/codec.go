package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Algorithm is the only signature algorithm accepted by the codec.
const Algorithm = "HS256"

var (
	// ErrTokenMalformed marks a structural decode failure: wrong segment
	// count, undecodable base64 or unparsable JSON. For logging purposes a
	// malformed credential counts as a failed attempt, not as a security
	// incident.
	ErrTokenMalformed = errors.New("malformed token")

	// ErrSignatureMismatch marks a token whose signature does not verify.
	// The payload of such a token is never parsed.
	ErrSignatureMismatch = errors.New("token signature mismatch")

	// ErrAlgorithmUnsupported marks a token whose header names any
	// algorithm other than HS256.
	ErrAlgorithmUnsupported = errors.New("unsupported token algorithm")
)

// IsSignatureError reports whether err belongs to the signature failure
// class, as opposed to a structural decode failure. Callers log and count
// the two classes separately.
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrSignatureMismatch) || errors.Is(err, ErrAlgorithmUnsupported)
}

// segmentEncoding encodes the header, payload and signature segments.
// base64url without padding, the alphabet of RFC 7515.
var segmentEncoding = base64.RawURLEncoding

// Codec encodes and decodes signed tokens in the three-segment JWT wire
// format:
//
//	head64 = base64url(json(header))
//	load64 = base64url(json(payload))
//	sign64 = base64url(hmacSHA256(head64 + "." + load64))
//	token  = head64 + "." + load64 + "." + sign64
type Codec struct {
	signer *Signer
}

// NewCodec creates a Codec signing with the given signer.
func NewCodec(signer *Signer) *Codec {
	return &Codec{signer: signer}
}

// Encode serializes and signs a token payload.
func (c *Codec) Encode(payload any) (string, error) {
	head, err := json.Marshal(NewHeader())
	if err != nil {
		return "", fmt.Errorf("marshal token header: %w", err)
	}
	load, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal token payload: %w", err)
	}
	head64 := segmentEncoding.EncodeToString(head)
	load64 := segmentEncoding.EncodeToString(load)
	message := head64 + "." + load64
	sign64 := segmentEncoding.EncodeToString(c.signer.Sign([]byte(message)))
	return message + "." + sign64, nil
}

// Decode restores a token with payload type P from its encoded form.
//
// Tokens embed no type discriminator; the caller always knows which kind it
// expects for a given credential slot and states it through the type
// parameter. The header is parsed first and the algorithm asserted, the
// signature is verified next, and only then is the payload parsed — a token
// that fails verification never has its payload interpreted.
func Decode[P any](c *Codec, encoded string) (*P, error) {
	parts := strings.Split(encoded, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrTokenMalformed, len(parts))
	}
	head64, load64, sign64 := parts[0], parts[1], parts[2]

	head, err := segmentEncoding.DecodeString(head64)
	if err != nil {
		return nil, fmt.Errorf("%w: header segment: %v", ErrTokenMalformed, err)
	}
	var header Header
	if err := json.Unmarshal(head, &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrTokenMalformed, err)
	}
	if header.Algorithm != Algorithm {
		return nil, fmt.Errorf("%w: %q", ErrAlgorithmUnsupported, header.Algorithm)
	}

	signature, err := segmentEncoding.DecodeString(sign64)
	if err != nil {
		return nil, fmt.Errorf("%w: signature segment: %v", ErrTokenMalformed, err)
	}
	if !c.signer.Verify([]byte(head64+"."+load64), signature) {
		return nil, ErrSignatureMismatch
	}

	load, err := segmentEncoding.DecodeString(load64)
	if err != nil {
		return nil, fmt.Errorf("%w: payload segment: %v", ErrTokenMalformed, err)
	}
	payload := new(P)
	if err := json.Unmarshal(load, payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrTokenMalformed, err)
	}
	return payload, nil
}
