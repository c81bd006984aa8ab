package token

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CompactCodec encodes API access keys in the compact colon-delimited
// format used for keys issued once and handed to an operator out of band:
//
//	data  = id:userId:methods:paths:temporary:createdAtMillis
//	token = base64(data + ":" + base64(hmacSHA256(data)))
//
// with methods and paths comma-joined. The format is deliberately terse and
// not self-describing; decoding splits on the last colon to separate the
// signature from the data, so field values must stay within the safe
// character set enforced by Encode. Both base64 layers use the standard
// alphabet with padding.
//
// Nothing on the wire distinguishes a compact key from a JWT; callers pick
// the decoder from context (see the bearer-token heuristic in httpauth).
type CompactCodec struct {
	signer *Signer
}

// NewCompactCodec creates a CompactCodec signing with the given signer.
func NewCompactCodec(signer *Signer) *CompactCodec {
	return &CompactCodec{signer: signer}
}

// Encode serializes and signs an access key. Methods and paths containing a
// colon or comma cannot be represented and are rejected.
func (c *CompactCodec) Encode(key *APIAccessKey) (string, error) {
	if strings.ContainsRune(key.ID, ':') || strings.ContainsRune(key.UserID, ':') {
		return "", fmt.Errorf("access key id and user id must not contain ':'")
	}
	if err := checkCompactSafe("method", key.Methods); err != nil {
		return "", err
	}
	if err := checkCompactSafe("path", key.Paths); err != nil {
		return "", err
	}

	data := fmt.Sprintf("%s:%s:%s:%s:%t:%d",
		key.ID,
		key.UserID,
		strings.Join(key.Methods, ","),
		strings.Join(key.Paths, ","),
		key.Temporary,
		key.IssuedAt.UnixMilli())
	sign64 := base64.StdEncoding.EncodeToString(c.signer.Sign([]byte(data)))
	return base64.StdEncoding.EncodeToString([]byte(data + ":" + sign64)), nil
}

// Decode restores an access key from its compact encoding. The signature is
// verified before any field is interpreted.
func (c *CompactCodec) Decode(encoded string) (*APIAccessKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	blob := string(raw)
	cut := strings.LastIndexByte(blob, ':')
	if cut < 0 {
		return nil, fmt.Errorf("%w: missing signature delimiter", ErrTokenMalformed)
	}
	data, sign64 := blob[:cut], blob[cut+1:]
	signature, err := base64.StdEncoding.DecodeString(sign64)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrTokenMalformed, err)
	}
	if !c.signer.Verify([]byte(data), signature) {
		return nil, ErrSignatureMismatch
	}

	fields := strings.Split(data, ":")
	if len(fields) != 6 {
		return nil, fmt.Errorf("%w: expected 6 fields, got %d", ErrTokenMalformed, len(fields))
	}
	temporary, err := strconv.ParseBool(fields[4])
	if err != nil {
		return nil, fmt.Errorf("%w: temporary flag: %v", ErrTokenMalformed, err)
	}
	createdMillis, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: creation timestamp: %v", ErrTokenMalformed, err)
	}

	return &APIAccessKey{
		ID:        fields[0],
		UserID:    fields[1],
		Methods:   splitList(fields[2]),
		Paths:     splitList(fields[3]),
		Temporary: temporary,
		IssuedAt:  Millis{time.UnixMilli(createdMillis)},
	}, nil
}

func checkCompactSafe(kind string, values []string) error {
	for _, v := range values {
		if strings.ContainsAny(v, ":,") {
			return fmt.Errorf("access key %s %q must not contain ':' or ','", kind, v)
		}
	}
	return nil
}

func splitList(joined string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(joined, ",") {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
