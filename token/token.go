// Package token implements the signed, self-contained credentials issued
// after a successful authentication: the browser session token, the API
// access key and the OAuth authorization code.
//
// All tokens are signed with HMAC-SHA256 (HS256) and carry a JSON payload.
// Session tokens and authorization codes travel in the three-segment JWT
// encoding produced by Codec; access keys additionally support the compact
// colon-delimited encoding produced by CompactCodec for keys handed to
// operators out of band.
package token

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Millis is a timestamp serialized as milliseconds since the Unix epoch.
type Millis struct {
	time.Time
}

// NewMillis truncates t to millisecond precision, the resolution of the
// wire format.
func NewMillis(t time.Time) Millis {
	return Millis{time.UnixMilli(t.UnixMilli())}
}

// MarshalJSON implements json.Marshaler.
func (m Millis) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, m.UnixMilli(), 10), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(data []byte) error {
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	m.Time = time.UnixMilli(ms)
	return nil
}

// Header is the fixed JOSE header of every token minted by this package.
//
//	{ "alg": "HS256", "cty": "application/json", "typ": "JWT" }
type Header struct {
	Algorithm   string `json:"alg"`
	ContentType string `json:"cty"`
	Type        string `json:"typ"`
}

// NewHeader returns the fixed token header.
func NewHeader() Header {
	return Header{
		Algorithm:   Algorithm,
		ContentType: "application/json",
		Type:        "JWT",
	}
}

// SessionToken authenticates subsequent browser requests after a successful
// login. It is carried in an HttpOnly session cookie and conveys the user
// and the roles the user held at minting (or last refresh) time.
type SessionToken struct {
	ID       string   `json:"id"`
	UserID   string   `json:"subject"`
	Roles    []string `json:"roles,omitempty"`
	IssuedAt Millis   `json:"issued_at"`
	Expiry   *Millis  `json:"expiry,omitempty"`
}

// NewSessionToken mints a session token for the given user expiring at the
// given time. Roles have set semantics: duplicates are dropped and the
// stored order is canonical.
func NewSessionToken(userID string, roles []string, expiry time.Time) *SessionToken {
	e := NewMillis(expiry)
	return &SessionToken{
		ID:       uuid.NewString(),
		UserID:   userID,
		Roles:    normalizeSet(roles, false),
		IssuedAt: NewMillis(time.Now()),
		Expiry:   &e,
	}
}

// HasRole reports whether the token conveys the given role.
func (t *SessionToken) HasRole(role string) bool {
	for _, have := range t.Roles {
		if have == role {
			return true
		}
	}
	return false
}

// Expired reports whether the token's expiry has passed. Tokens without an
// expiry never expire.
func (t *SessionToken) Expired() bool {
	return t.Expiry != nil && t.Expiry.Before(time.Now())
}

// ExpiringWithin reports whether the token expires within the given
// duration from now.
func (t *SessionToken) ExpiringWithin(d time.Duration) bool {
	return t.Expiry != nil && t.Expiry.Before(time.Now().Add(d))
}

// APIAccessKey authorizes non-interactive API clients. An empty method or
// path set means the key is unrestricted in that dimension. Temporary keys
// are self-expiring and carry no server-side revocation state.
type APIAccessKey struct {
	ID        string   `json:"id"`
	UserID    string   `json:"subject"`
	Methods   []string `json:"methods,omitempty"`
	Paths     []string `json:"paths,omitempty"`
	Temporary bool     `json:"temporary,omitempty"`
	IssuedAt  Millis   `json:"issued_at"`
}

// NewAPIAccessKey mints an access key with a fresh unique id. Method names
// are stored lowercase; method and path sets are deduplicated and
// canonically ordered.
func NewAPIAccessKey(userID string, methods, paths []string, temporary bool) *APIAccessKey {
	return &APIAccessKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Methods:   normalizeSet(methods, true),
		Paths:     normalizeSet(paths, false),
		Temporary: temporary,
		IssuedAt:  NewMillis(time.Now()),
	}
}

// MethodAllowed reports whether the key authorizes the HTTP method.
// Methods compare case-insensitively; an empty set allows all methods.
func (k *APIAccessKey) MethodAllowed(method string) bool {
	if len(k.Methods) == 0 {
		return true
	}
	method = strings.ToLower(method)
	for _, m := range k.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// PathAllowed reports whether the key authorizes access to the request
// path. Patterns are regular expressions matched against the full path; an
// empty set allows all paths.
func (k *APIAccessKey) PathAllowed(path string) bool {
	if len(k.Paths) == 0 {
		return true
	}
	for _, pattern := range k.Paths {
		re, err := compiledPattern(pattern)
		if err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Msg("skipping invalid access key path pattern")
			continue
		}
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// OlderThan reports whether the key's age exceeds the given duration.
func (k *APIAccessKey) OlderThan(d time.Duration) bool {
	return k.IssuedAt.Add(d).Before(time.Now())
}

// AuthorizationCode grants a relying system one-time access to the user
// resource during an OAuth redirect flow. Codes carry no expiry; consumers
// enforce a maximum age instead.
type AuthorizationCode struct {
	UserID   string `json:"subject"`
	ClientID string `json:"client_id"`
	IssuedAt Millis `json:"issued_at"`
}

// NewAuthorizationCode mints an authorization code for the given user and
// relying client.
func NewAuthorizationCode(userID, clientID string) *AuthorizationCode {
	return &AuthorizationCode{
		UserID:   userID,
		ClientID: clientID,
		IssuedAt: NewMillis(time.Now()),
	}
}

// OlderThan reports whether the code's age exceeds the given duration.
func (c *AuthorizationCode) OlderThan(d time.Duration) bool {
	return c.IssuedAt.Add(d).Before(time.Now())
}

// patterns caches compiled path patterns across all keys in the process.
var patterns sync.Map // string -> *regexp.Regexp

// compiledPattern compiles pattern anchored for a full-path match.
func compiledPattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return nil, err
	}
	actual, _ := patterns.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// normalizeSet gives a value list set semantics: sorted, deduplicated and
// optionally lowercased.
func normalizeSet(values []string, lower bool) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if lower {
			v = strings.ToLower(v)
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
