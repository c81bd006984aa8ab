// Package httpauth authenticates incoming HTTP requests by chaining
// authentication mechanisms and exposes the outcome to echo handlers.
package httpauth

import (
	"encoding/base64"
	"strings"
)

// Authorization is a parsed Authorization request header.
type Authorization struct {
	Scheme      string
	Credentials string
}

// ParseAuthorization splits an Authorization header value into scheme and
// credentials. It returns nil for an empty or schemeless header.
func ParseAuthorization(header string) *Authorization {
	scheme, credentials, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || scheme == "" {
		return nil
	}
	return &Authorization{
		Scheme:      scheme,
		Credentials: strings.TrimSpace(credentials),
	}
}

// IsBearerToken reports whether the header carries a bearer token.
func (a *Authorization) IsBearerToken() bool {
	return strings.EqualFold(a.Scheme, "Bearer")
}

// IsBasic reports whether the header carries basic credentials.
func (a *Authorization) IsBasic() bool {
	return strings.EqualFold(a.Scheme, "Basic")
}

// BasicCredentials decodes the user id and password of a basic
// authorization header.
func (a *Authorization) BasicCredentials() (userID, password string, ok bool) {
	if !a.IsBasic() {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(a.Credentials)
	if err != nil {
		return "", "", false
	}
	userID, password, ok = strings.Cut(string(decoded), ":")
	return userID, password, ok
}
