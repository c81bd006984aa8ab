package httpauth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/authcore"
	"go.pilab.hu/authcore/accesskey"
	"go.pilab.hu/authcore/internal/metrics"
	"go.pilab.hu/authcore/token"
)

// AccessKeyManager authenticates requests presented with a compact-encoded
// API access key as bearer token.
//
// Nothing on the wire marks a bearer token as an access key or a JWT; the
// chain tells them apart by the "." segment separator a JWT always
// contains and a compact key, being standard base64 of colon-delimited
// fields, never does. A garbled token of either kind may land at the wrong
// manager, where it fails decoding and is rejected all the same.
type AccessKeyManager struct {
	codec   *token.CompactCodec
	checker *accesskey.Checker
}

// NewAccessKeyManager creates the manager.
func NewAccessKeyManager(codec *token.CompactCodec, checker *accesskey.Checker) *AccessKeyManager {
	return &AccessKeyManager{codec: codec, checker: checker}
}

// ValidateAccessToken implements Manager. Requests without a bearer token,
// or whose bearer token looks like a JWT, are left to other mechanisms.
func (m *AccessKeyManager) ValidateAccessToken(_ http.ResponseWriter, r *http.Request) authcore.Result {
	auth := ParseAuthorization(r.Header.Get("Authorization"))
	if auth == nil || !auth.IsBearerToken() || strings.Contains(auth.Credentials, ".") {
		return authcore.NotValidated
	}

	key, err := m.codec.Decode(auth.Credentials)
	if err != nil {
		if token.IsSignatureError(err) {
			metrics.SignatureFailuresTotal.Inc()
			log.Ctx(r.Context()).Warn().Err(err).Msg("access key failed signature verification")
		} else {
			metrics.MalformedTokensTotal.Inc()
			log.Ctx(r.Context()).Debug().Err(err).Msg("malformed access key")
		}
		return authcore.Invalid
	}

	allowed, err := m.checker.IsAllowed(r.Context(), key, r.Method, r.URL.Path)
	if err != nil {
		// Store failure: reject rather than accept a possibly revoked key.
		log.Ctx(r.Context()).Error().Err(err).Str("key_id", key.ID).Msg("access key check failed")
		return authcore.Invalid
	}
	if !allowed {
		return authcore.Invalid
	}

	return authcore.ValidResult(key.UserID, []string{authcore.RoleSystem})
}
