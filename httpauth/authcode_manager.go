package httpauth

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/authcore"
	"go.pilab.hu/authcore/internal/metrics"
	"go.pilab.hu/authcore/token"
)

// authCodeMaxAge is the maximum accepted age of an authorization code.
// Codes carry no expiry of their own.
const authCodeMaxAge = time.Minute

// AuthCodeManager authenticates a relying system redeeming a short-lived
// OAuth authorization code presented as JWT bearer token.
type AuthCodeManager struct {
	codec *token.Codec
}

// NewAuthCodeManager creates the manager.
func NewAuthCodeManager(codec *token.Codec) *AuthCodeManager {
	return &AuthCodeManager{codec: codec}
}

// ValidateAccessToken implements Manager. Only bearer tokens in the
// three-segment JWT shape are considered; compact access keys are left to
// the access key manager.
func (m *AuthCodeManager) ValidateAccessToken(_ http.ResponseWriter, r *http.Request) authcore.Result {
	auth := ParseAuthorization(r.Header.Get("Authorization"))
	if auth == nil || !auth.IsBearerToken() || !strings.Contains(auth.Credentials, ".") {
		return authcore.NotValidated
	}

	code, err := token.Decode[token.AuthorizationCode](m.codec, auth.Credentials)
	if err != nil {
		if token.IsSignatureError(err) {
			metrics.SignatureFailuresTotal.Inc()
			log.Ctx(r.Context()).Warn().Err(err).Msg("authorization code failed signature verification")
		} else {
			metrics.MalformedTokensTotal.Inc()
			log.Ctx(r.Context()).Debug().Err(err).Msg("malformed authorization code")
		}
		return authcore.Invalid
	}

	if code.OlderThan(authCodeMaxAge) {
		log.Ctx(r.Context()).Debug().Str("client_id", code.ClientID).Msg("authorization code expired")
		return authcore.Invalid
	}

	return authcore.ValidResult(code.UserID, nil)
}
