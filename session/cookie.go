// Package session manages the browser session token carried in an HttpOnly
// cookie, including transparent refresh of tokens close to expiry.
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/authcore"
	"go.pilab.hu/authcore/internal/metrics"
	"go.pilab.hu/authcore/token"
	"go.pilab.hu/authcore/user"
)

// Config tunes the session cookie manager.
type Config struct {
	// CookieName is the name of the session cookie.
	CookieName string

	// TimeToLive is the default session token lifetime. A per-user token
	// TTL from the registry overrides it.
	TimeToLive time.Duration

	// Refresh is the window before expiry within which a validated token
	// is transparently replaced by a fresh one.
	Refresh time.Duration
}

// Manager issues, validates, refreshes and revokes session cookies.
type Manager struct {
	codec *token.Codec
	users user.Registry
	cfg   Config
	now   func() time.Time
}

// NewManager creates a session cookie manager.
func NewManager(codec *token.Codec, users user.Registry, cfg Config) *Manager {
	return &Manager{
		codec: codec,
		users: users,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Issue mints a session token for the user and sets the session cookie. The
// registry supplies the user's current roles and an optional per-user token
// lifetime.
func (m *Manager) Issue(w http.ResponseWriter, r *http.Request, userID string) (*token.SessionToken, error) {
	info, err := m.users.UserInfo(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	t, err := m.issueFor(w, r, info)
	if err != nil {
		return nil, err
	}
	metrics.TokensIssuedTotal.Inc()
	return t, nil
}

// ValidateAccessToken authenticates the request from its session cookie.
//
// Requests without a cookie are left undecided for the next authentication
// mechanism. A token close to expiry is replaced with a freshly minted one
// reflecting the user's current roles; the returned result still reports
// the identity the validated token conveyed. When the user no longer exists
// the session is invalid, but the cookie is left untouched so the stale
// token cannot be mistaken for a deliberately cleared one.
func (m *Manager) ValidateAccessToken(w http.ResponseWriter, r *http.Request) authcore.Result {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return authcore.NotValidated
	}

	t, err := token.Decode[token.SessionToken](m.codec, cookie.Value)
	if err != nil {
		if token.IsSignatureError(err) {
			metrics.SignatureFailuresTotal.Inc()
			log.Ctx(r.Context()).Warn().Err(err).Msg("session cookie failed signature verification")
		} else {
			metrics.MalformedTokensTotal.Inc()
			log.Ctx(r.Context()).Debug().Err(err).Msg("malformed session cookie")
		}
		return authcore.Invalid
	}

	if t.Expired() {
		m.Invalidate(w)
		return authcore.Invalid
	}

	if t.ExpiringWithin(m.cfg.Refresh) && !m.refresh(w, r, t) {
		return authcore.Invalid
	}

	return authcore.ValidResult(t.UserID, t.Roles)
}

// refresh replaces the cookie with a fresh token carrying the user's
// current roles. It reports false when the user no longer exists, in which
// case the cookie is deliberately not rewritten. Transient failures leave
// the original, still valid cookie in place.
func (m *Manager) refresh(w http.ResponseWriter, r *http.Request, old *token.SessionToken) bool {
	info, err := m.users.UserInfo(r.Context(), old.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			log.Ctx(r.Context()).Info().Str("user_id", old.UserID).Msg("user vanished, session rejected")
			return false
		}
		log.Ctx(r.Context()).Warn().Err(err).Str("user_id", old.UserID).Msg("session refresh failed")
		return true
	}
	if _, err := m.issueFor(w, r, info); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Str("user_id", old.UserID).Msg("session refresh failed")
		return true
	}
	metrics.TokensRefreshedTotal.Inc()
	return true
}

// Invalidate clears the session cookie.
func (m *Manager) Invalidate(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (m *Manager) issueFor(w http.ResponseWriter, r *http.Request, info *user.Info) (*token.SessionToken, error) {
	ttl := m.cfg.TimeToLive
	if info.TokenTTL != nil {
		ttl = *info.TokenTTL
	}
	t := token.NewSessionToken(info.UserID, info.Roles, m.now().Add(ttl))
	encoded, err := m.codec.Encode(t)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
	})
	return t, nil
}
