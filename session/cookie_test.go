package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/authcore"
	"go.pilab.hu/authcore/token"
	"go.pilab.hu/authcore/user"
)

type fakeRegistry struct {
	users map[string]*user.Info
	err   error
}

func (r *fakeRegistry) UserInfo(_ context.Context, userID string) (*user.Info, error) {
	if r.err != nil {
		return nil, r.err
	}
	info, ok := r.users[userID]
	if !ok {
		return nil, user.ErrNotFound
	}
	return info, nil
}

func newTestManager(users map[string]*user.Info) *Manager {
	codec := token.NewCodec(token.NewSigner([]byte("unit-test-secret")))
	return NewManager(codec, &fakeRegistry{users: users}, Config{
		CookieName: "ac-access",
		TimeToLive: time.Hour,
		Refresh:    time.Minute,
	})
}

func requestWithToken(t *testing.T, m *Manager, st *token.SessionToken) *http.Request {
	t.Helper()
	encoded, err := m.codec.Encode(st)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	r.AddCookie(&http.Cookie{Name: "ac-access", Value: encoded})
	return r
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "ac-access" {
			return c
		}
	}
	return nil
}

func TestMissingCookieIsNotValidated(t *testing.T) {
	m := newTestManager(nil)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)

	result := m.ValidateAccessToken(w, r)
	assert.Equal(t, authcore.StatusNotValidated, result.Status)
}

func TestValidCookie(t *testing.T) {
	m := newTestManager(map[string]*user.Info{
		"alice": {UserID: "alice", Roles: []string{"admin"}},
	})
	w := httptest.NewRecorder()
	r := requestWithToken(t, m, token.NewSessionToken("alice", []string{"admin"}, time.Now().Add(time.Hour)))

	result := m.ValidateAccessToken(w, r)
	require.True(t, result.Valid())
	assert.Equal(t, "alice", result.UserID)
	assert.True(t, result.HasRole("admin"))

	// Well within its lifetime, the token is not refreshed.
	assert.Nil(t, sessionCookie(t, w))
}

func TestTamperedCookieIsInvalid(t *testing.T) {
	m := newTestManager(nil)
	other := token.NewCodec(token.NewSigner([]byte("some-other-secret")))
	encoded, err := other.Encode(token.NewSessionToken("alice", nil, time.Now().Add(time.Hour)))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	r.AddCookie(&http.Cookie{Name: "ac-access", Value: encoded})

	result := m.ValidateAccessToken(w, r)
	assert.Equal(t, authcore.StatusInvalid, result.Status)
}

func TestExpiredCookieIsInvalidatedAndCleared(t *testing.T) {
	m := newTestManager(nil)
	w := httptest.NewRecorder()
	r := requestWithToken(t, m, token.NewSessionToken("alice", nil, time.Now().Add(-time.Minute)))

	result := m.ValidateAccessToken(w, r)
	assert.Equal(t, authcore.StatusInvalid, result.Status)

	cleared := sessionCookie(t, w)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestNearExpiryTokenIsRefreshed(t *testing.T) {
	m := newTestManager(map[string]*user.Info{
		"alice": {UserID: "alice", Roles: []string{"admin", "operator"}},
	})
	w := httptest.NewRecorder()
	// Roles at minting time differ from the registry's current roles.
	r := requestWithToken(t, m, token.NewSessionToken("alice", []string{"admin"}, time.Now().Add(30*time.Second)))

	result := m.ValidateAccessToken(w, r)
	require.True(t, result.Valid())
	// The result reports what the validated token conveyed.
	assert.Equal(t, []string{"admin"}, result.Roles)

	refreshed := sessionCookie(t, w)
	require.NotNil(t, refreshed)
	decoded, err := token.Decode[token.SessionToken](m.codec, refreshed.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", decoded.UserID)
	// The fresh token carries the user's current roles.
	assert.Equal(t, []string{"admin", "operator"}, decoded.Roles)
	assert.False(t, decoded.ExpiringWithin(time.Minute))
}

func TestVanishedUserIsRejectedWithoutCookieRewrite(t *testing.T) {
	m := newTestManager(map[string]*user.Info{})
	w := httptest.NewRecorder()
	r := requestWithToken(t, m, token.NewSessionToken("ghost", nil, time.Now().Add(30*time.Second)))

	result := m.ValidateAccessToken(w, r)
	assert.Equal(t, authcore.StatusInvalid, result.Status)
	assert.Nil(t, sessionCookie(t, w))
}

func TestIssueUsesPerUserTTL(t *testing.T) {
	short := 10 * time.Minute
	m := newTestManager(map[string]*user.Info{
		"alice": {UserID: "alice", Roles: []string{"admin"}, TokenTTL: &short},
	})
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/login", nil)

	issued, err := m.Issue(w, r, "alice")
	require.NoError(t, err)
	assert.True(t, issued.ExpiringWithin(short+time.Second))

	cookie := sessionCookie(t, w)
	require.NotNil(t, cookie)
	assert.Equal(t, int(short/time.Second), cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
}
