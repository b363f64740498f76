package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dossier-hq/dossier/internal/event"
)

func TestDevModeTrustsHeaders(t *testing.T) {
	v := NewVerifier("")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Actor-Id", "det-1")
	r.Header.Set("X-Actor-Role", event.RoleDetective)

	actor, err := v.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, Actor{ID: "det-1", Role: event.RoleDetective}, actor)
}

func TestDevModeRequiresActorID(t *testing.T) {
	v := NewVerifier("")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := v.Resolve(r)
	assert.Error(t, err)
}

func TestDevModeDefaultsToObserver(t *testing.T) {
	v := NewVerifier("")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Actor-Id", "guest-1")

	actor, err := v.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, event.RoleObserver, actor.Role)
}

func TestTokenRoundTrip(t *testing.T) {
	const secret = "test-secret"
	token, err := Sign(secret, Actor{ID: "lead-1", Role: event.RoleLead})
	require.NoError(t, err)

	v := NewVerifier(secret)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	actor, err := v.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, Actor{ID: "lead-1", Role: event.RoleLead}, actor)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	token, err := Sign("other-secret", Actor{ID: "lead-1", Role: event.RoleLead})
	require.NoError(t, err)

	v := NewVerifier("test-secret")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err = v.Resolve(r)
	assert.Error(t, err)
}

func TestTokenUnknownRoleDegradesToObserver(t *testing.T) {
	const secret = "test-secret"
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "x-1",
		"role": "superuser",
	})
	token, err := raw.SignedString([]byte(secret))
	require.NoError(t, err)

	v := NewVerifier(secret)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	actor, err := v.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, event.RoleObserver, actor.Role)
}

func TestMiddlewareRejectsMissingAuth(t *testing.T) {
	v := NewVerifier("test-secret")
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareAttachesActor(t *testing.T) {
	v := NewVerifier("")
	var got Actor
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Actor-Id", "det-5")
	r.Header.Set("X-Actor-Role", event.RoleDetective)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, Actor{ID: "det-5", Role: event.RoleDetective}, got)
}
