package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueToken_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := IssueToken(secret, "agent-a", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	subject, err := authenticate(req, secret)
	require.NoError(t, err)
	assert.Equal(t, "agent-a", subject)
}

func TestAuthenticate_MissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	_, err := authenticate(req, []byte("secret"))
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	token, err := IssueToken([]byte("right-secret"), "agent-a", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = authenticate(req, []byte("wrong-secret"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, "agent-a", -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = authenticate(req, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAuth_RejectsWithoutBearer(t *testing.T) {
	secret := []byte("test-secret")
	handler := requireAuth(secret, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestRequireAuth_AllowsValidToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, "agent-a", time.Minute)
	require.NoError(t, err)

	handler := requireAuth(secret, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
