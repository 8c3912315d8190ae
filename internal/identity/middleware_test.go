package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medishare/recordvault/pkg/types"
)

func TestMiddleware_ValidToken(t *testing.T) {
	tm := newTestTokenManager("test-secret", 3600)

	token, err := tm.Issue(&types.Subject{ID: "doctor-1", Role: types.RoleDoctor})
	require.NoError(t, err)

	var seen Principal
	handler := tm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		seen = principal
	}))

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set("Authorization", "Bearer "+token.Token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "doctor-1", seen.SubjectID)
	assert.Equal(t, types.RoleDoctor, seen.Role)
}

func TestMiddleware_MissingToken(t *testing.T) {
	tm := newTestTokenManager("test-secret", 3600)

	called := false
	handler := tm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestMiddleware_BadToken(t *testing.T) {
	tm := newTestTokenManager("test-secret", 3600)

	handler := tm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set("Authorization", "Bearer garbage")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/reports", nil)

	_, ok := PrincipalFromContext(req.Context())
	assert.False(t, ok)
}
