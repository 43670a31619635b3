package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminSecret = "test-admin-secret"

func guarded(secret string) http.Handler {
	return RequireAdmin(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"sub": adminSubjectFromContext(r.Context())})
	}))
}

func callGuarded(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, "/api/scans", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAdmin_DisabledWithoutSecret(t *testing.T) {
	rec := callGuarded(guarded(""), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdmin_MissingToken(t *testing.T) {
	rec := callGuarded(guarded(testAdminSecret), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestRequireAdmin_ValidToken(t *testing.T) {
	token, err := IssueAdminToken(testAdminSecret, "ops", time.Hour)
	require.NoError(t, err)

	rec := callGuarded(guarded(testAdminSecret), "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sub":"ops"}`, rec.Body.String())
}

func TestRequireAdmin_WrongSecret(t *testing.T) {
	token, err := IssueAdminToken("other-secret", "ops", time.Hour)
	require.NoError(t, err)

	rec := callGuarded(guarded(testAdminSecret), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin_ExpiredToken(t *testing.T) {
	claims := AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAdminSecret))
	require.NoError(t, err)

	rec := callGuarded(guarded(testAdminSecret), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin_NonAdminRole(t *testing.T) {
	claims := AdminClaims{
		Role: "FARMER",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAdminSecret))
	require.NoError(t, err)

	rec := callGuarded(guarded(testAdminSecret), "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"admin access required"}`, rec.Body.String())
}

func TestIssueAdminToken_Validation(t *testing.T) {
	_, err := IssueAdminToken("  ", "ops", time.Hour)
	assert.Error(t, err)

	_, err = IssueAdminToken(testAdminSecret, "ops", 0)
	assert.Error(t, err)
}
