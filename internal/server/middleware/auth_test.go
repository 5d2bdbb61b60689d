package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticValidator map[string]uuid.UUID

func (v staticValidator) ValidateToken(token string) (UserIDGetter, error) {
	id, ok := v[token]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return claims(id), nil
}

type claims uuid.UUID

func (c claims) GetUserID() uuid.UUID { return uuid.UUID(c) }

func serve(t *testing.T, v TokenValidator, header string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	var seen *http.Request
	h := AuthMiddleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/verify", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	userID := uuid.New()
	v := staticValidator{"good-token": userID}

	rec, seen := serve(t, v, "Bearer good-token")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)

	got, err := GetUserID(seen)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
	assert.Equal(t, "good-token", AccessToken(seen))
}

func TestAuthMiddleware_CaseInsensitiveScheme(t *testing.T) {
	v := staticValidator{"good-token": uuid.New()}

	for _, header := range []string{"bearer good-token", "BeArEr good-token", "Bearer  good-token"} {
		rec, _ := serve(t, v, header)
		assert.Equal(t, http.StatusOK, rec.Code, header)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	v := staticValidator{"good-token": uuid.New(), "nil-subject": uuid.Nil}

	tests := map[string]string{
		"missing header":   "",
		"no scheme":        "good-token",
		"only scheme":      "Bearer",
		"empty token":      "Bearer ",
		"wrong scheme":     "Basic good-token",
		"unknown token":    "Bearer not.a.valid.jwt",
		"extra parts":      "Bearer good-token extra",
		"nil user subject": "Bearer nil-subject",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			rec, seen := serve(t, v, header)
			assert.Nil(t, seen, "handler should not be called")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "Unauthorized")
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := BearerToken(req)
	assert.False(t, ok)

	req.Header.Set("Authorization", "Bearer abc")
	token, ok := BearerToken(req)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
}

func TestGetUserID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	userID, err := GetUserID(req)
	assert.Error(t, err)
	assert.Equal(t, uuid.Nil, userID)
	assert.Contains(t, err.Error(), "user ID not found")
	assert.Empty(t, AccessToken(req))
}

func TestGetUserID_InvalidType(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), userIDKey, "not-a-uuid"))

	userID, err := GetUserID(req)
	assert.Error(t, err)
	assert.Equal(t, uuid.Nil, userID)
}
