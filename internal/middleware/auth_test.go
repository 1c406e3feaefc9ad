package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		_, _ = w.Write([]byte(uid))
	})
}

func TestAuthRoundTrip(t *testing.T) {
	a := NewAuthenticator("test-secret")
	tok, err := a.SignToken("user-42", time.Hour)
	require.NoError(t, err)

	h := a.WithAuth(RequireAuth(echoUser()))
	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", rec.Body.String())
}

func TestAuthRejects(t *testing.T) {
	a := NewAuthenticator("test-secret")
	other := NewAuthenticator("other-secret")
	foreign, err := other.SignToken("user-42", time.Hour)
	require.NoError(t, err)
	expired, err := a.SignToken("user-42", -time.Minute)
	require.NoError(t, err)

	cases := map[string]string{
		"missing":      "",
		"wrong secret": "Bearer " + foreign,
		"expired":      "Bearer " + expired,
		"garbage":      "Bearer abc.def.ghi",
		"wrong scheme": "Basic dXNlcjpwYXNz",
	}
	h := a.WithAuth(RequireAuth(echoUser()))
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}
