package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authProbe(t *testing.T) (http.Handler, *int64) {
	t.Helper()
	var gotUserID int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		gotUserID = id
		w.WriteHeader(http.StatusNoContent)
	})
	return AuthMiddleware(testSecret, testLogger())(next), &gotUserID
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	handler, gotUserID := authProbe(t)

	req := httptest.NewRequest(http.MethodGet, "/push/connect", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "42"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), *gotUserID)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"malformed header", "Bearer"},
		{"wrong scheme", "ApiKey abc"},
		{"bad signature", "Bearer " + func() string {
			t2 := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42"})
			s, _ := t2.SignedString([]byte("other-secret"))
			return s
		}()},
		{"non-numeric subject", "Bearer " + ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler, _ := authProbe(t)

			header := tc.header
			if tc.name == "non-numeric subject" {
				header = "Bearer " + signToken(t, testSecret, "alice")
			}

			req := httptest.NewRequest(http.MethodGet, "/push/connect", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
