package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "bot-frontend",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestServiceAuth(t *testing.T) {
	const secret = "test-secret"
	handler := ServiceAuth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(authorization string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests/abc", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("valid token", func(t *testing.T) {
		if code := do("Bearer " + signToken(t, secret)); code != http.StatusOK {
			t.Fatalf("got %d, want 200", code)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		if code := do(""); code != http.StatusUnauthorized {
			t.Fatalf("got %d, want 401", code)
		}
	})

	t.Run("not a bearer scheme", func(t *testing.T) {
		if code := do("Basic dXNlcjpwYXNz"); code != http.StatusUnauthorized {
			t.Fatalf("got %d, want 401", code)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		if code := do("Bearer " + signToken(t, "other-secret")); code != http.StatusUnauthorized {
			t.Fatalf("got %d, want 401", code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if code := do("Bearer not.a.jwt"); code != http.StatusUnauthorized {
			t.Fatalf("got %d, want 401", code)
		}
	})
}
