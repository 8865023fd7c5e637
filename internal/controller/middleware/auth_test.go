package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authProtected(token string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RequireOperatorAuth(token)(next)
}

func TestRequireOperatorAuth_ValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/engine/killswitch", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()

	authProtected("secret-token").ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("got %d, want 200", rec.Code)
	}
}

func TestRequireOperatorAuth_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/engine/killswitch", nil)
	rec := httptest.NewRecorder()

	authProtected("secret-token").ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", rec.Code)
	}
}

func TestRequireOperatorAuth_WrongToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/engine/killswitch", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()

	authProtected("secret-token").ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", rec.Code)
	}
}

func TestRequireOperatorAuth_MalformedHeader(t *testing.T) {
	for _, header := range []string{"secret-token", "Basic secret-token", "Bearer a b"} {
		req := httptest.NewRequest(http.MethodPost, "/api/engine/killswitch", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()

		authProtected("secret-token").ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: got %d, want 401", header, rec.Code)
		}
	}
}
