package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func protectedEcho(t *testing.T) (http.Handler, *TokenService) {
	t.Helper()
	ts := NewTokenService(newFakeTokenRepo())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			t.Error("handler ran without a user in context")
		}
		w.Write([]byte(userID))
	})
	return RequireAuth(ts)(next), ts
}

func TestRequireAuthValidToken(t *testing.T) {
	h, ts := protectedEcho(t)
	token, err := ts.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "user-1" {
		t.Errorf("context user = %q, want user-1", rec.Body.String())
	}
}

func TestRequireAuthRejections(t *testing.T) {
	h, ts := protectedEcho(t)
	token, _ := ts.Issue(context.Background(), "user-1")
	ts.RevokeAll(context.Background(), "user-1")

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"bare Bearer", "Bearer "},
		{"unknown token", "Bearer deadbeef"},
		{"revoked token", "Bearer " + token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			if !strings.Contains(rec.Body.String(), `"unauthorized"`) {
				t.Errorf("body = %q, want a JSON unauthorized error", rec.Body.String())
			}
		})
	}
}

func TestRequireAuthCaseInsensitiveScheme(t *testing.T) {
	h, ts := protectedEcho(t)
	token, _ := ts.Issue(context.Background(), "user-1")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for lowercase scheme", rec.Code)
	}
}

func TestOptionalAuthAnonymous(t *testing.T) {
	ts := NewTokenService(newFakeTokenRepo())
	var sawUser bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawUser = UserIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	rec := httptest.NewRecorder()
	OptionalAuth(ts)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, anonymous requests must pass", rec.Code)
	}
	if sawUser {
		t.Error("anonymous request should carry no user")
	}
}
