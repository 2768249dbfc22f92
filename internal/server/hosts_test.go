package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHostAllowed(t *testing.T) {
	allowed := []string{".kavia.ai", "dev.example.com"}
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"localhost:3000", true},
		{"app.localhost:3000", true},
		{"127.0.0.1:3000", true},
		{"[::1]:3000", true},
		{"10.0.0.5", true},
		{"kavia.ai", true},
		{"preview.kavia.ai", true},
		{"a.b.kavia.ai:3000", true},
		{"PREVIEW.KAVIA.AI", true},
		{"preview.kavia.ai.", true},
		{"dev.example.com", true},
		{"", true},
		{"sub.dev.example.com", false},
		{"kavia.ai.evil.com", false},
		{"evilkavia.ai", false},
		{"example.com", false},
	}
	for _, tc := range tests {
		if got := hostAllowed(tc.host, allowed); got != tc.want {
			t.Errorf("hostAllowed(%q) = %v, want %v", tc.host, got, tc.want)
		}
	}
}

func TestHostAllowlistMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler := HostAllowlist([]string{".kavia.ai"})(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "attacker.example"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for disallowed host, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "todo.kavia.ai"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("expected pass-through for allowed host, got %d %q", rec.Code, rec.Body.String())
	}
}
