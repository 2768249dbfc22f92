package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func buildFS() fstest.MapFS {
	return fstest.MapFS{
		"build/index.html":                   {Data: []byte("<html><body>todos</body></html>")},
		"build/_app/immutable/chunks/app.js": {Data: []byte("console.log('app')")},
		"build/favicon.png":                  {Data: []byte("fakepng")},
	}
}

func newTestHandler(t *testing.T) *SPAHandler {
	t.Helper()
	h, err := NewSPAHandler(buildFS(), "build")
	if err != nil {
		t.Fatalf("NewSPAHandler: %v", err)
	}
	return h
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSPA_RootServesIndex(t *testing.T) {
	rec := serve(newTestHandler(t), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "todos") {
		t.Errorf("expected index.html, got %q", rec.Body.String())
	}
	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("expected no-cache on index, got %q", rec.Header().Get("Cache-Control"))
	}
}

func TestSPA_StaticFiles(t *testing.T) {
	h := newTestHandler(t)
	cases := map[string]string{
		"/favicon.png":                  "fakepng",
		"/_app/immutable/chunks/app.js": "console.log",
	}
	for target, want := range cases {
		rec := serve(h, target)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("%s: expected body containing %q, got %q", target, want, rec.Body.String())
		}
	}
}

func TestSPA_FallbackForClientRoutes(t *testing.T) {
	h := newTestHandler(t)
	for _, target := range []string{"/todos", "/todos/42/edit", "/_app"} {
		rec := serve(h, target)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "todos") {
			t.Errorf("%s: expected index.html fallback, got %q", target, rec.Body.String())
		}
	}
}

func TestSPA_NoFallbackForMissingAssets(t *testing.T) {
	h := newTestHandler(t)
	for _, target := range []string{"/missing.css", "/_app/missing-chunk.js", "/%2Ecss"} {
		if rec := serve(h, target); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", target, rec.Code)
		}
	}
}

func TestSPA_MissingBuildDirectory(t *testing.T) {
	h, err := NewSPAHandler(fstest.MapFS{}, ".")
	if err != nil {
		t.Fatalf("NewSPAHandler: %v", err)
	}
	if rec := serve(h, "/todos"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a build, got %d", rec.Code)
	}
}
