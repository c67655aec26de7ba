package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeSPAFile(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func serveSPA(h http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestWithSPA(t *testing.T) {
	webDir := t.TempDir()
	writeSPAFile(t, webDir, "index.html", "INDEX")
	writeSPAFile(t, webDir, "favicon.ico", "ICON")
	writeSPAFile(t, webDir, "_next/static/chunks/main-abc123.js", "CHUNK")

	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("BACKEND"))
	})
	h := WithSPA(backend, webDir)

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantBody    string
		wantCaching string
	}{
		{name: "api forwarded", path: "/api/health", wantStatus: http.StatusOK, wantBody: "BACKEND"},
		{name: "uploads forwarded", path: "/uploads/charts/u/1.png", wantStatus: http.StatusOK, wantBody: "BACKEND"},
		{name: "root index", path: "/", wantStatus: http.StatusOK, wantBody: "INDEX", wantCaching: "no-store"},
		{name: "plain asset", path: "/favicon.ico", wantStatus: http.StatusOK, wantBody: "ICON", wantCaching: "no-store"},
		{name: "fingerprinted asset", path: "/_next/static/chunks/main-abc123.js", wantStatus: http.StatusOK, wantBody: "CHUNK", wantCaching: "public, max-age=31536000, immutable"},
		{name: "client route", path: "/analysis/123", wantStatus: http.StatusOK, wantBody: "INDEX", wantCaching: "no-store"},
		{name: "missing asset", path: "/missing.js", wantStatus: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := serveSPA(h, tc.path)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			if tc.wantBody != "" && rr.Body.String() != tc.wantBody {
				t.Fatalf("expected body %q, got %q", tc.wantBody, rr.Body.String())
			}
			if tc.wantCaching != "" {
				if got := rr.Header().Get("Cache-Control"); got != tc.wantCaching {
					t.Fatalf("expected Cache-Control %q, got %q", tc.wantCaching, got)
				}
			}
		})
	}
}

func TestWithSPA_IndexMissing(t *testing.T) {
	h := WithSPA(http.NotFoundHandler(), t.TempDir())

	rr := serveSPA(h, "/")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr.Body.String() != "index.html not found" {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}
