package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewRouterLogsRequestCompleted(t *testing.T) {
	var buf bytes.Buffer
	env := setupTestRouter(t, testConfig{logger: newBufferLogger(&buf)})

	rr := doRequest(env.router, http.MethodGet, "/api/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	logs := buf.String()
	for _, want := range []string{"http request completed", "method=GET", "path=/api/health", "status=200", "request_id=", "route=/api/health"} {
		if !strings.Contains(logs, want) {
			t.Fatalf("expected %q in logs, got %q", want, logs)
		}
	}
}

func TestNewRouterLogsWarnForBadRequest(t *testing.T) {
	var buf bytes.Buffer
	env := setupTestRouter(t, testConfig{logger: newBufferLogger(&buf)})

	rr := doRequest(env.router, http.MethodPost, "/api/portfolio-analysis", map[string]any{}, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	logs := buf.String()
	if !strings.Contains(logs, "level=WARN") {
		t.Fatalf("expected warn level log, got %q", logs)
	}
	if !strings.Contains(logs, "status=400") {
		t.Fatalf("expected status=400 in log, got %q", logs)
	}
	if !strings.Contains(logs, `error_message="Missing or invalid holdings data"`) {
		t.Fatalf("expected error_message field, got %q", logs)
	}
}

func TestNewRouterLogsAuthenticatedUser(t *testing.T) {
	var buf bytes.Buffer
	env := setupTestRouter(t, testConfig{logger: newBufferLogger(&buf)})

	rr := doRequest(env.router, http.MethodGet, "/api/user/profile", nil, env.token(t, "trader-42"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "user_id=trader-42") {
		t.Fatalf("expected user_id in access log, got %q", buf.String())
	}
}

func TestRecoveryMiddlewareWritesInternalError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)
	handler := requestLoggingMiddleware(logger)(recoveryLoggingMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/panic", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	logs := buf.String()
	if !strings.Contains(logs, "panic recovered") || !strings.Contains(logs, "panic=boom") {
		t.Fatalf("expected panic log, got %q", logs)
	}
	if !strings.Contains(logs, "level=ERROR") || !strings.Contains(logs, "status=500") {
		t.Fatalf("expected error access log, got %q", logs)
	}
}

func TestRecoveryMiddlewareRepanicsOnAbort(t *testing.T) {
	handler := recoveryLoggingMiddleware(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if recovered := recover(); recovered != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", recovered)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
