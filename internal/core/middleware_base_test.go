package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Beez1/bounceinsights/internal/types"
)

type recordedRequest struct {
	method, endpoint, status string
	duration                 time.Duration
}

type mockMetrics struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (m *mockMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{method, endpoint, status, duration})
}

func (m *mockMetrics) last(t *testing.T) recordedRequest {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		t.Fatal("no request recorded")
	}
	return m.requests[len(m.requests)-1]
}

func newTestServerForMiddleware(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

// --- Recoverer ---

func TestRecoverer_NoPanic(t *testing.T) {
	srv := newTestServerForMiddleware(t)
	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRecoverer_PanicValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"string", "something went wrong"},
		{"error", errors.New("nil map write")},
		{"quoted", `bad "input"` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServerForMiddleware(t)
			handler := srv.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(tt.value)
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req = req.WithContext(types.WithRequestID(req.Context(), "req-panic"))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("expected status 500, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected application/json, got %q", ct)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
			}
			if resp.Code != string(types.ErrCodeInternalUnexpected) {
				t.Errorf("unexpected code %q", resp.Code)
			}
			if resp.Error != internalErrorMessage {
				t.Errorf("unexpected message %q", resp.Error)
			}
			if resp.RequestID != "req-panic" {
				t.Errorf("expected request id, got %q", resp.RequestID)
			}
		})
	}
}

func TestRecoverer_RepanicsOnAbortHandler(t *testing.T) {
	srv := newTestServerForMiddleware(t)
	handler := srv.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rvr := recover(); rvr != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to propagate, got %v", rvr)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

// --- Security headers ---

func TestSecurityHeadersMiddleware(t *testing.T) {
	srv := newTestServerForMiddleware(t)
	handler := srv.SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s: expected %q, got %q", k, v, got)
		}
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("expected handler status to pass through, got %d", rec.Code)
	}
}

// --- CORS ---

func corsRequest(t *testing.T, allowed []string, method, origin string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	handler := NewCORSMiddleware(allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/search", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, called
}

func TestCORSMiddleware_WildcardOrigin(t *testing.T) {
	rec, called := corsRequest(t, []string{"*"}, http.MethodPost, "https://app.example.com")

	if !called {
		t.Error("expected handler to be called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected *, got %q", got)
	}
	if got := rec.Header().Get("Vary"); got != "" {
		t.Errorf("wildcard must not set Vary, got %q", got)
	}
}

func TestCORSMiddleware_SpecificOrigin(t *testing.T) {
	allowed := []string{"https://app.example.com"}

	rec, _ := corsRequest(t, allowed, http.MethodGet, "https://app.example.com")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected echoed origin, got %q", got)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Error("expected Vary: Origin")
	}

	rec, called := corsRequest(t, allowed, http.MethodGet, "https://evil.example.com")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header for denied origin, got %q", got)
	}
	if !called {
		t.Error("denied origins still reach the handler")
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	rec, called := corsRequest(t, []string{"*"}, http.MethodOptions, "https://app.example.com")

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if called {
		t.Error("preflight must not reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("unexpected methods %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Content-Type") {
		t.Errorf("unexpected headers %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("unexpected max age %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("credentials must not be allowed, got %q", got)
	}
}

// --- Metrics ---

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	srv := newTestServerForMiddleware(t)
	metrics := &mockMetrics{}
	srv.Metrics = metrics

	r := chi.NewRouter()
	r.Use(srv.MetricsMiddleware)
	r.Get("/epic/{date}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/epic/2024-01-15?lat=1", nil))

	got := metrics.last(t)
	if got.method != http.MethodGet || got.endpoint != "/epic/{date}" || got.status != "404" {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestMetricsMiddleware_UnmatchedAndDefaultStatus(t *testing.T) {
	srv := newTestServerForMiddleware(t)
	metrics := &mockMetrics{}
	srv.Metrics = metrics

	handler := srv.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anything", nil))

	got := metrics.last(t)
	if got.endpoint != "unmatched" || got.status != "200" {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestMetricsMiddleware_NilCollectorPassesThrough(t *testing.T) {
	srv := newTestServerForMiddleware(t)
	called := false
	handler := srv.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("expected handler to be called")
	}
}

// --- Request logger ---

func loggedRequest(t *testing.T, status int, configure func(*http.Request)) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := RequestLogger(logger, defaultRedactedHeaders)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	req := httptest.NewRequest(http.MethodPost, "/time-travel", nil)
	if configure != nil {
		configure(req)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestRequestLogger_LogsMetadata(t *testing.T) {
	entry := loggedRequest(t, http.StatusOK, func(r *http.Request) {
		*r = *r.WithContext(types.WithRequestID(r.Context(), "req-7"))
	})

	if entry["method"] != "POST" || entry["path"] != "/time-travel" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["status"] != float64(200) {
		t.Errorf("unexpected status %v", entry["status"])
	}
	if entry["request_id"] != "req-7" {
		t.Errorf("unexpected request id %v", entry["request_id"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("unexpected level %v", entry["level"])
	}
}

func TestRequestLogger_RedactsHeaders(t *testing.T) {
	entry := loggedRequest(t, http.StatusOK, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer secret-token")
		r.Header.Set("X-Api-Key", "k-123")
		r.Header.Set("User-Agent", "curl/8")
	})

	headers, ok := entry["headers"].(map[string]any)
	if !ok {
		t.Fatalf("expected headers group, got %v", entry["headers"])
	}
	if headers["Authorization"] != "[REDACTED]" || headers["X-Api-Key"] != "[REDACTED]" {
		t.Errorf("headers not redacted: %v", headers)
	}
	if headers["User-Agent"] != "curl/8" {
		t.Errorf("unexpected user agent %v", headers["User-Agent"])
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusNotFound, "WARN"},
		{http.StatusServiceUnavailable, "ERROR"},
	}
	for _, tt := range tests {
		if got := loggedRequest(t, tt.status, nil)["level"]; got != tt.level {
			t.Errorf("status %d: expected %s, got %v", tt.status, tt.level, got)
		}
	}
}

// --- responseCapture and helpers ---

func TestResponseCapture(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: rec, statusCode: http.StatusOK}

	rc.WriteHeader(http.StatusAccepted)
	rc.WriteHeader(http.StatusInternalServerError)
	if rc.statusCode != http.StatusAccepted {
		t.Errorf("expected first status to stick, got %d", rc.statusCode)
	}
	if rc.Unwrap() != rec {
		t.Error("Unwrap must return the wrapped writer")
	}

	rc2 := &responseCapture{ResponseWriter: httptest.NewRecorder()}
	_, _ = rc2.Write([]byte("x"))
	if rc2.statusCode != http.StatusOK {
		t.Errorf("expected implicit 200, got %d", rc2.statusCode)
	}
}

func TestEscapeJSON(t *testing.T) {
	in := "a\"b\\c\nd\te\r"
	var out string
	if err := json.Unmarshal([]byte(`"`+escapeJSON(in)+`"`), &out); err != nil {
		t.Fatalf("escaped string is not valid JSON: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: %q", out)
	}
}
