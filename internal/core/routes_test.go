package core

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Beez1/bounceinsights/internal/types"
)

func newMountedServer(t *testing.T, registrars ...RouteRegistrar) *Server {
	t.Helper()
	srv := newTestServerForMiddleware(t)
	srv.Registrars = registrars
	srv.MountRoutes()
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestMountRoutes_MiddlewareCount(t *testing.T) {
	srv := newMountedServer(t)
	if got := len(srv.Router().Middlewares()); got != 9 {
		t.Errorf("expected 9 global middlewares, got %d", got)
	}
}

func TestMountRoutes_HealthAtRoot(t *testing.T) {
	rec := serve(newMountedServer(t), httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" {
		t.Errorf("unexpected status %q", resp.Status)
	}
}

func TestMountRoutes_MetricsEndpoint(t *testing.T) {
	srv := newTestServerForMiddleware(t)
	srv.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("insights_requests_total 1\n"))
	})
	srv.MountRoutes()

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "insights_requests_total") {
		t.Errorf("unexpected metrics response %d %q", rec.Code, rec.Body.String())
	}
}

func TestMountRoutes_NoMetricsHandler(t *testing.T) {
	rec := serve(newMountedServer(t), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a metrics handler, got %d", rec.Code)
	}
}

func TestMountRoutes_Registrars(t *testing.T) {
	srv := newMountedServer(t, func(r chi.Router) {
		r.Post("/search", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, r, http.StatusOK, map[string]string{"requestId": types.GetRequestID(r.Context())})
		})
	})

	rec := serve(srv, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["requestId"] == "" || body["requestId"] != rec.Header().Get(requestIDHeader) {
		t.Errorf("request id mismatch: body %q header %q", body["requestId"], rec.Header().Get(requestIDHeader))
	}
}

func TestMountRoutes_NotFoundEnvelope(t *testing.T) {
	rec := serve(newMountedServer(t), httptest.NewRequest(http.MethodGet, "/v1/search", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != "not_found_route" || body.RequestID == "" {
		t.Errorf("unexpected envelope %+v", body)
	}
}

func TestMountRoutes_MethodNotAllowed(t *testing.T) {
	srv := newMountedServer(t, func(r chi.Router) {
		r.Post("/explain", func(w http.ResponseWriter, r *http.Request) {})
	})
	rec := serve(srv, httptest.NewRequest(http.MethodDelete, "/explain", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestMountRoutes_SecurityAndCORSHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := serve(newMountedServer(t), req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected wildcard CORS by default, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestMountRoutes_RecovererCatchesPanics(t *testing.T) {
	srv := newMountedServer(t, func(r chi.Router) {
		r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	})
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), string(types.ErrCodeInternalUnexpected)) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestMountRoutes_GzipsLargeResponses(t *testing.T) {
	payload := strings.Repeat("aurora borealis over Tromsø ", 200)
	srv := newMountedServer(t, func(r chi.Router) {
		r.Get("/apod", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, r, http.StatusOK, map[string]string{"explanation": payload})
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/apod", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := serve(srv, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "aurora borealis") {
		t.Error("decompressed body mismatch")
	}
}

func TestMountRoutes_RequestTimeoutFromConfig(t *testing.T) {
	srv := newTestServerForMiddleware(t)
	srv.Config.Server.RequestTimeout = 50 * time.Millisecond

	var deadline time.Time
	srv.Registrars = []RouteRegistrar{func(r chi.Router) {
		r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
			deadline, _ = r.Context().Deadline()
			<-r.Context().Done()
			Error(w, r, r.Context().Err())
		})
	}}
	srv.MountRoutes()

	start := time.Now()
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/slow", nil))

	if deadline.IsZero() || deadline.Sub(start) > time.Second {
		t.Errorf("unexpected deadline %v", deadline)
	}
	if rec.Code != http.StatusRequestTimeout {
		t.Errorf("expected 408, got %d", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if len(seen) != 36 {
			t.Errorf("expected a UUID, got %q", seen)
		}
		if rec.Header().Get(requestIDHeader) != seen {
			t.Error("response header must echo the request id")
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "client-123")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "client-123" {
			t.Errorf("expected client-123, got %q", seen)
		}
	})

	t.Run("oversized replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if len(seen) != 36 {
			t.Errorf("expected a generated UUID, got %d chars", len(seen))
		}
	})
}

func TestRequestStartMiddleware(t *testing.T) {
	var start time.Time
	handler := RequestStartMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start = types.GetRequestStart(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if start.IsZero() || time.Since(start) > time.Second {
		t.Errorf("unexpected start %v", start)
	}
}

func TestContextTimeoutMiddleware_Cancellation(t *testing.T) {
	var err error
	handler := ContextTimeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		err = r.Context().Err()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
