package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Beez1/bounceinsights/internal/core"
	"github.com/Beez1/bounceinsights/internal/insights"
	"github.com/Beez1/bounceinsights/internal/types"
)

// --- Mock Service ---

type mockInsightsService struct {
	searchReq  insights.SearchRequest
	travelReq  insights.TimeTravelRequest
	regionReq  insights.RegionRequest
	compareReq insights.CompareRequest
	imageReq   insights.ImageRequest
	epicReq    insights.EPICRequest
	called     string

	briefing *insights.BriefingResult
	apod     json.RawMessage
	err      error
}

func (m *mockInsightsService) Search(_ context.Context, req insights.SearchRequest) (*insights.SearchResponse, error) {
	m.called, m.searchReq = "search", req
	return &insights.SearchResponse{Success: true, OriginalQuery: req.Query}, m.err
}

func (m *mockInsightsService) TimeTravel(_ context.Context, req insights.TimeTravelRequest) (*insights.TimeTravelResponse, error) {
	m.called, m.travelReq = "time-travel", req
	return &insights.TimeTravelResponse{Success: true, TimeRange: req.TimeRange}, m.err
}

func (m *mockInsightsService) Contextualize(_ context.Context, req insights.RegionRequest) (*insights.ContextualizeResponse, error) {
	m.called, m.regionReq = "contextualize", req
	return &insights.ContextualizeResponse{ImageURL: req.ImageURL}, m.err
}

func (m *mockInsightsService) WeatherSummary(_ context.Context, req insights.RegionRequest) (*insights.WeatherSummaryResponse, error) {
	m.called, m.regionReq = "weather-summary", req
	return &insights.WeatherSummaryResponse{ImageURL: req.ImageURL}, m.err
}

func (m *mockInsightsService) SendBriefing(_ context.Context, req insights.BriefingRequest) (*insights.BriefingResult, error) {
	m.called = "email-briefing"
	return m.briefing, m.err
}

func (m *mockInsightsService) Compare(_ context.Context, req insights.CompareRequest) (*insights.CompareResponse, error) {
	m.called, m.compareReq = "image-comparator", req
	return &insights.CompareResponse{Success: true, ImageCount: len(req.Images)}, m.err
}

func (m *mockInsightsService) Explain(_ context.Context, req insights.ImageRequest) (*insights.ExplainResponse, error) {
	m.called, m.imageReq = "explain", req
	return &insights.ExplainResponse{Explanation: "Clouds over the Sahara."}, m.err
}

func (m *mockInsightsService) DetectCountries(_ context.Context, req insights.ImageRequest) (*insights.DetectCountriesResponse, error) {
	m.called, m.imageReq = "detect-countries", req
	return &insights.DetectCountriesResponse{Success: true, Countries: []string{"Egypt"}}, m.err
}

func (m *mockInsightsService) APOD(_ context.Context) (json.RawMessage, error) {
	m.called = "apod"
	return m.apod, m.err
}

func (m *mockInsightsService) EPIC(_ context.Context, req insights.EPICRequest) (*insights.EPICResponse, error) {
	m.called, m.epicReq = "epic", req
	return &insights.EPICResponse{Date: req.Date}, m.err
}

// --- Helpers ---

func newTestRouter(t *testing.T, svc InsightsService) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := NewInsightsHandler(svc, core.NewValidator(logger), logger)
	if err != nil {
		t.Fatalf("NewInsightsHandler: %v", err)
	}
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorResponse {
	t.Helper()
	var resp core.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid error envelope %q: %v", rec.Body.String(), err)
	}
	return resp
}

// --- Tests ---

func TestNewInsightsHandler_RegistersRulesOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	val := core.NewValidator(logger)
	if _, err := NewInsightsHandler(&mockInsightsService{}, val, logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandleSearch(t *testing.T) {
	svc := &mockInsightsService{}
	rec := do(t, newTestRouter(t, svc), http.MethodPost, "/search",
		`{"query": "Show me Europe during 2023 heatwave", "maxResults": 3}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.searchReq.MaxResults != 3 || svc.searchReq.Query != "Show me Europe during 2023 heatwave" {
		t.Errorf("unexpected request %+v", svc.searchReq)
	}
	var resp insights.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.OriginalQuery == "" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandleSearch_ValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode types.ErrorCode
	}{
		{"missing query", `{}`, types.ErrCodeValidationMissingField},
		{"max results too large", `{"query": "x", "maxResults": 500}`, types.ErrCodeValidationInvalidRequest},
		{"unknown field", `{"query": "x", "limit": 3}`, types.ErrCodeValidationInvalidJSON},
		{"malformed", `{"query": `, types.ErrCodeValidationInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockInsightsService{}
			rec := do(t, newTestRouter(t, svc), http.MethodPost, "/search", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if got := decodeEnvelope(t, rec).Code; got != string(tt.wantCode) {
				t.Errorf("expected %s, got %s", tt.wantCode, got)
			}
			if svc.called != "" {
				t.Errorf("service must not be called, got %s", svc.called)
			}
		})
	}
}

func TestHandleSearch_ServiceError(t *testing.T) {
	svc := &mockInsightsService{err: types.NoDataError("every source failed")}
	rec := do(t, newTestRouter(t, svc), http.MethodPost, "/search", `{"query": "floods in Nigeria"}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decodeEnvelope(t, rec).Code; got != string(types.ErrCodeNotFoundNoData) {
		t.Errorf("unexpected code %s", got)
	}
}

func TestHandleTimeTravel(t *testing.T) {
	t.Run("coordinates", func(t *testing.T) {
		svc := &mockInsightsService{}
		rec := do(t, newTestRouter(t, svc), http.MethodPost, "/time-travel",
			`{"location": {"lat": 40.7128, "lon": -74.006}, "timeRange": "month", "dataTypes": ["satellite", "analysis"]}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		loc := svc.travelReq.Location
		if loc.Coordinates == nil || loc.Coordinates.Lat != 40.7128 {
			t.Errorf("unexpected location %+v", loc)
		}
	})

	t.Run("place name", func(t *testing.T) {
		svc := &mockInsightsService{}
		rec := do(t, newTestRouter(t, svc), http.MethodPost, "/time-travel", `{"location": "Tokyo"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.travelReq.Location.Name != "Tokyo" {
			t.Errorf("unexpected location %+v", svc.travelReq.Location)
		}
	})
}

func TestHandleTimeTravel_ValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode types.ErrorCode
	}{
		{"bad range", `{"location": "Paris", "timeRange": "century"}`, types.ErrCodeValidationInvalidRequest},
		{"bad data type", `{"location": "Paris", "dataTypes": ["satellite", "radar"]}`, types.ErrCodeValidationInvalidRequest},
		{"bad date", `{"location": "Paris", "startDate": "2023/01/01"}`, types.ErrCodeValidationInvalidDate},
		{"half coordinates", `{"location": {"lat": 1}}`, types.ErrCodeValidationInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockInsightsService{}
			rec := do(t, newTestRouter(t, svc), http.MethodPost, "/time-travel", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if got := decodeEnvelope(t, rec).Code; got != string(tt.wantCode) {
				t.Errorf("expected %s, got %s", tt.wantCode, got)
			}
			if svc.called != "" {
				t.Error("service must not be called")
			}
		})
	}
}

func TestHandleRegions(t *testing.T) {
	for _, path := range []string{"/contextualize", "/weather-summary"} {
		t.Run(path, func(t *testing.T) {
			svc := &mockInsightsService{}
			rec := do(t, newTestRouter(t, svc), http.MethodPost, path,
				`{"imageUrl": "https://epic.gsfc.nasa.gov/a.png", "countries": ["FR", "DE"], "date": "2024-06-01"}`)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if len(svc.regionReq.Countries) != 2 {
				t.Errorf("unexpected request %+v", svc.regionReq)
			}
		})
	}
}

func TestHandleRegions_InvalidImage(t *testing.T) {
	svc := &mockInsightsService{}
	rec := do(t, newTestRouter(t, svc), http.MethodPost, "/contextualize", `{"imageUrl": "ftp://x/y.png"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decodeEnvelope(t, rec).Code; got != string(types.ErrCodeValidationInvalidImage) {
		t.Errorf("unexpected code %s", got)
	}
}

func TestHandleEmailBriefing(t *testing.T) {
	body := `{"imageUrl": "https://epic.gsfc.nasa.gov/a.png", "recipientEmail": "ada@example.com"}`

	t.Run("delivered", func(t *testing.T) {
		svc := &mockInsightsService{briefing: &insights.BriefingResult{Message: "sent", ReferenceID: "sg-1"}}
		rec := do(t, newTestRouter(t, svc), http.MethodPost, "/email-briefing", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("queued", func(t *testing.T) {
		svc := &mockInsightsService{briefing: &insights.BriefingResult{Message: "queued", JobID: "msg-1", Queued: true}}
		rec := do(t, newTestRouter(t, svc), http.MethodPost, "/email-briefing", body)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", rec.Code)
		}
		var resp map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp["jobId"] != "msg-1" {
			t.Errorf("unexpected body %v", resp)
		}
		if _, ok := resp["Queued"]; ok {
			t.Error("Queued must not be serialised")
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		svc := &mockInsightsService{}
		rec := do(t, newTestRouter(t, svc), http.MethodPost, "/email-briefing",
			`{"imageUrl": "https://epic.gsfc.nasa.gov/a.png", "recipientEmail": "not-an-email"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if got := decodeEnvelope(t, rec).Code; got != string(types.ErrCodeValidationInvalidEmail) {
			t.Errorf("unexpected code %s", got)
		}
	})

	t.Run("unconfigured", func(t *testing.T) {
		svc := &mockInsightsService{err: types.ConfigurationError("SENDGRID_API_KEY", "SendGrid API key not configured")}
		rec := do(t, newTestRouter(t, svc), http.MethodPost, "/email-briefing", body)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}

func TestHandleCompare(t *testing.T) {
	svc := &mockInsightsService{}
	rec := do(t, newTestRouter(t, svc), http.MethodPost, "/image-comparator",
		`{"images": ["https://a.example.com/1.png", "data:image/png;base64,AAAA"], "comparisonType": "temporal"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.compareReq.ComparisonType != "temporal" || len(svc.compareReq.Images) != 2 {
		t.Errorf("unexpected request %+v", svc.compareReq)
	}
}

func TestHandleCompare_UnknownComparisonType(t *testing.T) {
	svc := &mockInsightsService{}
	rec := do(t, newTestRouter(t, svc), http.MethodPost, "/image-comparator",
		`{"images": ["https://a.example.com/1.png", "https://a.example.com/2.png"], "comparisonType": "infrared"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decodeEnvelope(t, rec).Code; got != string(types.ErrCodeValidationComparisonType) {
		t.Errorf("unexpected code %s", got)
	}
}

func TestHandleVision(t *testing.T) {
	for _, path := range []string{"/explain", "/vision/detect-countries"} {
		t.Run(path, func(t *testing.T) {
			svc := &mockInsightsService{}
			rec := do(t, newTestRouter(t, svc), http.MethodPost, path, `{"imageUrl": "https://epic.gsfc.nasa.gov/a.png"}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if svc.imageReq.ImageURL == "" {
				t.Error("image url not passed to the service")
			}

			svc = &mockInsightsService{}
			rec = do(t, newTestRouter(t, svc), http.MethodPost, path, `{}`)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("missing imageUrl: expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestHandleAPOD(t *testing.T) {
	svc := &mockInsightsService{apod: json.RawMessage(`{"title":"Pillars of Creation","media_type":"image"}`)}
	rec := do(t, newTestRouter(t, svc), http.MethodGet, "/apod", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["title"] != "Pillars of Creation" {
		t.Errorf("upstream document not passed through: %v", resp)
	}
}

func TestHandleAPOD_Upstream(t *testing.T) {
	svc := &mockInsightsService{err: types.UpstreamError("nasa", "unreachable", nil)}
	rec := do(t, newTestRouter(t, svc), http.MethodGet, "/apod", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandleEPIC(t *testing.T) {
	svc := &mockInsightsService{}
	rec := do(t, newTestRouter(t, svc), http.MethodGet, "/epic?date=2024-01-15&lat=48.85&lon=2.35&radius=500", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.epicReq.Near == nil || svc.epicReq.RadiusKm != 500 {
		t.Errorf("unexpected request %+v", svc.epicReq)
	}
	if svc.epicReq.Date.String() != "2024-01-15" {
		t.Errorf("unexpected date %s", svc.epicReq.Date)
	}
}

func TestHandleEPIC_QueryErrors(t *testing.T) {
	tests := []struct {
		query    string
		wantCode types.ErrorCode
	}{
		{"", types.ErrCodeValidationMissingField},
		{"?date=15-01-2024", types.ErrCodeValidationInvalidDate},
		{"?date=2024-01-15&lat=10", types.ErrCodeValidationInvalidCoords},
		{"?date=2024-01-15&lat=95&lon=0", types.ErrCodeValidationInvalidLat},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			svc := &mockInsightsService{}
			rec := do(t, newTestRouter(t, svc), http.MethodGet, "/epic"+tt.query, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if got := decodeEnvelope(t, rec).Code; got != string(tt.wantCode) {
				t.Errorf("expected %s, got %s", tt.wantCode, got)
			}
			if svc.called != "" {
				t.Error("service must not be called")
			}
		})
	}
}

func TestHandleEPIC_NoImagesNearby(t *testing.T) {
	svc := &mockInsightsService{err: types.NotFoundError(types.ErrCodeNotFoundImages,
		"No images found", "No images found near the specified location", nil)}
	rec := do(t, newTestRouter(t, svc), http.MethodGet, "/epic?date=2024-01-15&lat=0&lon=0", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error != "No images found" || env.Details != "No images found near the specified location" {
		t.Errorf("unexpected envelope %+v", env)
	}
}
