// Package handlers contains the HTTP handlers of the Earth insights API.
//
// Each handler decodes and validates its body, calls the insights service
// and writes either the service response or the error envelope:
//   - Natural-language search (POST /search)
//   - Location history (POST /time-travel)
//   - Regional context and weather (POST /contextualize, /weather-summary)
//   - Email briefings (POST /email-briefing)
//   - Vision endpoints (POST /image-comparator, /explain, /vision/detect-countries)
//   - NASA passthroughs (GET /apod, GET /epic)
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Beez1/bounceinsights/internal/core"
	"github.com/Beez1/bounceinsights/internal/insights"
)

// InsightsService is the service contract the handlers depend on. It is
// satisfied by *insights.Service.
type InsightsService interface {
	Search(ctx context.Context, req insights.SearchRequest) (*insights.SearchResponse, error)
	TimeTravel(ctx context.Context, req insights.TimeTravelRequest) (*insights.TimeTravelResponse, error)
	Contextualize(ctx context.Context, req insights.RegionRequest) (*insights.ContextualizeResponse, error)
	WeatherSummary(ctx context.Context, req insights.RegionRequest) (*insights.WeatherSummaryResponse, error)
	SendBriefing(ctx context.Context, req insights.BriefingRequest) (*insights.BriefingResult, error)
	Compare(ctx context.Context, req insights.CompareRequest) (*insights.CompareResponse, error)
	Explain(ctx context.Context, req insights.ImageRequest) (*insights.ExplainResponse, error)
	DetectCountries(ctx context.Context, req insights.ImageRequest) (*insights.DetectCountriesResponse, error)
	APOD(ctx context.Context) (json.RawMessage, error)
	EPIC(ctx context.Context, req insights.EPICRequest) (*insights.EPICResponse, error)
}

// InsightsHandler maps HTTP requests to InsightsService methods.
type InsightsHandler struct {
	service   InsightsService
	validator *core.Validator
	logger    *slog.Logger
}

// NewInsightsHandler registers the request vocabularies on val and returns
// the handler.
func NewInsightsHandler(svc InsightsService, val *core.Validator, logger *slog.Logger) (*InsightsHandler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rules := map[string]func(string) bool{
		"comparison": insights.IsComparisonType,
		"timerange":  insights.IsTimeRange,
		"datatype":   insights.IsTravelType,
	}
	for tag, fn := range rules {
		if err := val.RegisterStringRule(tag, fn); err != nil {
			return nil, fmt.Errorf("registering %s rule: %w", tag, err)
		}
	}
	return &InsightsHandler{
		service:   svc,
		validator: val,
		logger:    logger,
	}, nil
}

// RegisterRoutes mounts the insight endpoints at the root of r.
func (h *InsightsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/search", h.HandleSearch)
	r.Post("/time-travel", h.HandleTimeTravel)
	r.Post("/contextualize", h.HandleContextualize)
	r.Post("/weather-summary", h.HandleWeatherSummary)
	r.Post("/email-briefing", h.HandleEmailBriefing)
	r.Post("/image-comparator", h.HandleCompare)
	r.Post("/explain", h.HandleExplain)
	r.Post("/vision/detect-countries", h.HandleDetectCountries)
	r.Get("/apod", h.HandleAPOD)
	r.Get("/epic", h.HandleEPIC)

	r.Get("/search", ServeRouteDoc("/search"))
	r.Get("/time-travel", ServeRouteDoc("/time-travel"))
	r.Get("/image-comparator", ServeRouteDoc("/image-comparator"))
}

// bind decodes the body into dst and validates it. On failure the error
// envelope has been written and bind returns false.
func (h *InsightsHandler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(w, r, dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	return true
}

// respond writes resp with status, or the error envelope for err.
func respond[T any](w http.ResponseWriter, r *http.Request, status int, resp T, err error) {
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, status, resp)
}

// HandleSearch handles POST /search.
func (h *InsightsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req insights.SearchRequest
	if !h.bind(w, r, &req) {
		return
	}
	resp, err := h.service.Search(r.Context(), req)
	respond(w, r, http.StatusOK, resp, err)
}

// HandleTimeTravel handles POST /time-travel.
func (h *InsightsHandler) HandleTimeTravel(w http.ResponseWriter, r *http.Request) {
	var req insights.TimeTravelRequest
	if !h.bind(w, r, &req) {
		return
	}
	resp, err := h.service.TimeTravel(r.Context(), req)
	respond(w, r, http.StatusOK, resp, err)
}

// HandleContextualize handles POST /contextualize.
func (h *InsightsHandler) HandleContextualize(w http.ResponseWriter, r *http.Request) {
	var req insights.RegionRequest
	if !h.bind(w, r, &req) {
		return
	}
	resp, err := h.service.Contextualize(r.Context(), req)
	respond(w, r, http.StatusOK, resp, err)
}

// HandleWeatherSummary handles POST /weather-summary.
func (h *InsightsHandler) HandleWeatherSummary(w http.ResponseWriter, r *http.Request) {
	var req insights.RegionRequest
	if !h.bind(w, r, &req) {
		return
	}
	resp, err := h.service.WeatherSummary(r.Context(), req)
	respond(w, r, http.StatusOK, resp, err)
}

// HandleEmailBriefing handles POST /email-briefing. A queued briefing is
// answered with 202 Accepted.
func (h *InsightsHandler) HandleEmailBriefing(w http.ResponseWriter, r *http.Request) {
	var req insights.BriefingRequest
	if !h.bind(w, r, &req) {
		return
	}
	resp, err := h.service.SendBriefing(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if resp.Queued {
		status = http.StatusAccepted
	}
	core.JSON(w, r, status, resp)
}

// HandleCompare handles POST /image-comparator.
func (h *InsightsHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req insights.CompareRequest
	if !h.bind(w, r, &req) {
		return
	}
	resp, err := h.service.Compare(r.Context(), req)
	respond(w, r, http.StatusOK, resp, err)
}

// HandleExplain handles POST /explain.
func (h *InsightsHandler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	var req insights.ImageRequest
	if !h.bind(w, r, &req) {
		return
	}
	resp, err := h.service.Explain(r.Context(), req)
	respond(w, r, http.StatusOK, resp, err)
}

// HandleDetectCountries handles POST /vision/detect-countries.
func (h *InsightsHandler) HandleDetectCountries(w http.ResponseWriter, r *http.Request) {
	var req insights.ImageRequest
	if !h.bind(w, r, &req) {
		return
	}
	resp, err := h.service.DetectCountries(r.Context(), req)
	respond(w, r, http.StatusOK, resp, err)
}

// HandleAPOD handles GET /apod. The upstream document is passed through.
func (h *InsightsHandler) HandleAPOD(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.APOD(r.Context())
	respond(w, r, http.StatusOK, resp, err)
}

// HandleEPIC handles GET /epic?date=YYYY-MM-DD&lat=&lon=&radius=.
func (h *InsightsHandler) HandleEPIC(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := insights.ParseEPICQuery(q.Get("date"), q.Get("lat"), q.Get("lon"), q.Get("radius"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	resp, err := h.service.EPIC(r.Context(), req)
	respond(w, r, http.StatusOK, resp, err)
}
