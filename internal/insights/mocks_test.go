package insights

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Beez1/bounceinsights/internal/briefing"
	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/resolver"
	"github.com/Beez1/bounceinsights/internal/synthesis"
	"github.com/Beez1/bounceinsights/internal/types"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type mockResolver struct {
	ResolveFunc         func(ctx context.Context, in resolver.Input) ([]types.GeoTarget, error)
	FromNameFunc        func(name string) (types.GeoTarget, error)
	FromCountriesFunc   func(ctx context.Context, countries []string) ([]types.GeoTarget, error)
	DetectCountriesFunc func(ctx context.Context, image string) ([]string, error)
}

func (m *mockResolver) Resolve(ctx context.Context, in resolver.Input) ([]types.GeoTarget, error) {
	return m.ResolveFunc(ctx, in)
}

func (m *mockResolver) FromName(name string) (types.GeoTarget, error) {
	return m.FromNameFunc(name)
}

func (m *mockResolver) FromCountries(ctx context.Context, countries []string) ([]types.GeoTarget, error) {
	return m.FromCountriesFunc(ctx, countries)
}

func (m *mockResolver) DetectCountries(ctx context.Context, image string) ([]string, error) {
	return m.DetectCountriesFunc(ctx, image)
}

// capitals is a small FromCountries table for tests.
var capitals = map[string]types.GeoTarget{
	"Nigeria":  {Name: "Nigeria", Kind: types.KindCountry, Lat: 9.08, Lon: 7.4, ISO2: "ng", Capital: "Abuja"},
	"Ghana":    {Name: "Ghana", Kind: types.KindCountry, Lat: 5.6, Lon: -0.19, ISO2: "gh", Capital: "Accra"},
	"Atlantis": {Name: "Atlantis", Kind: types.KindCountry, Lat: 1, Lon: 1, Capital: "Poseidonia"},
}

func capitalsFromCountries(_ context.Context, countries []string) ([]types.GeoTarget, error) {
	var out []types.GeoTarget
	for _, c := range countries {
		if t, ok := capitals[c]; ok {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, types.NotFoundError(types.ErrCodeNotFoundLocation, "Location not found", "none", nil)
	}
	return out, nil
}

type mockInterpreter struct {
	intent types.QueryIntent
	err    error
}

func (m *mockInterpreter) Interpret(_ context.Context, _ string) (types.QueryIntent, error) {
	return m.intent, m.err
}

type mockGatherer struct {
	GatherFunc func(targets []types.GeoTarget, dataTypes []types.DataType, tf types.Timeframe) []types.SourceResult

	mu        sync.Mutex
	targets   []types.GeoTarget
	dataTypes []types.DataType
	tf        types.Timeframe
}

func (m *mockGatherer) Gather(_ context.Context, targets []types.GeoTarget, dataTypes []types.DataType, tf types.Timeframe) []types.SourceResult {
	m.mu.Lock()
	m.targets, m.dataTypes, m.tf = targets, dataTypes, tf
	m.mu.Unlock()
	return m.GatherFunc(targets, dataTypes, tf)
}

type mockSynthesizer struct {
	SynthesizeFunc func(req synthesis.Request) (types.ResponseEnvelope, error)
	last           synthesis.Request
}

func (m *mockSynthesizer) Synthesize(_ context.Context, req synthesis.Request) (types.ResponseEnvelope, error) {
	m.last = req
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(req)
	}
	env := types.ResponseEnvelope{
		OriginalInput:   req.OriginalInput,
		ResolvedTargets: req.Targets,
		Results:         req.Results,
		Metadata:        types.CountResults(req.Results),
	}
	if req.Narrative {
		text := "narrative"
		env.Synthesis = &text
		env.Narrative = &types.NarrativeMeta{Model: "gpt-4", TokensUsed: 42, GeneratedAt: fixedNow}
	}
	return env, nil
}

type mockWeather struct {
	DailyFunc func(at types.LatLon, start, end types.Date) (types.WeatherDaily, error)
}

func (m *mockWeather) Daily(_ context.Context, at types.LatLon, start, end types.Date) (types.WeatherDaily, error) {
	return m.DailyFunc(at, start, end)
}

type mockNews struct {
	TopHeadlinesFunc func(iso2 string, limit int) ([]types.Article, error)
}

func (m *mockNews) TopHeadlines(_ context.Context, iso2 string, limit int) ([]types.Article, error) {
	return m.TopHeadlinesFunc(iso2, limit)
}

type mockLLM struct {
	CompleteFunc func(req external.ChatRequest) (external.ChatResponse, error)

	mu    sync.Mutex
	calls []external.ChatRequest
}

func (m *mockLLM) Complete(_ context.Context, req external.ChatRequest) (external.ChatResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return m.CompleteFunc(req)
}

type mockProber struct {
	contentTypes map[string]string
}

func (m *mockProber) Probe(_ context.Context, url string) (string, error) {
	ct, ok := m.contentTypes[url]
	if !ok {
		return "", types.UpstreamError("image-probe", "unreachable", nil)
	}
	return ct, nil
}

type mockBriefings struct {
	configErr error
	sendErr   error
	sent      []briefing.Briefing
}

func (m *mockBriefings) CheckConfigured() error { return m.configErr }

func (m *mockBriefings) Dispatch(_ context.Context, b briefing.Briefing) (briefing.Receipt, error) {
	if m.sendErr != nil {
		return briefing.Receipt{}, m.sendErr
	}
	m.sent = append(m.sent, b)
	return briefing.Receipt{ReferenceID: "ref-1", Recipient: b.Recipient, SentAt: fixedNow}, nil
}

type mockPublisher struct {
	jobs []types.BriefingJob
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, job types.BriefingJob) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.jobs = append(m.jobs, job)
	return "job-1", nil
}

type mockNASA struct {
	images []external.EPICImage
	err    error
	today  json.RawMessage
}

func (m *mockNASA) Natural(_ context.Context, _ types.Date) ([]external.EPICImage, error) {
	return m.images, m.err
}

func (m *mockNASA) ImageURL(date types.Date, image string) string {
	return "https://api.test/archive/" + image + ".png"
}

func (m *mockNASA) ThumbnailURL(date types.Date, image string) string {
	return "https://api.test/thumbs/" + image + ".jpg"
}

func (m *mockNASA) PublicJPEGURL(date types.Date, image string) string {
	return "https://epic.test/" + date.String() + "/" + image + ".jpg"
}

func (m *mockNASA) APOD(_ context.Context, _ types.Date) (types.ApodEntry, error) {
	return types.ApodEntry{}, m.err
}

func (m *mockNASA) Range(_ context.Context, _, _ types.Date) ([]types.ApodEntry, error) {
	return nil, m.err
}

func (m *mockNASA) Today(_ context.Context) (json.RawMessage, error) {
	return m.today, m.err
}

type staticCodes struct{}

func (staticCodes) WeatherDescription(code int) string {
	if code == 0 {
		return "Clear sky"
	}
	return "Unknown weather"
}

// newTestService builds a Service on deps with a fixed clock.
func newTestService(deps Deps) *Service {
	if deps.Codes == nil {
		deps.Codes = staticCodes{}
	}
	s := New(deps, Config{}, nil)
	s.now = func() time.Time { return fixedNow }
	return s
}

func ptr[T any](v T) *T { return &v }
