// Package synthesis folds gathered source results into a response envelope
// and, when asked, an AI-written narrative over them.
package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/types"
)

// Profile selects the prompt and sampling for a narrative.
type Profile string

const (
	ProfileSearch     Profile = "search"
	ProfileTimeTravel Profile = "time_travel"
)

type profileSettings struct {
	system      string
	temperature float64
	maxTokens   int
}

var profiles = map[Profile]profileSettings{
	ProfileSearch:     {system: searchSystemPrompt, temperature: 0.4, maxTokens: 800},
	ProfileTimeTravel: {system: timeTravelSystemPrompt, temperature: 0.6, maxTokens: 500},
}

// Request is everything one synthesis needs.
type Request struct {
	Profile       Profile
	OriginalInput any
	Query         string             // search profile only
	Intent        *types.QueryIntent // search profile only
	Targets       []types.GeoTarget
	Timeframe     types.Timeframe
	Results       []types.SourceResult
	Narrative     bool
	Start         time.Time
}

// Synthesizer builds envelopes. A nil generator disables narratives; the
// envelope then carries a note instead.
type Synthesizer struct {
	llm    external.TextGenerator
	model  string
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Synthesizer using model for narratives.
func New(llm external.TextGenerator, model string, logger *slog.Logger) *Synthesizer {
	if model == "" {
		model = "gpt-4"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{llm: llm, model: model, logger: logger, now: time.Now}
}

// Synthesize reconciles results into an envelope. It fails only when a
// narrative was requested and no source succeeded.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (types.ResponseEnvelope, error) {
	meta := types.CountResults(req.Results)
	if req.Narrative && meta.SuccessCount == 0 {
		return types.ResponseEnvelope{}, types.NoDataError(
			fmt.Sprintf("All %d source requests failed, so no analysis could be produced", meta.TotalRequested))
	}

	env := types.ResponseEnvelope{
		OriginalInput:   req.OriginalInput,
		ResolvedTargets: req.Targets,
		Results:         req.Results,
		Summary:         SummaryLines(req.Results),
	}
	if env.ResolvedTargets == nil {
		env.ResolvedTargets = []types.GeoTarget{}
	}
	if env.Results == nil {
		env.Results = []types.SourceResult{}
	}

	if req.Narrative {
		s.narrate(ctx, req, &env)
	}

	start := req.Start
	if start.IsZero() {
		start = types.GetRequestStart(ctx)
	}
	if !start.IsZero() {
		meta.ProcessingTimeMs = s.now().Sub(start).Milliseconds()
	}
	meta.Timestamp = s.now().UTC()
	env.Metadata = meta
	return env, nil
}

func (s *Synthesizer) narrate(ctx context.Context, req Request, env *types.ResponseEnvelope) {
	logger := types.LoggerFromContext(ctx, s.logger)
	settings, ok := profiles[req.Profile]
	if !ok {
		settings = profiles[ProfileSearch]
	}

	if s.llm == nil {
		env.SynthesisNote = "Analysis unavailable: OpenAI API key not configured"
		return
	}

	var prompt string
	if req.Profile == ProfileTimeTravel {
		prompt = timeTravelPrompt(req)
	} else {
		prompt = searchPrompt(req, env.Summary)
	}

	resp, err := s.llm.Complete(ctx, external.ChatRequest{
		Model: s.model,
		Messages: []external.ChatMessage{
			{Role: "system", Text: settings.system},
			{Role: "user", Text: prompt},
		},
		Temperature: external.Float(settings.temperature),
		MaxTokens:   settings.maxTokens,
	})
	if err != nil {
		logger.WarnContext(ctx, "narrative generation failed", "profile", req.Profile, "error", err)
		env.SynthesisNote = "Analysis unavailable: " + reason(err)
		return
	}

	text := resp.Content
	env.Synthesis = &text
	model := resp.Model
	if model == "" {
		model = s.model
	}
	env.Narrative = &types.NarrativeMeta{
		Model:       model,
		TokensUsed:  resp.TokensUsed,
		Sources:     successfulSources(req.Results),
		GeneratedAt: s.now().UTC(),
	}
}

// SummaryLines renders one compact line per source family that produced
// data, in canonical source order.
func SummaryLines(results []types.SourceResult) []string {
	var satImages, weatherTargets, newsTargets, apodEntries int
	var satDate string
	seen := map[types.DataType]bool{}

	for _, r := range results {
		succ, ok := r.(types.SourceSuccess)
		if !ok {
			continue
		}
		switch p := succ.Payload.(type) {
		case types.SatellitePayload:
			satImages += len(p.Images)
			d := p.ActualDate
			if d == "" {
				d = p.RequestedDate
			}
			switch {
			case !seen[types.DataSatellite]:
				satDate = d
			case satDate != d:
				satDate = "various dates"
			}
		case types.WeatherPayload:
			weatherTargets++
		case types.NewsPayload:
			if p.Skipped {
				continue
			}
			newsTargets++
		case types.HistoricalPayload:
			// Every target shares one APOD range.
			apodEntries = max(apodEntries, len(p.Entries))
		}
		seen[succ.Source] = true
	}

	var lines []string
	if seen[types.DataSatellite] {
		if satDate == "" {
			satDate = "various dates"
		}
		lines = append(lines, fmt.Sprintf("Satellite imagery: %d images from %s", satImages, satDate))
	}
	if seen[types.DataWeather] {
		lines = append(lines, fmt.Sprintf("Weather data: Historical weather available for %d locations.", weatherTargets))
	}
	if seen[types.DataNews] {
		lines = append(lines, fmt.Sprintf("News data: Found news articles for %d regions.", newsTargets))
	}
	if seen[types.DataHistorical] {
		lines = append(lines, fmt.Sprintf("Historical data: %d astronomical images from NASA's APOD.", apodEntries))
	}
	return lines
}

func searchPrompt(req Request, lines []string) string {
	parsed := "{}"
	primaryEvent := "general conditions"
	if req.Intent != nil {
		if b, err := json.MarshalIndent(req.Intent, "", "  "); err == nil {
			parsed = string(b)
		}
		if len(req.Intent.Events) > 0 && len(req.Intent.Events[0].Keywords) > 0 {
			primaryEvent = strings.Join(req.Intent.Events[0].Keywords, ", ")
		}
	}
	return fmt.Sprintf(searchPromptTemplate, req.Query, parsed, primaryEvent, strings.Join(lines, "\n- "))
}

func timeTravelPrompt(req Request) string {
	lat, lon := "", ""
	if len(req.Targets) > 0 {
		lat = strconv.FormatFloat(req.Targets[0].Lat, 'f', -1, 64)
		lon = strconv.FormatFloat(req.Targets[0].Lon, 'f', -1, 64)
	}

	var parts []string
	for _, r := range req.Results {
		succ, ok := r.(types.SourceSuccess)
		if !ok {
			continue
		}
		switch p := succ.Payload.(type) {
		case types.WeatherPayload:
			parts = append(parts, fmt.Sprintf("Weather (%s to %s): Avg temp %s°C, Total precipitation %.1fmm",
				p.Start, p.End, oneDecimal(p.Summary.AvgMaxTemp), p.Summary.TotalPrecipitation))
		case types.SatellitePayload:
			d := p.ActualDate
			if d == "" {
				d = p.RequestedDate
			}
			parts = append(parts, "Satellite imagery available for "+d)
		case types.HistoricalPayload:
			parts = append(parts, fmt.Sprintf("%d astronomy images from NASA APOD", p.TotalAvailable))
		}
	}
	return fmt.Sprintf(timeTravelPromptTemplate, lat, lon,
		req.Timeframe.Start.String(), req.Timeframe.End.String(), strings.Join(parts, ". "))
}

func successfulSources(results []types.SourceResult) []types.DataType {
	seen := map[types.DataType]bool{}
	var out []types.DataType
	for _, r := range results {
		if r.OK() && !seen[r.SourceType()] {
			seen[r.SourceType()] = true
			out = append(out, r.SourceType())
		}
	}
	return out
}

func oneDecimal(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

// reason extracts the caller-facing message of an error.
func reason(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
