// Package interpreter turns a free-text query into a structured intent in
// two stages: Generate asks a language model for JSON, and Parse extracts,
// validates and enriches that JSON against the static tables.
package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/gazetteer"
	"github.com/Beez1/bounceinsights/internal/types"
)

// DefaultDataTypes is used when the model names no usable source.
var DefaultDataTypes = []types.DataType{types.DataSatellite, types.DataWeather, types.DataNews}

// Config selects the model and sampling.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// DefaultConfig is tuned for deterministic extraction.
func DefaultConfig() Config {
	return Config{Model: "gpt-4", Temperature: 0.1, MaxTokens: 1000}
}

// Interpreter reads queries. A nil generator means no model is configured.
type Interpreter struct {
	llm      external.TextGenerator
	gaz      *gazetteer.Gazetteer
	cfg      Config
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates an Interpreter.
func New(llm external.TextGenerator, gaz *gazetteer.Gazetteer, cfg Config, logger *slog.Logger) *Interpreter {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if gaz == nil {
		gaz = gazetteer.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		llm:      llm,
		gaz:      gaz,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Interpret runs both stages.
func (in *Interpreter) Interpret(ctx context.Context, query string) (types.QueryIntent, error) {
	raw, err := in.Generate(ctx, query)
	if err != nil {
		return types.QueryIntent{}, err
	}
	intent, err := in.Parse(query, raw)
	if err != nil {
		types.LoggerFromContext(ctx, in.logger).WarnContext(ctx, "model output could not be parsed",
			"error", err,
			"output_bytes", len(raw),
		)
		return types.QueryIntent{}, err
	}
	return intent, nil
}

// Generate returns the model's raw answer for query.
func (in *Interpreter) Generate(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", types.ParseError("A natural language query string is required", nil, Suggestions)
	}
	if in.llm == nil {
		return "", types.ConfigurationError("OPENAI_API_KEY",
			"The OpenAI API key is missing from the backend environment. Please ensure the OPENAI_API_KEY is set.")
	}

	resp, err := in.llm.Complete(ctx, external.ChatRequest{
		Model: in.cfg.Model,
		Messages: []external.ChatMessage{
			{Role: "system", Text: systemPrompt},
			{Role: "user", Text: query},
		},
		Temperature: external.Float(in.cfg.Temperature),
		MaxTokens:   in.cfg.MaxTokens,
	})
	if err != nil {
		return "", types.ParseError("Failed to parse natural language query", err, Suggestions)
	}
	return resp.Content, nil
}

// modelOutput is the schema the system prompt mandates.
type modelOutput struct {
	Locations []modelLocation `json:"locations" validate:"dive"`
	Timeframe struct {
		Start      string `json:"start" validate:"omitempty,datetime=2006-01-02"`
		End        string `json:"end" validate:"omitempty,datetime=2006-01-02"`
		Period     string `json:"period"`
		Confidence string `json:"confidence"`
	} `json:"timeframe"`
	Events     []types.Event `json:"events"`
	DataTypes  []string      `json:"dataTypes"`
	Intent     string        `json:"intent"`
	Confidence string        `json:"confidence"`
}

type modelLocation struct {
	Name        string `json:"name" validate:"required"`
	Type        string `json:"type"`
	Region      string `json:"region"`
	Coordinates *struct {
		Lat float64 `json:"lat" validate:"latitude"`
		Lon float64 `json:"lon" validate:"longitude"`
	} `json:"coordinates"`
}

// Parse turns raw model output into an intent. query is the text the
// output answers; it feeds event and astronomy detection.
func (in *Interpreter) Parse(query, raw string) (types.QueryIntent, error) {
	block, err := extractObject(raw)
	if err != nil {
		return types.QueryIntent{}, modelError(err)
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return types.QueryIntent{}, modelError(fmt.Errorf("decode model output: %w", err))
	}
	if err := in.validate.Struct(out); err != nil {
		return types.QueryIntent{}, modelError(fmt.Errorf("model output violates schema: %w", err))
	}

	intent := types.QueryIntent{
		Intent:     out.Intent,
		Confidence: confidence(out.Confidence),
		Events:     out.Events,
		Timeframe: types.Timeframe{
			Period:     out.Timeframe.Period,
			Confidence: confidence(out.Timeframe.Confidence),
		},
	}
	// The validator has already checked both layouts.
	if out.Timeframe.Start != "" {
		intent.Timeframe.Start = types.MustParseDate(out.Timeframe.Start)
	}
	if out.Timeframe.End != "" {
		intent.Timeframe.End = types.MustParseDate(out.Timeframe.End)
	}

	intent.Locations = make([]types.QueryLocation, 0, len(out.Locations))
	for _, l := range out.Locations {
		intent.Locations = append(intent.Locations, in.enrichLocation(l))
	}

	if len(intent.Events) == 0 {
		intent.Events = in.eventsFrom(query)
	}
	if intent.Events == nil {
		intent.Events = []types.Event{}
	}

	intent.DataTypes = normalizeDataTypes(out.DataTypes)
	if len(intent.DataTypes) == 0 {
		intent.DataTypes = append([]types.DataType(nil), DefaultDataTypes...)
		if in.mentionsAstronomy(query, intent) {
			intent.DataTypes = append(intent.DataTypes, types.DataHistorical)
		}
	}

	return intent, nil
}

// enrichLocation overwrites model guesses with gazetteer facts.
func (in *Interpreter) enrichLocation(l modelLocation) types.QueryLocation {
	loc := types.QueryLocation{Name: strings.TrimSpace(l.Name), Type: kind(l.Type)}
	if l.Coordinates != nil {
		loc.Coordinates = &types.LatLon{Lat: l.Coordinates.Lat, Lon: l.Coordinates.Lon}
	}

	p, ok := in.gaz.Lookup(loc.Name)
	if !ok {
		return loc
	}
	loc.Type = p.Kind()
	loc.Coordinates = &types.LatLon{Lat: p.Lat, Lon: p.Lon}
	if p.ISO2 != "" {
		loc.ISO2 = p.ISO2
	}
	if len(p.Countries) > 0 {
		loc.Countries = append([]string(nil), p.Countries...)
	}
	return loc
}

func (in *Interpreter) eventsFrom(query string) []types.Event {
	matched := in.gaz.MatchEvents(query)
	if len(matched) == 0 {
		return nil
	}
	events := make([]types.Event, 0, len(matched))
	for _, m := range matched {
		events = append(events, types.Event{Type: m.Type, Keywords: []string{m.Keyword}, Severity: "medium"})
	}
	return events
}

func (in *Interpreter) mentionsAstronomy(query string, intent types.QueryIntent) bool {
	parts := []string{query, intent.Intent}
	for _, e := range intent.Events {
		parts = append(parts, e.Type)
		parts = append(parts, e.Keywords...)
	}
	return in.gaz.MentionsAstronomy(strings.Join(parts, " "))
}

// normalizeDataTypes drops unknown names and duplicates, keeping order.
func normalizeDataTypes(names []string) []types.DataType {
	seen := make(map[types.DataType]bool, len(names))
	var out []types.DataType
	for _, n := range names {
		dt := types.DataType(strings.ToLower(strings.TrimSpace(n)))
		if !dt.IsKnown() || seen[dt] {
			continue
		}
		seen[dt] = true
		out = append(out, dt)
	}
	return out
}

func confidence(s string) types.Confidence {
	switch c := types.Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case types.ConfidenceHigh, types.ConfidenceMedium, types.ConfidenceLow:
		return c
	}
	return types.ConfidenceLow
}

func kind(s string) types.TargetKind {
	switch k := types.TargetKind(strings.ToLower(strings.TrimSpace(s))); k {
	case types.KindCountry, types.KindContinent, types.KindCity:
		return k
	}
	return types.KindCity
}

func modelError(err error) error {
	e := types.ParseError("Query parsing failed", err, Suggestions)
	e.Code = types.ErrCodeParseModelOutput
	return e
}
