// Package insights implements the endpoint workflows: natural-language
// search, location time travel, image contextualization, email briefings
// and the vision helpers. Each workflow composes the resolver, interpreter,
// orchestrator and synthesizer and never talks HTTP itself.
package insights

import (
	"context"
	"log/slog"
	"time"

	"github.com/Beez1/bounceinsights/internal/briefing"
	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/gazetteer"
	"github.com/Beez1/bounceinsights/internal/resolver"
	"github.com/Beez1/bounceinsights/internal/synthesis"
	"github.com/Beez1/bounceinsights/internal/types"
)

// DefaultRegionDate is the weather day used by contextualize and
// weather-summary when the caller names none.
var DefaultRegionDate = types.MustParseDate("2024-06-01")

// Interpreter turns a free-text query into a QueryIntent.
type Interpreter interface {
	Interpret(ctx context.Context, query string) (types.QueryIntent, error)
}

// Resolver turns location hints into targets.
type Resolver interface {
	Resolve(ctx context.Context, in resolver.Input) ([]types.GeoTarget, error)
	FromName(name string) (types.GeoTarget, error)
	FromCountries(ctx context.Context, countries []string) ([]types.GeoTarget, error)
	DetectCountries(ctx context.Context, image string) ([]string, error)
}

// Gatherer fans out source calls in all-settle mode.
type Gatherer interface {
	Gather(ctx context.Context, targets []types.GeoTarget, dataTypes []types.DataType, tf types.Timeframe) []types.SourceResult
}

// Synthesizer reconciles gathered results into an envelope.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synthesis.Request) (types.ResponseEnvelope, error)
}

// BriefingSender renders and delivers one briefing.
type BriefingSender interface {
	CheckConfigured() error
	Dispatch(ctx context.Context, b briefing.Briefing) (briefing.Receipt, error)
}

// BriefingPublisher hands a briefing job to the asynchronous worker.
type BriefingPublisher interface {
	Publish(ctx context.Context, job types.BriefingJob) (string, error)
}

// WeatherCodes describes WMO weather codes.
type WeatherCodes interface {
	WeatherDescription(code int) string
}

// Config tunes the workflows.
type Config struct {
	// VisionModel serves explain and image-comparator.
	VisionModel string
	// MaxTargets bounds how many targets a search fans out to.
	MaxTargets int
}

// Deps are the collaborators of a Service. Nil vendor clients mean the
// vendor is not configured; the affected workflows degrade or report a
// configuration error.
type Deps struct {
	Resolver    Resolver
	Interpreter Interpreter
	Gatherer    Gatherer
	Synthesizer Synthesizer
	Codes       WeatherCodes

	EPIC    external.EPICClient
	APOD    external.APODClient
	Weather external.WeatherArchive
	News    external.NewsClient
	Vision  external.TextGenerator
	Prober  external.ImageProber

	Briefings BriefingSender
	Publisher BriefingPublisher
}

// Service runs the endpoint workflows.
type Service struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Service.
func New(deps Deps, cfg Config, logger *slog.Logger) *Service {
	if cfg.VisionModel == "" {
		cfg.VisionModel = "gpt-4-turbo"
	}
	if cfg.MaxTargets < 1 {
		cfg.MaxTargets = 5
	}
	if deps.Codes == nil {
		deps.Codes = gazetteer.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, cfg: cfg, logger: logger, now: time.Now}
}

func (s *Service) today() types.Date {
	return types.NewDate(s.now().UTC())
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return types.LoggerFromContext(ctx, s.logger)
}

// elapsedMs reports the time since the request started, or since start when
// the context carries no start time.
func (s *Service) elapsedMs(ctx context.Context, start time.Time) int64 {
	if rs := types.GetRequestStart(ctx); !rs.IsZero() {
		start = rs
	}
	return s.now().Sub(start).Milliseconds()
}
