package insights

import (
	"context"
	"strings"
	"time"

	"github.com/Beez1/bounceinsights/internal/sources"
	"github.com/Beez1/bounceinsights/internal/synthesis"
	"github.com/Beez1/bounceinsights/internal/types"
)

// SearchRequest is a natural-language search.
type SearchRequest struct {
	Query           string `json:"query" validate:"required"`
	MaxResults      int    `json:"maxResults,omitempty" validate:"omitempty,min=1,max=50"`
	IncludeAnalysis *bool  `json:"includeAnalysis,omitempty"`
}

// Analysis is the narrative block of a response. Exactly one of Text or
// Error is set.
type Analysis struct {
	Text        string           `json:"analysis,omitempty"`
	Confidence  types.Confidence `json:"confidence,omitempty"`
	Sources     []types.DataType `json:"dataSourcesUsed,omitempty"`
	Model       string           `json:"model,omitempty"`
	TokensUsed  int              `json:"tokensUsed,omitempty"`
	GeneratedAt *time.Time       `json:"generatedAt,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// SearchMetadata extends the envelope counts with search totals.
type SearchMetadata struct {
	types.EnvelopeMetadata
	TotalResults      int `json:"totalResults"`
	SuccessfulSources int `json:"successfulSources"`
}

// SearchResponse is the result of a natural-language search.
type SearchResponse struct {
	Success         bool                 `json:"success"`
	OriginalQuery   string               `json:"originalQuery"`
	QueryAnalysis   types.QueryIntent    `json:"queryAnalysis"`
	ResolvedTargets []types.GeoTarget    `json:"resolvedTargets"`
	Results         []types.SourceResult `json:"results"`
	Summary         []string             `json:"summary,omitempty"`
	OverallAnalysis *Analysis            `json:"overallAnalysis"`
	Metadata        SearchMetadata       `json:"metadata"`
}

// Search interprets the query, gathers every requested source for every
// location it names and optionally narrates the outcome.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := s.now()
	query := strings.TrimSpace(req.Query)

	intent, err := s.deps.Interpreter.Interpret(ctx, query)
	if err != nil {
		return nil, err
	}

	targets, err := s.searchTargets(ctx, intent, req.MaxResults)
	if err != nil {
		return nil, err
	}

	tf := intent.Timeframe.Normalize(s.today())
	s.log(ctx).InfoContext(ctx, "search gathering",
		"targets", len(targets),
		"data_types", intent.DataTypes,
		"start", tf.Start.String(),
		"end", tf.End.String(),
	)

	results := s.deps.Gatherer.Gather(ctx, targets, intent.DataTypes, tf)
	results = sources.AnnotateRelevance(results, intent.Events)

	narrate := req.IncludeAnalysis == nil || *req.IncludeAnalysis

	env, err := s.deps.Synthesizer.Synthesize(ctx, synthesis.Request{
		Profile:       synthesis.ProfileSearch,
		OriginalInput: query,
		Query:         query,
		Intent:        &intent,
		Targets:       targets,
		Timeframe:     tf,
		Results:       results,
		Narrative:     narrate,
		Start:         start,
	})
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		Success:         true,
		OriginalQuery:   query,
		QueryAnalysis:   intent,
		ResolvedTargets: env.ResolvedTargets,
		Results:         env.Results,
		Summary:         env.Summary,
		OverallAnalysis: analysisFrom(env, intent.Confidence),
		Metadata: SearchMetadata{
			EnvelopeMetadata:  env.Metadata,
			TotalResults:      env.Metadata.TotalRequested,
			SuccessfulSources: env.Metadata.SuccessCount,
		},
	}
	return resp, nil
}

// searchTargets turns the intent's locations into at most limit targets.
// Locations the model placed without coordinates are looked up by name;
// those that still cannot be placed are dropped.
func (s *Service) searchTargets(ctx context.Context, intent types.QueryIntent, limit int) ([]types.GeoTarget, error) {
	if limit < 1 || limit > s.cfg.MaxTargets {
		limit = s.cfg.MaxTargets
	}

	var targets []types.GeoTarget
	var lastErr error
	for _, loc := range intent.Locations {
		if len(targets) == limit {
			break
		}
		if t, ok := loc.Target(); ok {
			targets = append(targets, t)
			continue
		}
		t, err := s.deps.Resolver.FromName(loc.Name)
		if err != nil {
			s.log(ctx).WarnContext(ctx, "dropping unplaceable location", "location", loc.Name)
			lastErr = err
			continue
		}
		targets = append(targets, t)
	}

	if len(targets) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, types.NotFoundError(types.ErrCodeNotFoundLocation, "Location not found",
			"The query does not name a location that could be placed on the map", nil)
	}
	return targets, nil
}

func analysisFrom(env types.ResponseEnvelope, confidence types.Confidence) *Analysis {
	switch {
	case env.Synthesis != nil:
		a := &Analysis{Text: *env.Synthesis, Confidence: confidence}
		if env.Narrative != nil {
			generated := env.Narrative.GeneratedAt
			a.Sources = env.Narrative.Sources
			a.Model = env.Narrative.Model
			a.TokensUsed = env.Narrative.TokensUsed
			a.GeneratedAt = &generated
		}
		return a
	case env.SynthesisNote != "":
		return &Analysis{Error: env.SynthesisNote}
	}
	return nil
}
