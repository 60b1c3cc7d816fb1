package sources

import "github.com/Beez1/bounceinsights/internal/types"

// Relevance levels attached to weather and news payloads.
const (
	RelevanceHigh   = "high"
	RelevanceMedium = "medium"
	RelevanceLow    = "low"
)

// WeatherRelevance rates weather data against the query's events.
func WeatherRelevance(events []types.Event) string {
	if len(events) == 0 {
		return RelevanceMedium
	}
	for _, e := range events {
		if e.Type == "weather" {
			return RelevanceHigh
		}
	}
	return RelevanceLow
}

// NewsRelevance rates headlines against the query's events.
func NewsRelevance(events []types.Event) string {
	for _, e := range events {
		switch e.Type {
		case "political", "conflict", "health":
			return RelevanceHigh
		}
	}
	return RelevanceMedium
}

// AnnotateRelevance returns results with relevance set on weather and news
// payloads. The input slice is not modified.
func AnnotateRelevance(results []types.SourceResult, events []types.Event) []types.SourceResult {
	out := make([]types.SourceResult, len(results))
	for i, r := range results {
		out[i] = r
		s, ok := r.(types.SourceSuccess)
		if !ok {
			continue
		}
		switch p := s.Payload.(type) {
		case types.WeatherPayload:
			p.Relevance = WeatherRelevance(events)
			s.Payload = p
		case types.NewsPayload:
			if p.Skipped {
				continue
			}
			p.Relevance = NewsRelevance(events)
			s.Payload = p
		}
		out[i] = s
	}
	return out
}
