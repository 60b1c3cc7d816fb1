// Package sources adapts each external data family to the orchestrator's
// Fetcher contract. Every adapter returns exactly one SourceResult and folds
// its own errors into a SourceFailure.
package sources

import (
	"context"

	"github.com/Beez1/bounceinsights/internal/orchestrator"
	"github.com/Beez1/bounceinsights/internal/types"
)

// Result type tags carried on SourceSuccess.Type.
const (
	TypeSatellite  = "satellite_imagery"
	TypeWeather    = "weather_data"
	TypeNews       = "news_data"
	TypeHistorical = "astronomical_data"
)

// Adapter is the source contract used by the orchestrator.
type Adapter = orchestrator.Fetcher

// Set bundles the four adapters in the form the orchestrator consumes.
type Set struct {
	Satellite  Adapter
	Weather    Adapter
	News       Adapter
	Historical Adapter
}

// Map returns the adapters keyed by data type, skipping nil entries.
func (s Set) Map() map[types.DataType]orchestrator.Fetcher {
	m := make(map[types.DataType]orchestrator.Fetcher, 4)
	for dt, a := range map[types.DataType]Adapter{
		types.DataSatellite:  s.Satellite,
		types.DataWeather:    s.Weather,
		types.DataNews:       s.News,
		types.DataHistorical: s.Historical,
	} {
		if a != nil {
			m[dt] = a
		}
	}
	return m
}

func success(dt types.DataType, target types.GeoTarget, typ string, p types.Payload, meta map[string]any) types.SourceResult {
	return types.SourceSuccess{Source: dt, Target: target.Name, Type: typ, Payload: p, Metadata: meta}
}

// ctxFailure reports a cancelled or expired context as a timeout failure.
func ctxFailure(ctx context.Context, dt types.DataType, target types.GeoTarget) (types.SourceResult, bool) {
	if err := ctx.Err(); err != nil {
		return types.NewFailure(dt, target.Name, err), true
	}
	return nil, false
}
