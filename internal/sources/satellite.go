package sources

import (
	"context"

	"github.com/Beez1/bounceinsights/internal/types"
)

// Runner is the satellite fallback chain.
type Runner interface {
	Run(ctx context.Context, target types.GeoTarget, tf types.Timeframe) types.SatellitePayload
}

// Satellite serves imagery through the fallback chain. It never fails.
type Satellite struct {
	chain Runner
}

// NewSatellite wraps a fallback chain.
func NewSatellite(chain Runner) *Satellite {
	return &Satellite{chain: chain}
}

func (s *Satellite) Fetch(ctx context.Context, target types.GeoTarget, tf types.Timeframe) types.SourceResult {
	p := s.chain.Run(ctx, target, tf)
	return success(types.DataSatellite, target, TypeSatellite, p, map[string]any{
		"totalImages":   len(p.Images),
		"fallbackStage": p.Stage,
	})
}
