package sources

import (
	"context"
	"log/slog"

	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/types"
)

const (
	maxHistoricalDays    = 30
	maxHistoricalEntries = 5
)

// Historical reads an APOD range for the timeframe.
type Historical struct {
	apod   external.APODClient
	logger *slog.Logger
}

// NewHistorical creates the historical adapter. A nil client means no NASA
// key is configured and every fetch fails with a configuration error.
func NewHistorical(apod external.APODClient, logger *slog.Logger) *Historical {
	if logger == nil {
		logger = slog.Default()
	}
	return &Historical{apod: apod, logger: logger}
}

func (h *Historical) Fetch(ctx context.Context, target types.GeoTarget, tf types.Timeframe) types.SourceResult {
	if h.apod == nil {
		return types.NewFailure(types.DataHistorical, target.Name,
			types.ConfigurationError("NASA_API_KEY", "NASA API key not configured"))
	}
	if res, done := ctxFailure(ctx, types.DataHistorical, target); done {
		return res
	}

	end := tf.End
	if limit := tf.Start.AddDays(maxHistoricalDays); end.After(limit) {
		end = limit
	}

	entries, err := h.apod.Range(ctx, tf.Start, end)
	if err != nil {
		types.LoggerFromContext(ctx, h.logger).WarnContext(ctx, "APOD range fetch failed",
			"start", tf.Start.String(),
			"end", end.String(),
			"error", err,
		)
		return types.NewFailure(types.DataHistorical, target.Name, err)
	}

	total := len(entries)
	if total > maxHistoricalEntries {
		entries = entries[:maxHistoricalEntries]
	}
	p := types.HistoricalPayload{
		Location:       target.Name,
		Start:          tf.Start.String(),
		End:            end.String(),
		Entries:        append([]types.ApodEntry{}, entries...),
		TotalAvailable: total,
	}
	return success(types.DataHistorical, target, TypeHistorical, p, map[string]any{"source": "NASA APOD"})
}
