package sources

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/types"
)

const noWeatherData = "No weather data available"

// WeatherCodes maps WMO codes to text.
type WeatherCodes interface {
	WeatherDescription(code int) string
}

// Weather reads the Open-Meteo archive for the whole timeframe.
type Weather struct {
	archive external.WeatherArchive
	codes   WeatherCodes
	logger  *slog.Logger
}

// NewWeather creates the weather adapter.
func NewWeather(archive external.WeatherArchive, codes WeatherCodes, logger *slog.Logger) *Weather {
	if logger == nil {
		logger = slog.Default()
	}
	return &Weather{archive: archive, codes: codes, logger: logger}
}

func (w *Weather) Fetch(ctx context.Context, target types.GeoTarget, tf types.Timeframe) types.SourceResult {
	if res, done := ctxFailure(ctx, types.DataWeather, target); done {
		return res
	}

	daily, err := w.archive.Daily(ctx, target.Coordinates(), tf.Start, tf.End)
	if err != nil {
		types.LoggerFromContext(ctx, w.logger).WarnContext(ctx, "weather fetch failed",
			"target", target.Name,
			"error", err,
		)
		return types.NewFailure(types.DataWeather, target.Name, err)
	}

	p := types.WeatherPayload{
		Location:    target.Name,
		Coordinates: target.Coordinates(),
		Start:       tf.Start.String(),
		End:         tf.End.String(),
		Description: DescribeDay(daily, 0, w.codes),
		Summary:     Summarize(daily),
		Daily:       daily,
	}
	return success(types.DataWeather, target, TypeWeather, p, map[string]any{
		"dataPoints": p.Summary.DataPoints,
	})
}

// Summarize averages the daily series, skipping null values.
func Summarize(d types.WeatherDaily) types.WeatherSummary {
	total := 0.0
	for _, v := range d.PrecipitationSum {
		if v != nil {
			total += *v
		}
	}
	return types.WeatherSummary{
		AvgMaxTemp:         mean(d.TemperatureMax),
		AvgMinTemp:         mean(d.TemperatureMin),
		TotalPrecipitation: total,
		AvgWindSpeed:       mean(d.WindSpeedMax),
		DataPoints:         len(d.Time),
	}
}

func mean(values []*float64) *float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := sum / float64(n)
	return &m
}

// DescribeDay renders one day as "High: 22°C, Low: 14°C, Mainly clear, UV
// Index 5". Missing readings print as N/A.
func DescribeDay(d types.WeatherDaily, day int, codes WeatherCodes) string {
	if day < 0 || day >= len(d.Time) {
		return noWeatherData
	}

	desc := "Unknown weather"
	if code := at(d.WeatherCode, day); code != nil && codes != nil {
		desc = codes.WeatherDescription(*code)
	}
	return fmt.Sprintf("High: %s°C, Low: %s°C, %s, UV Index %s",
		rounded(at(d.TemperatureMax, day)),
		rounded(at(d.TemperatureMin, day)),
		desc,
		rounded(at(d.UVIndexMax, day)),
	)
}

func at[T any](values []*T, i int) *T {
	if i < len(values) {
		return values[i]
	}
	return nil
}

// rounded rounds half up, so -2.5 becomes -2.
func rounded(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", int64(math.Floor(*v+0.5)))
}
