package external

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Beez1/bounceinsights/internal/types"
)

const openMeteoArchiveBase = "https://archive-api.open-meteo.com/v1"

// dailyFields is the set of daily aggregates requested from the archive.
const dailyFields = "temperature_2m_max,temperature_2m_min,precipitation_sum,windspeed_10m_max,weathercode,uv_index_max"

// OpenMeteoClient reads the Open-Meteo historical archive. No key needed.
type OpenMeteoClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewOpenMeteoClient creates an archive client. An empty baseURL uses the
// public archive.
func NewOpenMeteoClient(base *BaseClient, baseURL string, logger *slog.Logger) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = openMeteoArchiveBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenMeteoClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type openMeteoResponse struct {
	Daily types.WeatherDaily `json:"daily"`
}

// Daily returns the daily aggregates for [start, end] at the coordinate, in
// the location's own timezone.
func (c *OpenMeteoClient) Daily(ctx context.Context, at types.LatLon, start, end types.Date) (types.WeatherDaily, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(at.Lon, 'f', -1, 64))
	q.Set("start_date", start.String())
	q.Set("end_date", end.String())
	q.Set("daily", dailyFields)
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/archive?"+q.Encode(), nil)
	if err != nil {
		return types.WeatherDaily{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build weather request", err)
	}

	var out openMeteoResponse
	if err := c.base.DoJSON(req, "open-meteo", &out); err != nil {
		return types.WeatherDaily{}, err
	}
	return out.Daily, nil
}

var _ WeatherArchive = (*OpenMeteoClient)(nil)
