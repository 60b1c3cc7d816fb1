package insights

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Beez1/bounceinsights/internal/sources"
	"github.com/Beez1/bounceinsights/internal/types"
)

const (
	weatherUnavailable = "Could not retrieve weather data"
	regionConcurrency  = 8
)

// RegionRequest is shared by contextualize and weather-summary. A location
// name takes precedence over countries, which take precedence over image
// detection.
type RegionRequest struct {
	ImageURL  string   `json:"imageUrl,omitempty" validate:"omitempty,imageref"`
	Location  string   `json:"location,omitempty"`
	Countries []string `json:"countries,omitempty" validate:"omitempty,max=25,dive,required"`
	Date      string   `json:"date,omitempty" validate:"omitempty,isodate"`
}

// ContextualizeResponse attaches weather and headlines per region.
type ContextualizeResponse struct {
	ImageURL       string                `json:"imageUrl,omitempty"`
	Date           types.Date            `json:"date"`
	ContextualData []types.RegionContext `json:"contextualData"`
}

// WeatherRegion is one region of a weather summary.
type WeatherRegion struct {
	Country string  `json:"country"`
	Capital string  `json:"capital"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Weather string  `json:"weather"`
}

// WeatherSummaryResponse lists the capital weather of every region.
type WeatherSummaryResponse struct {
	ImageURL string          `json:"imageUrl,omitempty"`
	Date     types.Date      `json:"date"`
	Regions  []WeatherRegion `json:"regions"`
}

// Contextualize resolves the regions of a request and attaches the capital
// weather for the day plus top headlines. Regions without a country code are
// skipped since no headlines can be fetched for them.
func (s *Service) Contextualize(ctx context.Context, req RegionRequest) (*ContextualizeResponse, error) {
	date, err := regionDate(req.Date)
	if err != nil {
		return nil, err
	}
	targets, err := s.regionTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	withCode := make([]types.GeoTarget, 0, len(targets))
	for _, t := range targets {
		if t.ISO2 == "" {
			s.log(ctx).WarnContext(ctx, "skipping region without country code", "region", t.Name)
			continue
		}
		withCode = append(withCode, t)
	}

	return &ContextualizeResponse{
		ImageURL:       req.ImageURL,
		Date:           date,
		ContextualData: s.collectRegions(ctx, withCode, date, true),
	}, nil
}

// WeatherSummary is Contextualize without headlines.
func (s *Service) WeatherSummary(ctx context.Context, req RegionRequest) (*WeatherSummaryResponse, error) {
	date, err := regionDate(req.Date)
	if err != nil {
		return nil, err
	}
	targets, err := s.regionTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	regions := s.collectRegions(ctx, targets, date, false)
	out := make([]WeatherRegion, len(regions))
	for i, r := range regions {
		out[i] = WeatherRegion{Country: r.Country, Capital: r.Capital, Lat: r.Lat, Lon: r.Lon, Weather: r.Weather}
	}
	return &WeatherSummaryResponse{ImageURL: req.ImageURL, Date: date, Regions: out}, nil
}

func regionDate(raw string) (types.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultRegionDate, nil
	}
	return types.ParseDate(raw)
}

// regionTargets yields one capital-positioned target per region. A city
// names itself as both country and capital; a continent expands into its
// member countries.
func (s *Service) regionTargets(ctx context.Context, req RegionRequest) ([]types.GeoTarget, error) {
	switch {
	case strings.TrimSpace(req.Location) != "":
		t, err := s.deps.Resolver.FromName(req.Location)
		if err != nil {
			return nil, err
		}
		switch t.Kind {
		case types.KindContinent:
			return s.deps.Resolver.FromCountries(ctx, t.Countries)
		case types.KindCountry:
			return s.deps.Resolver.FromCountries(ctx, []string{t.Name})
		}
		t.Capital = t.Name
		return []types.GeoTarget{t}, nil

	case len(req.Countries) > 0:
		return s.deps.Resolver.FromCountries(ctx, req.Countries)

	case strings.TrimSpace(req.ImageURL) != "":
		names, err := s.deps.Resolver.DetectCountries(ctx, req.ImageURL)
		if err != nil {
			return nil, err
		}
		return s.deps.Resolver.FromCountries(ctx, names)
	}
	return nil, types.ValidationError(types.ErrCodeValidationMissingField,
		"Either imageUrl or countries must be provided", "Provide countries, a location or an imageUrl")
}

// collectRegions fetches every region concurrently. Failures degrade to
// placeholder text or an empty headline list; the call itself never fails.
func (s *Service) collectRegions(ctx context.Context, targets []types.GeoTarget, date types.Date, withNews bool) []types.RegionContext {
	regions := make([]types.RegionContext, len(targets))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(regionConcurrency)
	for i, t := range targets {
		regions[i] = types.RegionContext{
			Country: t.Name,
			Capital: t.Capital,
			Lat:     t.Lat,
			Lon:     t.Lon,
			News:    []types.Article{},
		}
		g.Go(func() error {
			regions[i].Weather = s.regionWeather(gCtx, t, date)
			return nil
		})
		if withNews {
			g.Go(func() error {
				regions[i].News = s.regionNews(gCtx, t)
				return nil
			})
		}
	}
	_ = g.Wait()
	return regions
}

func (s *Service) regionWeather(ctx context.Context, t types.GeoTarget, date types.Date) string {
	if s.deps.Weather == nil {
		return weatherUnavailable
	}
	daily, err := s.deps.Weather.Daily(ctx, t.Coordinates(), date, date)
	if err != nil {
		s.log(ctx).WarnContext(ctx, "region weather failed", "region", t.Name, "error", err.Error())
		return weatherUnavailable
	}
	return sources.DescribeDay(daily, 0, s.deps.Codes)
}

func (s *Service) regionNews(ctx context.Context, t types.GeoTarget) []types.Article {
	if s.deps.News == nil || t.ISO2 == "" {
		return []types.Article{}
	}
	articles, err := s.deps.News.TopHeadlines(ctx, t.ISO2, sources.HeadlineLimit)
	if err != nil {
		s.log(ctx).WarnContext(ctx, "region news failed", "region", t.Name, "error", err.Error())
		return []types.Article{}
	}
	if articles == nil {
		return []types.Article{}
	}
	return articles
}
