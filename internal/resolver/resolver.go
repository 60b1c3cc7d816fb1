// Package resolver turns the location hints of a request into geographic
// targets. Exactly one hint is used, in priority order: coordinates, then a
// location name, then explicit countries, then countries detected in an
// image.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/gazetteer"
	"github.com/Beez1/bounceinsights/internal/types"
)

const (
	// nearestCityKm bounds the reverse lookup used to name raw coordinates.
	nearestCityKm = 50
	// MaxDetectedCountries caps how many countries an image may contribute.
	MaxDetectedCountries = 10
)

// Input carries every location hint a request may supply.
type Input struct {
	Coordinates *types.LatLon
	Location    string
	Countries   []string
	ImageURL    string
}

// Empty reports whether no hint is present.
func (in Input) Empty() bool {
	return in.Coordinates == nil &&
		strings.TrimSpace(in.Location) == "" &&
		len(in.Countries) == 0 &&
		strings.TrimSpace(in.ImageURL) == ""
}

// Resolver maps hints to targets using the gazetteer and, for images, a
// country detector.
type Resolver struct {
	gaz      *gazetteer.Gazetteer
	detector external.CountryDetector
	logger   *slog.Logger
}

// New creates a Resolver. detector may be nil when image detection is not
// configured.
func New(gaz *gazetteer.Gazetteer, detector external.CountryDetector, logger *slog.Logger) *Resolver {
	if gaz == nil {
		gaz = gazetteer.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{gaz: gaz, detector: detector, logger: logger}
}

// Resolve returns at least one target or an error. Resolution is
// deterministic: the same input always yields the same targets.
func (r *Resolver) Resolve(ctx context.Context, in Input) ([]types.GeoTarget, error) {
	switch {
	case in.Coordinates != nil:
		t, err := r.FromCoordinates(*in.Coordinates)
		if err != nil {
			return nil, err
		}
		return []types.GeoTarget{t}, nil
	case strings.TrimSpace(in.Location) != "":
		t, err := r.FromName(in.Location)
		if err != nil {
			return nil, err
		}
		return []types.GeoTarget{t}, nil
	case len(in.Countries) > 0:
		return r.FromCountries(ctx, in.Countries)
	case strings.TrimSpace(in.ImageURL) != "":
		return r.FromImage(ctx, in.ImageURL)
	}
	return nil, types.ValidationError(types.ErrCodeValidationMissingField,
		"A location is required", "Provide coordinates, a location name, countries or an imageUrl")
}

// FromCoordinates builds a city target at the exact coordinates, named after
// the nearest known city when one lies close enough.
func (r *Resolver) FromCoordinates(c types.LatLon) (types.GeoTarget, error) {
	if err := c.Validate(); err != nil {
		return types.GeoTarget{}, err
	}
	name := fmt.Sprintf("%.4f, %.4f", c.Lat, c.Lon)
	iso2 := ""
	if city, _, ok := r.gaz.Nearest(c, nearestCityKm); ok {
		name = city.Name
		iso2 = city.ISO2
	}
	return types.GeoTarget{Name: name, Kind: types.KindCity, Lat: c.Lat, Lon: c.Lon, ISO2: iso2}, nil
}

// FromName matches a place name exactly, then by substring.
func (r *Resolver) FromName(name string) (types.GeoTarget, error) {
	if p, ok := r.gaz.Lookup(name); ok {
		return p.Target(), nil
	}
	if p, ok := r.gaz.Fuzzy(name); ok {
		return p.Target(), nil
	}
	return types.GeoTarget{}, r.notFound(fmt.Sprintf("Location %q not found", strings.TrimSpace(name)))
}

// FromCountries maps each country to its capital. Unknown names are dropped.
func (r *Resolver) FromCountries(ctx context.Context, countries []string) ([]types.GeoTarget, error) {
	logger := types.LoggerFromContext(ctx, r.logger)
	seen := make(map[string]bool, len(countries))
	var targets []types.GeoTarget
	for _, name := range countries {
		c, ok := r.gaz.Capital(name)
		if !ok {
			logger.WarnContext(ctx, "dropping country without capital mapping", "country", name)
			continue
		}
		if seen[c.Country] {
			continue
		}
		seen[c.Country] = true
		targets = append(targets, c.Target())
	}
	if len(targets) == 0 {
		return nil, r.notFound(fmt.Sprintf("None of the countries could be mapped: %s", strings.Join(countries, ", ")))
	}
	return targets, nil
}

// FromImage detects countries visible in the image and maps them.
func (r *Resolver) FromImage(ctx context.Context, image string) ([]types.GeoTarget, error) {
	names, err := r.DetectCountries(ctx, image)
	if err != nil {
		return nil, err
	}
	return r.FromCountries(ctx, names)
}

// DetectCountries runs the country detector and caps its output.
func (r *Resolver) DetectCountries(ctx context.Context, image string) ([]string, error) {
	if r.detector == nil {
		return nil, types.ConfigurationError("GOOGLE_VISION_API_KEY", "Google Vision API key not configured")
	}
	names, err := r.detector.DetectCountries(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, types.NotFoundError(types.ErrCodeNotFoundLocation,
			"Could not detect any countries from the image.", "", nil)
	}
	if len(names) > MaxDetectedCountries {
		names = names[:MaxDetectedCountries]
	}
	return names, nil
}

func (r *Resolver) notFound(detail string) error {
	return types.NotFoundError(types.ErrCodeNotFoundLocation, "Location not found", detail, r.gaz.CityNames())
}
