package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/Beez1/bounceinsights/internal/resolver"
	"github.com/Beez1/bounceinsights/internal/synthesis"
	"github.com/Beez1/bounceinsights/internal/types"
)

// Time-travel data type names as accepted on the wire.
const (
	TravelSatellite = "satellite"
	TravelWeather   = "weather"
	TravelAPOD      = "apod"
	TravelAnalysis  = "analysis"
)

// DefaultTimeRange applies when the caller names no range or dates.
const DefaultTimeRange = "year"

// TimeRangeDays maps a named range to its length in days.
var TimeRangeDays = map[string]int{
	"week":   7,
	"month":  30,
	"year":   365,
	"decade": 3650,
}

// DefaultTravelTypes is used when the caller names no data types.
var DefaultTravelTypes = []string{TravelSatellite, TravelWeather}

// IsTimeRange reports whether name is a known range.
func IsTimeRange(name string) bool {
	_, ok := TimeRangeDays[name]
	return ok
}

// IsTravelType reports whether name is a time-travel data type.
func IsTravelType(name string) bool {
	switch name {
	case TravelSatellite, TravelWeather, TravelAPOD, TravelAnalysis:
		return true
	}
	return false
}

var travelSources = []struct {
	name  string
	dt    types.DataType
	label string
}{
	{TravelSatellite, types.DataSatellite, "Satellite"},
	{TravelWeather, types.DataWeather, "Weather"},
	{TravelAPOD, types.DataHistorical, "APOD"},
}

// LocationInput is either a place name or a coordinate object on the wire.
type LocationInput struct {
	Name        string
	Coordinates *types.LatLon
}

// UnmarshalJSON accepts "Paris" or {"lat": 48.85, "lon": 2.35}.
func (l *LocationInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = LocationInput{}
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &l.Name)
	}
	var raw struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return errors.New("location must be a string or an object with lat and lon")
	}
	if raw.Lat == nil || raw.Lon == nil {
		return errors.New("location object requires both lat and lon")
	}
	l.Coordinates = &types.LatLon{Lat: *raw.Lat, Lon: *raw.Lon}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (l LocationInput) MarshalJSON() ([]byte, error) {
	if l.Coordinates != nil {
		return json.Marshal(l.Coordinates)
	}
	return json.Marshal(l.Name)
}

// Empty reports whether neither form was given.
func (l LocationInput) Empty() bool {
	return l.Coordinates == nil && l.Name == ""
}

// TimeTravelRequest asks for the history of one location.
type TimeTravelRequest struct {
	Location  LocationInput `json:"location"`
	TimeRange string        `json:"timeRange,omitempty" validate:"omitempty,timerange"`
	StartDate string        `json:"startDate,omitempty" validate:"omitempty,isodate"`
	EndDate   string        `json:"endDate,omitempty" validate:"omitempty,isodate"`
	DataTypes []string      `json:"dataTypes,omitempty" validate:"omitempty,dive,datatype"`
}

// DateRange is the inclusive range a time-travel request covered.
type DateRange struct {
	Start types.Date `json:"start"`
	End   types.Date `json:"end"`
}

// TimeTravelMetadata extends the envelope counts.
type TimeTravelMetadata struct {
	types.EnvelopeMetadata
	TotalDataPoints    int      `json:"totalDataPoints"`
	TimeSpan           string   `json:"timeSpan"`
	DataTypesProcessed []string `json:"dataTypesProcessed"`
}

// TimeTravelResponse holds one entry per requested data type.
type TimeTravelResponse struct {
	Success        bool               `json:"success"`
	Location       types.GeoTarget    `json:"location"`
	TimeRange      string             `json:"timeRange"`
	DateRange      DateRange          `json:"dateRange"`
	DataTypes      []string           `json:"dataTypes"`
	HistoricalData map[string]any     `json:"historicalData"`
	Metadata       TimeTravelMetadata `json:"metadata"`
}

// sourceError is the placeholder for a data type that failed.
type sourceError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// TimeTravel gathers the requested history of one location over a named
// range or explicit dates.
func (s *Service) TimeTravel(ctx context.Context, req TimeTravelRequest) (*TimeTravelResponse, error) {
	start := s.now()
	if req.Location.Empty() {
		return nil, types.ValidationError(types.ErrCodeValidationMissingField,
			"Invalid input", "Location is required (lat, lon, or address)")
	}

	targets, err := s.deps.Resolver.Resolve(ctx, resolver.Input{
		Coordinates: req.Location.Coordinates,
		Location:    req.Location.Name,
	})
	if err != nil {
		return nil, err
	}
	target := targets[0]

	timeRange := req.TimeRange
	if timeRange == "" {
		timeRange = DefaultTimeRange
	}
	tf, err := s.travelTimeframe(timeRange, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	names := req.DataTypes
	if len(names) == 0 {
		names = DefaultTravelTypes
	}
	var dataTypes []types.DataType
	for _, src := range travelSources {
		if slices.Contains(names, src.name) {
			dataTypes = append(dataTypes, src.dt)
		}
	}
	wantAnalysis := slices.Contains(names, TravelAnalysis)

	results := s.deps.Gatherer.Gather(ctx, []types.GeoTarget{target}, dataTypes, tf)

	data := make(map[string]any, len(results)+1)
	processed := make([]string, 0, len(results)+1)
	successes := 0
	for _, src := range travelSources {
		for _, r := range results {
			if r.SourceType() != src.dt {
				continue
			}
			processed = append(processed, src.name)
			switch v := r.(type) {
			case types.SourceSuccess:
				successes++
				data[src.name] = v.Payload
			case types.SourceFailure:
				data[src.name] = sourceError{
					Error: fmt.Sprintf("%s data unavailable: %s", src.label, v.Error),
					Code:  string(v.Code),
				}
			}
		}
	}

	env, err := s.deps.Synthesizer.Synthesize(ctx, synthesis.Request{
		Profile:       synthesis.ProfileTimeTravel,
		OriginalInput: req,
		Targets:       []types.GeoTarget{target},
		Timeframe:     tf,
		Results:       results,
		Narrative:     wantAnalysis && successes > 0,
		Start:         start,
	})
	if err != nil {
		return nil, err
	}

	if wantAnalysis {
		processed = append(processed, TravelAnalysis)
		if a := analysisFrom(env, ""); a != nil {
			data[TravelAnalysis] = a
		} else {
			data[TravelAnalysis] = &Analysis{Error: "Analysis unavailable: No valid data available for analysis"}
		}
	}

	return &TimeTravelResponse{
		Success:        true,
		Location:       target,
		TimeRange:      timeRange,
		DateRange:      DateRange{Start: tf.Start, End: tf.End},
		DataTypes:      names,
		HistoricalData: data,
		Metadata: TimeTravelMetadata{
			EnvelopeMetadata:   env.Metadata,
			TotalDataPoints:    len(data),
			TimeSpan:           fmt.Sprintf("%s to %s", tf.Start, tf.End),
			DataTypesProcessed: processed,
		},
	}, nil
}

// travelTimeframe uses explicit dates when both are given, otherwise the
// named range ending today.
func (s *Service) travelTimeframe(timeRange, startDate, endDate string) (types.Timeframe, error) {
	today := s.today()
	if startDate != "" && endDate != "" {
		from, err := types.ParseDate(startDate)
		if err != nil {
			return types.Timeframe{}, types.ValidationError(types.ErrCodeValidationInvalidDate,
				"Invalid date format", "Use YYYY-MM-DD")
		}
		to, err := types.ParseDate(endDate)
		if err != nil {
			return types.Timeframe{}, types.ValidationError(types.ErrCodeValidationInvalidDate,
				"Invalid date format", "Use YYYY-MM-DD")
		}
		if from.After(to) {
			return types.Timeframe{}, types.ValidationError(types.ErrCodeValidationDateRange,
				"Invalid date range", "Start date must be before end date")
		}
		return types.Timeframe{Start: from, End: to}.Normalize(today), nil
	}

	days, ok := TimeRangeDays[timeRange]
	if !ok {
		days = TimeRangeDays[DefaultTimeRange]
	}
	return types.Timeframe{
		Start:  today.AddDays(-days),
		End:    today,
		Period: timeRange,
	}, nil
}
