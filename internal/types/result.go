package types

import "encoding/json"

// SourceResult is the outcome of one (target, source) fetch. It is a closed
// set: SourceSuccess or SourceFailure.
type SourceResult interface {
	SourceType() DataType
	TargetName() string
	OK() bool
	isSourceResult()
}

// SourceSuccess carries a source-specific payload.
type SourceSuccess struct {
	Source   DataType       `json:"source"`
	Target   string         `json:"target"`
	Type     string         `json:"type"`
	Payload  Payload        `json:"payload"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s SourceSuccess) SourceType() DataType { return s.Source }
func (s SourceSuccess) TargetName() string   { return s.Target }
func (s SourceSuccess) OK() bool             { return true }
func (SourceSuccess) isSourceResult()        {}

// MarshalJSON adds the status discriminant.
func (s SourceSuccess) MarshalJSON() ([]byte, error) {
	type alias SourceSuccess
	return json.Marshal(struct {
		Status string `json:"status"`
		alias
	}{Status: "success", alias: alias(s)})
}

// SourceFailure records why a source produced nothing for a target.
type SourceFailure struct {
	Source DataType  `json:"source"`
	Target string    `json:"target"`
	Error  string    `json:"error"`
	Code   ErrorCode `json:"code"`
}

func (f SourceFailure) SourceType() DataType { return f.Source }
func (f SourceFailure) TargetName() string   { return f.Target }
func (f SourceFailure) OK() bool             { return false }
func (SourceFailure) isSourceResult()        {}

// MarshalJSON adds the status discriminant.
func (f SourceFailure) MarshalJSON() ([]byte, error) {
	type alias SourceFailure
	return json.Marshal(struct {
		Status string `json:"status"`
		alias
	}{Status: "failure", alias: alias(f)})
}

// NewFailure builds a SourceFailure from any error.
func NewFailure(source DataType, target string, err error) SourceFailure {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return SourceFailure{Source: source, Target: target, Error: msg, Code: CodeOf(err)}
}

// Payload is the source-specific body of a SourceSuccess.
type Payload interface {
	PayloadType() DataType
	isPayload()
}

// FallbackStage names a state of the satellite imagery fallback chain.
type FallbackStage string

const (
	StagePrimaryAttempt FallbackStage = "primary_attempt"
	StageApodCheck      FallbackStage = "apod_check"
	StageRecentScan     FallbackStage = "recent_scan"
	StageDemoFallback   FallbackStage = "demo_fallback"
)

// SatelliteImage is one Earth image with its provenance.
type SatelliteImage struct {
	Identifier   string  `json:"identifier"`
	Caption      string  `json:"caption"`
	Date         string  `json:"date"`
	ImageURL     string  `json:"imageUrl"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	Coordinates  *LatLon `json:"coordinates,omitempty"`
	Explanation  string  `json:"explanation,omitempty"`
	Source       string  `json:"source,omitempty"`
	Sensor       string  `json:"sensor,omitempty"`
}

// SatellitePayload is produced by the satellite fallback chain.
type SatellitePayload struct {
	Location      string           `json:"location"`
	Coordinates   LatLon           `json:"coordinates"`
	RequestedDate string           `json:"requestedDate"`
	ActualDate    string           `json:"actualDate,omitempty"`
	Images        []SatelliteImage `json:"images"`
	Satellite     string           `json:"satellite,omitempty"`
	Resolution    string           `json:"resolution,omitempty"`
	Stage         FallbackStage    `json:"fallbackStage"`
	StagesTried   []FallbackStage  `json:"stagesAttempted"`
	Note          string           `json:"note,omitempty"`
	Disclaimer    string           `json:"disclaimer,omitempty"`
}

func (SatellitePayload) PayloadType() DataType { return DataSatellite }
func (SatellitePayload) isPayload()            {}

// WeatherSummary aggregates daily values over the requested range. Nil
// pointers mean every day was null upstream.
type WeatherSummary struct {
	AvgMaxTemp         *float64 `json:"avgMaxTemp"`
	AvgMinTemp         *float64 `json:"avgMinTemp"`
	TotalPrecipitation float64  `json:"totalPrecipitation"`
	AvgWindSpeed       *float64 `json:"avgWindSpeed"`
	DataPoints         int      `json:"dataPoints"`
}

// WeatherDaily mirrors the upstream daily arrays.
type WeatherDaily struct {
	Time             []string   `json:"time"`
	TemperatureMax   []*float64 `json:"temperature_2m_max"`
	TemperatureMin   []*float64 `json:"temperature_2m_min"`
	PrecipitationSum []*float64 `json:"precipitation_sum"`
	WindSpeedMax     []*float64 `json:"windspeed_10m_max"`
	WeatherCode      []*int     `json:"weathercode"`
	UVIndexMax       []*float64 `json:"uv_index_max"`
}

// WeatherPayload is historical weather for one target.
type WeatherPayload struct {
	Location    string         `json:"location"`
	Coordinates LatLon         `json:"coordinates"`
	Start       string         `json:"start"`
	End         string         `json:"end"`
	Description string         `json:"description"`
	Summary     WeatherSummary `json:"summary"`
	Daily       WeatherDaily   `json:"daily"`
	Relevance   string         `json:"relevance,omitempty"`
}

func (WeatherPayload) PayloadType() DataType { return DataWeather }
func (WeatherPayload) isPayload()            {}

// Article is a normalised headline.
type Article struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

// NewsPayload holds top headlines for a country. Skipped marks a target
// with no ISO code, which is an intentional omission rather than a failure.
type NewsPayload struct {
	Location  string    `json:"location"`
	ISO2      string    `json:"iso2,omitempty"`
	Articles  []Article `json:"articles"`
	Skipped   bool      `json:"skipped,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Relevance string    `json:"relevance,omitempty"`
}

func (NewsPayload) PayloadType() DataType { return DataNews }
func (NewsPayload) isPayload()            {}

// ApodEntry is one Astronomy Picture of the Day.
type ApodEntry struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Explanation string `json:"explanation"`
	URL         string `json:"url"`
	HDURL       string `json:"hdurl,omitempty"`
	MediaType   string `json:"media_type"`
	Copyright   string `json:"copyright,omitempty"`
}

// HistoricalPayload is an APOD range.
type HistoricalPayload struct {
	Location       string      `json:"location"`
	Start          string      `json:"start"`
	End            string      `json:"end"`
	Entries        []ApodEntry `json:"entries"`
	TotalAvailable int         `json:"totalAvailable"`
}

func (HistoricalPayload) PayloadType() DataType { return DataHistorical }
func (HistoricalPayload) isPayload()            {}
