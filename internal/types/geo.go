package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the wire format of every calendar date in the API.
const DateLayout = "2006-01-02"

// TargetKind classifies a resolved geographic target.
type TargetKind string

const (
	KindCountry   TargetKind = "country"
	KindContinent TargetKind = "continent"
	KindCity      TargetKind = "city"
)

// LatLon is a WGS84 coordinate pair.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks the coordinate ranges.
func (c LatLon) Validate() error {
	if c.Lat < -90 || c.Lat > 90 || math.IsNaN(c.Lat) {
		return ValidationError(ErrCodeValidationInvalidCoords, "Invalid coordinates",
			"Latitude must be between -90 and 90, longitude between -180 and 180")
	}
	if c.Lon < -180 || c.Lon > 180 || math.IsNaN(c.Lon) {
		return ValidationError(ErrCodeValidationInvalidCoords, "Invalid coordinates",
			"Latitude must be between -90 and 90, longitude between -180 and 180")
	}
	return nil
}

// GeoTarget is a resolved place. Values are immutable once produced by the
// resolver; copy before changing.
type GeoTarget struct {
	Name      string     `json:"name"`
	Kind      TargetKind `json:"kind"`
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	ISO2      string     `json:"iso2,omitempty"`
	Capital   string     `json:"capital,omitempty"`
	Region    string     `json:"region,omitempty"`
	Countries []string   `json:"countries,omitempty"`
}

// Coordinates returns the target's coordinate pair.
func (g GeoTarget) Coordinates() LatLon {
	return LatLon{Lat: g.Lat, Lon: g.Lon}
}

// Date is a calendar day in UTC, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ValidationError(ErrCodeValidationInvalidDate, "Invalid date format",
			fmt.Sprintf("%q is not a YYYY-MM-DD date", s))
	}
	return Date{t}, nil
}

// MustParseDate is ParseDate for constants and tests.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

// Equal reports whether both dates name the same day.
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Confidence is the model's self-reported certainty. Advisory only.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Timeframe is an inclusive date range.
type Timeframe struct {
	Start      Date       `json:"start"`
	End        Date       `json:"end"`
	Period     string     `json:"period,omitempty"`
	Confidence Confidence `json:"confidence,omitempty"`
}

// Days returns the whole number of days between Start and End, rounded up.
func (tf Timeframe) Days() int {
	return int(math.Ceil(tf.End.Sub(tf.Start.Time).Hours() / 24))
}

// Normalize fills and orders the range relative to today: a missing end
// becomes today, a missing start becomes end minus 30 days, an inverted
// range is swapped and a future end is clamped to today.
func (tf Timeframe) Normalize(today Date) Timeframe {
	out := tf
	if out.End.IsZero() {
		out.End = today
	}
	if out.Start.IsZero() {
		out.Start = out.End.AddDays(-30)
	}
	if out.Start.After(out.End) {
		out.Start, out.End = out.End, out.Start
	}
	if out.End.After(today) {
		out.End = today
		if out.Start.After(today) {
			out.Start = today
		}
	}
	return out
}
