package types

// DataType names one external source family.
type DataType string

const (
	DataSatellite  DataType = "satellite"
	DataWeather    DataType = "weather"
	DataNews       DataType = "news"
	DataHistorical DataType = "historical"
)

// KnownDataTypes lists the source families in canonical order.
var KnownDataTypes = []DataType{DataSatellite, DataWeather, DataNews, DataHistorical}

// IsKnown reports whether d is one of the supported source families.
func (d DataType) IsKnown() bool {
	switch d {
	case DataSatellite, DataWeather, DataNews, DataHistorical:
		return true
	}
	return false
}

// Event is a notable occurrence mentioned by a query.
type Event struct {
	Type     string   `json:"type"`
	Keywords []string `json:"keywords"`
	Severity string   `json:"severity,omitempty"`
}

// QueryLocation is a location as returned by the language model, after the
// gazetteer has overwritten whatever it can verify.
type QueryLocation struct {
	Name        string     `json:"name"`
	Type        TargetKind `json:"type"`
	Coordinates *LatLon    `json:"coordinates,omitempty"`
	ISO2        string     `json:"iso2,omitempty"`
	Countries   []string   `json:"countries,omitempty"`
}

// Target converts the location into a GeoTarget. The second return is
// false when no usable coordinates are known.
func (l QueryLocation) Target() (GeoTarget, bool) {
	if l.Coordinates == nil {
		return GeoTarget{}, false
	}
	kind := l.Type
	if kind == "" {
		kind = KindCity
	}
	return GeoTarget{
		Name:      l.Name,
		Kind:      kind,
		Lat:       l.Coordinates.Lat,
		Lon:       l.Coordinates.Lon,
		ISO2:      l.ISO2,
		Countries: l.Countries,
	}, true
}

// QueryIntent is the structured reading of a free-text query.
type QueryIntent struct {
	Locations  []QueryLocation `json:"locations"`
	Timeframe  Timeframe       `json:"timeframe"`
	Events     []Event         `json:"events"`
	DataTypes  []DataType      `json:"dataTypes"`
	Intent     string          `json:"intent"`
	Confidence Confidence      `json:"confidence"`
}
