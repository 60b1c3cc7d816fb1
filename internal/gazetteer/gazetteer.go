// Package gazetteer holds the static geographic and vocabulary tables used by
// the resolver, the query interpreter and the weather adapter. Tables are
// decoded from embedded YAML exactly once and are read-only afterwards, so a
// *Gazetteer is safe for concurrent use.
package gazetteer

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Beez1/bounceinsights/internal/types"
)

//go:embed data/gazetteer.yaml
var embedded []byte

// earthRadiusKm is the mean Earth radius used for haversine distances.
const earthRadiusKm = 6371.0

// minFuzzyLen is the shortest query that may match as a substring of a key.
const minFuzzyLen = 3

// Place is one gazetteer entry.
type Place struct {
	Name      string   `yaml:"name"`
	Lat       float64  `yaml:"lat"`
	Lon       float64  `yaml:"lon"`
	ISO2      string   `yaml:"iso2"`
	Country   string   `yaml:"country"`
	Countries []string `yaml:"countries"`

	kind types.TargetKind
}

// Kind reports whether the place is a continent, country or city.
func (p Place) Kind() types.TargetKind { return p.kind }

// Target converts the place into a resolved GeoTarget.
func (p Place) Target() types.GeoTarget {
	t := types.GeoTarget{
		Name: p.Name,
		Kind: p.kind,
		Lat:  p.Lat,
		Lon:  p.Lon,
		ISO2: p.ISO2,
	}
	if len(p.Countries) > 0 {
		t.Countries = append([]string(nil), p.Countries...)
	}
	if p.kind == types.KindContinent {
		t.Region = "continent"
	}
	return t
}

// Capital maps a country to its capital city.
type Capital struct {
	Country string   `yaml:"country"`
	Capital string   `yaml:"capital"`
	Lat     float64  `yaml:"lat"`
	Lon     float64  `yaml:"lon"`
	ISO2    string   `yaml:"iso2"`
	Aliases []string `yaml:"aliases"`
}

// Target returns a country target positioned at the capital.
func (c Capital) Target() types.GeoTarget {
	return types.GeoTarget{
		Name:    c.Country,
		Kind:    types.KindCountry,
		Lat:     c.Lat,
		Lon:     c.Lon,
		ISO2:    c.ISO2,
		Capital: c.Capital,
	}
}

// EventKeyword describes a notable event word that may appear in a query.
type EventKeyword struct {
	Keyword      string `yaml:"keyword"`
	Type         string `yaml:"type"`
	WeatherFocus string `yaml:"weather_focus"`
	Condition    string `yaml:"condition"`
	SeasonHint   string `yaml:"season_hint"`
	NewsRelevant bool   `yaml:"news_relevant"`
}

type document struct {
	Continents        []Place        `yaml:"continents"`
	Countries         []Place        `yaml:"countries"`
	Cities            []Place        `yaml:"cities"`
	Capitals          []Capital      `yaml:"capitals"`
	WeatherCodes      map[int]string `yaml:"weather_codes"`
	EventKeywords     []EventKeyword `yaml:"event_keywords"`
	AstronomyKeywords []string       `yaml:"astronomy_keywords"`
}

// Gazetteer is the decoded, indexed set of tables.
type Gazetteer struct {
	places       map[string]Place // lowercase name -> place; continents win over countries over cities
	fuzzyKeys    []string         // longest first, then lexical
	cities       []Place
	capitals     map[string]Capital
	weatherCodes map[int]string
	events       []EventKeyword // longest keyword first
	astronomy    []string
}

var defaultGazetteer = sync.OnceValue(func() *Gazetteer {
	g, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("gazetteer: embedded tables are invalid: %v", err))
	}
	return g
})

// Default returns the process-wide gazetteer built from the embedded tables.
func Default() *Gazetteer {
	return defaultGazetteer()
}

// Parse decodes a YAML document into a Gazetteer.
func Parse(data []byte) (*Gazetteer, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode gazetteer: %w", err)
	}

	g := &Gazetteer{
		places:       make(map[string]Place),
		capitals:     make(map[string]Capital),
		weatherCodes: doc.WeatherCodes,
		astronomy:    doc.AstronomyKeywords,
	}

	add := func(list []Place, kind types.TargetKind) error {
		for _, p := range list {
			if strings.TrimSpace(p.Name) == "" {
				return fmt.Errorf("%s entry with empty name", kind)
			}
			if err := (types.LatLon{Lat: p.Lat, Lon: p.Lon}).Validate(); err != nil {
				return fmt.Errorf("%s %q: %w", kind, p.Name, err)
			}
			p.kind = kind
			key := normalize(p.Name)
			if _, exists := g.places[key]; !exists {
				g.places[key] = p
			}
			if kind == types.KindCity {
				g.cities = append(g.cities, p)
			}
		}
		return nil
	}
	if err := add(doc.Continents, types.KindContinent); err != nil {
		return nil, err
	}
	if err := add(doc.Countries, types.KindCountry); err != nil {
		return nil, err
	}
	if err := add(doc.Cities, types.KindCity); err != nil {
		return nil, err
	}

	for _, c := range doc.Capitals {
		g.capitals[normalize(c.Country)] = c
		for _, a := range c.Aliases {
			g.capitals[normalize(a)] = c
		}
	}

	g.fuzzyKeys = make([]string, 0, len(g.places))
	for k := range g.places {
		g.fuzzyKeys = append(g.fuzzyKeys, k)
	}
	sortLongestFirst(g.fuzzyKeys)

	g.events = append([]EventKeyword(nil), doc.EventKeywords...)
	sort.SliceStable(g.events, func(i, j int) bool {
		return len(g.events[i].Keyword) > len(g.events[j].Keyword)
	})

	return g, nil
}

// Lookup finds a place by case-insensitive exact name. Countries missing
// from the centroid table fall back to the capital table.
func (g *Gazetteer) Lookup(name string) (Place, bool) {
	key := normalize(name)
	if key == "" {
		return Place{}, false
	}
	if p, ok := g.places[key]; ok {
		return p, true
	}
	if c, ok := g.capitals[key]; ok {
		if p, ok := g.places[normalize(c.Country)]; ok {
			return p, true
		}
		return Place{Name: c.Country, Lat: c.Lat, Lon: c.Lon, ISO2: c.ISO2, kind: types.KindCountry}, true
	}
	return Place{}, false
}

// Fuzzy finds a place whose name contains the query or is contained by it.
// Keys are tried longest first, then lexically, so the result is stable.
func (g *Gazetteer) Fuzzy(query string) (Place, bool) {
	q := normalize(query)
	if q == "" {
		return Place{}, false
	}
	for _, k := range g.fuzzyKeys {
		if strings.Contains(q, k) || (len(q) >= minFuzzyLen && strings.Contains(k, q)) {
			return g.places[k], true
		}
	}
	return Place{}, false
}

// Nearest returns the closest city within maxKm of the coordinate.
func (g *Gazetteer) Nearest(c types.LatLon, maxKm float64) (Place, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range g.cities {
		d := Haversine(c, types.LatLon{Lat: p.Lat, Lon: p.Lon})
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > maxKm {
		return Place{}, 0, false
	}
	return g.cities[best], bestDist, true
}

// Capital looks up a country's capital by name or alias, case-insensitively.
func (g *Gazetteer) Capital(country string) (Capital, bool) {
	c, ok := g.capitals[normalize(country)]
	return c, ok
}

// WeatherDescription maps a WMO weather code to text.
func (g *Gazetteer) WeatherDescription(code int) string {
	if d, ok := g.weatherCodes[code]; ok {
		return d
	}
	return "Unknown weather"
}

// MatchEvents returns event keywords that appear in text, longest keyword
// first. A keyword contained in an already matched longer one is skipped.
func (g *Gazetteer) MatchEvents(text string) []EventKeyword {
	lower := strings.ToLower(text)
	var matched []EventKeyword
	for _, ev := range g.events {
		if !strings.Contains(lower, ev.Keyword) {
			continue
		}
		covered := false
		for _, m := range matched {
			if strings.Contains(m.Keyword, ev.Keyword) {
				covered = true
				break
			}
		}
		if !covered {
			matched = append(matched, ev)
		}
	}
	return matched
}

// MentionsAstronomy reports whether text contains an astronomy keyword.
func (g *Gazetteer) MentionsAstronomy(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range g.astronomy {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// CityNames lists the supported cities, sorted, for "did you mean" details.
func (g *Gazetteer) CityNames() []string {
	names := make([]string, 0, len(g.cities))
	for _, c := range g.cities {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Haversine returns the great-circle distance between two points in km.
func Haversine(a, b types.LatLon) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sortLongestFirst(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
}
