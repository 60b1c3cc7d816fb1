package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSourceResultJSONDiscriminant(t *testing.T) {
	results := []SourceResult{
		SourceSuccess{Source: DataNews, Target: "Kenya", Type: "news_headlines", Payload: NewsPayload{Location: "Kenya", Articles: []Article{}}},
		NewFailure(DataWeather, "Kenya", UpstreamError("open-meteo", "unreachable", nil)),
	}

	b, err := json.Marshal(results)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, want := range []string{`"status":"success"`, `"status":"failure"`, `"code":"upstream_unavailable"`, `"source":"news"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON missing %s: %s", want, s)
		}
	}
}

func TestNewFailureNilError(t *testing.T) {
	f := NewFailure(DataHistorical, "Earth", nil)
	if f.Error != "unknown error" || f.OK() {
		t.Errorf("unexpected failure %+v", f)
	}

	f = NewFailure(DataHistorical, "Earth", errors.New("boom"))
	if f.Code != ErrCodeInternalUnexpected {
		t.Errorf("Code = %q", f.Code)
	}
}

func TestCountResults(t *testing.T) {
	results := []SourceResult{
		SourceSuccess{Source: DataSatellite, Target: "A"},
		SourceSuccess{Source: DataWeather, Target: "A"},
		SourceFailure{Source: DataWeather, Target: "B"},
	}
	meta := CountResults(results)

	if meta.TotalRequested != 3 || meta.SuccessCount != 2 || meta.FailureCount != 1 {
		t.Errorf("counts = %+v", meta)
	}
	if meta.PerSource[DataWeather] != (SourceCounts{Success: 1, Failure: 1}) {
		t.Errorf("weather counts = %+v", meta.PerSource[DataWeather])
	}
}
