package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestRouteDoc_AllDocumentedRoutesParse(t *testing.T) {
	for _, path := range []string{"/search", "/time-travel", "/image-comparator"} {
		doc, ok, err := RouteDoc(path)
		if err != nil {
			t.Fatalf("parsing docs: %v", err)
		}
		if !ok {
			t.Fatalf("%s is not documented", path)
		}
		if doc["endpoint"] != path || doc["method"] != "POST" {
			t.Errorf("%s: unexpected header %v %v", path, doc["endpoint"], doc["method"])
		}
	}

	if _, ok, _ := RouteDoc("/apod"); ok {
		t.Error("/apod has no documentation entry")
	}
}

func TestServeRouteDoc(t *testing.T) {
	rec := do(t, newTestRouter(t, &mockInsightsService{}), http.MethodGet, "/time-travel", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc struct {
		Parameters struct {
			TimeRange struct {
				Default string   `json:"default"`
				Options []string `json:"options"`
			} `json:"timeRange"`
		} `json:"parameters"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.Parameters.TimeRange.Default != "year" || len(doc.Parameters.TimeRange.Options) != 4 {
		t.Errorf("unexpected timeRange doc %+v", doc.Parameters.TimeRange)
	}
}

func TestServeRouteDoc_Unknown(t *testing.T) {
	rec := do(t, ServeRouteDoc("/nowhere"), http.MethodGet, "/nowhere", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
