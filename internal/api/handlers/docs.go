package handlers

import (
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Beez1/bounceinsights/internal/core"
	"github.com/Beez1/bounceinsights/internal/types"
)

//go:embed docs.yaml
var docsYAML []byte

// routeDocs maps a route path to its self-description.
var routeDocs = sync.OnceValues(func() (map[string]map[string]any, error) {
	var docs map[string]map[string]any
	if err := yaml.Unmarshal(docsYAML, &docs); err != nil {
		return nil, fmt.Errorf("parsing route docs: %w", err)
	}
	return docs, nil
})

// RouteDoc returns the description of path, if one exists.
func RouteDoc(path string) (map[string]any, bool, error) {
	docs, err := routeDocs()
	if err != nil {
		return nil, false, err
	}
	doc, ok := docs[path]
	return doc, ok, nil
}

// ServeRouteDoc answers GET on a POST endpoint with its description.
func ServeRouteDoc(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok, err := RouteDoc(path)
		if err != nil {
			core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "route documentation unavailable", err))
			return
		}
		if !ok {
			core.Error(w, r, types.NotFoundError("not_found_route", "Route not found", path, nil))
			return
		}
		core.JSON(w, r, http.StatusOK, doc)
	}
}
