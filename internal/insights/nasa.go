package insights

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/Beez1/bounceinsights/internal/gazetteer"
	"github.com/Beez1/bounceinsights/internal/types"
)

// DefaultEPICRadiusKm is the search radius when lat/lon are given without
// one.
const DefaultEPICRadiusKm = 1000

// EPICRequest lists the EPIC images of a day, optionally only those whose
// centroid lies within RadiusKm of Near.
type EPICRequest struct {
	Date     types.Date
	Near     *types.LatLon
	RadiusKm float64
}

// EPICQuery echoes the location filter that was applied.
type EPICQuery struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius float64 `json:"radius"`
}

// EPICImageView is one image as returned to the caller.
type EPICImageView struct {
	Caption  string  `json:"caption"`
	Date     string  `json:"date"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	ImageURL string  `json:"imageUrl"`
}

// EPICResponse is the image listing of one day.
type EPICResponse struct {
	Date   types.Date      `json:"date"`
	Count  int             `json:"count"`
	Query  *EPICQuery      `json:"query"`
	Images []EPICImageView `json:"images"`
}

// ParseEPICQuery validates raw query parameters. lat and lon must come
// together; radius applies only with them.
func ParseEPICQuery(date, lat, lon, radius string) (EPICRequest, error) {
	if strings.TrimSpace(date) == "" {
		return EPICRequest{}, types.ValidationError(types.ErrCodeValidationMissingField,
			"Date is required", "Please provide a date in YYYY-MM-DD format.")
	}
	d, err := types.ParseDate(date)
	if err != nil {
		return EPICRequest{}, types.ValidationError(types.ErrCodeValidationInvalidDate,
			"Invalid date format", "Date must be in YYYY-MM-DD format.")
	}
	req := EPICRequest{Date: d, RadiusKm: DefaultEPICRadiusKm}

	if (lat == "") != (lon == "") {
		return EPICRequest{}, types.ValidationError(types.ErrCodeValidationInvalidCoords,
			"Invalid coordinates", "Both latitude and longitude must be provided together")
	}
	if lat == "" {
		return req, nil
	}

	la, err := strconv.ParseFloat(lat, 64)
	if err != nil || la < -90 || la > 90 {
		return EPICRequest{}, types.ValidationError(types.ErrCodeValidationInvalidLat,
			"Invalid latitude", "Latitude must be between -90 and 90")
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil || lo < -180 || lo > 180 {
		return EPICRequest{}, types.ValidationError(types.ErrCodeValidationInvalidLon,
			"Invalid longitude", "Longitude must be between -180 and 180")
	}
	req.Near = &types.LatLon{Lat: la, Lon: lo}

	if radius != "" {
		r, err := strconv.ParseFloat(radius, 64)
		if err != nil || r <= 0 {
			return EPICRequest{}, types.ValidationError(types.ErrCodeValidationInvalidRequest,
				"Invalid radius", "Radius must be a positive number of kilometres")
		}
		req.RadiusKm = r
	}
	return req, nil
}

// EPIC lists the day's images, nearest first when a location is given.
func (s *Service) EPIC(ctx context.Context, req EPICRequest) (*EPICResponse, error) {
	if s.deps.EPIC == nil {
		return nil, types.ConfigurationError("NASA_API_KEY", "NASA API key not configured")
	}
	raw, err := s.deps.EPIC.Natural(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, types.NotFoundError(types.ErrCodeNotFoundImages, "No images found for this date.", "", nil)
	}

	images := make([]EPICImageView, len(raw))
	for i, img := range raw {
		images[i] = EPICImageView{
			Caption:  img.Caption,
			Date:     img.Date,
			Lat:      img.Centroid.Lat,
			Lon:      img.Centroid.Lon,
			ImageURL: s.deps.EPIC.PublicJPEGURL(req.Date, img.Image),
		}
	}

	resp := &EPICResponse{Date: req.Date}
	if req.Near != nil {
		images = nearest(images, *req.Near, req.RadiusKm)
		if len(images) == 0 {
			return nil, types.NotFoundError(types.ErrCodeNotFoundImages, "No images found",
				"No images found near the specified location", nil)
		}
		resp.Query = &EPICQuery{Lat: req.Near.Lat, Lon: req.Near.Lon, Radius: req.RadiusKm}
	}
	resp.Images = images
	resp.Count = len(images)
	return resp, nil
}

// nearest keeps images within radiusKm of at, closest first.
func nearest(images []EPICImageView, at types.LatLon, radiusKm float64) []EPICImageView {
	type ranked struct {
		img  EPICImageView
		dist float64
	}
	var kept []ranked
	for _, img := range images {
		d := gazetteer.Haversine(at, types.LatLon{Lat: img.Lat, Lon: img.Lon})
		if d <= radiusKm {
			kept = append(kept, ranked{img, d})
		}
	}
	slices.SortStableFunc(kept, func(a, b ranked) int { return cmp.Compare(a.dist, b.dist) })

	out := make([]EPICImageView, len(kept))
	for i, k := range kept {
		out[i] = k.img
	}
	return out
}

// APOD returns today's Astronomy Picture of the Day as NASA serves it.
func (s *Service) APOD(ctx context.Context) (json.RawMessage, error) {
	if s.deps.APOD == nil {
		return nil, types.ConfigurationError("NASA_API_KEY", "NASA API key not configured")
	}
	return s.deps.APOD.Today(ctx)
}
