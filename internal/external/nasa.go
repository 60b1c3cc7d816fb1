package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Beez1/bounceinsights/internal/types"
)

const (
	nasaAPIBase     = "https://api.nasa.gov"
	epicArchiveBase = "https://epic.gsfc.nasa.gov"
)

// NASAClientConfig holds the configuration for creating a NASAClient.
type NASAClientConfig struct {
	APIKey         string
	BaseURL        string // api.nasa.gov override for tests
	EPICArchiveURL string // epic.gsfc.nasa.gov override for tests
	Logger         *slog.Logger
}

// NASAClient talks to api.nasa.gov for EPIC listings and APOD entries.
type NASAClient struct {
	base       *BaseClient
	apiKey     string
	baseURL    string
	archiveURL string
	logger     *slog.Logger
}

// NewNASAClient creates a NASAClient on top of an existing BaseClient.
func NewNASAClient(base *BaseClient, cfg NASAClientConfig) *NASAClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = nasaAPIBase
	}
	archiveURL := cfg.EPICArchiveURL
	if archiveURL == "" {
		archiveURL = epicArchiveBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NASAClient{
		base:       base,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		archiveURL: strings.TrimSuffix(archiveURL, "/"),
		logger:     logger,
	}
}

// Natural lists the EPIC natural-color images for date.
func (c *NASAClient) Natural(ctx context.Context, date types.Date) ([]EPICImage, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	reqURL := fmt.Sprintf("%s/EPIC/api/natural/date/%s?%s", c.baseURL, date.String(), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build EPIC request", err)
	}

	var images []EPICImage
	if err := c.base.DoJSON(req, "nasa-epic", &images); err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "EPIC listing fetched", "date", date.String(), "count", len(images))
	return images, nil
}

// ImageURL returns the api.nasa.gov archive PNG URL.
func (c *NASAClient) ImageURL(date types.Date, image string) string {
	return fmt.Sprintf("%s/EPIC/archive/natural/%s/png/%s.png?api_key=%s",
		c.baseURL, date.Format("2006/01/02"), image, url.QueryEscape(c.apiKey))
}

// ThumbnailURL returns the api.nasa.gov archive thumbnail URL.
func (c *NASAClient) ThumbnailURL(date types.Date, image string) string {
	return fmt.Sprintf("%s/EPIC/archive/natural/%s/thumbs/%s.jpg?api_key=%s",
		c.baseURL, date.Format("2006/01/02"), image, url.QueryEscape(c.apiKey))
}

// PublicJPEGURL returns the JPEG URL on the EPIC site, which needs no key.
func (c *NASAClient) PublicJPEGURL(date types.Date, image string) string {
	return fmt.Sprintf("%s/archive/natural/%s/jpg/%s.jpg",
		c.archiveURL, date.Format("2006/01/02"), image)
}

// APOD fetches one Astronomy Picture of the Day. A zero date asks for today.
func (c *NASAClient) APOD(ctx context.Context, date types.Date) (types.ApodEntry, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	if !date.IsZero() {
		q.Set("date", date.String())
	}
	req, err := c.apodRequest(ctx, q)
	if err != nil {
		return types.ApodEntry{}, err
	}

	var entry types.ApodEntry
	if err := c.base.DoJSON(req, "nasa-apod", &entry); err != nil {
		return types.ApodEntry{}, err
	}
	return entry, nil
}

// Range fetches every APOD entry between start and end inclusive. NASA
// returns a bare object instead of an array when start equals end on some
// deployments, so both shapes are accepted.
func (c *NASAClient) Range(ctx context.Context, start, end types.Date) ([]types.ApodEntry, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("start_date", start.String())
	q.Set("end_date", end.String())
	req, err := c.apodRequest(ctx, q)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.base.DoJSON(req, "nasa-apod", &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var one types.ApodEntry
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamBadResponse, "nasa-apod returned an undecodable entry", err)
		}
		return []types.ApodEntry{one}, nil
	}

	var entries []types.ApodEntry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamBadResponse, "nasa-apod returned an undecodable range", err)
	}
	return entries, nil
}

// Today returns today's APOD body untouched.
func (c *NASAClient) Today(ctx context.Context) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	req, err := c.apodRequest(ctx, q)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.base.DoJSON(req, "nasa-apod", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *NASAClient) apodRequest(ctx context.Context, q url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/planetary/apod?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build APOD request", err)
	}
	return req, nil
}

var (
	_ EPICClient = (*NASAClient)(nil)
	_ APODClient = (*NASAClient)(nil)
)
