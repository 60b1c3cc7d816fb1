package external

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Beez1/bounceinsights/internal/types"
)

const (
	googleVisionAPIBase = "https://vision.googleapis.com/v1"

	// maxDetectedCountries caps how many names DetectCountries returns.
	maxDetectedCountries = 10
	minEntityScore       = 0.5
)

// GoogleVisionClient uses the Vision REST API with an API key.
type GoogleVisionClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewGoogleVisionClient creates a Vision client.
func NewGoogleVisionClient(base *BaseClient, apiKey, baseURL string, logger *slog.Logger) *GoogleVisionClient {
	if baseURL == "" {
		baseURL = googleVisionAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleVisionClient{
		base:    base,
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type annotateRequest struct {
	Requests []annotateImageRequest `json:"requests"`
}

type annotateImageRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionImage struct {
	Content string        `json:"content,omitempty"`
	Source  *visionSource `json:"source,omitempty"`
}

type visionSource struct {
	ImageURI string `json:"imageUri"`
}

type visionFeature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []struct {
		WebDetection *struct {
			WebEntities []struct {
				Description string  `json:"description"`
				Score       float64 `json:"score"`
			} `json:"webEntities"`
		} `json:"webDetection"`
		LandmarkAnnotations []struct {
			Description string `json:"description"`
		} `json:"landmarkAnnotations"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// imagePayload accepts an http(s) URL, a data URI or raw base64.
func imagePayload(image string) visionImage {
	switch {
	case strings.HasPrefix(image, "http"):
		return visionImage{Source: &visionSource{ImageURI: image}}
	case strings.HasPrefix(image, "data:"):
		if _, data, ok := strings.Cut(image, ","); ok {
			return visionImage{Content: data}
		}
		return visionImage{Content: image}
	default:
		return visionImage{Content: image}
	}
}

// DetectCountries runs web and landmark detection. Confident single-word web
// entities are taken as place names; landmarks are the fallback when none
// qualify. Order is preserved and duplicates removed.
func (c *GoogleVisionClient) DetectCountries(ctx context.Context, image string) ([]string, error) {
	payload := annotateRequest{Requests: []annotateImageRequest{{
		Image: imagePayload(image),
		Features: []visionFeature{
			{Type: "WEB_DETECTION"},
			{Type: "LANDMARK_DETECTION"},
		},
	}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal vision request", err)
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images:annotate?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build vision request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out annotateResponse
	if err := c.base.DoJSON(req, "google-vision", &out); err != nil {
		return nil, err
	}
	if len(out.Responses) == 0 {
		return []string{}, nil
	}
	res := out.Responses[0]
	if res.Error != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamBadResponse,
			"Failed to analyze image with Google Vision API. Details: "+res.Error.Message, nil,
			map[string]any{"vendor": "google-vision", "status": res.Error.Code})
	}

	seen := make(map[string]bool)
	var names []string
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		names = append(names, s)
	}

	if res.WebDetection != nil {
		for _, e := range res.WebDetection.WebEntities {
			if e.Score > minEntityScore && !strings.Contains(e.Description, " ") {
				add(e.Description)
			}
		}
	}
	if len(names) == 0 {
		for _, l := range res.LandmarkAnnotations {
			add(l.Description)
		}
	}

	if len(names) > maxDetectedCountries {
		names = names[:maxDetectedCountries]
	}
	c.logger.DebugContext(ctx, "vision detection finished", "candidates", len(names))
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// HTTPImageProber issues HEAD requests through a BaseClient.
type HTTPImageProber struct {
	base *BaseClient
}

// NewHTTPImageProber creates an ImageProber.
func NewHTTPImageProber(base *BaseClient) *HTTPImageProber {
	return &HTTPImageProber{base: base}
}

// Probe returns the Content-Type of a HEAD response. Non-2xx statuses are
// errors.
func (p *HTTPImageProber) Probe(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", types.ValidationError(types.ErrCodeValidationInvalidImage, "Invalid image URL", err.Error())
	}
	resp, err := p.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", StatusError("image-host", resp)
	}
	return resp.Header.Get("Content-Type"), nil
}

var (
	_ CountryDetector = (*GoogleVisionClient)(nil)
	_ ImageProber     = (*HTTPImageProber)(nil)
)
