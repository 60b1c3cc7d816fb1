package external

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Beez1/bounceinsights/internal/types"
)

const gnewsAPIBase = "https://gnews.io/api/v4"

// GNewsClient fetches top headlines. The free plan only serves current
// headlines, so there is no date parameter.
type GNewsClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewGNewsClient creates a GNews client.
func NewGNewsClient(base *BaseClient, apiKey, baseURL string, logger *slog.Logger) *GNewsClient {
	if baseURL == "" {
		baseURL = gnewsAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GNewsClient{
		base:    base,
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type gnewsResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// TopHeadlines returns at most limit English headlines for the country.
func (c *GNewsClient) TopHeadlines(ctx context.Context, iso2 string, limit int) ([]types.Article, error) {
	q := url.Values{}
	q.Set("country", strings.ToLower(iso2))
	q.Set("lang", "en")
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/top-headlines?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build news request", err)
	}

	var out gnewsResponse
	if err := c.base.DoJSON(req, "gnews", &out); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > len(out.Articles) {
		limit = len(out.Articles)
	}
	articles := make([]types.Article, 0, limit)
	for _, a := range out.Articles {
		if len(articles) == limit {
			break
		}
		articles = append(articles, types.Article{
			Title:  a.Title,
			Source: a.Source.Name,
			URL:    a.URL,
		})
	}
	return articles, nil
}

var _ NewsClient = (*GNewsClient)(nil)
