package sources

import (
	"context"
	"log/slog"

	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/types"
)

// HeadlineLimit is how many articles are kept per country.
const HeadlineLimit = 3

// News fetches top headlines. It degrades to an empty list instead of
// failing, since news is never essential to a response.
type News struct {
	client external.NewsClient
	logger *slog.Logger
}

// NewNews creates the news adapter. A nil client means no API key is
// configured.
func NewNews(client external.NewsClient, logger *slog.Logger) *News {
	if logger == nil {
		logger = slog.Default()
	}
	return &News{client: client, logger: logger}
}

func (n *News) Fetch(ctx context.Context, target types.GeoTarget, _ types.Timeframe) types.SourceResult {
	p := types.NewsPayload{
		Location: target.Name,
		ISO2:     target.ISO2,
		Articles: []types.Article{},
	}

	if target.ISO2 == "" {
		p.Skipped = true
		p.Reason = "no ISO country code for target"
		return success(types.DataNews, target, TypeNews, p, nil)
	}
	if n.client == nil {
		p.Reason = "news provider not configured"
		return success(types.DataNews, target, TypeNews, p, nil)
	}

	articles, err := n.client.TopHeadlines(ctx, target.ISO2, HeadlineLimit)
	if err != nil {
		types.LoggerFromContext(ctx, n.logger).WarnContext(ctx, "news fetch failed, returning no headlines",
			"target", target.Name,
			"iso2", target.ISO2,
			"error", err,
		)
		return success(types.DataNews, target, TypeNews, p, nil)
	}
	if len(articles) > HeadlineLimit {
		articles = articles[:HeadlineLimit]
	}
	p.Articles = append(p.Articles, articles...)
	return success(types.DataNews, target, TypeNews, p, map[string]any{"totalArticles": len(p.Articles)})
}
