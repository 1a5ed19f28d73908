package source

import (
	"context"
	"fmt"

	"github.com/lysyi3m/press-relay/app/feed"
)

// Adapter turns one fetch unit of a source into normalized items.
// Sitemap sources have a single shared unit; feed sources have one unit
// per watched account.
type Adapter interface {
	Name() string
	Kind() feed.Kind
	Targets(ids []string) []string
	FetchAndParse(ctx context.Context, target string) ([]feed.ContentItem, error)
}

var (
	_ Adapter = (*SitemapAdapter)(nil)
	_ Adapter = (*FeedAdapter)(nil)
)

// New picks the adapter variant for a source definition.
func New(sourceConfig *feed.Config, fetcher *Fetcher) (Adapter, error) {
	switch sourceConfig.Kind {
	case feed.KindSitemap:
		return NewSitemapAdapter(sourceConfig, fetcher)
	case feed.KindFeed:
		return NewFeedAdapter(sourceConfig, fetcher), nil
	default:
		return nil, fmt.Errorf("unsupported source kind: %s", sourceConfig.Kind)
	}
}
