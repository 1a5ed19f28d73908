package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/lysyi3m/press-relay/app/feed"
	"github.com/mmcdole/gofeed"
)

type FeedAdapter struct {
	config  *feed.Config
	fetcher *Fetcher
}

func NewFeedAdapter(sourceConfig *feed.Config, fetcher *Fetcher) *FeedAdapter {
	return &FeedAdapter{
		config:  sourceConfig,
		fetcher: fetcher,
	}
}

func (a *FeedAdapter) Name() string {
	return a.config.Name
}

func (a *FeedAdapter) Kind() feed.Kind {
	return feed.KindFeed
}

func (a *FeedAdapter) Targets(ids []string) []string {
	targets := make([]string, len(ids))
	copy(targets, ids)
	return targets
}

func (a *FeedAdapter) URLFor(accountID string) string {
	return strings.ReplaceAll(a.config.URL, feed.IDPlaceholder, url.PathEscape(accountID))
}

func (a *FeedAdapter) FetchAndParse(ctx context.Context, accountID string) ([]feed.ContentItem, error) {
	data, err := a.fetcher.Fetch(ctx, a.URLFor(accountID), a.config.Timeout())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	return a.Parse(data, accountID), nil
}

// Parse never fails: a document gofeed cannot read yields no items.
func (a *FeedAdapter) Parse(data []byte, accountID string) []feed.ContentItem {
	// gofeed.Parser keeps per-parse state, so each call gets its own.
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		slog.Warn("Failed to parse feed, treating as empty", "source", a.config.Name, "account", accountID, "error", err)
		return nil
	}

	normalizedID := feed.NormalizeID(a.config.IDFormat, accountID)

	items := make([]feed.ContentItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}

		link := strings.TrimSpace(entry.Link)
		if link == "" || entry.PublishedParsed == nil {
			continue
		}

		items = append(items, feed.ContentItem{
			Source:      a.config.Name,
			Kind:        feed.KindFeed,
			AccountID:   normalizedID,
			URL:         link,
			Title:       strings.TrimSpace(entry.Title),
			PublishedAt: entry.PublishedParsed.UTC(),
		})
	}

	return items
}
