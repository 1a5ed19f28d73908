package source

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/lysyi3m/press-relay/app/feed"
)

type sitemapDocument struct {
	XMLName xml.Name     `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 urlset"`
	URLs    []sitemapURL `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 url"`
}

type sitemapURL struct {
	Loc  string       `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 loc"`
	News *sitemapNews `xml:"http://www.google.com/schemas/sitemap-news/0.9 news"`
}

type sitemapNews struct {
	PublicationDate string `xml:"http://www.google.com/schemas/sitemap-news/0.9 publication_date"`
	Title           string `xml:"http://www.google.com/schemas/sitemap-news/0.9 title"`
}

// W3C and ISO 8601 datetime variants seen in news sitemaps, with either a
// "T" or a space between date and time. Layouts without a zone parse as UTC.
var sitemapDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

type SitemapAdapter struct {
	config  *feed.Config
	fetcher *Fetcher
	pattern *regexp.Regexp
}

func NewSitemapAdapter(sourceConfig *feed.Config, fetcher *Fetcher) (*SitemapAdapter, error) {
	pattern, err := regexp.Compile(sourceConfig.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile link pattern: %w", err)
	}
	if sourceConfig.IDGroup < 1 || sourceConfig.IDGroup > pattern.NumSubexp() {
		return nil, fmt.Errorf("id group %d out of range", sourceConfig.IDGroup)
	}

	return &SitemapAdapter{
		config:  sourceConfig,
		fetcher: fetcher,
		pattern: pattern,
	}, nil
}

func (a *SitemapAdapter) Name() string {
	return a.config.Name
}

func (a *SitemapAdapter) Kind() feed.Kind {
	return feed.KindSitemap
}

// Targets yields the single shared unit when any account is watched.
func (a *SitemapAdapter) Targets(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	return []string{""}
}

func (a *SitemapAdapter) FetchAndParse(ctx context.Context, _ string) ([]feed.ContentItem, error) {
	data, err := a.fetcher.Fetch(ctx, a.config.URL, a.config.Timeout())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}

	items, err := a.Parse(data)
	if err != nil {
		return nil, err
	}

	slog.Debug("Sitemap parsed", "source", a.config.Name, "items", len(items))

	return items, nil
}

// Parse decodes a news sitemap. A malformed document is an error; entries
// with foreign links or unusable dates are skipped.
func (a *SitemapAdapter) Parse(data []byte) ([]feed.ContentItem, error) {
	var doc sitemapDocument
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap: %w", err)
	}

	items := make([]feed.ContentItem, 0, len(doc.URLs))
	for _, entry := range doc.URLs {
		if entry.News == nil {
			continue
		}

		loc := strings.TrimSpace(entry.Loc)
		match := a.pattern.FindStringSubmatch(loc)
		if match == nil {
			continue
		}

		publishedAt, ok := parseSitemapDate(entry.News.PublicationDate)
		if !ok {
			continue
		}

		items = append(items, feed.ContentItem{
			Source:      a.config.Name,
			Kind:        feed.KindSitemap,
			AccountID:   feed.NormalizeID(a.config.IDFormat, match[a.config.IDGroup]),
			URL:         loc,
			Title:       strings.TrimSpace(entry.News.Title),
			PublishedAt: publishedAt,
		})
	}

	return items, nil
}

func parseSitemapDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range sitemapDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
