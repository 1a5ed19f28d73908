package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const defaultPreviewTimeout = 10 * time.Second

// PageFetcher downloads a page body.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string, timeout time.Duration) ([]byte, error)
}

type PreviewExtractor struct {
	fetcher PageFetcher
	timeout time.Duration
}

func NewPreviewExtractor(fetcher PageFetcher, timeout time.Duration) *PreviewExtractor {
	if timeout <= 0 {
		timeout = defaultPreviewTimeout
	}
	return &PreviewExtractor{
		fetcher: fetcher,
		timeout: timeout,
	}
}

func (e *PreviewExtractor) Fetch(ctx context.Context, pageURL string) (Preview, error) {
	data, err := e.fetcher.Fetch(ctx, pageURL, e.timeout)
	if err != nil {
		return Preview{}, fmt.Errorf("failed to fetch preview page: %w", err)
	}

	return e.Run(data, pageURL)
}

// Run extracts Open Graph / Twitter card metadata, falling back to the
// document title and a readability excerpt.
func (e *PreviewExtractor) Run(data []byte, pageURL string) (Preview, error) {
	if len(data) == 0 {
		return Preview{}, fmt.Errorf("HTML data is empty")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return Preview{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	preview := Preview{
		Title: firstNonEmpty(
			metaContent(doc, "meta[property='og:title']"),
			metaContent(doc, "meta[name='twitter:title']"),
			strings.TrimSpace(doc.Find("title").First().Text()),
		),
		Description: firstNonEmpty(
			metaContent(doc, "meta[property='og:description']"),
			metaContent(doc, "meta[name='description']"),
			metaContent(doc, "meta[name='twitter:description']"),
		),
		ImageURL: resolveURL(pageURL, firstNonEmpty(
			metaContent(doc, "meta[property='og:image']"),
			metaContent(doc, "meta[name='twitter:image']"),
		)),
	}

	if preview.Description == "" || preview.Title == "" {
		e.fillFromReadability(&preview, data, pageURL)
	}

	slog.Debug("Preview extracted", "url", pageURL, "has_title", preview.Title != "", "has_image", preview.ImageURL != "")

	return preview, nil
}

func (e *PreviewExtractor) fillFromReadability(preview *Preview, data []byte, pageURL string) {
	parsedURL, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err != nil {
		slog.Debug("Readability extraction failed", "url", pageURL, "error", err)
		return
	}

	if preview.Title == "" {
		preview.Title = strings.TrimSpace(article.Title)
	}
	if preview.Description == "" {
		preview.Description = strings.TrimSpace(article.Excerpt)
	}
	if preview.ImageURL == "" {
		preview.ImageURL = resolveURL(pageURL, article.Image)
	}
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if refURL.IsAbs() {
		return refURL.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}
