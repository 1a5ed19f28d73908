package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/press-relay/app/feed"
)

const noteRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>alice | note</title>
    <link>https://note.com/alice</link>
    <description>alice's notes</description>
    <item>
      <title>First article</title>
      <link>https://note.com/alice/n/n0001</link>
      <pubDate>Mon, 10 Mar 2025 20:00:00 +0900</pubDate>
    </item>
    <item>
      <title>No date</title>
      <link>https://note.com/alice/n/n0002</link>
    </item>
    <item>
      <title>No link</title>
      <pubDate>Mon, 10 Mar 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Zoneless</title>
      <link>https://note.com/alice/n/n0003</link>
      <pubDate>Mon, 10 Mar 2025 09:15:00</pubDate>
    </item>
  </channel>
</rss>`

func newNoteConfig(url string) *feed.Config {
	return &feed.Config{
		Name:     "note",
		Kind:     feed.KindFeed,
		URL:      url,
		IDField:  "note_id",
		IDFormat: feed.IDFormatSlug,
		Settings: feed.ConfigSettings{Enabled: true, Timeout: 5},
	}
}

func TestFeedAdapterParse(t *testing.T) {
	adapter := NewFeedAdapter(newNoteConfig("https://note.com/{id}/rss"), NewFetcher(nil, "", 0))

	items := adapter.Parse([]byte(noteRSS), "@alice")

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got: %d", len(items))
	}

	first := items[0]
	if first.URL != "https://note.com/alice/n/n0001" {
		t.Errorf("Expected first article link, got: %s", first.URL)
	}
	if first.AccountID != "alice" {
		t.Errorf("Expected normalized account 'alice', got: %s", first.AccountID)
	}
	if first.Kind != feed.KindFeed || first.Source != "note" {
		t.Errorf("Expected feed/note, got: %s/%s", first.Kind, first.Source)
	}
	expected := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(expected) {
		t.Errorf("Expected published_at %v, got: %v", expected, first.PublishedAt)
	}
	if first.PublishedAt.Location() != time.UTC {
		t.Errorf("Expected UTC location, got: %v", first.PublishedAt.Location())
	}

	zoneless := items[1]
	if !zoneless.PublishedAt.Equal(time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC)) {
		t.Errorf("Expected zoneless date to be read as UTC, got: %v", zoneless.PublishedAt)
	}
}

func TestFeedAdapterParseMalformed(t *testing.T) {
	adapter := NewFeedAdapter(newNoteConfig("https://note.com/{id}/rss"), NewFetcher(nil, "", 0))

	items := adapter.Parse([]byte("<html><body>Not found</body></html>"), "alice")
	if len(items) != 0 {
		t.Errorf("Expected 0 items for malformed feed, got: %d", len(items))
	}

	items = adapter.Parse([]byte(""), "alice")
	if len(items) != 0 {
		t.Errorf("Expected 0 items for empty body, got: %d", len(items))
	}
}

func TestFeedAdapterFetchAndParse(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(noteRSS))
	}))
	defer server.Close()

	adapter := NewFeedAdapter(newNoteConfig(server.URL+"/{id}/rss"), NewFetcher(server.Client(), "", 0))

	items, err := adapter.FetchAndParse(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 items, got: %d", len(items))
	}
	if requestedPath != "/alice/rss" {
		t.Errorf("Expected path '/alice/rss', got: %s", requestedPath)
	}
}

func TestFeedAdapterFetchMalformedIsNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not xml"))
	}))
	defer server.Close()

	adapter := NewFeedAdapter(newNoteConfig(server.URL+"/{id}/rss"), NewFetcher(server.Client(), "", 0))

	items, err := adapter.FetchAndParse(context.Background(), "alice")
	if err != nil {
		t.Errorf("Expected no error for malformed feed, got: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected 0 items, got: %d", len(items))
	}
}

func TestFeedAdapterFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewFeedAdapter(newNoteConfig(server.URL+"/{id}/rss"), NewFetcher(server.Client(), "", 0))

	_, err := adapter.FetchAndParse(context.Background(), "ghost")
	if err == nil {
		t.Fatal("Expected error for HTTP 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("Expected error to mention status code, got: %v", err)
	}
}

func TestFeedAdapterURLFor(t *testing.T) {
	adapter := NewFeedAdapter(newNoteConfig("https://nitter.net/{id}/rss"), NewFetcher(nil, "", 0))

	if got := adapter.URLFor("someone"); got != "https://nitter.net/someone/rss" {
		t.Errorf("Expected templated URL, got: %s", got)
	}
	if got := adapter.URLFor("a b"); got != "https://nitter.net/a%20b/rss" {
		t.Errorf("Expected escaped URL, got: %s", got)
	}
}

func TestNewAdapterSelectsVariant(t *testing.T) {
	fetcher := NewFetcher(nil, "", 0)

	sitemap, err := New(newPRTimesConfig("https://prtimes.jp/sitemap-news.xml"), fetcher)
	if err != nil {
		t.Fatal(err)
	}
	if sitemap.Kind() != feed.KindSitemap {
		t.Errorf("Expected sitemap adapter, got %s", sitemap.Kind())
	}

	rss, err := New(newNoteConfig("https://note.com/{id}/rss"), fetcher)
	if err != nil {
		t.Fatal(err)
	}
	if rss.Kind() != feed.KindFeed {
		t.Errorf("Expected feed adapter, got %s", rss.Kind())
	}
	if got := rss.Targets([]string{"a", "b"}); len(got) != 2 {
		t.Errorf("Expected one unit per account, got %d", len(got))
	}

	if _, err := New(&feed.Config{Kind: "atom"}, fetcher); err == nil {
		t.Error("Expected error for unsupported kind")
	}
}
