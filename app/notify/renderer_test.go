package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/press-relay/app/feed"
)

type mapNames map[string]string

func (m mapNames) Lookup(source, accountID string) string {
	if name, ok := m[source+"/"+accountID]; ok {
		return name
	}
	return accountID
}

var jst = time.FixedZone("JST", 9*3600)

func testBatch(items ...feed.ContentItem) *feed.RunBatch {
	return &feed.RunBatch{
		CheckedAt:   time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC),
		WindowHours: 1,
		TargetIDs:   feed.Targets{"prtimes": {"007", "100"}, "note": {"alice"}},
		Items:       items,
	}
}

func TestRenderer_Run_EmptyBatch(t *testing.T) {
	renderer := NewRenderer(RendererConfig{Location: jst})

	messages := renderer.Run(testBatch(), nil, nil)

	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	text := messages[0].Text
	if !strings.Contains(text, "No new posts in the last 1 hour(s)") {
		t.Errorf("Expected empty notice, got %q", text)
	}
	if !strings.Contains(text, "2024-05-01 12:00 JST") {
		t.Errorf("Expected check time in display zone, got %q", text)
	}
	if !strings.Contains(text, "watching 3 IDs") {
		t.Errorf("Expected watched ID count, got %q", text)
	}
	if strings.Contains(messages[0].Plain, ":zzz:") {
		t.Errorf("Expected plain text without emoji, got %q", messages[0].Plain)
	}
}

func TestRenderer_Run_StrictEmpty(t *testing.T) {
	renderer := NewRenderer(RendererConfig{StrictEmpty: true})

	messages := renderer.Run(testBatch(), nil, nil)

	if len(messages) != 0 {
		t.Errorf("Expected no messages in strict mode, got %d", len(messages))
	}
}

func TestRenderer_Run_OneMessagePerItem(t *testing.T) {
	renderer := NewRenderer(RendererConfig{
		Location: jst,
		Labels:   map[string]string{"prtimes.jp": "PR TIMES"},
	})
	published := time.Date(2024, 5, 1, 2, 30, 0, 0, time.UTC)
	batch := testBatch(
		feed.ContentItem{Source: "prtimes", AccountID: "007", URL: "https://prtimes.jp/main/html/rd/p/000000001.000000007.html", Title: "Launch", PublishedAt: published},
		feed.ContentItem{Source: "note", AccountID: "alice", URL: "https://note.com/alice/n/abc", Title: "", PublishedAt: published},
	)
	names := mapNames{"prtimes/007": "Acme Corp"}
	previews := map[string]Preview{
		"https://prtimes.jp/main/html/rd/p/000000001.000000007.html": {
			Description: "  A   new\nproduct  ",
			ImageURL:    "https://prtimes.jp/img.png",
		},
	}

	messages := renderer.Run(batch, names, previews)

	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}

	first := messages[0]
	if first.Label != "PR TIMES" {
		t.Errorf("Expected label 'PR TIMES', got %q", first.Label)
	}
	if first.Name != "Acme Corp" {
		t.Errorf("Expected resolved name 'Acme Corp', got %q", first.Name)
	}
	if first.Description != "A new product" {
		t.Errorf("Expected collapsed description, got %q", first.Description)
	}
	if !strings.Contains(first.Text, "2024-05-01 11:30 JST") {
		t.Errorf("Expected publish time in display zone, got %q", first.Text)
	}
	if len(first.Blocks) != 1 || first.Blocks[0].Accessory == nil {
		t.Fatalf("Expected section block with image accessory, got %+v", first.Blocks)
	}
	if first.Blocks[0].Accessory.ImageURL != "https://prtimes.jp/img.png" {
		t.Errorf("Expected accessory image URL, got %q", first.Blocks[0].Accessory.ImageURL)
	}

	second := messages[1]
	if second.Name != "alice" {
		t.Errorf("Expected name to fall back to account ID, got %q", second.Name)
	}
	if second.Title != "(untitled)" {
		t.Errorf("Expected untitled placeholder, got %q", second.Title)
	}
	if second.Label != "note.com" {
		t.Errorf("Expected host as label for unknown source, got %q", second.Label)
	}
	if second.Blocks[0].Accessory != nil {
		t.Errorf("Expected no accessory without image")
	}
	if !strings.Contains(second.Plain, "https://note.com/alice/n/abc") {
		t.Errorf("Expected plain text to contain the URL, got %q", second.Plain)
	}
}

func TestRenderer_Run_MaxMessages(t *testing.T) {
	renderer := NewRenderer(RendererConfig{MaxMessages: 2})
	now := time.Now()
	batch := testBatch(
		feed.ContentItem{Source: "note", AccountID: "a", URL: "https://note.com/a/n/1", Title: "1", PublishedAt: now},
		feed.ContentItem{Source: "note", AccountID: "b", URL: "https://note.com/b/n/2", Title: "2", PublishedAt: now},
		feed.ContentItem{Source: "note", AccountID: "c", URL: "https://note.com/c/n/3", Title: "3", PublishedAt: now},
	)

	messages := renderer.Run(batch, nil, nil)

	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if messages[1].Title != "2" {
		t.Errorf("Expected batch order preserved, got %q", messages[1].Title)
	}
}

func TestRenderer_Run_TruncatesDescription(t *testing.T) {
	renderer := NewRenderer(RendererConfig{DescriptionLimit: 10})
	item := feed.ContentItem{Source: "note", AccountID: "a", URL: "https://note.com/a/n/1", Title: "T", PublishedAt: time.Now()}
	previews := map[string]Preview{item.URL: {Description: "あいうえおかきくけこさしすせそ"}}

	messages := renderer.Run(testBatch(item), nil, previews)

	if messages[0].Description != "あいうえおかき..." {
		t.Errorf("Expected rune-safe truncation, got %q", messages[0].Description)
	}
}

func TestRenderer_Run_EscapesMrkdwn(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})
	item := feed.ContentItem{Source: "note", AccountID: "a", URL: "https://note.com/a/n/1", Title: "R&D <beta>", PublishedAt: time.Now()}

	messages := renderer.Run(testBatch(item), nil, nil)

	if !strings.Contains(messages[0].Text, "R&amp;D &lt;beta&gt;") {
		t.Errorf("Expected escaped title in mrkdwn, got %q", messages[0].Text)
	}
	if !strings.Contains(messages[0].Plain, "R&D <beta>") {
		t.Errorf("Expected raw title in plain text, got %q", messages[0].Plain)
	}
}

func TestLabelsFromSources(t *testing.T) {
	sources := []*feed.Config{
		{Name: "prtimes", URL: "https://prtimes.jp/sitemap-news.xml", Label: "PR TIMES"},
		{Name: "note", URL: "https://note.com/{id}/rss"},
		{Name: "broken", URL: "::"},
	}

	labels := LabelsFromSources(sources)

	if labels["prtimes.jp"] != "PR TIMES" {
		t.Errorf("Expected prtimes label, got %q", labels["prtimes.jp"])
	}
	if labels["note.com"] != "note" {
		t.Errorf("Expected name as default label, got %q", labels["note.com"])
	}
	if len(labels) != 2 {
		t.Errorf("Expected 2 labels, got %d", len(labels))
	}
}

func TestRenderer_LabelFor_Subdomain(t *testing.T) {
	renderer := NewRenderer(RendererConfig{Labels: map[string]string{"prtimes.jp": "PR TIMES"}})

	if got := renderer.LabelFor("https://www.prtimes.jp/x"); got != "PR TIMES" {
		t.Errorf("Expected www host to match, got %q", got)
	}
	if got := renderer.LabelFor("https://cdn.prtimes.jp/x"); got != "PR TIMES" {
		t.Errorf("Expected subdomain to match, got %q", got)
	}
	if got := renderer.LabelFor("not a url"); got != "link" {
		t.Errorf("Expected 'link' for invalid URL, got %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input    string
		limit    int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		if got := truncateString(tt.input, tt.limit); got != tt.expected {
			t.Errorf("truncateString(%q, %d): expected %q, got %q", tt.input, tt.limit, tt.expected, got)
		}
	}
}
