package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/press-relay/app/database"
	"github.com/lysyi3m/press-relay/app/feed"
	"github.com/lysyi3m/press-relay/app/identity"
	"github.com/lysyi3m/press-relay/app/notify"
	"github.com/lysyi3m/press-relay/app/source"
	"github.com/lysyi3m/press-relay/app/tasks"
)

type stubResolver struct {
	resolution *identity.Resolution
	err        error
	refreshed  bool
}

func (s *stubResolver) Resolve(_ context.Context, refresh bool) (*identity.Resolution, error) {
	s.refreshed = refresh
	return s.resolution, s.err
}

type recordingSink struct {
	sent []notify.Message
	fail func(notify.Message) error
}

var _ notify.Sink = (*recordingSink)(nil)

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, message notify.Message) error {
	if s.fail != nil {
		if err := s.fail(message); err != nil {
			return err
		}
	}
	s.sent = append(s.sent, message)
	return nil
}

type recordingHistory struct {
	runs []database.Run
}

func (h *recordingHistory) Insert(_ context.Context, run database.Run) error {
	h.runs = append(h.runs, run)
	return nil
}

type stubPreviews struct {
	previews map[string]notify.Preview
	calls    int
}

func (s *stubPreviews) Fetch(_ context.Context, pageURL string) (notify.Preview, error) {
	s.calls++
	preview, ok := s.previews[pageURL]
	if !ok {
		return notify.Preview{}, errors.New("not found")
	}
	return preview, nil
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

var testSources = []*feed.Config{
	{Name: "note", Kind: feed.KindFeed, URL: "https://note.com/{id}/rss", IDField: "note_id", IDFormat: feed.IDFormatSlug},
}

func testSnapshot() *identity.Snapshot {
	return &identity.Snapshot{
		FetchedAt: testNow,
		Records:   []identity.Record{{Name: "Alice Co", IDs: map[string]string{"note_id": "alice"}}},
		IDs:       map[string][]string{"note_id": {"alice"}},
	}
}

type runnerFixture struct {
	resolver *stubResolver
	sink     *recordingSink
	history  *recordingHistory
	previews *stubPreviews
	cfg      RunnerConfig
}

func newRunnerFixture(items ...feed.ContentItem) *runnerFixture {
	adapter := &stubAdapter{
		name:  "note",
		kind:  feed.KindFeed,
		items: map[string][]feed.ContentItem{"alice": items},
	}
	pool := tasks.NewPool(2, time.Second)
	aggregator := NewAggregator([]source.Adapter{adapter}, pool, 0)
	aggregator.now = fixedClock(testNow)

	f := &runnerFixture{
		resolver: &stubResolver{resolution: &identity.Resolution{Snapshot: testSnapshot()}},
		sink:     &recordingSink{},
		history:  &recordingHistory{},
		previews: &stubPreviews{previews: map[string]notify.Preview{}},
	}
	f.cfg = RunnerConfig{
		Identifiers: f.resolver,
		Sources:     testSources,
		Aggregator:  aggregator,
		Pool:        pool,
		Previews:    f.previews,
		Renderer:    notify.NewRenderer(notify.RendererConfig{}),
		Sink:        f.sink,
		History:     f.history,
	}
	return f
}

func (f *runnerFixture) runner(t *testing.T) *Runner {
	t.Helper()
	runner, err := NewRunner(f.cfg)
	if err != nil {
		t.Fatalf("Failed to create runner: %v", err)
	}
	return runner
}

func TestRunner_Run_Success(t *testing.T) {
	f := newRunnerFixture(
		feedItem("note", "alice", "https://note.com/alice/n/1", testNow.Add(-5*time.Minute)),
		feedItem("note", "alice", "https://note.com/alice/n/2", testNow.Add(-3*time.Hour)),
	)
	f.previews.previews["https://note.com/alice/n/1"] = notify.Preview{Description: "Preview text"}

	summary, err := f.runner(t).Run(context.Background(), Options{Refresh: true})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !f.resolver.refreshed {
		t.Errorf("Expected refresh flag to reach the resolver")
	}
	if summary.WindowHours != 1 {
		t.Errorf("Expected default window of 1, got %d", summary.WindowHours)
	}
	if summary.Status != StatusOK {
		t.Errorf("Expected status ok, got %q", summary.Status)
	}
	if summary.Items != 1 || summary.MessagesRendered != 1 || summary.MessagesSent != 1 {
		t.Errorf("Expected 1 item rendered and sent, got %+v", summary)
	}
	if summary.RunID == "" {
		t.Errorf("Expected run ID")
	}

	if len(f.sink.sent) != 1 {
		t.Fatalf("Expected 1 sent message, got %d", len(f.sink.sent))
	}
	sent := f.sink.sent[0]
	if sent.Name != "Alice Co" {
		t.Errorf("Expected display name from snapshot, got %q", sent.Name)
	}
	if sent.Description != "Preview text" {
		t.Errorf("Expected preview description, got %q", sent.Description)
	}

	if len(f.history.runs) != 1 {
		t.Fatalf("Expected 1 history record, got %d", len(f.history.runs))
	}
	if f.history.runs[0].ID != summary.RunID || f.history.runs[0].Status != StatusOK {
		t.Errorf("Expected history to mirror summary, got %+v", f.history.runs[0])
	}
}

func TestRunner_Run_EmptyBatch(t *testing.T) {
	f := newRunnerFixture()

	summary, err := f.runner(t).Run(context.Background(), Options{WindowHours: 2})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if summary.MessagesSent != 1 {
		t.Errorf("Expected single no-updates message, got %d", summary.MessagesSent)
	}
	if !strings.Contains(f.sink.sent[0].Text, "No new posts in the last 2 hour(s)") {
		t.Errorf("Expected empty notice, got %q", f.sink.sent[0].Text)
	}
	if f.previews.calls != 0 {
		t.Errorf("Expected no preview fetches, got %d", f.previews.calls)
	}
}

func TestRunner_Run_InvalidOptions(t *testing.T) {
	f := newRunnerFixture()

	for _, hours := range []int{-1, MaxWindowHours + 1} {
		summary, err := f.runner(t).Run(context.Background(), Options{WindowHours: hours})
		if !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("Expected ErrInvalidOptions for %d, got %v", hours, err)
		}
		if summary != nil {
			t.Errorf("Expected no summary for invalid options")
		}
	}
	if len(f.history.runs) != 0 {
		t.Errorf("Expected no history for rejected runs")
	}
}

func TestRunner_Run_IdentifierFailure(t *testing.T) {
	f := newRunnerFixture()
	f.resolver.resolution = nil
	f.resolver.err = errors.New("sheet unreachable")

	summary, err := f.runner(t).Run(context.Background(), Options{})

	if !errors.Is(err, ErrIdentifiers) {
		t.Fatalf("Expected ErrIdentifiers, got %v", err)
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", StatusCode(err))
	}
	if summary.Status != StatusInternalError {
		t.Errorf("Expected internal_error status, got %q", summary.Status)
	}
	if len(f.sink.sent) != 0 {
		t.Errorf("Expected nothing delivered")
	}
}

func TestRunner_Run_StaleIdentifiers(t *testing.T) {
	f := newRunnerFixture()
	f.resolver.resolution = &identity.Resolution{Snapshot: testSnapshot(), FromCache: true, Stale: true}

	summary, err := f.runner(t).Run(context.Background(), Options{Refresh: true})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !summary.StaleIdentifiers {
		t.Errorf("Expected stale identifiers flag")
	}
}

func TestRunner_Run_DeliveryError(t *testing.T) {
	f := newRunnerFixture(
		feedItem("note", "alice", "https://note.com/alice/n/1", testNow.Add(-5*time.Minute)),
		feedItem("note", "alice", "https://note.com/alice/n/2", testNow.Add(-6*time.Minute)),
	)
	f.sink.fail = func(m notify.Message) error {
		if m.URL == "https://note.com/alice/n/1" {
			return errors.New("HTTP 500")
		}
		return nil
	}

	summary, err := f.runner(t).Run(context.Background(), Options{})

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("Expected DeliveryError, got %v", err)
	}
	if deliveryErr.Failed != 1 || deliveryErr.Total != 2 {
		t.Errorf("Expected 1 of 2 failed, got %d of %d", deliveryErr.Failed, deliveryErr.Total)
	}
	if StatusCode(err) != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", StatusCode(err))
	}
	if summary.MessagesSent != 1 {
		t.Errorf("Expected remaining message still sent, got %d", summary.MessagesSent)
	}
	if summary.Status != StatusDeliveryError {
		t.Errorf("Expected delivery_error status, got %q", summary.Status)
	}
}

func TestRunner_Run_WritesArtifact(t *testing.T) {
	f := newRunnerFixture(feedItem("note", "alice", "https://note.com/alice/n/1", testNow.Add(-5*time.Minute)))
	f.cfg.ArtifactPath = filepath.Join(t.TempDir(), "out", "latest.json")

	summary, err := f.runner(t).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !summary.ArtifactWritten {
		t.Fatalf("Expected artifact to be written")
	}

	data, err := os.ReadFile(f.cfg.ArtifactPath)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	var doc struct {
		RunID string `json:"run_id"`
		Count int    `json:"count"`
		Items []struct {
			AccountID   string `json:"account_id"`
			PublishedAt string `json:"published_at"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Failed to decode artifact: %v", err)
	}
	if doc.RunID != summary.RunID || doc.Count != 1 {
		t.Errorf("Expected run ID and count 1, got %+v", doc)
	}
	if doc.Items[0].PublishedAt != "2024-05-01T11:55:00Z" {
		t.Errorf("Expected RFC 3339 UTC timestamp, got %q", doc.Items[0].PublishedAt)
	}
}

func TestNewRunner_RequiresSink(t *testing.T) {
	f := newRunnerFixture()
	f.cfg.Sink = nil

	if _, err := NewRunner(f.cfg); err == nil {
		t.Errorf("Expected error without a sink")
	}
}
