package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/press-relay/app/database"
	"github.com/lysyi3m/press-relay/app/feed"
	"github.com/lysyi3m/press-relay/app/identity"
	"github.com/lysyi3m/press-relay/app/notify"
	"github.com/lysyi3m/press-relay/app/tasks"
)

const (
	DefaultWindowHours = 1
	MaxWindowHours     = 168
)

type Options struct {
	WindowHours int  `json:"window_hours"`
	Refresh     bool `json:"refresh"`
}

type Summary struct {
	RunID            string        `json:"run_id"`
	CheckedAt        time.Time     `json:"checked_at"`
	WindowHours      int           `json:"window_hours"`
	Sources          []SourceStats `json:"sources"`
	Items            int           `json:"items"`
	Degraded         int           `json:"degraded"`
	MessagesRendered int           `json:"messages_rendered"`
	MessagesSent     int           `json:"messages_sent"`
	StaleIdentifiers bool          `json:"stale_identifiers"`
	ArtifactWritten  bool          `json:"artifact_written"`
	Status           string        `json:"status"`
	Error            string        `json:"error,omitempty"`
}

type IdentifierResolver interface {
	Resolve(ctx context.Context, refresh bool) (*identity.Resolution, error)
}

var _ IdentifierResolver = (*identity.Provider)(nil)

type HistoryRecorder interface {
	Insert(ctx context.Context, run database.Run) error
}

type RunnerConfig struct {
	Identifiers  IdentifierResolver
	Sources      []*feed.Config
	Aggregator   *Aggregator
	Pool         tasks.PoolInterface  // preview enrichment
	Previews     tasks.PreviewFetcher // nil disables enrichment
	Renderer     *notify.Renderer
	Sink         notify.Sink
	ArtifactPath string          // empty disables the artifact
	History      HistoryRecorder // nil disables run history
}

// Runner executes one full pass: identifiers, fetch, filter, render, deliver.
// Concurrent calls are serialized.
type Runner struct {
	cfg RunnerConfig
	mu  sync.Mutex
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	switch {
	case cfg.Identifiers == nil:
		return nil, fmt.Errorf("identifier resolver is required")
	case cfg.Aggregator == nil:
		return nil, fmt.Errorf("aggregator is required")
	case cfg.Renderer == nil:
		return nil, fmt.Errorf("renderer is required")
	case cfg.Sink == nil:
		return nil, fmt.Errorf("notification sink is required")
	case cfg.Previews != nil && cfg.Pool == nil:
		return nil, fmt.Errorf("worker pool is required for previews")
	}
	return &Runner{cfg: cfg}, nil
}

// Run returns the summary for every outcome except invalid options. The
// error is classified for StatusCode.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.WindowHours == 0 {
		opts.WindowHours = DefaultWindowHours
	}
	if opts.WindowHours < 1 || opts.WindowHours > MaxWindowHours {
		return nil, fmt.Errorf("%w: window_hours must be between 1 and %d, got %d", ErrInvalidOptions, MaxWindowHours, opts.WindowHours)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	summary := &Summary{
		RunID:       uuid.NewString(),
		CheckedAt:   start.UTC(),
		WindowHours: opts.WindowHours,
		Sources:     []SourceStats{},
	}

	slog.Info("Run started", "run_id", summary.RunID, "window_hours", opts.WindowHours, "refresh", opts.Refresh)

	err := r.execute(ctx, opts, summary)
	summary.Status = statusOf(err)
	if err != nil {
		summary.Error = err.Error()
	}

	runsTotal.WithLabelValues(summary.Status).Inc()
	runDuration.Observe(time.Since(start).Seconds())
	r.record(ctx, summary)

	if err != nil {
		slog.Error("Run failed", "run_id", summary.RunID, "status", summary.Status, "error", err)
	} else {
		slog.Info("Run completed", "run_id", summary.RunID, "items", summary.Items, "degraded", summary.Degraded, "messages_sent", summary.MessagesSent, "duration", time.Since(start).String())
	}

	return summary, err
}

func (r *Runner) execute(ctx context.Context, opts Options, summary *Summary) error {
	resolution, err := r.cfg.Identifiers.Resolve(ctx, opts.Refresh)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIdentifiers, err)
	}
	summary.StaleIdentifiers = resolution.Stale

	targets := resolution.Snapshot.Targets(r.cfg.Sources)
	batch, stats := r.cfg.Aggregator.Run(ctx, targets, opts.WindowHours)

	summary.CheckedAt = batch.CheckedAt
	summary.Sources = stats
	summary.Items = len(batch.Items)
	for _, stat := range stats {
		summary.Degraded += stat.Degraded
	}

	previews := r.fetchPreviews(ctx, r.cfg.Renderer.Selected(batch))
	names := identity.NewNameIndex(resolution.Snapshot, r.cfg.Sources)
	messages := r.cfg.Renderer.Run(batch, names, previews)
	summary.MessagesRendered = len(messages)

	if r.cfg.ArtifactPath != "" {
		written, err := WriteArtifact(r.cfg.ArtifactPath, summary.RunID, batch)
		if err != nil {
			slog.Error("Failed to write run artifact", "path", r.cfg.ArtifactPath, "error", err)
		}
		summary.ArtifactWritten = written
	}

	return r.deliver(ctx, messages, summary)
}

// fetchPreviews enriches each distinct URL once. Failed fetches are left out.
func (r *Runner) fetchPreviews(ctx context.Context, items []feed.ContentItem) map[string]notify.Preview {
	if r.cfg.Previews == nil || len(items) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(items))
	previewTasks := make([]*tasks.FetchPreviewTask, 0, len(items))
	for _, item := range items {
		if seen[item.URL] {
			continue
		}
		seen[item.URL] = true
		previewTasks = append(previewTasks, tasks.NewFetchPreviewTask(r.cfg.Previews, item.URL))
	}

	batch := make([]tasks.TaskInterface, len(previewTasks))
	for i, task := range previewTasks {
		batch[i] = task
	}
	errs := r.cfg.Pool.Run(ctx, batch)

	previews := make(map[string]notify.Preview, len(previewTasks))
	for i, task := range previewTasks {
		if errs[i] != nil {
			slog.Debug("Preview unavailable", "url", task.URL, "error", errs[i])
			continue
		}
		previews[task.URL] = task.Preview
	}
	return previews
}

// deliver sends each message once. Sink retries are the sink's concern.
func (r *Runner) deliver(ctx context.Context, messages []notify.Message, summary *Summary) error {
	var errs []error
	for _, message := range messages {
		if err := r.cfg.Sink.Send(ctx, message); err != nil {
			messagesSent.WithLabelValues("error").Inc()
			slog.Warn("Message delivery failed", "sink", r.cfg.Sink.Name(), "url", message.URL, "error", err)
			errs = append(errs, err)
			continue
		}
		messagesSent.WithLabelValues("success").Inc()
		summary.MessagesSent++
	}

	if len(errs) > 0 {
		return &DeliveryError{
			Sink:   r.cfg.Sink.Name(),
			Failed: len(errs),
			Total:  len(messages),
			Err:    errors.Join(errs...),
		}
	}
	return nil
}

func (r *Runner) record(ctx context.Context, summary *Summary) {
	if r.cfg.History == nil {
		return
	}

	encoded, err := json.Marshal(summary)
	if err != nil {
		slog.Warn("Failed to encode run summary", "run_id", summary.RunID, "error", err)
		return
	}

	run := database.Run{
		ID:               summary.RunID,
		CheckedAt:        summary.CheckedAt,
		WindowHours:      summary.WindowHours,
		Status:           summary.Status,
		Items:            summary.Items,
		Degraded:         summary.Degraded,
		MessagesRendered: summary.MessagesRendered,
		MessagesSent:     summary.MessagesSent,
		StaleIdentifiers: summary.StaleIdentifiers,
		Error:            summary.Error,
		Summary:          string(encoded),
	}

	// History survives a cancelled request context.
	if err := r.cfg.History.Insert(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("Failed to record run history", "run_id", summary.RunID, "error", err)
	}
}
