package tasks

import (
	"context"
	"fmt"

	"github.com/lysyi3m/press-relay/app/feed"
	"github.com/lysyi3m/press-relay/app/source"
)

// FetchSourceTask fetches one unit of a source: the shared sitemap or a
// single account's feed.
type FetchSourceTask struct {
	Task
	Adapter source.Adapter
	Target  string
	Items   []feed.ContentItem
}

func NewFetchSourceTask(adapter source.Adapter, target string, maxRetries int) *FetchSourceTask {
	subject := adapter.Name()
	if target != "" {
		subject = adapter.Name() + "/" + target
	}
	return &FetchSourceTask{
		Task:    NewTask(TaskTypeFetchSource, subject, maxRetries),
		Adapter: adapter,
		Target:  target,
	}
}

func (t *FetchSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	items, err := t.Adapter.FetchAndParse(ctx, t.Target)
	if err != nil {
		t.Items = nil
		return fmt.Errorf("failed to fetch %s: %w", t.Subject, err)
	}

	t.Items = items
	return nil
}
