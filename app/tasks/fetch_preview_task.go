package tasks

import (
	"context"

	"github.com/lysyi3m/press-relay/app/notify"
)

type PreviewFetcher interface {
	Fetch(ctx context.Context, pageURL string) (notify.Preview, error)
}

var _ PreviewFetcher = (*notify.PreviewExtractor)(nil)

// FetchPreviewTask enriches one item URL. Failures leave Preview empty.
type FetchPreviewTask struct {
	Task
	fetcher PreviewFetcher
	URL     string
	Preview notify.Preview
}

func NewFetchPreviewTask(fetcher PreviewFetcher, pageURL string) *FetchPreviewTask {
	return &FetchPreviewTask{
		Task:    NewTask(TaskTypeFetchPreview, pageURL, 0),
		fetcher: fetcher,
		URL:     pageURL,
	}
}

func (t *FetchPreviewTask) Execute(ctx context.Context) error {
	preview, err := t.fetcher.Fetch(ctx, t.URL)
	if err != nil {
		t.Preview = notify.Preview{}
		return err
	}
	t.Preview = preview
	return nil
}
