package api

import (
	"context"

	"github.com/lysyi3m/press-relay/app/database"
	"github.com/lysyi3m/press-relay/app/feed"
	"github.com/lysyi3m/press-relay/app/pipeline"
)

type RunnerInterface interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Summary, error)
}

var _ RunnerInterface = (*pipeline.Runner)(nil)

type RunHistoryInterface interface {
	ListRecent(ctx context.Context, limit int) ([]database.Run, error)
}

var _ RunHistoryInterface = (*database.RunRepository)(nil)

type Handler struct {
	runner      RunnerInterface
	history     RunHistoryInterface // nil when history is disabled
	configCache *feed.ConfigCache
}
