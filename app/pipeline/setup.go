package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lysyi3m/press-relay/app/cfg"
	"github.com/lysyi3m/press-relay/app/database"
	"github.com/lysyi3m/press-relay/app/feed"
	"github.com/lysyi3m/press-relay/app/identity"
	"github.com/lysyi3m/press-relay/app/notify"
	"github.com/lysyi3m/press-relay/app/source"
	"github.com/lysyi3m/press-relay/app/tasks"
)

// Service is a fully wired pipeline with the resources it owns.
type Service struct {
	Runner      *Runner
	ConfigCache *feed.ConfigCache
	History     database.RunRepositoryInterface // nil when history is disabled

	closers []func() error
}

func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Setup builds every component from a validated configuration. The sink
// is constructed before anything else touches the network.
func Setup(ctx context.Context, c *cfg.Cfg) (*Service, error) {
	svc := &Service{}

	sink, err := newSink(c)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s sink: %w", c.Sink, err)
	}

	svc.ConfigCache = feed.NewConfigCache(c.SourcesDir)
	if err := svc.ConfigCache.Run(); err != nil {
		return nil, fmt.Errorf("failed to load source definitions: %w", err)
	}
	sources := svc.ConfigCache.GetEnabledConfigs()
	if len(sources) == 0 {
		return nil, fmt.Errorf("no enabled sources in %s", c.SourcesDir)
	}

	fetcher := source.NewFetcher(&http.Client{}, c.UserAgent, c.FetchRate)

	adapters := make([]source.Adapter, 0, len(sources))
	for _, sourceConfig := range sources {
		adapter, err := source.New(sourceConfig, fetcher)
		if err != nil {
			return nil, fmt.Errorf("failed to create adapter for %s: %w", sourceConfig.Name, err)
		}
		adapters = append(adapters, adapter)
	}

	store, err := svc.newStore(ctx, c)
	if err != nil {
		svc.Close()
		return nil, err
	}
	sheet := identity.NewSheet(c.IdentifierSheetURL(), fetcher, sources, c.NameColumn)
	provider := identity.NewProvider(sheet, store, !c.NoPersist)

	pool := tasks.NewPool(c.WorkerCount, c.TaskTimeout)

	runnerCfg := RunnerConfig{
		Identifiers: provider,
		Sources:     sources,
		Aggregator:  NewAggregator(adapters, pool, c.FetchRetries),
		Pool:        pool,
		Renderer: notify.NewRenderer(notify.RendererConfig{
			StrictEmpty:      c.StrictEmpty,
			MaxMessages:      c.MaxMessages,
			DescriptionLimit: c.DescriptionLimit,
			Location:         c.DisplayLocation,
			Labels:           notify.LabelsFromSources(sources),
		}),
		Sink:         sink,
		ArtifactPath: c.ArtifactPath,
	}
	if !c.NoPreviews {
		runnerCfg.Previews = notify.NewPreviewExtractor(fetcher, 0)
	}

	if c.DBPath != "" {
		db, err := database.NewConnection(c.DBPath)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("failed to open run history: %w", err)
		}
		svc.closers = append(svc.closers, db.Close)
		svc.History = database.NewRunRepository(db)
		runnerCfg.History = svc.History
	}

	svc.Runner, err = NewRunner(runnerCfg)
	if err != nil {
		svc.Close()
		return nil, err
	}

	slog.Info("Pipeline ready", "sources", len(sources), "sink", sink.Name(), "workers", c.WorkerCount, "previews", !c.NoPreviews, "history", c.DBPath != "")

	return svc, nil
}

func newSink(c *cfg.Cfg) (notify.Sink, error) {
	switch c.Sink {
	case cfg.SinkSlack:
		return notify.NewSlackSender(notify.SlackSenderConfig{WebhookURL: c.SlackWebhookURL})
	case cfg.SinkTelegram:
		return notify.NewTelegramSender(notify.TelegramSenderConfig{
			Token:  c.TelegramBotToken,
			ChatID: c.TelegramChatID,
		})
	default:
		return nil, fmt.Errorf("unknown sink %q", c.Sink)
	}
}

func (s *Service) newStore(ctx context.Context, c *cfg.Cfg) (identity.Store, error) {
	if c.RedisAddr == "" {
		return identity.NewFileStore(c.IdentifierCache), nil
	}

	store, err := identity.NewRedisStore(ctx, c.RedisAddr, c.IdentifierSheetURL(), c.RedisTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect identifier cache: %w", err)
	}
	s.closers = append(s.closers, store.Close)
	return store, nil
}
