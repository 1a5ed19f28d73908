package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/press-relay/app/feed"
	"github.com/lysyi3m/press-relay/app/source"
	"github.com/lysyi3m/press-relay/app/tasks"
)

// SourceStats summarizes one source's contribution to a run.
type SourceStats struct {
	Source   string    `json:"source"`
	Kind     feed.Kind `json:"kind"`
	Targets  int       `json:"targets"`
	Units    int       `json:"units"`
	Degraded int       `json:"degraded"`
	Fetched  int       `json:"fetched"`
	Matched  int       `json:"matched"`
	Errors   []string  `json:"errors,omitempty"`
}

type Aggregator struct {
	adapters   []source.Adapter
	pool       tasks.PoolInterface
	filterer   *feed.Filterer
	maxRetries int
	now        func() time.Time
}

// NewAggregator runs adapters in name order on the pool. maxRetries applies
// to each fetch unit.
func NewAggregator(adapters []source.Adapter, pool tasks.PoolInterface, maxRetries int) *Aggregator {
	sorted := slices.Clone(adapters)
	slices.SortFunc(sorted, func(a, b source.Adapter) int {
		return strings.Compare(a.Name(), b.Name())
	})

	return &Aggregator{
		adapters:   sorted,
		pool:       pool,
		filterer:   feed.NewFilterer(),
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Run fetches every unit, then filters the concatenated items against
// targets and the recency window. Failed units contribute nothing.
func (a *Aggregator) Run(ctx context.Context, targets feed.Targets, windowHours int) (*feed.RunBatch, []SourceStats) {
	stats := make([]SourceStats, len(a.adapters))
	owners := make([]int, 0)
	units := make([]*tasks.FetchSourceTask, 0)

	for i, adapter := range a.adapters {
		ids := targets[adapter.Name()]
		stats[i] = SourceStats{
			Source:  adapter.Name(),
			Kind:    adapter.Kind(),
			Targets: len(ids),
		}

		unitTargets := adapter.Targets(ids)
		for _, target := range unitTargets {
			units = append(units, tasks.NewFetchSourceTask(adapter, target, a.maxRetries))
			owners = append(owners, i)
		}
		stats[i].Units = len(unitTargets)
	}

	batch := make([]tasks.TaskInterface, len(units))
	for i, unit := range units {
		batch[i] = unit
	}
	errs := a.pool.Run(ctx, batch)

	var items []feed.ContentItem
	for i, unit := range units {
		stat := &stats[owners[i]]
		if errs[i] != nil {
			stat.Degraded++
			stat.Errors = append(stat.Errors, errs[i].Error())
			unitsDegraded.WithLabelValues(stat.Source).Inc()
			slog.Warn("Source unit degraded", "source", stat.Source, "target", unit.Target, "error", errs[i])
			continue
		}
		stat.Fetched += len(unit.Items)
		items = append(items, unit.Items...)
	}

	now := a.now().UTC()
	matched := a.filterer.Run(items, targets, now, windowHours)

	for _, item := range matched {
		for i := range stats {
			if stats[i].Source == item.Source {
				stats[i].Matched++
				break
			}
		}
	}
	for _, stat := range stats {
		if stat.Matched > 0 {
			itemsMatched.WithLabelValues(stat.Source).Add(float64(stat.Matched))
		}
		slog.Info("Source aggregated", "source", stat.Source, "units", stat.Units, "degraded", stat.Degraded, "fetched", stat.Fetched, "matched", stat.Matched)
	}

	return &feed.RunBatch{
		CheckedAt:   now,
		WindowHours: windowHours,
		TargetIDs:   targets,
		Items:       matched,
	}, stats
}
