package feed

import (
	"slices"
	"time"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run keeps items whose account is watched for their source and whose
// publish time falls inside [now-window, ...]. The result is ordered by
// publish time, newest first; equal timestamps keep their input order.
func (f *Filterer) Run(items []ContentItem, targets Targets, now time.Time, windowHours int) []ContentItem {
	allowed := f.buildAllowed(targets)
	windowStart := now.UTC().Add(-time.Duration(windowHours) * time.Hour)

	filtered := make([]ContentItem, 0, len(items))
	for _, item := range items {
		if !allowed[item.Source][item.AccountID] {
			continue
		}
		if item.PublishedAt.Before(windowStart) {
			continue
		}
		filtered = append(filtered, item)
	}

	slices.SortStableFunc(filtered, func(a, b ContentItem) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})

	return filtered
}

func (f *Filterer) buildAllowed(targets Targets) map[string]map[string]bool {
	allowed := make(map[string]map[string]bool, len(targets))
	for source, ids := range targets {
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		allowed[source] = set
	}
	return allowed
}
