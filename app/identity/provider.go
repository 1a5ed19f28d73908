package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// SnapshotSource fetches a fresh snapshot from the identifier sheet.
// Columns names the id columns every snapshot it returns carries.
type SnapshotSource interface {
	Fetch(ctx context.Context) (*Snapshot, error)
	Columns() []string
}

var _ SnapshotSource = (*Sheet)(nil)

type Resolution struct {
	Snapshot  *Snapshot
	FromCache bool
	Stale     bool // fetch failed and a previously cached snapshot was used
}

type Provider struct {
	source  SnapshotSource
	store   Store
	persist bool
}

// NewProvider wires a sheet to an optional store. With persist=false the
// store is read but never written.
func NewProvider(source SnapshotSource, store Store, persist bool) *Provider {
	return &Provider{
		source:  source,
		store:   store,
		persist: persist,
	}
}

// Resolve returns the cached snapshot unless refresh is set, nothing is
// cached, or the cache lacks a column a configured source reads. If fetching
// fails, a cached snapshot is used instead and marked stale; without one the
// error is returned.
func (p *Provider) Resolve(ctx context.Context, refresh bool) (*Resolution, error) {
	if !refresh {
		if snapshot, ok := p.loadCached(ctx); ok {
			missing := snapshot.MissingColumns(p.source.Columns())
			if len(missing) == 0 {
				return &Resolution{Snapshot: snapshot, FromCache: true}, nil
			}
			slog.Info("Cached identifier snapshot predates configured sources, refetching", "missing_columns", missing)
		}
	}

	snapshot, err := p.source.Fetch(ctx)
	if err != nil {
		if cached, ok := p.loadCached(ctx); ok {
			slog.Warn("Identifier refresh failed, using cached snapshot", "fetched_at", cached.FetchedAt, "error", err)
			return &Resolution{Snapshot: cached, FromCache: true, Stale: true}, nil
		}
		return nil, fmt.Errorf("failed to resolve identifiers: %w", err)
	}

	if p.persist && p.store != nil {
		if err := p.store.Save(ctx, snapshot); err != nil {
			slog.Warn("Failed to persist identifier snapshot", "error", err)
		}
	}

	slog.Debug("Identifier snapshot fetched", "records", len(snapshot.Records))

	return &Resolution{Snapshot: snapshot}, nil
}

func (p *Provider) loadCached(ctx context.Context) (*Snapshot, bool) {
	if p.store == nil {
		return nil, false
	}

	snapshot, err := p.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			slog.Warn("Failed to load cached identifier snapshot", "error", err)
		}
		return nil, false
	}
	return snapshot, true
}
