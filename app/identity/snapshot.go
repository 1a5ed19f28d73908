package identity

import (
	"time"

	"github.com/lysyi3m/press-relay/app/feed"
)

// Record is one spreadsheet row: a display name and its identifiers keyed by column.
type Record struct {
	Name string            `json:"name"`
	IDs  map[string]string `json:"ids"`
}

// Snapshot is the resolved identifier state for one run. It is read-only
// once returned by the Provider.
type Snapshot struct {
	FetchedAt time.Time           `json:"fetched_at"`
	Records   []Record            `json:"records"`
	IDs       map[string][]string `json:"ids"` // id column -> ordered unique IDs
}

func (s *Snapshot) IDsFor(field string) []string {
	if s == nil {
		return nil
	}
	return s.IDs[field]
}

// MissingColumns reports which of columns the snapshot has no entry for.
// A column present with zero IDs is not missing.
func (s *Snapshot) MissingColumns(columns []string) []string {
	var missing []string
	for _, column := range columns {
		if s == nil {
			missing = append(missing, column)
			continue
		}
		if _, ok := s.IDs[column]; !ok {
			missing = append(missing, column)
		}
	}
	return missing
}

// Targets maps every source definition to the IDs of its column.
func (s *Snapshot) Targets(sources []*feed.Config) feed.Targets {
	targets := make(feed.Targets, len(sources))
	for _, source := range sources {
		ids := s.IDsFor(source.IDField)
		if ids == nil {
			ids = []string{}
		}
		targets[source.Name] = ids
	}
	return targets
}

// NameIndex resolves (source, account) pairs to display names.
type NameIndex struct {
	names map[string]map[string]string
}

// NewNameIndex builds the reverse index for the given source definitions.
// The first record naming an ID wins.
func NewNameIndex(snapshot *Snapshot, sources []*feed.Config) *NameIndex {
	index := &NameIndex{names: make(map[string]map[string]string, len(sources))}
	if snapshot == nil {
		return index
	}

	for _, source := range sources {
		names := make(map[string]string)
		for _, record := range snapshot.Records {
			if record.Name == "" {
				continue
			}
			id := record.IDs[source.IDField]
			if id == "" {
				continue
			}
			if _, ok := names[id]; !ok {
				names[id] = record.Name
			}
		}
		index.names[source.Name] = names
	}
	return index
}

// Lookup returns the display name, or accountID when unknown.
func (n *NameIndex) Lookup(source, accountID string) string {
	if n != nil {
		if name, ok := n.names[source][accountID]; ok {
			return name
		}
	}
	return accountID
}
