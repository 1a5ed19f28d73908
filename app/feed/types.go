package feed

import (
	"time"
)

type Kind string

const (
	KindSitemap Kind = "sitemap"
	KindFeed    Kind = "feed"
)

// IDFormat selects how identifiers of a source are normalized on both the
// parse side and the identifier sheet side.
type IDFormat string

const (
	IDFormatNumeric IDFormat = "numeric"
	IDFormatSlug    IDFormat = "slug"
	IDFormatRaw     IDFormat = "raw"
)

// Normalized content types

type ContentItem struct {
	Source      string    `json:"source"`
	Kind        Kind      `json:"source_kind"`
	AccountID   string    `json:"account_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"` // always UTC
}

// Targets maps a source name to the account IDs watched for it.
type Targets map[string][]string

func (t Targets) Count() int {
	total := 0
	for _, ids := range t {
		total += len(ids)
	}
	return total
}

type RunBatch struct {
	CheckedAt   time.Time
	WindowHours int
	TargetIDs   Targets
	Items       []ContentItem
}

func (b *RunBatch) Empty() bool {
	return len(b.Items) == 0
}

// Configuration types

type Config struct {
	Name        string         // Derived from filename (without .yml extension)
	Kind        Kind           `yaml:"kind"`
	URL         string         `yaml:"url"` // feed kind: template containing {id}
	IDField     string         `yaml:"id_field"`
	IDFormat    IDFormat       `yaml:"id_format"`
	LinkPattern string         `yaml:"link_pattern"`
	IDGroup     int            `yaml:"id_group"`
	Label       string         `yaml:"label"`
	Settings    ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled bool `yaml:"enabled"`
	Timeout int  `yaml:"timeout"` // seconds
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}
