package notify

import (
	"context"
	"time"
)

// Preview is best-effort page metadata for an item link.
type Preview struct {
	Title       string
	Description string
	ImageURL    string
}

// Message is one rendered notification. Text carries Slack mrkdwn and
// Plain the same content without markup.
type Message struct {
	Source      string
	Label       string
	Name        string
	Title       string
	URL         string
	PublishedAt time.Time
	Description string
	ImageURL    string

	Text   string
	Plain  string
	Blocks []Block
}

type Block struct {
	Type      string      `json:"type"`
	Text      *TextObject `json:"text,omitempty"`
	Accessory *Accessory  `json:"accessory,omitempty"`
}

type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Accessory struct {
	Type     string `json:"type"`
	ImageURL string `json:"image_url"`
	AltText  string `json:"alt_text"`
}

// Sink delivers rendered messages.
type Sink interface {
	Name() string
	Send(ctx context.Context, message Message) error
}

// NameResolver maps an account to a display name.
type NameResolver interface {
	Lookup(source, accountID string) string
}
