package cfg

import (
	"time"
)

const (
	SinkSlack    = "slack"
	SinkTelegram = "telegram"
)

type Cfg struct {
	// Sources
	SourcesDir   string
	WorkerCount  int
	FetchRate    float64
	FetchRetries int
	TaskTimeout  time.Duration
	UserAgent    string

	// Identifier sheet
	SheetID         string
	SheetGID        string
	SheetURL        string
	NameColumn      string
	IdentifierCache string
	RedisAddr       string
	RedisTTL        time.Duration
	NoPersist       bool

	// Delivery
	Sink             string
	SlackWebhookURL  string
	TelegramBotToken string
	TelegramChatID   int64

	// Rendering
	StrictEmpty      bool
	MaxMessages      int
	DescriptionLimit int
	NoPreviews       bool
	DisplayTimezone  string
	DisplayLocation  *time.Location

	// Outputs
	ArtifactPath string
	DBPath       string
	APIAccessKey string
	Port         string

	// Run control
	Once        bool
	WindowHours int
	Refresh     bool
	Debug       bool
	LogFormat   string
	Version     string
}
