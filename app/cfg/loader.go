package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/lysyi3m/press-relay/app/identity"
	"github.com/lysyi3m/press-relay/app/notify"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Sources
	SourcesDir   string        `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source definition files"`
	WorkerCount  int           `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Maximum concurrent outbound fetches"`
	FetchRate    float64       `long:"fetch-rate" env:"FETCH_RATE" default:"4" description:"Outbound requests per second across all workers (0 disables limiting)"`
	FetchRetries int           `long:"fetch-retries" env:"FETCH_RETRIES" default:"1" description:"Retries per failed source fetch unit"`
	TaskTimeout  time.Duration `long:"task-timeout" env:"TASK_TIMEOUT" default:"30s" description:"Upper bound for a single fetch task"`
	UserAgent    string        `long:"user-agent" env:"USER_AGENT" description:"User agent for outbound requests (defaults to a browser agent)"`

	// Identifier sheet
	SheetID         string        `long:"sheet-id" env:"SHEET_ID" description:"Google Sheets document ID holding watched identifiers"`
	SheetGID        string        `long:"sheet-gid" env:"SHEET_GID" default:"0" description:"Worksheet gid within the document"`
	SheetURL        string        `long:"sheet-url" env:"SHEET_URL" description:"Direct CSV URL (overrides --sheet-id)"`
	NameColumn      string        `long:"name-column" env:"NAME_COLUMN" default:"name" description:"Sheet column holding display names"`
	IdentifierCache string        `long:"identifier-cache" env:"IDENTIFIER_CACHE" default:"./data/identifiers.json" description:"File caching the last identifier snapshot"`
	RedisAddr       string        `long:"redis-addr" env:"REDIS_ADDR" description:"Cache identifier snapshots in Redis instead of a file"`
	RedisTTL        time.Duration `long:"redis-ttl" env:"REDIS_TTL" default:"24h" description:"Expiry of the Redis snapshot"`
	NoPersist       bool          `long:"no-persist" env:"NO_PERSIST" description:"Never write the identifier cache"`

	// Delivery
	Sink             string `long:"sink" env:"SINK" default:"slack" choice:"slack" choice:"telegram" description:"Notification destination"`
	SlackWebhookURL  string `long:"slack-webhook-url" env:"SLACK_WEBHOOK_URL" description:"Slack incoming webhook URL"`
	TelegramBotToken string `long:"telegram-bot-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token"`
	TelegramChatID   int64  `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat receiving notifications"`

	// Rendering
	StrictEmpty      bool   `long:"strict-empty" env:"STRICT_EMPTY" description:"Send nothing when no items matched"`
	MaxMessages      int    `long:"max-messages" env:"MAX_MESSAGES" default:"0" description:"Cap on messages per run (0 = unlimited)"`
	DescriptionLimit int    `long:"description-limit" env:"DESCRIPTION_LIMIT" default:"200" description:"Maximum preview description length in characters"`
	NoPreviews       bool   `long:"no-previews" env:"NO_PREVIEWS" description:"Skip fetching link previews"`
	DisplayTimezone  string `long:"display-timezone" env:"DISPLAY_TIMEZONE" default:"Asia/Tokyo" description:"Timezone for timestamps in messages"`

	// Outputs
	ArtifactPath string `long:"artifact-path" env:"ARTIFACT_PATH" description:"Write each run's batch as JSON to this path"`
	DBPath       string `long:"db-path" env:"DB_PATH" description:"SQLite file for run history (empty disables history)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`

	// Run control
	Once        bool   `long:"once" env:"ONCE" description:"Run the pipeline once and exit instead of serving HTTP"`
	WindowHours int    `long:"window-hours" env:"WINDOW_HOURS" default:"1" description:"Recency window for --once runs"`
	Refresh     bool   `long:"refresh" env:"REFRESH" description:"Force an identifier refresh for --once runs"`
	Debug       bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFormat   string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
}

// Load reads .env, then flags and environment. It returns nil, nil when
// help was requested.
func Load(args []string) (*Cfg, error) {
	// Missing .env is fine; variables already set win.
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		SourcesDir:       raw.SourcesDir,
		WorkerCount:      raw.WorkerCount,
		FetchRate:        raw.FetchRate,
		FetchRetries:     raw.FetchRetries,
		TaskTimeout:      raw.TaskTimeout,
		UserAgent:        raw.UserAgent,
		SheetID:          raw.SheetID,
		SheetGID:         raw.SheetGID,
		SheetURL:         raw.SheetURL,
		NameColumn:       raw.NameColumn,
		IdentifierCache:  raw.IdentifierCache,
		RedisAddr:        raw.RedisAddr,
		RedisTTL:         raw.RedisTTL,
		NoPersist:        raw.NoPersist,
		Sink:             raw.Sink,
		SlackWebhookURL:  raw.SlackWebhookURL,
		TelegramBotToken: raw.TelegramBotToken,
		TelegramChatID:   raw.TelegramChatID,
		StrictEmpty:      raw.StrictEmpty,
		MaxMessages:      raw.MaxMessages,
		DescriptionLimit: raw.DescriptionLimit,
		NoPreviews:       raw.NoPreviews,
		DisplayTimezone:  raw.DisplayTimezone,
		ArtifactPath:     raw.ArtifactPath,
		DBPath:           raw.DBPath,
		APIAccessKey:     raw.APIAccessKey,
		Port:             raw.Port,
		Once:             raw.Once,
		WindowHours:      raw.WindowHours,
		Refresh:          raw.Refresh,
		Debug:            raw.Debug,
		LogFormat:        raw.LogFormat,
		Version:          GetVersion(),
	}

	return cfg, nil
}

// Validate checks ranges and delivery credentials before any work starts.
func (c *Cfg) Validate() error {
	var errs []error

	if c.SourcesDir == "" {
		errs = append(errs, errors.New("sources directory is required"))
	}
	if c.WorkerCount < 1 || c.WorkerCount > 64 {
		errs = append(errs, fmt.Errorf("worker count must be between 1 and 64, got %d", c.WorkerCount))
	}
	if c.FetchRate < 0 {
		errs = append(errs, fmt.Errorf("fetch rate must not be negative, got %v", c.FetchRate))
	}
	if c.FetchRetries < 0 || c.FetchRetries > 5 {
		errs = append(errs, fmt.Errorf("fetch retries must be between 0 and 5, got %d", c.FetchRetries))
	}
	if c.TaskTimeout <= 0 {
		errs = append(errs, fmt.Errorf("task timeout must be positive, got %s", c.TaskTimeout))
	}
	if c.WindowHours < 1 || c.WindowHours > 168 {
		errs = append(errs, fmt.Errorf("window hours must be between 1 and 168, got %d", c.WindowHours))
	}
	if c.MaxMessages < 0 {
		errs = append(errs, fmt.Errorf("max messages must not be negative, got %d", c.MaxMessages))
	}
	if c.DescriptionLimit < 1 {
		errs = append(errs, fmt.Errorf("description limit must be positive, got %d", c.DescriptionLimit))
	}

	if c.SheetURL == "" && c.SheetID == "" {
		errs = append(errs, errors.New("identifier sheet is required: set --sheet-id or --sheet-url"))
	}

	switch c.Sink {
	case SinkSlack:
		if err := notify.ValidateWebhookURL(c.SlackWebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("slack sink: %w", err))
		}
	case SinkTelegram:
		if c.TelegramBotToken == "" {
			errs = append(errs, errors.New("telegram sink: bot token is required"))
		}
		if c.TelegramChatID == 0 {
			errs = append(errs, errors.New("telegram sink: chat id is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sink %q", c.Sink))
	}

	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid display timezone %q: %w", c.DisplayTimezone, err))
	} else {
		c.DisplayLocation = loc
	}

	return errors.Join(errs...)
}

// IdentifierSheetURL returns the CSV export location of the identifier sheet.
func (c *Cfg) IdentifierSheetURL() string {
	if c.SheetURL != "" {
		return c.SheetURL
	}
	return identity.SheetURL(c.SheetID, c.SheetGID)
}
