package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/press-relay/app/database"
	"github.com/lysyi3m/press-relay/app/feed"
	"github.com/lysyi3m/press-relay/app/pipeline"
)

func NewHandler(runner RunnerInterface, history RunHistoryInterface, configCache *feed.ConfigCache) *Handler {
	return &Handler{
		runner:      runner,
		history:     history,
		configCache: configCache,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"history":   h.history != nil,
	}

	if h.configCache != nil {
		health["loaded_sources"] = h.configCache.GetConfigCount()
		health["enabled_sources"] = len(h.configCache.GetEnabledConfigs())
	}

	c.JSON(http.StatusOK, health)
}

// Run triggers one pipeline pass. Options come from the query string; a
// JSON body on POST overrides them.
func (h *Handler) Run(c *gin.Context) {
	opts, err := parseRunOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.runner.Run(c.Request.Context(), opts)
	status := pipeline.StatusCode(err)

	if summary == nil {
		message := http.StatusText(status)
		if err != nil {
			message = err.Error()
		}
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(status, summary)
}

func parseRunOptions(c *gin.Context) (pipeline.Options, error) {
	opts := pipeline.Options{WindowHours: pipeline.DefaultWindowHours}

	if raw := c.Query("window_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("window_hours must be an integer")
		}
		opts.WindowHours = hours
	}

	if raw := c.Query("refresh"); raw != "" {
		refresh, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("refresh must be a boolean")
		}
		opts.Refresh = refresh
	}

	if c.Request.Method == http.MethodPost && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			return opts, fmt.Errorf("invalid request body: %w", err)
		}
	}

	return opts, nil
}

type runView struct {
	ID               string          `json:"id"`
	CheckedAt        time.Time       `json:"checked_at"`
	WindowHours      int             `json:"window_hours"`
	Status           string          `json:"status"`
	Items            int             `json:"items"`
	Degraded         int             `json:"degraded"`
	MessagesRendered int             `json:"messages_rendered"`
	MessagesSent     int             `json:"messages_sent"`
	StaleIdentifiers bool            `json:"stale_identifiers"`
	Error            string          `json:"error,omitempty"`
	Summary          json.RawMessage `json:"summary,omitempty"`
}

func (h *Handler) APIListRuns(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run history is disabled"})
		return
	}

	limit := database.DefaultRunLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	runs, err := h.history.ListRecent(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		view := runView{
			ID:               run.ID,
			CheckedAt:        run.CheckedAt,
			WindowHours:      run.WindowHours,
			Status:           run.Status,
			Items:            run.Items,
			Degraded:         run.Degraded,
			MessagesRendered: run.MessagesRendered,
			MessagesSent:     run.MessagesSent,
			StaleIdentifiers: run.StaleIdentifiers,
			Error:            run.Error,
		}
		if json.Valid([]byte(run.Summary)) {
			view.Summary = json.RawMessage(run.Summary)
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  views,
		"total": len(views),
	})
}

type sourceView struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	URL         string `json:"url"`
	IDField     string `json:"id_field"`
	IDFormat    string `json:"id_format"`
	LinkPattern string `json:"link_pattern,omitempty"`
	IDGroup     int    `json:"id_group,omitempty"`
	Label       string `json:"label,omitempty"`
	Enabled     bool   `json:"enabled"`
	Timeout     int    `json:"timeout"`
}

func (h *Handler) APIGetSource(c *gin.Context) {
	name := c.Param("name")
	if name == "" || h.configCache == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	sourceConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Debug("Source configuration not found", "source", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	c.JSON(http.StatusOK, sourceView{
		Name:        sourceConfig.Name,
		Kind:        string(sourceConfig.Kind),
		URL:         sourceConfig.URL,
		IDField:     sourceConfig.IDField,
		IDFormat:    string(sourceConfig.IDFormat),
		LinkPattern: sourceConfig.LinkPattern,
		IDGroup:     sourceConfig.IDGroup,
		Label:       sourceConfig.Label,
		Enabled:     sourceConfig.Settings.Enabled,
		Timeout:     sourceConfig.Settings.Timeout,
	})
}
