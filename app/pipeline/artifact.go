package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/press-relay/app/feed"
)

type artifact struct {
	RunID       string             `json:"run_id"`
	CheckedAt   time.Time          `json:"checked_at"`
	WindowHours int                `json:"window_hours"`
	TargetIDs   feed.Targets       `json:"target_ids"`
	Count       int                `json:"count"`
	Items       []feed.ContentItem `json:"items"`
}

// WriteArtifact stores the batch as JSON at path. A read-only destination
// is logged and skipped, returning written=false with no error.
func WriteArtifact(path, runID string, batch *feed.RunBatch) (bool, error) {
	items := batch.Items
	if items == nil {
		items = []feed.ContentItem{}
	}

	data, err := json.MarshalIndent(artifact{
		RunID:       runID,
		CheckedAt:   batch.CheckedAt.UTC(),
		WindowHours: batch.WindowHours,
		TargetIDs:   batch.TargetIDs,
		Count:       len(items),
		Items:       items,
	}, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to encode artifact: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			if isReadOnly(err) {
				slog.Warn("Artifact directory not writable, skipping", "path", path, "error", err)
				return false, nil
			}
			return false, fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		if isReadOnly(err) {
			slog.Warn("Artifact path not writable, skipping", "path", path, "error", err)
			return false, nil
		}
		return false, fmt.Errorf("failed to write artifact: %w", err)
	}

	return true, nil
}

func isReadOnly(err error) bool {
	return errors.Is(err, syscall.EROFS) ||
		errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.EACCES) ||
		errors.Is(err, os.ErrPermission)
}
