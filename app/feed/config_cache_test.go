package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCacheLoadSitemapConfig(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "prtimes", `
kind: sitemap
url: "https://prtimes.jp/sitemap-news.xml"
id_field: prtimes_id
id_format: numeric
link_pattern: '/p/(\d+)\.(\d+)\.html'
id_group: 2
label: "PR TIMES"

settings:
  enabled: true
  timeout: 10
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 config, got %d", configCache.GetConfigCount())
	}

	sourceConfig, err := configCache.GetConfig("prtimes")
	if err != nil {
		t.Fatal(err)
	}

	if sourceConfig.Name != "prtimes" {
		t.Errorf("Expected name 'prtimes', got '%s'", sourceConfig.Name)
	}
	if sourceConfig.Kind != KindSitemap {
		t.Errorf("Expected kind 'sitemap', got '%s'", sourceConfig.Kind)
	}
	if sourceConfig.IDGroup != 2 {
		t.Errorf("Expected id group 2, got %d", sourceConfig.IDGroup)
	}
	if sourceConfig.IDFormat != IDFormatNumeric {
		t.Errorf("Expected numeric id format, got '%s'", sourceConfig.IDFormat)
	}
	if sourceConfig.Timeout() != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", sourceConfig.Timeout())
	}
}

func TestConfigCacheLoadConfigWithDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "note", `
kind: feed
url: "https://note.com/{id}/rss"
id_field: note_id
settings:
  enabled: true
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	sourceConfig, err := configCache.GetConfig("note")
	if err != nil {
		t.Fatal(err)
	}

	if sourceConfig.Settings.Timeout != 15 {
		t.Errorf("Expected default timeout 15, got %d", sourceConfig.Settings.Timeout)
	}
	if sourceConfig.IDFormat != IDFormatRaw {
		t.Errorf("Expected default id format 'raw', got '%s'", sourceConfig.IDFormat)
	}
}

func TestConfigCacheValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{
			name:    "missing url",
			content: "kind: feed\nid_field: note_id\n",
			errPart: "source URL is required",
		},
		{
			name:    "feed without placeholder",
			content: "kind: feed\nurl: https://note.com/rss\nid_field: note_id\n",
			errPart: "placeholder",
		},
		{
			name:    "unknown kind",
			content: "kind: atom\nurl: https://example.com\nid_field: id\n",
			errPart: "invalid source kind",
		},
		{
			name:    "sitemap without pattern",
			content: "kind: sitemap\nurl: https://example.com/sitemap.xml\nid_field: id\n",
			errPart: "link pattern is required",
		},
		{
			name:    "group out of range",
			content: "kind: sitemap\nurl: https://example.com/sitemap.xml\nid_field: id\nlink_pattern: '/p/(\\d+)'\nid_group: 3\n",
			errPart: "out of range",
		},
		{
			name:    "bad id format",
			content: "kind: feed\nurl: https://note.com/{id}/rss\nid_field: note_id\nid_format: hex\n",
			errPart: "invalid id format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeSource(t, tempDir, "broken", tt.content)

			err := NewConfigCache(tempDir).Run()
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("Expected error containing '%s', got: %v", tt.errPart, err)
			}
		})
	}
}

func TestConfigCacheEnabledConfigsSorted(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "x", "kind: feed\nurl: https://nitter.net/{id}/rss\nid_field: x_id\nsettings:\n  enabled: true\n")
	writeSource(t, tempDir, "note", "kind: feed\nurl: https://note.com/{id}/rss\nid_field: note_id\nsettings:\n  enabled: true\n")
	writeSource(t, tempDir, "off", "kind: feed\nurl: https://example.com/{id}/rss\nid_field: off_id\nsettings:\n  enabled: false\n")

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	enabled := configCache.GetEnabledConfigs()
	if len(enabled) != 2 {
		t.Fatalf("Expected 2 enabled configs, got %d", len(enabled))
	}
	if enabled[0].Name != "note" || enabled[1].Name != "x" {
		t.Errorf("Expected [note x], got [%s %s]", enabled[0].Name, enabled[1].Name)
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "missing"))
	if err := configCache.Run(); err != nil {
		t.Errorf("Expected no error for missing directory, got: %v", err)
	}
	if configCache.GetConfigCount() != 0 {
		t.Errorf("Expected 0 configs, got %d", configCache.GetConfigCount())
	}
}
