package feed

import (
	"net/url"
	"strings"
)

// NormalizeNumericID strips leading zeros. An all-zero ID becomes "0".
func NormalizeNumericID(value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return ""
	}
	trimmed := strings.TrimLeft(raw, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// NormalizeSlugID reduces profile URLs ("https://note.com/user/rss",
// "note.com/@user") to the first path segment and strips a leading "@".
func NormalizeSlugID(value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return ""
	}

	if strings.Contains(raw, "://") || looksLikeHostPath(raw) {
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		path := strings.Trim(u.Path, "/")
		if path == "" {
			return ""
		}
		raw, _, _ = strings.Cut(path, "/")
	}

	return strings.TrimLeft(raw, "@")
}

func looksLikeHostPath(value string) bool {
	host, _, found := strings.Cut(value, "/")
	return found && strings.Contains(host, ".")
}

func NormalizeID(format IDFormat, value string) string {
	switch format {
	case IDFormatNumeric:
		return NormalizeNumericID(value)
	case IDFormatSlug:
		return NormalizeSlugID(value)
	default:
		return strings.TrimSpace(value)
	}
}
