package notify

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/press-relay/app/feed"
)

const (
	DefaultDescriptionLimit = 200
	untitled                = "(untitled)"
	displayTimeLayout       = "2006-01-02 15:04 MST"
)

type RendererConfig struct {
	StrictEmpty      bool // render nothing instead of a "no updates" message
	MaxMessages      int  // 0 means unlimited
	DescriptionLimit int
	Location         *time.Location
	Labels           map[string]string // host -> tag
}

type Renderer struct {
	cfg RendererConfig
}

func NewRenderer(cfg RendererConfig) *Renderer {
	if cfg.DescriptionLimit <= 0 {
		cfg.DescriptionLimit = DefaultDescriptionLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Renderer{cfg: cfg}
}

// LabelsFromSources maps each source's host to its label.
func LabelsFromSources(sources []*feed.Config) map[string]string {
	labels := make(map[string]string, len(sources))
	for _, s := range sources {
		u, err := url.Parse(strings.ReplaceAll(s.URL, feed.IDPlaceholder, "id"))
		if err != nil || u.Hostname() == "" {
			continue
		}
		label := s.Label
		if label == "" {
			label = s.Name
		}
		labels[trimWWW(u.Hostname())] = label
	}
	return labels
}

// Run renders one message per item, in batch order.
func (r *Renderer) Run(batch *feed.RunBatch, names NameResolver, previews map[string]Preview) []Message {
	if batch.Empty() {
		if r.cfg.StrictEmpty {
			return nil
		}
		return []Message{r.renderEmpty(batch)}
	}

	items := r.Selected(batch)
	messages := make([]Message, 0, len(items))
	for _, item := range items {
		messages = append(messages, r.renderItem(item, names, previews[item.URL]))
	}
	return messages
}

// Selected returns the items Run will render, after the message cap.
func (r *Renderer) Selected(batch *feed.RunBatch) []feed.ContentItem {
	items := batch.Items
	if r.cfg.MaxMessages > 0 && len(items) > r.cfg.MaxMessages {
		items = items[:r.cfg.MaxMessages]
	}
	return items
}

func (r *Renderer) renderItem(item feed.ContentItem, names NameResolver, preview Preview) Message {
	name := item.AccountID
	if names != nil {
		name = names.Lookup(item.Source, item.AccountID)
	}

	title := item.Title
	if title == "" {
		title = preview.Title
	}
	if title == "" {
		title = untitled
	}

	message := Message{
		Source:      item.Source,
		Label:       r.LabelFor(item.URL),
		Name:        name,
		Title:       title,
		URL:         item.URL,
		PublishedAt: item.PublishedAt,
		Description: truncateString(collapseWhitespace(preview.Description), r.cfg.DescriptionLimit),
		ImageURL:    preview.ImageURL,
	}

	var text strings.Builder
	fmt.Fprintf(&text, "*[%s]* %s\n", escapeMrkdwn(message.Label), escapeMrkdwn(message.Name))
	fmt.Fprintf(&text, "*<%s|%s>*\n", message.URL, escapeMrkdwn(message.Title))
	fmt.Fprintf(&text, "Published: %s", r.formatTime(message.PublishedAt))
	if message.Description != "" {
		fmt.Fprintf(&text, "\n>%s", escapeMrkdwn(message.Description))
	}
	message.Text = text.String()

	plain := []string{
		fmt.Sprintf("[%s] %s", message.Label, message.Name),
		message.Title,
		"Published: " + r.formatTime(message.PublishedAt),
		message.URL,
	}
	if message.Description != "" {
		plain = append(plain, message.Description)
	}
	message.Plain = strings.Join(plain, "\n")

	section := Block{
		Type: "section",
		Text: &TextObject{Type: "mrkdwn", Text: message.Text},
	}
	if message.ImageURL != "" {
		section.Accessory = &Accessory{Type: "image", ImageURL: message.ImageURL, AltText: title}
	}
	message.Blocks = []Block{section}

	return message
}

func (r *Renderer) renderEmpty(batch *feed.RunBatch) Message {
	summary := fmt.Sprintf("No new posts in the last %d hour(s).\nChecked at: %s (watching %d IDs)",
		batch.WindowHours, r.formatTime(batch.CheckedAt), batch.TargetIDs.Count())
	text := ":zzz: " + summary

	return Message{
		PublishedAt: batch.CheckedAt,
		Text:        text,
		Plain:       summary,
		Blocks: []Block{{
			Type: "section",
			Text: &TextObject{Type: "mrkdwn", Text: text},
		}},
	}
}

// LabelFor returns the tag of the source owning the URL's host, or the host itself.
func (r *Renderer) LabelFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "link"
	}
	host := trimWWW(u.Hostname())
	for known, label := range r.cfg.Labels {
		if host == known || strings.HasSuffix(host, "."+known) {
			return label
		}
	}
	return host
}

func (r *Renderer) formatTime(t time.Time) string {
	return t.In(r.cfg.Location).Format(displayTimeLayout)
}

func trimWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeMrkdwn(s string) string {
	return mrkdwnEscaper.Replace(s)
}
