package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultSlackTimeout = 10 * time.Second
	slackMaxRetries     = 2
	slackUserAgent      = "press-relay/1"
)

var _ Sink = (*SlackSender)(nil)

type slackPayload struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// SlackSender posts messages to a Slack incoming webhook.
type SlackSender struct {
	httpClient *http.Client
	url        string
	retryDelay func(attempt int) time.Duration
}

type SlackSenderConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// NewSlackSender returns an error if the webhook URL is missing or invalid.
func NewSlackSender(cfg SlackSenderConfig) (*SlackSender, error) {
	if err := ValidateWebhookURL(cfg.WebhookURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultSlackTimeout
	}

	return &SlackSender{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.WebhookURL,
		retryDelay: func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
	}, nil
}

func ValidateWebhookURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("webhook URL must include a host")
	}
	return nil
}

func (s *SlackSender) Name() string { return "slack" }

// Send posts one message, retrying transient failures (5xx, connection errors).
// When Slack rejects the blocks with a 4xx, for example because it cannot
// fetch an image accessory, the message is resent once as plain text.
func (s *SlackSender) Send(ctx context.Context, message Message) error {
	err := s.post(ctx, slackPayload{Text: message.Text, Blocks: message.Blocks})
	if err != nil && len(message.Blocks) > 0 && isClientError(err) {
		slog.Warn("Slack rejected message blocks, resending as text", "url", RedactURL(s.url), "error", err)
		sinkSendTotal.WithLabelValues(s.Name(), "fallback").Inc()

		if fallbackErr := s.post(ctx, slackPayload{Text: message.Text}); fallbackErr != nil {
			err = fmt.Errorf("slack rejected blocks (%v) and text fallback failed: %w", err, fallbackErr)
		} else {
			err = nil
		}
	}

	if err != nil {
		sinkSendTotal.WithLabelValues(s.Name(), "error").Inc()
		return err
	}
	return nil
}

func (s *SlackSender) post(ctx context.Context, payload slackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	var lastErr error
	for attempt := range slackMaxRetries + 1 {
		if attempt > 0 {
			timer := time.NewTimer(s.retryDelay(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
			sinkSendTotal.WithLabelValues(s.Name(), "retry").Inc()
		}

		lastErr = s.doPost(ctx, body)
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		slog.Debug("Slack send transient failure, will retry", "attempt", attempt+1, "url", RedactURL(s.url), "error", lastErr)
	}

	return fmt.Errorf("slack send failed after %d attempts: %w", slackMaxRetries+1, lastErr)
}

func (s *SlackSender) doPost(ctx context.Context, body []byte) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return &webhookError{err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", slackUserAgent)

	resp, err := s.httpClient.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		sinkSendDuration.WithLabelValues(s.Name(), "error").Observe(duration)
		return &webhookError{err: err, retryable: ctx.Err() == nil}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		sinkSendTotal.WithLabelValues(s.Name(), "success").Inc()
		sinkSendDuration.WithLabelValues(s.Name(), "success").Observe(duration)
		return nil
	}

	sinkSendDuration.WithLabelValues(s.Name(), "error").Observe(duration)
	return &webhookError{
		err:        fmt.Errorf("slack webhook returned HTTP %d", resp.StatusCode),
		statusCode: resp.StatusCode,
		retryable:  resp.StatusCode >= 500,
	}
}

type webhookError struct {
	err        error
	statusCode int
	retryable  bool
}

func (e *webhookError) Error() string { return e.err.Error() }
func (e *webhookError) Unwrap() error { return e.err }

func isClientError(err error) bool {
	var we *webhookError
	if errors.As(err, &we) {
		return we.statusCode >= 400 && we.statusCode < 500
	}
	return false
}

func isRetryable(err error) bool {
	var we *webhookError
	if errors.As(err, &we) {
		return we.retryable
	}
	return true
}

// RedactURL masks the secret path of a webhook URL for logging.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.User = nil
	u.RawQuery = ""
	if u.Path != "" {
		u.Path = "/REDACTED"
	}
	return u.String()
}
