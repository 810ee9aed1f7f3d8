package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shrinkray/internal/config"
)

const userAgent = "Shrinkray/0.1.0"

// Service defines the notification surface exposed to the orchestrator.
type Service interface {
	NotifyBatchStarted(ctx context.Context, count int) error
	NotifyBatchCompleted(ctx context.Context, succeeded, failed, skipped int, bytesSaved int64, duration time.Duration) error
	NotifySessionPaused(ctx context.Context, reason string) error
	NotifySessionResumed(ctx context.Context) error
	NotifyJobFailed(ctx context.Context, title, category string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	endpoint := topic
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://ntfy.sh/" + endpoint
	}

	return &ntfyService{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: timeout},
		batchEvents: cfg.BatchEvents,
		pauseEvents: cfg.PauseEvents,
		errorEvents: cfg.ErrorEvents,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	batchEvents bool
	pauseEvents bool
	errorEvents bool
}

func (n *ntfyService) NotifyBatchStarted(ctx context.Context, count int) error {
	if !n.batchEvents {
		return nil
	}
	data := payload{
		title:   "Shrinkray - Batch Started",
		message: fmt.Sprintf("Started converting %d videos", count),
		tags:    []string{"shrinkray", "batch", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, succeeded, failed, skipped int, bytesSaved int64, duration time.Duration) error {
	if !n.batchEvents {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "Shrinkray - Batch Complete"
		message = fmt.Sprintf("Batch complete: %d converted in %s, %s saved", succeeded, duration, formatBytes(bytesSaved))
	} else {
		title = "Shrinkray - Batch Complete (with errors)"
		message = fmt.Sprintf("Batch complete: %d converted, %d failed in %s, %s saved", succeeded, failed, duration, formatBytes(bytesSaved))
	}
	if skipped > 0 {
		message = fmt.Sprintf("%s (%d skipped)", message, skipped)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"shrinkray", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySessionPaused(ctx context.Context, reason string) error {
	if !n.pauseEvents {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "resource pressure"
	}
	data := payload{
		title:    "Shrinkray - Paused",
		message:  fmt.Sprintf("Session paused: %s", reason),
		tags:     []string{"shrinkray", "session", "paused"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySessionResumed(ctx context.Context) error {
	if !n.pauseEvents {
		return nil
	}
	data := payload{
		title:   "Shrinkray - Resumed",
		message: "Session resumed, admission reopened",
		tags:    []string{"shrinkray", "session", "resumed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, title, category string) error {
	if !n.errorEvents {
		return nil
	}
	title = strings.TrimSpace(title)
	category = strings.TrimSpace(category)
	if category == "" {
		category = "unknown"
	}
	data := payload{
		title:    "Shrinkray - Conversion Failed",
		message:  fmt.Sprintf("Failed: %s (%s)", title, category),
		tags:     []string{"shrinkray", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Shrinkray - Test",
		message:  "Notification system test",
		tags:     []string{"shrinkray", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for n := n / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

type noopService struct{}

func (noopService) NotifyBatchStarted(context.Context, int) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, int, int64, time.Duration) error {
	return nil
}
func (noopService) NotifySessionPaused(context.Context, string) error { return nil }
func (noopService) NotifySessionResumed(context.Context) error        { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
