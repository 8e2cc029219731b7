package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"overdub/internal/config"
	"overdub/internal/report"
)

const userAgent = "Overdub/0.1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyRunStarted(ctx context.Context, subtitlePath string, cueCount int) error
	NotifyRunCompleted(ctx context.Context, outputPath string, stats report.Stats, duration time.Duration) error
	NotifyRunFailed(ctx context.Context, err error, subtitlePath string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, subtitlePath string, cueCount int) error {
	data := payload{
		title:   "Overdub - Run Started",
		message: fmt.Sprintf("Dubbing %s (%d cues)", strings.TrimSpace(subtitlePath), cueCount),
		tags:    []string{"overdub", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, outputPath string, stats report.Stats, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if stats.Failed == 0 {
		title = "Overdub - Complete"
		message = fmt.Sprintf("Dubbed %d cues in %s\nOutput: %s", stats.Total, duration, strings.TrimSpace(outputPath))
	} else {
		title = "Overdub - Complete (with errors)"
		message = fmt.Sprintf("Dubbed %d cues (%d failed) in %s\nOutput: %s",
			stats.Total, stats.Failed, duration, strings.TrimSpace(outputPath))
	}

	data := payload{
		title:    title,
		message:  message,
		tags:     []string{"overdub", "run", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, err error, subtitlePath string) error {
	var builder strings.Builder
	builder.WriteString("Dubbing failed")
	if subtitlePath = strings.TrimSpace(subtitlePath); subtitlePath != "" {
		builder.WriteString(" for ")
		builder.WriteString(subtitlePath)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Overdub - Error",
		message:  builder.String(),
		tags:     []string{"overdub", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Overdub - Test",
		message:  "Notification system test",
		tags:     []string{"overdub", "test"},
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

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string, int) error { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, report.Stats, time.Duration) error {
	return nil
}
func (noopService) NotifyRunFailed(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
