package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vhxdl/internal/config"
)

const userAgent = "vhxdl/0.1"

// Event identifies a notification type.
type Event string

const (
	EventRunCompleted      Event = "run_completed"
	EventRunFailed         Event = "run_failed"
	EventDownloadCompleted Event = "download_completed"
	EventTest              Event = "test"
)

// Payload carries event fields. Keys used:
//
//	run_completed:      planned, downloaded, skipped, missing (int), duration (time.Duration)
//	run_failed:         error (string or error), trigger (string)
//	download_completed: label, path (string)
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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
		enabled: map[Event]bool{
			EventRunCompleted:      cfg.Notifications.RunCompleted,
			EventRunFailed:         cfg.Notifications.Errors,
			EventDownloadCompleted: cfg.Notifications.Downloads,
			EventTest:              true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// format renders an event. It reports false for events that should not be
// sent, such as a scheduled run that found nothing new.
func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunCompleted:
		downloaded := payload.count("downloaded")
		missing := payload.count("missing")
		if downloaded == 0 && missing == 0 {
			return message{}, false
		}
		body := fmt.Sprintf("Downloaded %d of %d (%d already present) in %s",
			downloaded, payload.count("planned"), payload.count("skipped"), formatDuration(payload.elapsed("duration")))
		if missing > 0 {
			body += fmt.Sprintf("\n%d without a downloadable stream", missing)
		}
		return message{
			title: "vhxdl - Run Complete",
			body:  body,
			tags:  []string{"vhxdl", "run", "completed"},
		}, true
	case EventRunFailed:
		body := "Run failed: " + orUnknown(payload.text("error"))
		if trigger := payload.text("trigger"); trigger != "" {
			body = fmt.Sprintf("Run (%s) failed: %s", trigger, orUnknown(payload.text("error")))
		}
		return message{
			title:    "vhxdl - Error",
			body:     body,
			tags:     []string{"vhxdl", "error", "alert"},
			priority: "high",
		}, true
	case EventDownloadCompleted:
		body := "Downloaded: " + orUnknown(payload.text("label"))
		if path := payload.text("path"); path != "" {
			body += "\nFile: " + path
		}
		return message{
			title: "vhxdl - Downloaded",
			body:  body,
			tags:  []string{"vhxdl", "download", "completed"},
		}, true
	case EventTest:
		return message{
			title:    "vhxdl - Test",
			body:     "Notification system test",
			tags:     []string{"vhxdl", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) elapsed(key string) time.Duration {
	if v, ok := p[key].(time.Duration); ok {
		return v
	}
	return 0
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
