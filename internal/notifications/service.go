package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pagepass/internal/config"
	"pagepass/internal/events"
)

const (
	userAgent  = "PagePass/0.1.0"
	dataHeader = "X-PagePass-Data"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Service sends notices to users.
type Service interface {
	Notify(ctx context.Context, notice events.Notice) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy URL is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	base := strings.TrimRight(strings.TrimSpace(cfg.Notifications.NtfyURL), "/")
	if base == "" {
		return noopService{}
	}

	return &ntfyService{
		base:    base,
		prefix:  cfg.Notifications.TopicPrefix,
		client:  &http.Client{Timeout: cfg.NotificationTimeout()},
		enabled: map[events.Category]bool{
			events.CategoryHandoffs: cfg.Notifications.Handoffs,
			events.CategoryQueue:    cfg.Notifications.Queue,
			events.CategoryGifts:    cfg.Notifications.Gifts,
			events.CategoryShelf:    cfg.Notifications.Shelf,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
	click    string
	data     map[string]any
}

type ntfyService struct {
	base    string
	prefix  string
	client  *http.Client
	enabled map[events.Category]bool
}

func (n *ntfyService) Notify(ctx context.Context, notice events.Notice) error {
	userID := strings.TrimSpace(notice.UserID)
	if userID == "" {
		return nil
	}
	category := notice.Kind.Category()
	if !n.enabled[category] {
		return nil
	}
	data := payload{
		title:    titleFor(notice.Kind),
		message:  strings.TrimSpace(notice.Message),
		tags:     []string{"pagepass", string(category), string(notice.Kind)},
		priority: priorityFor(notice.Kind),
		click:    notice.Link,
		data:     notice.Data,
	}
	return n.send(ctx, n.topicURL(userID), data)
}

// TopicFor returns the ntfy topic name a user subscribes to.
func TopicFor(prefix, userID string) string {
	return prefix + userID
}

func (n *ntfyService) topicURL(userID string) string {
	return n.base + "/" + url.PathEscape(TopicFor(n.prefix, userID))
}

// titleFor renders a kind such as your_turn as "PagePass - Your Turn". A
// Caser is stateful, so each call builds its own.
func titleFor(kind events.NoticeKind) string {
	words := strings.ReplaceAll(string(kind), "_", " ")
	return "PagePass - " + cases.Title(language.English).String(words)
}

func priorityFor(kind events.NoticeKind) string {
	switch kind {
	case events.NoticeYourTurn, events.NoticeHandoffRequested, events.NoticeGiftReceived, events.NoticeRecallRequested:
		return "high"
	case events.NoticeShelfPaused, events.NoticeShelfResumed, events.NoticeMovedUp:
		return "low"
	default:
		return ""
	}
}

func (n *ntfyService) send(ctx context.Context, endpoint string, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.message))
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
	if data.click != "" {
		req.Header.Set("Click", data.click)
	}
	if len(data.data) > 0 {
		encoded, err := json.Marshal(data.data)
		if err != nil {
			return fmt.Errorf("encode notice data: %w", err)
		}
		req.Header.Set(dataHeader, string(encoded))
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

func (noopService) Notify(context.Context, events.Notice) error { return nil }
