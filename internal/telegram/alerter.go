// Package telegram posts incident alerts to a Telegram chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"routeiq/internal/logging"
	"routeiq/internal/notify"
	"routeiq/internal/sim"
)

const (
	DefaultAPIBase = "https://api.telegram.org"
	queueSize      = 64
)

type Options struct {
	BotToken string
	ChatID   string
	// APIBase defaults to DefaultAPIBase.
	APIBase string
	Client  *http.Client
}

// Alerter is a notify.Publisher that forwards incident updates. Sends happen
// on the Run goroutine so publishers never wait on the network.
type Alerter struct {
	client  *http.Client
	apiBase string
	token   string
	chatID  string
	queue   chan string
	log     *slog.Logger
}

// New returns nil when the bot token or chat id is missing.
func New(opts Options) *Alerter {
	token := strings.TrimSpace(opts.BotToken)
	chatID := strings.TrimSpace(opts.ChatID)
	if token == "" || chatID == "" {
		return nil
	}
	base := strings.TrimRight(opts.APIBase, "/")
	if base == "" {
		base = DefaultAPIBase
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Alerter{
		client:  client,
		apiBase: base,
		token:   token,
		chatID:  chatID,
		queue:   make(chan string, queueSize),
		log:     logging.Component("telegram"),
	}
}

func (a *Alerter) Publish(_ context.Context, topic string, v any) {
	if a == nil || topic != notify.TopicIncident {
		return
	}
	u, ok := v.(sim.IncidentUpdate)
	if !ok {
		return
	}
	select {
	case a.queue <- FormatIncident(u):
	default:
		a.log.Warn("telegram.queue_full", "x", u.X, "y", u.Y)
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (a *Alerter) Run(ctx context.Context) error {
	if a == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-a.queue:
			if err := a.send(ctx, msg); err != nil {
				a.log.Warn("telegram.send", "err", err)
			}
		}
	}
}

func FormatIncident(u sim.IncidentUpdate) string {
	if u.Cleared {
		return fmt.Sprintf("RouteIQ: incident cleared at (%d, %d)", u.X, u.Y)
	}
	return fmt.Sprintf("RouteIQ: incident reported at (%d, %d), cell blocked", u.X, u.Y)
}

func (a *Alerter) send(ctx context.Context, msg string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": a.chatID,
		"text":    msg,
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", a.apiBase, a.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}
