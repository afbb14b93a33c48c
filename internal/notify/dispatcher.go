package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// SlackPoster is the slice of the Slack API used for delivery. Satisfied
// by *slack.Client.
type SlackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// DispatcherConfig selects delivery channels. Empty fields disable the
// corresponding channel; with no channels configured notifications are
// only persisted.
type DispatcherConfig struct {
	WebhookURL   string
	SlackChannel string
	MinSeverity  Severity
}

// Dispatcher persists notifications and delivers them to the configured
// channels. Failed deliveries stay pending and are retried by Flush.
type Dispatcher struct {
	store  *Store
	cfg    DispatcherConfig
	slack  SlackPoster
	client *http.Client
}

// NewDispatcher creates a Dispatcher backed by the given store.
func NewDispatcher(store *Store, cfg DispatcherConfig) *Dispatcher {
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = SeverityInfo
	}
	return &Dispatcher{
		store: store,
		cfg:   cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetSlack installs the Slack client used for channel delivery.
func (d *Dispatcher) SetSlack(api SlackPoster) {
	d.slack = api
}

// Dispatch persists the notification and attempts delivery. The record is
// kept even when every channel fails; only the insert can error.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) (*Notification, error) {
	created, err := d.store.Create(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}

	if err := d.deliver(ctx, *created); err == nil {
		if markErr := d.store.MarkDelivered(ctx, created.ID); markErr == nil {
			created.Delivered = true
		}
	}
	return created, nil
}

// Flush retries delivery of pending notifications, oldest first. Returns
// how many were delivered.
func (d *Dispatcher) Flush(ctx context.Context) (int, error) {
	pending, err := d.store.Pending(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, n := range pending {
		if err := d.deliver(ctx, n); err != nil {
			continue
		}
		if err := d.store.MarkDelivered(ctx, n.ID); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

// deliver sends n to every configured channel. Events below the severity
// floor are dropped without error so they never sit in the pending set.
func (d *Dispatcher) deliver(ctx context.Context, n Notification) error {
	if severityRank(n.Severity) < severityRank(d.cfg.MinSeverity) {
		return nil
	}

	var firstErr error
	if d.cfg.WebhookURL != "" {
		if err := d.SendWebhook(ctx, d.cfg.WebhookURL, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.slack != nil && d.cfg.SlackChannel != "" {
		text := fmt.Sprintf("*%s*\n%s", n.Title, n.Message)
		if _, _, err := d.slack.PostMessageContext(ctx, d.cfg.SlackChannel, slack.MsgOptionText(text, false)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("posting to slack: %w", err)
		}
	}
	return firstErr
}

// SendWebhook POSTs the notification as JSON to the given URL.
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshalling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
