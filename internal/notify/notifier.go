// Package notify delivers deletion alerts. Delivery is best-effort:
// detection and persistence are the guaranteed parts of the contract,
// notification is not, so failures here are logged and dropped.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Alert describes one detected deletion, ready for fan-out.
type Alert struct {
	MsgID     int64
	ChatID    int64
	ChatLabel string
	Body      string
	Reason    string
	DeletedAt time.Time
}

// DirectMessenger sends the alert mirror into the account's own chat.
type DirectMessenger interface {
	SendAlert(ctx context.Context, text string) error
}

// Notifier fans one alert out to the configured webhook and the direct
// message channel. Either destination may be absent.
type Notifier struct {
	webhookURL string
	client     *http.Client
	dm         DirectMessenger
	logger     *zap.Logger
}

// New creates a notifier. webhookURL may be empty (webhook disabled);
// dm may be nil (direct messages disabled).
func New(webhookURL string, timeout time.Duration, dm DirectMessenger, logger *zap.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		dm:         dm,
		logger:     logger,
	}
}

// Notify dispatches the alert to all channels. It never returns an
// error: each channel logs its own failure and the caller moves on.
func (n *Notifier) Notify(ctx context.Context, a Alert) {
	n.postWebhook(ctx, a)
	n.sendDM(ctx, a)
}

type webhookPayload struct {
	MsgID     int64  `json:"msg_id"`
	ChatID    int64  `json:"chat_id"`
	Message   string `json:"message"`
	DeletedAt string `json:"deleted_at"`
	Reason    string `json:"reason"`
}

func (n *Notifier) postWebhook(ctx context.Context, a Alert) {
	if n.webhookURL == "" {
		return
	}

	body, err := json.Marshal(webhookPayload{
		MsgID:     a.MsgID,
		ChatID:    a.ChatID,
		Message:   a.Body,
		DeletedAt: a.DeletedAt.Format(time.RFC3339),
		Reason:    a.Reason,
	})
	if err != nil {
		n.logger.Warn("failed to encode webhook payload", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", uuid.New().String())

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("failed to send webhook", zap.Error(err))
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("webhook rejected", zap.Int("status", resp.StatusCode))
	}
}

func (n *Notifier) sendDM(ctx context.Context, a Alert) {
	if n.dm == nil {
		return
	}
	text := fmt.Sprintf("🚨 Deleted Message Alert:\nChat: %s\nMessage ID: %d\nReason: %s\nContent:\n%s",
		a.ChatLabel, a.MsgID, a.Reason, a.Body)
	if err := n.dm.SendAlert(ctx, text); err != nil {
		n.logger.Warn("failed to send alert DM", zap.Error(err))
	}
}
