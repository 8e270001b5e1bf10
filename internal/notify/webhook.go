package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nashmi-edu/referral-api/pkg/config"
)

// WebhookDispatcher posts messages to a messaging gateway (WhatsApp-style
// HTTP bridge).
type WebhookDispatcher struct {
	url    string
	apiKey string
	client *http.Client
}

// NewWebhookDispatcher constructs the dispatcher from config.
func NewWebhookDispatcher(cfg config.NotificationsConfig) *WebhookDispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDispatcher{
		url:    cfg.GatewayURL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the message to the gateway.
func (d *WebhookDispatcher) Send(ctx context.Context, msg Message) error {
	if d.url == "" {
		return fmt.Errorf("notification gateway url not configured")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification gateway returned %d", resp.StatusCode)
	}
	return nil
}

// Name identifies the dispatcher in logs.
func (d *WebhookDispatcher) Name() string { return "webhook" }
