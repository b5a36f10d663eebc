package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tradewatch/internal/alert"
	"tradewatch/internal/config"
)

// webhookPayload is the JSON body posted to the generic webhook.
type webhookPayload struct {
	Priority  string    `json:"priority"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Webhook posts alerts as JSON to an arbitrary HTTP endpoint, with an
// optional Authorization header.
type Webhook struct {
	url        string
	authHeader string
	client     *http.Client
}

// NewWebhook creates a generic webhook channel from config.
func NewWebhook(cfg config.WebhookConfig) *Webhook {
	return &Webhook{
		url:        cfg.URL,
		authHeader: cfg.AuthHeader,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Send delivers one alert. The priority rides in the payload as an
// uppercase label rather than an emoji, since the receiver is a
// machine.
func (w *Webhook) Send(a alert.Alert) error {
	body, err := json.Marshal(webhookPayload{
		Priority:  strings.ToUpper(string(a.Priority)),
		Type:      string(a.Type),
		Title:     a.Title,
		Body:      a.Body,
		Timestamp: a.At,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.authHeader != "" {
		req.Header.Set("Authorization", w.authHeader)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}
