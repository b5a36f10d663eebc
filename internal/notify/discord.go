package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tradewatch/internal/alert"
	"tradewatch/internal/config"
	"tradewatch/internal/logger"
	"tradewatch/internal/models"
)

const discordRetries = 3

// discordIndicator prefixes a message with the priority marker.
func discordIndicator(p models.Priority) string {
	switch p {
	case models.PriorityCritical:
		return "🔴"
	case models.PriorityImportant:
		return "🟡"
	default:
		return "🔵"
	}
}

// Discord posts alerts to a Discord webhook.
type Discord struct {
	webhookURL string
	client     *http.Client
}

// NewDiscord creates a Discord channel from config.
func NewDiscord(cfg config.DiscordConfig) *Discord {
	return &Discord{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *Discord) Name() string { return "discord" }

// Send delivers one alert, retrying with a linear backoff.
func (d *Discord) Send(a alert.Alert) error {
	payload := map[string]string{
		"content": fmt.Sprintf("%s **%s**\n%s", discordIndicator(a.Priority), a.Title, a.Body),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= discordRetries; attempt++ {
		if err := d.post(body); err != nil {
			lastErr = err
			logger.Warn("Discord send attempt %d/%d failed: %v", attempt, discordRetries, err)
			if attempt < discordRetries {
				time.Sleep(time.Duration(attempt) * time.Second)
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("discord send failed after %d attempts: %w", discordRetries, lastErr)
}

func (d *Discord) post(body []byte) error {
	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}
