package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// embedColors give each event class its accent in the Discord channel: red
// for a dead feed, green for an opportunity, grey for housekeeping.
var embedColors = map[Event]int{
	EventConnectorFailed: 0xE74C3C,
	EventOpportunity:     0x2ECC71,
	EventArchive:         0x95A5A6,
}

// DiscordSender delivers alerts via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the alert as a single embed with the event in the footer.
func (d *DiscordSender) Send(ctx context.Context, a Alert) error {
	embed := map[string]any{
		"title":       a.Title,
		"description": a.Body,
		"footer":      map[string]string{"text": string(a.Event)},
	}
	if color, ok := embedColors[a.Event]; ok {
		embed["color"] = color
	}

	payload := map[string]any{"embeds": []any{embed}}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
