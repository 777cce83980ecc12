// Package notify sends chat webhook notifications (Mattermost or Slack compatible).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/config"
	"github.com/rowquest/rowquest-api/internal/metrics"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// Client handles webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	username   string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new webhook client.
func NewClient(cfg *config.NotificationsConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		username:   cfg.Username,
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Message represents a webhook message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	ThumbURL string  `json:"thumb_url,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SendMessage posts a message to the webhook.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if c == nil {
		return nil
	}
	if !c.enabled {
		c.log.Debug().Msg("Notifications are disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}
	if msg.Username == "" {
		msg.Username = c.username
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordNotification("error")
		return apperrors.Remote("notify.send", fmt.Errorf("failed to send webhook message: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordNotification("error")
		return apperrors.Remote("notify.send", fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}

	metrics.RecordNotification("success")
	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent webhook message")

	return nil
}

// BadgeEarned describes a newly earned badge.
type BadgeEarned struct {
	Username  string
	TeamName  string
	BadgeName string
	Icon      string
	Tier      string
	AvatarURL string
}

// SendBadgeEarned announces a badge award.
func (c *Client) SendBadgeEarned(ctx context.Context, e BadgeEarned) error {
	text := fmt.Sprintf("%s **@%s** earned the **%s** badge!", e.Icon, e.Username, e.BadgeName)

	fields := []Field{{Short: true, Title: "Tier", Value: e.Tier}}
	if e.TeamName != "" {
		fields = append(fields, Field{Short: true, Title: "Team", Value: e.TeamName})
	}

	return c.SendMessage(ctx, &Message{
		Attachments: []Attachment{{
			Fallback: text,
			Color:    tierColor(e.Tier),
			Text:     text,
			Fields:   fields,
			ThumbURL: e.AvatarURL,
			Footer:   "RowQuest",
		}},
	})
}

// WaypointReached describes a team passing a checkpoint on its route.
type WaypointReached struct {
	TeamName             string
	WaypointName         string
	CompletionPercentage int
	NextWaypointName     string
}

// SendWaypointReached announces that a team passed a waypoint.
func (c *Client) SendWaypointReached(ctx context.Context, e WaypointReached) error {
	text := fmt.Sprintf("🧭 Team **%s** reached **%s** (%d%% of the journey).", e.TeamName, e.WaypointName, e.CompletionPercentage)
	if e.NextWaypointName != "" {
		text += fmt.Sprintf(" Next stop: %s.", e.NextWaypointName)
	} else {
		text += " Journey complete! 🎉"
	}
	return c.SendMessage(ctx, &Message{Text: text})
}

func tierColor(tier string) string {
	switch tier {
	case "gold":
		return "#D4AF37"
	case "silver":
		return "#A8A9AD"
	default:
		return "#CD7F32"
	}
}
