package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3/client"

	"parashasongs/internal/config"
)

// Webhook posts the payload as JSON to a generic endpoint.
type Webhook struct {
	url    string
	client *client.Client
}

// NewWebhook creates a webhook sender.
func NewWebhook(url string) *Webhook {
	return &Webhook{url: url, client: client.New().SetTimeout(10 * time.Second)}
}

// Channel implements Sender.
func (w *Webhook) Channel() Channel { return ChannelWebhook }

// Send implements Sender.
func (w *Webhook) Send(ctx context.Context, p Payload) error {
	body := struct {
		Event string `json:"event"`
		Text  string `json:"text"`
		Payload
	}{
		Event:   "link.submitted",
		Text:    summary(p),
		Payload: p,
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetJSON(body).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Close()

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("webhook returned status %d", code)
	}
	return nil
}

// EmailAPI sends through a transactional email HTTP API that accepts
// {from, to, subject, html, text} with a bearer key.
type EmailAPI struct {
	url       string
	key       string
	from      string
	to        []string
	templates *Templates
	client    *client.Client
}

// NewEmailAPI creates an email API sender.
func NewEmailAPI(cfg *config.Config) *EmailAPI {
	return &EmailAPI{
		url:       cfg.EmailAPIURL,
		key:       cfg.EmailAPIKey,
		from:      fromHeader(cfg),
		to:        recipients(cfg.NotifyEmailTo),
		templates: NewTemplates(cfg),
		client:    client.New().SetTimeout(10 * time.Second),
	}
}

// Channel implements Sender.
func (e *EmailAPI) Channel() Channel { return ChannelEmailAPI }

// Send implements Sender.
func (e *EmailAPI) Send(ctx context.Context, p Payload) error {
	subject, htmlBody, textBody := e.templates.LinkSubmitted(p)

	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+e.key).
		SetJSON(map[string]any{
			"from":    e.from,
			"to":      e.to,
			"subject": subject,
			"html":    htmlBody,
			"text":    textBody,
		}).
		Post(e.url)
	if err != nil {
		return fmt.Errorf("email API request failed: %w", err)
	}
	defer resp.Close()

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("email API returned status %d: %s", code, truncateBody(resp.Body()))
	}
	return nil
}

func truncateBody(b []byte) string {
	if len(b) > 200 {
		b = b[:200]
	}
	return string(b)
}
