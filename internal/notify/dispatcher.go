// Package notify announces new pending submissions over a fixed chain of
// channels, ending in a log line that always succeeds.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"parashasongs/internal/config"
	"parashasongs/internal/metrics"
)

// Channel names a delivery channel.
type Channel string

// Channels in priority order.
const (
	ChannelWebhook  Channel = "webhook"
	ChannelEmailAPI Channel = "email_api"
	ChannelSMTP     Channel = "smtp"
	ChannelLog      Channel = "log"
)

// DefaultTimeout bounds one detached notification.
const DefaultTimeout = 30 * time.Second

// Payload describes a new submission.
type Payload struct {
	LinkID      int64     `json:"link_id"`
	TargetKind  string    `json:"target_kind"`
	ParashaID   string    `json:"parasha_id"`
	TargetID    *string   `json:"target_id,omitempty"`
	SongTitle   string    `json:"song_title"`
	SongURL     *string   `json:"song_url,omitempty"`
	VerseRef    *string   `json:"verse_ref,omitempty"`
	AddedBy     *string   `json:"added_by,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	ApprovalURL string    `json:"approval_url,omitempty"`
}

// Sender delivers a payload over one channel.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, p Payload) error
}

// Dispatcher tries each configured sender in order and stops at the first
// success. Failures are logged and never returned.
type Dispatcher struct {
	senders []Sender
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher over an explicit sender chain.
func NewDispatcher(logger *slog.Logger, senders ...Sender) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{senders: senders, logger: logger, timeout: DefaultTimeout}
}

// New builds the sender chain from configuration. The webhook is skipped
// when the email API is configured so moderators are not notified twice.
func New(cfg *config.Config, logger *slog.Logger) *Dispatcher {
	var senders []Sender
	if cfg.NotifyWebhookURL != "" && !cfg.IsEmailAPIEnabled() {
		senders = append(senders, NewWebhook(cfg.NotifyWebhookURL))
	}
	if cfg.IsEmailAPIEnabled() {
		senders = append(senders, NewEmailAPI(cfg))
	}
	if cfg.IsSMTPEnabled() {
		senders = append(senders, NewSMTP(cfg))
	}

	d := NewDispatcher(logger, senders...)
	names := make([]string, 0, len(senders)+1)
	for _, s := range senders {
		names = append(names, string(s.Channel()))
	}
	names = append(names, string(ChannelLog))
	d.logger.Info("notification chain configured", "channels", names)
	return d
}

// Notify delivers p and returns the channel that accepted it.
func (d *Dispatcher) Notify(ctx context.Context, p Payload) Channel {
	for _, s := range d.senders {
		if err := s.Send(ctx, p); err != nil {
			metrics.RecordNotification(string(s.Channel()), "error")
			d.logger.Warn("notification channel failed",
				"channel", s.Channel(),
				"link_id", p.LinkID,
				"error", err,
			)
			continue
		}
		metrics.RecordNotification(string(s.Channel()), "sent")
		return s.Channel()
	}

	metrics.RecordNotification(string(ChannelLog), "sent")
	d.logger.Info("new submission pending moderation",
		"link_id", p.LinkID,
		"target_kind", p.TargetKind,
		"parasha_id", p.ParashaID,
		"target_id", deref(p.TargetID),
		"song_title", p.SongTitle,
		"song_url", deref(p.SongURL),
		"verse_ref", deref(p.VerseRef),
		"added_by", deref(p.AddedBy),
		"submitted_at", p.SubmittedAt,
		"approval_url", p.ApprovalURL,
	)
	return ChannelLog
}

// NotifyAsync runs Notify on a detached goroutine with its own timeout.
// The caller never waits and never sees an error.
func (d *Dispatcher) NotifyAsync(p Payload) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("notification panicked", "link_id", p.LinkID, "panic", fmt.Sprint(r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		d.Notify(ctx, p)
	}()
}

// Wait blocks until all detached notifications have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
