package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parashasongs/internal/config"
)

type fakeSender struct {
	channel Channel
	err     error
	panics  bool

	mu    sync.Mutex
	calls int
}

func (f *fakeSender) Channel() Channel { return f.channel }

func (f *fakeSender) Send(ctx context.Context, p Payload) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	return f.err
}

func (f *fakeSender) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testPayload() Payload {
	url := "https://example.com/oseh-shalom"
	return Payload{
		LinkID:      42,
		TargetKind:  "parasha",
		ParashaID:   "bereshit",
		SongTitle:   "Oseh Shalom",
		SongURL:     &url,
		SubmittedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ApprovalURL: "http://localhost:3000/approve/abc",
	}
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestNotifyStopsAtFirstSuccess(t *testing.T) {
	first := &fakeSender{channel: ChannelWebhook, err: errors.New("down")}
	second := &fakeSender{channel: ChannelEmailAPI}
	third := &fakeSender{channel: ChannelSMTP}

	logger, buf := bufferLogger()
	d := NewDispatcher(logger, first, second, third)

	got := d.Notify(context.Background(), testPayload())
	assert.Equal(t, ChannelEmailAPI, got)
	assert.Equal(t, 1, first.Calls())
	assert.Equal(t, 1, second.Calls())
	assert.Zero(t, third.Calls())
	assert.Contains(t, buf.String(), "notification channel failed")
}

func TestNotifyFallsBackToLog(t *testing.T) {
	failing := &fakeSender{channel: ChannelSMTP, err: errors.New("refused")}

	logger, buf := bufferLogger()
	d := NewDispatcher(logger, failing)

	got := d.Notify(context.Background(), testPayload())
	assert.Equal(t, ChannelLog, got)
	assert.Contains(t, buf.String(), "new submission pending moderation")
	assert.Contains(t, buf.String(), "link_id=42")
	assert.Contains(t, buf.String(), "approve/abc")
}

func TestNotifyWithNoChannels(t *testing.T) {
	logger, _ := bufferLogger()
	assert.Equal(t, ChannelLog, NewDispatcher(logger).Notify(context.Background(), testPayload()))
}

func TestNotifyAsyncRecoversPanics(t *testing.T) {
	panicking := &fakeSender{channel: ChannelWebhook, panics: true}

	logger, buf := bufferLogger()
	d := NewDispatcher(logger, panicking)

	d.NotifyAsync(testPayload())
	d.Wait()

	assert.Equal(t, 1, panicking.Calls())
	assert.Contains(t, buf.String(), "notification panicked")
}

func TestNotifyAsyncDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	slow := &blockingSender{release: release}

	logger, _ := bufferLogger()
	d := NewDispatcher(logger, slow)

	done := make(chan struct{})
	go func() {
		d.NotifyAsync(testPayload())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyAsync blocked the caller")
	}

	close(release)
	d.Wait()
}

type blockingSender struct {
	release chan struct{}
}

func (b *blockingSender) Channel() Channel { return ChannelWebhook }

func (b *blockingSender) Send(ctx context.Context, p Payload) error {
	<-b.release
	return nil
}

func TestNewChainSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want []Channel
	}{
		{"none", config.Config{}, nil},
		{
			"webhook only",
			config.Config{NotifyWebhookURL: "https://hooks.example.com"},
			[]Channel{ChannelWebhook},
		},
		{
			"email API suppresses webhook",
			config.Config{
				NotifyWebhookURL: "https://hooks.example.com",
				EmailAPIURL:      "https://api.example.com/emails",
				EmailAPIKey:      "key",
				NotifyEmailTo:    "mod@example.com",
			},
			[]Channel{ChannelEmailAPI},
		},
		{
			"webhook then smtp",
			config.Config{
				NotifyWebhookURL: "https://hooks.example.com",
				SMTPHost:         "smtp.example.com",
				SMTPFrom:         "noreply@example.com",
				NotifyEmailTo:    "mod@example.com",
			},
			[]Channel{ChannelWebhook, ChannelSMTP},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := bufferLogger()
			d := New(&tt.cfg, logger)

			var got []Channel
			for _, s := range d.senders {
				got = append(got, s.Channel())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWebhookSend(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Send(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, "link.submitted", received["event"])
	assert.Equal(t, "Oseh Shalom", received["song_title"])
	assert.EqualValues(t, 42, received["link_id"])
	assert.Contains(t, received["text"], "approve: http://localhost:3000/approve/abc")
}

func TestWebhookSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Send(context.Background(), testPayload())
	assert.ErrorContains(t, err, "502")
}

func TestEmailAPISend(t *testing.T) {
	var (
		auth     string
		received struct {
			From    string   `json:"from"`
			To      []string `json:"to"`
			Subject string   `json:"subject"`
			HTML    string   `json:"html"`
			Text    string   `json:"text"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	cfg := &config.Config{
		BaseURL:       "http://localhost:3000",
		EmailAPIURL:   srv.URL,
		EmailAPIKey:   "secret",
		NotifyEmailTo: "a@example.com, b@example.com",
		SMTPFrom:      "noreply@example.com",
		SMTPFromName:  "Parasha Songs",
	}

	require.NoError(t, NewEmailAPI(cfg).Send(context.Background(), testPayload()))
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "Parasha Songs <noreply@example.com>", received.From)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, received.To)
	assert.Contains(t, received.Subject, "Oseh Shalom")
	assert.Contains(t, received.HTML, "http://localhost:3000/approve/abc")
	assert.Contains(t, received.Text, "Approve: http://localhost:3000/approve/abc")
}

func TestEmailAPISendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer srv.Close()

	cfg := &config.Config{EmailAPIURL: srv.URL, EmailAPIKey: "bad", NotifyEmailTo: "a@example.com"}
	err := NewEmailAPI(cfg).Send(context.Background(), testPayload())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "401") && strings.Contains(err.Error(), "invalid key"))
}

func TestDispatcherFallsThroughHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	logger, buf := bufferLogger()
	d := NewDispatcher(logger, NewWebhook(srv.URL))

	assert.Equal(t, ChannelLog, d.Notify(context.Background(), testPayload()))
	assert.Contains(t, buf.String(), "channel=webhook")
}
