package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parashasongs/internal/config"
	"parashasongs/internal/db"
	"parashasongs/internal/models"
	"parashasongs/internal/moderation"
	"parashasongs/internal/notify"
	"parashasongs/internal/testutil"
	"parashasongs/internal/visits"
)

const testAdminToken = "admin-secret"

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

type testServer struct {
	app *fiber.App
	gw  db.Gateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Env:                "development",
		BaseURL:            "http://localhost:3000",
		ModerationMode:     config.ModerationToken,
		AdminToken:         testAdminToken,
		SessionSecret:      "test-session-secret",
		RateLimitPerMinute: 1000,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ref, err := config.LoadReference("")
	require.NoError(t, err)

	gw := testutil.SQLiteDB(t)
	dispatcher := notify.NewDispatcher(logger)
	t.Cleanup(dispatcher.Wait)

	srv := New(cfg, logger)
	require.NoError(t, srv.RegisterRoutes(context.Background(), Deps{
		DB:        gw,
		Manager:   moderation.NewManager(gw, ref, dispatcher, cfg, logger),
		Visits:    visits.NewCounter(gw),
		Reference: ref,
	}))

	return &testServer{app: srv.App, gw: gw}
}

func (s *testServer) do(t *testing.T, method, path, body string, admin bool) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestSubmitAndRedeemFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	code, env := s.do(t, http.MethodPost, "/api/links",
		`{"title":"Oseh Shalom","url":"https://example.com/oseh","target_kind":"parasha","parasha_id":"bereshit"}`, false)
	require.Equal(t, fiber.StatusCreated, code, env.Error)
	assert.NotContains(t, string(env.Data), "token")

	res := decode[moderation.SubmitResult](t, env)
	assert.Equal(t, models.StatusPending, res.Status)
	assert.True(t, res.SongCreated)

	code, env = s.do(t, http.MethodGet, "/api/parasha/bereshit/links", "", false)
	require.Equal(t, fiber.StatusOK, code)
	assert.Empty(t, decode[[]models.LinkWithSong](t, env))

	link, err := s.gw.GetLinkByID(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, link.ApprovalToken)

	code, env = s.do(t, http.MethodGet, "/approve/"+*link.ApprovalToken, "", false)
	require.Equal(t, fiber.StatusOK, code, env.Error)
	assert.Equal(t, models.StatusApproved, decode[models.LinkWithSong](t, env).Status)

	code, env = s.do(t, http.MethodGet, "/approve/"+*link.ApprovalToken, "", false)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "error", env.Status)

	code, env = s.do(t, http.MethodGet, "/api/parasha/bereshit/links", "", false)
	require.Equal(t, fiber.StatusOK, code)
	links := decode[[]models.LinkWithSong](t, env)
	require.Len(t, links, 1)
	assert.Equal(t, "Oseh Shalom", links[0].SongTitle)
}

func TestSubmitValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"title":`},
		{"missing title", `{"title":"  ","parasha_id":"bereshit"}`},
		{"unknown parasha", `{"title":"Song","parasha_id":"not-a-portion"}`},
		{"foreign haftarah", `{"title":"Song","target_kind":"haftarah","parasha_id":"bereshit","haftarah_id":"noach-sephardi"}`},
		{"tanach without chapter", `{"title":"Song","target_kind":"tanach","book":"psalms"}`},
		{"bad url scheme", `{"title":"Song","url":"ftp://example.com","parasha_id":"bereshit"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, "/api/links", tt.body, false)
			assert.Equal(t, fiber.StatusBadRequest, code)
			assert.Equal(t, "error", env.Status)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestModeratorRoutes(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/moderation/pending", "", false)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, env := s.do(t, http.MethodPost, "/api/links",
		`{"title":"Mizmor LeDavid","target_kind":"tanach","book":"psalms","chapter":23}`, true)
	require.Equal(t, fiber.StatusCreated, code, env.Error)
	approved := decode[moderation.SubmitResult](t, env)
	assert.Equal(t, models.StatusApproved, approved.Status, "moderator submissions skip the queue")

	code, env = s.do(t, http.MethodPost, "/api/links", `{"title":"Pending Song","parasha_id":"noach"}`, false)
	require.Equal(t, fiber.StatusCreated, code, env.Error)
	pending := decode[moderation.SubmitResult](t, env)

	code, env = s.do(t, http.MethodGet, "/api/moderation/pending", "", true)
	require.Equal(t, fiber.StatusOK, code)
	queue := decode[[]models.LinkWithSong](t, env)
	require.Len(t, queue, 1)
	assert.Equal(t, pending.ID, queue[0].ID)

	id := strconv.FormatInt(pending.ID, 10)
	code, _ = s.do(t, http.MethodPost, "/api/moderation/"+id+"/reject", "", true)
	assert.Equal(t, fiber.StatusOK, code)

	code, env = s.do(t, http.MethodPost, "/api/moderation/"+id+"/approve", "", true)
	assert.Equal(t, fiber.StatusConflict, code, env.Error)

	code, _ = s.do(t, http.MethodPost, "/api/moderation/abc/approve", "", true)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/moderation/999999/approve", "", true)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, env = s.do(t, http.MethodGet, "/api/tanach/psalms/23/links", "", false)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, decode[[]models.LinkWithSong](t, env), 1)

	code, _ = s.do(t, http.MethodGet, "/api/tanach/psalms/x/links", "", false)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodDelete, "/api/songs/"+approved.SongID, "", false)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodDelete, "/api/songs/"+approved.SongID, "", true)
	assert.Equal(t, fiber.StatusOK, code)

	code, _ = s.do(t, http.MethodDelete, "/api/songs/"+approved.SongID, "", true)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _ = s.do(t, http.MethodDelete, "/api/links/"+id, "", true)
	assert.Equal(t, fiber.StatusOK, code)
}

func TestStatsCountsVisits(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/links", `{"title":"Song","parasha_id":"bereshit"}`, true)
	require.Equal(t, fiber.StatusCreated, code, env.Error)

	for range 2 {
		code, _ = s.do(t, http.MethodGet, "/api/parasha/bereshit/links", "", false)
		require.Equal(t, fiber.StatusOK, code)
	}
	code, _ = s.do(t, http.MethodGet, "/api/parasha/not-a-portion/links", "", false)
	require.Equal(t, fiber.StatusBadRequest, code)

	code, env = s.do(t, http.MethodGet, "/api/stats", "", false)
	require.Equal(t, fiber.StatusOK, code)
	stats := decode[statsBody](t, env)
	assert.EqualValues(t, 1, stats.TotalSongs)
	assert.EqualValues(t, 2, stats.Visits.Total)
	assert.EqualValues(t, 1, stats.Visits.UniqueIPs)
}

type statsBody struct {
	TotalSongs int64             `json:"total_songs"`
	Visits     models.VisitStats `json:"visits"`
}

func TestHealthAndReference(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		code, env := s.do(t, http.MethodGet, path, "", false)
		assert.Equal(t, fiber.StatusOK, code, path)
		assert.Equal(t, "ok", env.Status, path)
		assert.Equal(t, "sqlite", decode[map[string]any](t, env)["backend"], path)
	}

	code, env := s.do(t, http.MethodGet, "/api/parashot", "", false)
	require.Equal(t, fiber.StatusOK, code)
	parashot := decode[[]config.Parasha](t, env)
	assert.Len(t, parashot, 54)

	code, env = s.do(t, http.MethodGet, "/nope", "", false)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "error", env.Status)
}
