//nolint:noctx // Test file uses http.NewRequest for simplicity
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowquest/rowquest-api/internal/api/middleware"
	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/config"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/pkg/logger"
	"github.com/rowquest/rowquest-api/test/mocks"
)

const routeFile = "../../config/routes/boston-rotterdam.yaml"

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Environment: "test"},
		Data:    config.DataConfig{Mode: config.DataModeMock},
		Journey: config.JourneyConfig{Route: "boston-rotterdam", RouteFile: routeFile},
		Cache:   config.CacheConfig{TTL: 60},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

type harness struct {
	app    *App
	db     *repository.DB
	team   *models.Team
	alice  *models.User
	bob    *models.User
	admin  *models.User
	server *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := repository.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	team := &models.Team{Name: "Harbor Rowers", Route: "boston-rotterdam"}
	require.NoError(t, repository.NewTeamRepository(db).Create(ctx, team))

	users := repository.NewUserRepository(db)
	alice := &models.User{Subject: "sub-alice", Username: "alice", TeamID: &team.ID, Role: models.RoleManager}
	bob := &models.User{Subject: "sub-bob", Username: "bob", TeamID: &team.ID, Role: models.RoleMember}
	admin := &models.User{Subject: "sub-admin", Username: "admin", Role: models.RoleAdmin}
	for _, u := range []*models.User{alice, bob, admin} {
		require.NoError(t, users.Create(ctx, u))
	}

	a, err := New(ctx, testConfig(), db, mocks.NewMockCache(), nil, logger.Nop())
	require.NoError(t, err)

	server := httptest.NewServer(a.Router)
	t.Cleanup(server.Close)

	return &harness{app: a, db: db, team: team, alice: alice, bob: bob, admin: admin, server: server}
}

func (h *harness) call(t *testing.T, user *models.User, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set(middleware.UserIDHeader, fmt.Sprint(user.ID))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func teamDistance(t *testing.T, h *harness) float64 {
	t.Helper()
	status, body := h.call(t, h.alice, "GET", fmt.Sprintf("/api/v1/teams/%d/progress", h.team.ID), "")
	require.Equal(t, http.StatusOK, status)
	return body["progress"].(map[string]interface{})["cumulative_distance_m"].(float64)
}

func TestLogAndDeleteActivity_TeamDistance(t *testing.T) {
	h := newHarness(t)

	status, _ := h.call(t, h.alice, "POST", "/api/v1/activities", `{"kind":"rowing","distance_m":1800}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := h.call(t, h.bob, "POST", "/api/v1/activities", `{"kind":"rowing","distance_km":1.2}`)
	require.Equal(t, http.StatusCreated, status)
	second := body["activity"].(map[string]interface{})["id"].(float64)

	assert.Equal(t, 3000.0, teamDistance(t, h))

	status, _ = h.call(t, h.alice, "DELETE", fmt.Sprintf("/api/v1/activities/%d", int(second)), "")
	assert.Equal(t, http.StatusForbidden, status, "only the owner or an admin may delete")

	status, _ = h.call(t, h.bob, "DELETE", fmt.Sprintf("/api/v1/activities/%d", int(second)), "")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, 1800.0, teamDistance(t, h))
}

func TestLogActivity_AwardsBadgeOnce(t *testing.T) {
	h := newHarness(t)

	status, _ := h.call(t, h.admin, "POST", "/api/v1/badges",
		`{"name":"5K Sprint","requirement_type":"rowing_distance","requirement_value":5000,"tier":"bronze"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := h.call(t, h.alice, "POST", "/api/v1/activities", `{"kind":"rowing","distance_m":5000}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, body["new_badges"], 1)

	status, body = h.call(t, h.alice, "POST", "/api/v1/activities", `{"kind":"rowing","distance_m":6000}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, body["new_badges"], 0)

	status, body = h.call(t, h.alice, "GET", fmt.Sprintf("/api/v1/users/%d/badges", h.alice.ID), "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total_badges"])
}

func TestLogActivity_InvalidInput(t *testing.T) {
	h := newHarness(t)

	status, _ := h.call(t, h.alice, "POST", "/api/v1/activities", `{"kind":"rowing","distance_m":-5}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.call(t, h.alice, "POST", "/api/v1/activities", `{"kind":"rowing","distance_m":100,"distance_km":0.1}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.call(t, nil, "POST", "/api/v1/activities", `{"kind":"rowing","distance_m":100}`)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLeaderboardReflectsNewActivity(t *testing.T) {
	h := newHarness(t)

	_, _ = h.call(t, h.bob, "POST", "/api/v1/activities", `{"kind":"rowing","distance_m":2000}`)

	status, body := h.call(t, h.alice, "GET", "/api/v1/leaderboard", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), body["total_entries"])

	_, _ = h.call(t, h.alice, "POST", "/api/v1/activities", `{"kind":"rowing","distance_m":4000}`)

	status, body = h.call(t, h.alice, "GET", "/api/v1/leaderboard", "")
	require.Equal(t, http.StatusOK, status)
	entries := body["leaderboard"].([]interface{})
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].(map[string]interface{})["username"])
}

func TestWaypointsHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	status, body := h.call(t, h.alice, "GET", "/api/v1/routes/boston-rotterdam/waypoints", "")
	require.Equal(t, http.StatusOK, status)
	assert.Greater(t, body["total_waypoints"], float64(1))

	status, body = h.call(t, nil, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, _ = h.call(t, nil, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestAvatarUploadDisabledWithoutStorage(t *testing.T) {
	h := newHarness(t)

	status, _ := h.call(t, h.alice, "POST", fmt.Sprintf("/api/v1/users/%d/avatar", h.alice.ID), "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestNew_RouteMismatch(t *testing.T) {
	db, err := repository.NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig()
	cfg.Journey.Route = "halifax-loop"

	_, err = New(context.Background(), cfg, db, nil, nil, logger.Nop())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ConfigurationInvalid))
}

func TestNew_TotalShorterThanRoute(t *testing.T) {
	db, err := repository.NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig()
	cfg.Journey.TotalDistanceM = 1000000

	_, err = New(context.Background(), cfg, db, nil, nil, logger.Nop())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ConfigurationInvalid))
	assert.Contains(t, err.Error(), "shorter than route boston-rotterdam")
}

func TestNew_SeedsMockData(t *testing.T) {
	db, err := repository.NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig()
	cfg.Data.Seed = true

	a, err := New(context.Background(), cfg, db, nil, nil, logger.Nop())
	require.NoError(t, err)

	teams, err := repository.NewTeamRepository(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, teams, 1)

	progress, err := a.Journey.TeamProgress(context.Background(), teams[0].ID)
	require.NoError(t, err)
	assert.Greater(t, progress.CumulativeDistanceM, 0.0)
}
