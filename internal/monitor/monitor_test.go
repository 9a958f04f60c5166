package monitor

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tldetector/internal/coordinator"
	"github.com/banshee-data/tldetector/internal/db"
	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/perception"
	"github.com/banshee-data/tldetector/internal/spatial"
	"github.com/banshee-data/tldetector/internal/stabilizer"
	"github.com/banshee-data/tldetector/internal/testutil"
	"github.com/banshee-data/tldetector/internal/timeutil"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// runRedScenario drives a coordinator to a confirmed red stop at
// waypoint 1 and returns it with the history it published to.
func runRedScenario(t *testing.T) (*coordinator.Coordinator, *DecisionHistory) {
	t.Helper()
	history := NewDecisionHistory(16)
	pcfg := perception.DefaultConfig()
	pcfg.StopLines = [][2]float64{{19, 0}}
	c := coordinator.New(
		coordinator.Config{Clock: timeutil.NewMockClock(start)},
		perception.NewPipeline(pcfg, nil, nil),
		stabilizer.New(stabilizer.DefaultThreshold),
		history,
		nil,
	)

	ctx := context.Background()
	events := []coordinator.Event{
		coordinator.PoseUpdate{Pose: geometry.Pose{Orientation: geometry.QuaternionFromYaw(0)}},
		coordinator.RouteUpdate{Waypoints: []spatial.Waypoint{
			{Position: r3.Vec{X: 0}}, {Position: r3.Vec{X: 10}}, {Position: r3.Vec{X: 20}},
		}},
		coordinator.LightsUpdate{Lights: []perception.TrafficLight{
			{ID: 7, Position: r3.Vec{X: 10}, State: perception.Red, HasState: true},
		}},
	}
	for i := 0; i < 3; i++ {
		events = append(events, coordinator.FrameEvent{Frame: perception.CameraFrame{Timestamp: start.Add(time.Duration(i) * 100 * time.Millisecond)}})
	}
	for _, ev := range events {
		require.NoError(t, c.Handle(ctx, ev))
	}
	return c, history
}

func newTestWebServer(t *testing.T, cfg WebServerConfig) http.Handler {
	t.Helper()
	ws, err := NewWebServer(cfg)
	require.NoError(t, err)
	return ws.Handler()
}

func TestBuildStatus(t *testing.T) {
	t.Parallel()
	c, _ := runRedScenario(t)

	st := BuildStatus(c)
	assert.True(t, st.Ready)
	require.NotNil(t, st.Pose)
	assert.Equal(t, 3, st.RouteLength)
	assert.Equal(t, 1, st.LightCount)
	assert.Equal(t, []int{2}, st.StopLineWaypoints)
	assert.Equal(t, perception.Red, st.Stabilizer.ConfirmedColor)
	require.NotNil(t, st.LastDecision)
	assert.Equal(t, 1, st.LastDecision.Waypoint)
	assert.Equal(t, 7, st.LastDecision.LightID)
}

func TestBuildStatus_Empty(t *testing.T) {
	t.Parallel()
	c := coordinator.New(coordinator.Config{}, perception.NewPipeline(perception.DefaultConfig(), nil, nil),
		stabilizer.New(0), NewDecisionHistory(1), nil)

	st := BuildStatus(c)
	assert.False(t, st.Ready)
	assert.Nil(t, st.Pose)
	assert.Nil(t, st.LastDecision)
	assert.NotNil(t, st.StopLineWaypoints, "encodes as [] rather than null")
	assert.Equal(t, stabilizer.NoStop, st.Stabilizer.LastPublishedWaypoint)
}

func TestDecisionHistory_Ring(t *testing.T) {
	t.Parallel()
	h := NewDecisionHistory(3)
	assert.Empty(t, h.Recent(0))

	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, h.Publish(context.Background(), coordinator.Decision{Seq: seq}))
	}
	assert.Equal(t, 3, h.Len())

	seqs := func(ds []coordinator.Decision) []uint64 {
		out := make([]uint64, len(ds))
		for i, d := range ds {
			out[i] = d.Seq
		}
		return out
	}
	assert.Equal(t, []uint64{3, 4, 5}, seqs(h.Recent(0)))
	assert.Equal(t, []uint64{4, 5}, seqs(h.Recent(2)))
	assert.Equal(t, []uint64{3, 4, 5}, seqs(h.Recent(10)))
}

func TestWebServer_Status(t *testing.T) {
	t.Parallel()
	c, history := runRedScenario(t)
	h := newTestWebServer(t, WebServerConfig{Source: c, History: history})

	rec := testutil.Get(h, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := testutil.DecodeJSON[map[string]any](t, rec)
	assert.Equal(t, true, body["ready"])
	last := body["last_decision"].(map[string]any)
	assert.Equal(t, float64(1), last["waypoint"])
	assert.Equal(t, "RED", last["confirmed_color"])

	testutil.AssertStatusCode(t, testutil.Serve(h, http.MethodPost, "/api/status").Code, http.StatusMethodNotAllowed)
}

func TestWebServer_Health(t *testing.T) {
	t.Parallel()

	c, history := runRedScenario(t)
	rec := testutil.Get(newTestWebServer(t, WebServerConfig{Source: c, History: history}), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	idle := coordinator.New(coordinator.Config{}, perception.NewPipeline(perception.DefaultConfig(), nil, nil),
		stabilizer.New(0), nil, nil)
	rec = testutil.Get(newTestWebServer(t, WebServerConfig{Source: idle}), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebServer_Decisions(t *testing.T) {
	t.Parallel()
	c, history := runRedScenario(t)
	h := newTestWebServer(t, WebServerConfig{Source: c, History: history})

	rec := testutil.Get(h, "/api/decisions?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	ds := testutil.DecodeJSON[[]coordinator.Decision](t, rec)
	require.Len(t, ds, 2)
	assert.Equal(t, []int{-1, 1}, []int{ds[0].Waypoint, ds[1].Waypoint})

	assert.Equal(t, http.StatusBadRequest, testutil.Get(h, "/api/decisions?limit=x").Code)
}

func TestWebServer_DecisionChart(t *testing.T) {
	t.Parallel()
	c, history := runRedScenario(t)
	h := newTestWebServer(t, WebServerConfig{Source: c, History: history})

	rec := testutil.Get(h, "/debug/decisions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Stop waypoint decisions")
	assert.Contains(t, rec.Body.String(), "confirmed colour")

	empty := newTestWebServer(t, WebServerConfig{Source: c})
	assert.Equal(t, http.StatusNotFound, testutil.Get(empty, "/debug/decisions").Code)
}

func TestWebServer_Sessions(t *testing.T) {
	t.Parallel()

	database, err := db.NewDB(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	session, err := database.StartSession(ctx, "test", "", nil, start)
	require.NoError(t, err)
	log := db.NewDecisionLog(database, session.ID)
	require.NoError(t, log.Publish(ctx, coordinator.Decision{Seq: 1, At: start, Waypoint: 2, RawWaypoint: 2, LightID: 1}))

	c, history := runRedScenario(t)
	h := newTestWebServer(t, WebServerConfig{Source: c, History: history, DB: database})

	rec := testutil.Get(h, "/api/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := testutil.DecodeJSON[[]db.Session](t, rec)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)

	rec = testutil.Get(h, "/api/sessions?session_id="+session.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	ds := testutil.DecodeJSON[[]coordinator.Decision](t, rec)
	require.Len(t, ds, 1)
	assert.Equal(t, 2, ds[0].Waypoint)

	assert.Equal(t, http.StatusNotFound, testutil.Get(h, "/api/sessions?session_id=missing").Code)

	noDB := newTestWebServer(t, WebServerConfig{Source: c})
	assert.Equal(t, http.StatusNotFound, testutil.Get(noDB, "/api/sessions").Code)
}
