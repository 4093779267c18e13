package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/hitsense/internal/core/contact"
	"github.com/zeusync/hitsense/internal/core/events/bus"
	"github.com/zeusync/hitsense/internal/core/impact"
	"github.com/zeusync/hitsense/internal/core/observability/log"
	"github.com/zeusync/hitsense/internal/core/system"
	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
)

type harness struct {
	world  *World
	hub    *Hub
	bus    bus.EventBus
	server *Server
	ts     *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := log.NewNop()
	world := NewWorld(0)
	b := bus.New()
	hub := NewHub(world, logger)
	require.NoError(t, hub.Attach(b))
	srv := NewServer("127.0.0.1:0", world, hub, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Detach()
		ts.Close()
	})
	return &harness{world: world, hub: hub, bus: b, server: srv, ts: ts}
}

func (h *harness) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestEngineFramesIngested(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, EnginePath)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not a frame")))
	require.NoError(t, conn.WriteJSON(EngineFrame{
		Tick:       1,
		Poses:      []PoseFrame{{Body: "stick_l", Position: [3]float32{0, 1, 0}}},
		Collisions: []CollisionFrame{{Phase: "begin", A: "stick_l", B: "don_left"}},
	}))

	require.Eventually(t, func() bool {
		_, ok := h.world.Pose(phys.NameID("stick_l"))
		return ok
	}, 2*time.Second, 10*time.Millisecond, "a malformed frame does not close the session")
	assert.Len(t, h.world.DrainCollisions(), 1)
}

func TestForcesSentToEngine(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, EnginePath)
	require.Eventually(t, func() bool { return h.server.Engines() == 1 }, 2*time.Second, 10*time.Millisecond)

	stick := h.world.Register("stick_l")
	h.world.SetWrench(stick, phys.Wrench{Force: phys.V3(0, 1, 0), Torque: phys.V3(0, 0, 0.3)})

	stage := h.server.FlushStage()
	assert.Equal(t, "bridge.flush", stage.Name())
	require.NoError(t, h.server.BroadcastForces(7))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f ForceFrame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, uint64(7), f.Tick)
	require.Len(t, f.Forces, 1)
	assert.Equal(t, "stick_l", f.Forces[0].Body)
	assert.Equal(t, [3]float32{0, 1, 0}, f.Forces[0].Force)
}

func TestFeedbackFanOut(t *testing.T) {
	h := newHarness(t)
	a := h.dial(t, FeedbackPath)
	b := h.dial(t, FeedbackPath)
	require.Eventually(t, func() bool { return h.hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	foot := h.world.Register("left_foot")
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	imp := impact.Impact{Body: foot, Tick: 3, Time: at, Velocity: -0.4, Acceleration: -0.2}
	require.NoError(t, h.bus.Publish(bus.NewEvent(bus.ImpactDetected, "impact", at, imp)))

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg FeedbackMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, bus.ImpactDetected, msg.Type)
		assert.Equal(t, "left_foot", msg.Body)
		assert.Equal(t, uint64(3), msg.Tick)
		assert.True(t, at.Equal(msg.Time))
		assert.InDelta(t, -0.4, msg.Velocity, 1e-6)
	}
}

func TestFeedbackContactMessage(t *testing.T) {
	h := newHarness(t)
	stick := h.world.Register("stick_l")
	don := h.world.Register("don_left")

	msg, ok := h.hub.message(bus.NewEvent(bus.ContactEngaged, "contact", time.Now(),
		contact.Hit{Body: stick, Zone: "don", Other: don, Tick: 9}))
	require.True(t, ok)
	assert.Equal(t, "don", msg.Zone)
	assert.Equal(t, "don_left", msg.Other)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"contact.engaged"`)

	_, ok = h.hub.message(bus.NewEvent(bus.ContactEngaged, "contact", time.Now(), "junk"))
	assert.False(t, ok)
}

func TestServeStopsOnCancel(t *testing.T) {
	logger := log.NewNop()
	world := NewWorld(0)
	srv := NewServer("127.0.0.1:0", world, NewHub(world, logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

type staticStatus system.Status

func (s staticStatus) Status() system.Status { return system.Status(s) }

func TestStatusEndpoint(t *testing.T) {
	logger := log.NewNop()
	world := NewWorld(0)
	stickR, stickL, pivotL := world.Register("stick_r"), world.Register("stick_l"), world.Register("pivot_l")
	require.NoError(t, world.Apply(EngineFrame{Tick: 12, Collisions: []CollisionFrame{{Phase: "begin", A: "stick_l", B: "don_left"}}}))

	srv := NewServer("127.0.0.1:0", world, NewHub(world, logger), logger)
	srv.SetStatus(staticStatus{
		Ticks:   40,
		Springs: 2,
		Contacts: []contact.Pair{
			{Body: stickR, Parent: world.Register("pivot_r")},
			{Body: stickL, Parent: pivotL, State: contact.Engaged("don")},
		},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + StatusPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got StatusFrame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, uint64(40), got.Ticks)
	assert.Equal(t, uint64(12), got.EngineTick)
	assert.Equal(t, 1, got.PendingCollisions)
	assert.Equal(t, 2, got.Springs)
	assert.Equal(t, []ContactFrame{
		{Body: "stick_l", Parent: "pivot_l", State: "engaged(don)"},
		{Body: "stick_r", Parent: "pivot_r", State: "idle"},
	}, got.Contacts)
}
