package injector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/hitsense/internal/bridge"
	"github.com/zeusync/hitsense/internal/config"
	"github.com/zeusync/hitsense/internal/core/contact"
	"github.com/zeusync/hitsense/internal/core/events/bus"
	"github.com/zeusync/hitsense/internal/core/observability/log"
)

func loadSettings(t *testing.T, extra string) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	doc := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(doc, []byte(`{"acc_factor": -0.01, "vel_factor": -0.01}`), 0o644))

	body := `{"logLevel": "error", "thresholds": {"path": "` + filepath.ToSlash(doc) + `"}, "bridge": {"httpAddr": "127.0.0.1:0"}` + extra + `}`
	cfg := filepath.Join(dir, "hitsense.json")
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))

	s, err := config.Load(cfg)
	require.NoError(t, err)
	return s
}

func TestInitializeDaemon(t *testing.T) {
	d, err := InitializeDaemon(loadSettings(t, ""))
	require.NoError(t, err)

	assert.Nil(t, d.QUIC, "QUIC ingest is off by default")
	assert.Equal(t, []string{
		"thresholds.reload",
		"impact.evaluate",
		"contact.process",
		"restoring.apply",
		"bridge.flush",
	}, d.Runner.ExecutionOrder())
}

func TestDaemonRunLoadsThresholdsAndStops(t *testing.T) {
	d, err := InitializeDaemon(loadSettings(t, ""))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, strings.NewReader("r\n")) }()

	require.Eventually(t, func() bool {
		_, ok := d.Loader.Store().Load()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return d.Runner.Ticks() > 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	// the metrics observer is detached on shutdown, so the bus stops counting
	before := d.Bus.Metrics().Published
	require.NoError(t, d.Bus.Publish(bus.NewEvent(bus.ImpactDetected, "test", time.Now(), nil)))
	assert.Equal(t, before, d.Bus.Metrics().Published)
}

func TestStatusReportsConfiguredSticks(t *testing.T) {
	d, err := InitializeDaemon(loadSettings(t, ""))
	require.NoError(t, err)
	require.NoError(t, d.Runner.Tick(context.Background()))

	ts := httptest.NewServer(d.Server.Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL + bridge.StatusPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	var st bridge.StatusFrame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, uint64(1), st.Ticks)
	assert.Equal(t, 2, st.Springs)
	assert.Equal(t, []bridge.ContactFrame{
		{Body: "stick_l", Parent: "pivot_l", State: "idle"},
		{Body: "stick_r", Parent: "pivot_r", State: "idle"},
	}, st.Contacts)
}

func TestProvideMachineRejectsRoleConflict(t *testing.T) {
	s := loadSettings(t, `, "zones": [{"collider": "stick_l", "zone": "don"}]`)
	_, err := ProvideMachine(s, ProvideWorld(s), log.NewNop(), nil)
	assert.ErrorIs(t, err, contact.ErrRoleConflict)
}

func TestProvideQUICEnabled(t *testing.T) {
	s := loadSettings(t, `, "bridge": {"httpAddr": "127.0.0.1:0", "quicEnabled": true, "quicAddr": "127.0.0.1:0"}`)
	q, err := ProvideQUIC(s, ProvideWorld(s), log.NewNop())
	require.NoError(t, err)
	require.NotNil(t, q)
}
