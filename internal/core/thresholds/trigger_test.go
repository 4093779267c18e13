package thresholds

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/hitsense/internal/core/observability/log"
)

type countingRequester struct {
	n atomic.Int32
}

func (c *countingRequester) RequestReload() { c.n.Add(1) }

func TestKeyTrigger(t *testing.T) {
	req := &countingRequester{}
	in := strings.NewReader("r\nx\nR\n  r  \nreload\n")

	err := KeyTrigger(context.Background(), in, req)
	require.NoError(t, err)
	assert.Equal(t, int32(3), req.n.Load())
}

func TestKeyTriggerStopsOnCancel(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pw.Close()
	defer pr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- KeyTrigger(ctx, pr, &countingRequester{}) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not stop")
	}
}

func TestWatchRequestsReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	writeDoc(t, path, `{"acc_factor": -0.01, "vel_factor": -0.01}`)

	req := &countingRequester{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, req, log.NewNop()) }()

	// the watcher registers asynchronously; keep writing until it notices
	require.Eventually(t, func() bool {
		writeDoc(t, path, `{"acc_factor": -0.02, "vel_factor": -0.01}`)
		return req.n.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)

	// unrelated files in the same directory are ignored
	time.Sleep(200 * time.Millisecond)
	before := req.n.Load()
	writeDoc(t, filepath.Join(dir, "other.json"), `{}`)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, req.n.Load())

	cancel()
	assert.NoError(t, <-done)
}
