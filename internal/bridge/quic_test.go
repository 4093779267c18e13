package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/hitsense/internal/core/observability/log"
	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
)

func TestQUICIngestLoopback(t *testing.T) {
	world := NewWorld(0)
	ingest := NewQUICIngest("127.0.0.1:0", nil, world, log.NewNop())
	require.NoError(t, ingest.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ingest.Run(ctx) }()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	sender, err := DialQUIC(dialCtx, ingest.Addr().String(), nil)
	require.NoError(t, err)

	require.NoError(t, sender.Send(EngineFrame{
		Tick:  1,
		Poses: []PoseFrame{{Body: "left_foot", Position: [3]float32{0, 0.5, 0}}},
	}))
	require.NoError(t, sender.SendRaw([]byte(`{"tick":`)))
	require.NoError(t, sender.Send(EngineFrame{
		Tick:       2,
		Collisions: []CollisionFrame{{Phase: "begin", A: "stick_r", B: "ka_right"}},
	}))

	require.Eventually(t, func() bool { return world.LastTick() == 2 }, 5*time.Second, 10*time.Millisecond)
	p, ok := world.Pose(phys.NameID("left_foot"))
	require.True(t, ok)
	assert.Equal(t, float32(0.5), p.Position.Y)
	assert.Len(t, world.DrainCollisions(), 1)

	require.NoError(t, sender.Close())
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ingest did not stop")
	}
}

func TestGenerateTLSConfig(t *testing.T) {
	conf, err := GenerateTLSConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{ALPN}, conf.NextProtos)
	assert.Len(t, conf.Certificates, 1)
}
