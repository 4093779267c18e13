package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/hitsense/internal/core/restoring"
	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
)

func TestApplyFrame(t *testing.T) {
	w := NewWorld(0)
	rot := [4]float32{0, 0.7071, 0, 0.7071}
	err := w.Apply(EngineFrame{
		Tick: 12,
		Poses: []PoseFrame{
			{Body: "left_foot", Position: [3]float32{0.1, 0.2, 0.3}},
			{Body: "stick_l", Position: [3]float32{1, 2, 3}, Rotation: &rot},
		},
		Collisions: []CollisionFrame{
			{Phase: "begin", A: "stick_l", B: "don_left"},
			{Phase: "stopped", A: "stick_l", B: "don_left"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(12), w.LastTick())

	p, ok := w.Pose(phys.NameID("left_foot"))
	require.True(t, ok)
	assert.Equal(t, phys.V3(0.1, 0.2, 0.3), p.Position)
	assert.Equal(t, phys.Identity, p.Orientation)

	p, _ = w.Pose(phys.NameID("stick_l"))
	assert.Equal(t, phys.QuatFrom(rot), p.Orientation)

	_, ok = w.Pose(phys.NameID("right_foot"))
	assert.False(t, ok)

	got := w.DrainCollisions()
	require.Len(t, got, 2)
	assert.Equal(t, phys.Collision{Phase: phys.Begin, A: phys.NameID("stick_l"), B: phys.NameID("don_left")}, got[0])
	assert.Equal(t, phys.End, got[1].Phase)
	assert.Empty(t, w.DrainCollisions())
}

func TestApplyUnknownPhaseKeepsRest(t *testing.T) {
	w := NewWorld(0)
	err := w.Apply(EngineFrame{
		Poses: []PoseFrame{{Body: "left_foot"}},
		Collisions: []CollisionFrame{
			{Phase: "touch", A: "stick_l", B: "don_left"},
			{Phase: "begin", A: "stick_l", B: "ka_left"},
		},
	})
	assert.ErrorIs(t, err, ErrUnknownPhase)

	_, ok := w.Pose(phys.NameID("left_foot"))
	assert.True(t, ok)
	require.Len(t, w.DrainCollisions(), 1)
}

func TestApplyCollisionLimit(t *testing.T) {
	w := NewWorld(1)
	err := w.Apply(EngineFrame{Collisions: []CollisionFrame{
		{Phase: "begin", A: "a", B: "b"},
		{Phase: "end", A: "a", B: "b"},
	}})
	assert.Error(t, err)
	assert.Equal(t, 1, w.Pending())

	got := w.DrainCollisions()
	require.Len(t, got, 1)
	assert.Equal(t, phys.End, got[0].Phase, "an End is kept over a Begin when the buffer is full")
}

func TestRestoringForceClearedWhenGrabbed(t *testing.T) {
	w := NewWorld(0)
	stick, pivot := w.Register("stick_l"), w.Register("pivot_l")
	sys := restoring.NewSystem(restoring.DefaultSpring)
	sys.Bind(stick, pivot)

	require.NoError(t, w.Apply(EngineFrame{Tick: 1, Poses: []PoseFrame{
		{Body: "stick_l", Position: [3]float32{1, 0, 0.3}},
		{Body: "pivot_l"},
	}}))
	sys.Apply(w, w, w)
	f := w.Forces(1)
	require.Len(t, f.Forces, 1)
	assert.Equal(t, [3]float32{-1, 0, 0}, f.Forces[0].Force)

	rigid := []string{"stick_l"}
	require.NoError(t, w.Apply(EngineFrame{Tick: 2, Rigid: &rigid}))
	sys.Apply(w, w, w)
	f = w.Forces(2)
	require.Len(t, f.Forces, 1)
	assert.Equal(t, "stick_l", f.Forces[0].Body)
	assert.Equal(t, [3]float32{}, f.Forces[0].Force)
	assert.Equal(t, [3]float32{}, f.Forces[0].Torque)
}

func TestRigidSetReplaced(t *testing.T) {
	w := NewWorld(0)
	rigid := []string{"stick_l"}
	require.NoError(t, w.Apply(EngineFrame{Rigid: &rigid}))
	assert.True(t, w.IsRigidlyParented(phys.NameID("stick_l")))

	// frames without the field leave the set alone
	require.NoError(t, w.Apply(EngineFrame{Tick: 1}))
	assert.True(t, w.IsRigidlyParented(phys.NameID("stick_l")))

	none := []string{}
	require.NoError(t, w.Apply(EngineFrame{Rigid: &none}))
	assert.False(t, w.IsRigidlyParented(phys.NameID("stick_l")))
}

func TestForcesSnapshot(t *testing.T) {
	w := NewWorld(0)
	r := w.Register("stick_r")
	l := w.Register("stick_l")
	w.SetWrench(r, phys.Wrench{Force: phys.V3(1, 0, 0), Torque: phys.V3(0, 0, 0.3)})
	w.SetWrench(l, phys.Wrench{Force: phys.V3(0, 1, 0)})
	w.SetWrench(l, phys.Wrench{Force: phys.V3(0, 2, 0)})

	f := w.Forces(4)
	assert.Equal(t, uint64(4), f.Tick)
	require.Len(t, f.Forces, 2)
	assert.Equal(t, "stick_l", f.Forces[0].Body)
	assert.Equal(t, [3]float32{0, 2, 0}, f.Forces[0].Force)
	assert.Equal(t, [3]float32{0, 0, 0.3}, f.Forces[1].Torque)
}

func TestNameOfUnknown(t *testing.T) {
	w := NewWorld(0)
	assert.Equal(t, "42", w.NameOf(42))
	id := w.Register("ka_left")
	assert.Equal(t, "ka_left", w.NameOf(id))
}

func TestDecodeEngineFrame(t *testing.T) {
	f, err := DecodeEngineFrame([]byte(`{"tick":3,"poses":[{"body":"left_foot","position":[0,1,0]}],"collisions":[{"phase":"begin","a":"x","b":"y"}]}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Tick)
	assert.Len(t, f.Poses, 1)
	assert.Nil(t, f.Rigid)

	_, err = DecodeEngineFrame([]byte(`{"tick":`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestBroadcasterDropsSlowPeer(t *testing.T) {
	b := newBroadcaster()
	p := &peer{id: "slow", send: make(chan []byte, 1)}
	b.add(p)

	assert.Empty(t, b.broadcast([]byte("one")))
	assert.Equal(t, []string{"slow"}, b.broadcast([]byte("two")))
	assert.Equal(t, 0, b.len())

	// the buffered message is still delivered before the channel closes
	msg, ok := <-p.send
	assert.True(t, ok)
	assert.Equal(t, "one", string(msg))
	_, ok = <-p.send
	assert.False(t, ok)
}
