package bridge

import (
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
	"github.com/zeusync/hitsense/pkg/sequence"
)

// World is the daemon-side mirror of engine state. Transports write frames
// into it from their own goroutines; the tick goroutine reads poses, drains
// collisions and writes wrenches.
type World struct {
	mu       sync.RWMutex
	poses    map[phys.BodyID]phys.Pose
	rigid    map[phys.BodyID]struct{}
	names    map[phys.BodyID]string
	wrenches map[phys.BodyID]phys.Wrench
	tick     uint64

	collisions *sequence.Queue[phys.Collision]
}

// NewWorld creates an empty world. maxPending caps the buffered collision
// notifications between two ticks; zero means unbounded.
func NewWorld(maxPending int) *World {
	return &World{
		poses:      make(map[phys.BodyID]phys.Pose),
		rigid:      make(map[phys.BodyID]struct{}),
		names:      make(map[phys.BodyID]string),
		wrenches:   make(map[phys.BodyID]phys.Wrench),
		collisions: sequence.NewQueue(maxPending, sequence.WithEvictable(isBegin)),
	}
}

// isBegin marks the notifications sacrificed first when the buffer is full.
// Losing a Begin misses one hit; losing an End would leave a body engaged.
func isBegin(c phys.Collision) bool { return c.Phase == phys.Begin }

// Register records an engine name and returns its id.
func (w *World) Register(name string) phys.BodyID {
	id := phys.NameID(name)
	w.mu.Lock()
	w.names[id] = name
	w.mu.Unlock()
	return id
}

// NameOf returns the engine name of id, or its decimal form when the name
// has never been seen.
func (w *World) NameOf(id phys.BodyID) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.nameLocked(id)
}

func (w *World) nameLocked(id phys.BodyID) string {
	if n, ok := w.names[id]; ok {
		return n
	}
	return strconv.FormatUint(uint64(id), 10)
}

// Apply merges one engine frame. Poses replace the latest sample per body;
// collisions are queued in frame order. Collisions with an unknown phase are
// skipped and reported; the rest of the frame still applies.
func (w *World) Apply(f EngineFrame) error {
	batch := make([]phys.Collision, 0, len(f.Collisions))
	rejected := 0

	w.mu.Lock()
	if f.Tick > w.tick {
		w.tick = f.Tick
	}
	for _, p := range f.Poses {
		id := w.learnLocked(p.Body)
		pose := phys.PoseAt(phys.Vec3From(p.Position))
		if p.Rotation != nil {
			pose.Orientation = phys.QuatFrom(*p.Rotation)
		}
		w.poses[id] = pose
	}
	if f.Rigid != nil {
		w.rigid = make(map[phys.BodyID]struct{}, len(*f.Rigid))
		for _, name := range *f.Rigid {
			w.rigid[w.learnLocked(name)] = struct{}{}
		}
	}
	for _, c := range f.Collisions {
		phase, ok := phys.ParsePhase(c.Phase)
		if !ok {
			rejected++
			continue
		}
		batch = append(batch, phys.Collision{Phase: phase, A: w.learnLocked(c.A), B: w.learnLocked(c.B)})
	}
	w.mu.Unlock()

	if len(batch) > 0 && !w.collisions.Push(batch...) {
		return errors.Errorf("collision buffer full, %d notifications dropped so far", w.collisions.Dropped())
	}
	if rejected > 0 {
		return errors.Wrapf(ErrUnknownPhase, "%d collisions rejected", rejected)
	}
	return nil
}

func (w *World) learnLocked(name string) phys.BodyID {
	id := phys.NameID(name)
	if _, ok := w.names[id]; !ok {
		w.names[id] = name
	}
	return id
}

// LastTick is the highest engine tick seen so far.
func (w *World) LastTick() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tick
}

func (w *World) Pose(id phys.BodyID) (phys.Pose, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.poses[id]
	return p, ok
}

func (w *World) IsRigidlyParented(id phys.BodyID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.rigid[id]
	return ok
}

func (w *World) DrainCollisions() []phys.Collision {
	return w.collisions.Drain()
}

// Pending returns the number of collision notifications waiting for the
// next tick.
func (w *World) Pending() int { return w.collisions.Len() }

func (w *World) SetWrench(id phys.BodyID, wr phys.Wrench) {
	w.mu.Lock()
	w.wrenches[id] = wr
	w.mu.Unlock()
}

// Forces snapshots the current wrenches, ordered by body name.
func (w *World) Forces(tick uint64) ForceFrame {
	w.mu.RLock()
	out := ForceFrame{Tick: tick, Forces: make([]WrenchFrame, 0, len(w.wrenches))}
	for id, wr := range w.wrenches {
		out.Forces = append(out.Forces, WrenchFrame{
			Body:   w.nameLocked(id),
			Force:  wr.Force.Array(),
			Torque: wr.Torque.Array(),
		})
	}
	w.mu.RUnlock()

	sort.Slice(out.Forces, func(i, j int) bool { return out.Forces[i].Body < out.Forces[j].Body })
	return out
}
