package physics

// Boundary contracts with the engine side. The core only reads poses and
// collision notifications and only writes wrenches; everything else
// (integration, collision detection, scene graph) lives behind these.

// PoseSource supplies the current world pose of a tracked or simulated body.
// ok is false when no sample exists for the body this tick.
type PoseSource interface {
	Pose(id BodyID) (pose Pose, ok bool)
}

// CollisionSource delivers buffered collision notifications in the order the
// engine produced them. Each call drains the queue.
type CollisionSource interface {
	DrainCollisions() []Collision
}

// ForceSink accepts one force/torque pair per body per tick. Implementations
// must overwrite the previous value, never accumulate.
type ForceSink interface {
	SetWrench(id BodyID, w Wrench)
}

// ParentingSource answers whether a body is locked to its parent in the
// scene graph, in which case no restoring force is needed.
type ParentingSource interface {
	IsRigidlyParented(id BodyID) bool
}

// Phase of a collision notification.
type Phase uint8

const (
	Begin Phase = iota + 1
	End
)

func (p Phase) String() string {
	switch p {
	case Begin:
		return "begin"
	case End:
		return "end"
	default:
		return "unknown"
	}
}

// ParsePhase maps the wire names "begin"/"started" and "end"/"stopped".
func ParsePhase(s string) (Phase, bool) {
	switch s {
	case "begin", "started":
		return Begin, true
	case "end", "stopped":
		return End, true
	default:
		return 0, false
	}
}

// Collision is a begin/end notification for a pair of colliders.
type Collision struct {
	Phase Phase
	A, B  BodyID
}

// Wrench is the force and torque written to a body for one tick.
type Wrench struct {
	Force  Vec3
	Torque Vec3
}
