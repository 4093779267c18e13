// Package restoring pulls held bodies back toward a point fixed relative to
// their parent. It is a continuous output written every tick, independent of
// contact state.
package restoring

import (
	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
)

// DefaultSpring matches the grip spring of the drumsticks.
var DefaultSpring = Spring{Offset: phys.V3(0, 0, 0.3), Strength: 1.0}

// Spring is a linear pull toward parent + Offset.
type Spring struct {
	Offset   phys.Vec3
	Strength float32
}

// Compute returns the wrench for a body at bodyPos whose parent sits at
// parentPos. The magnitude grows linearly with the distance to the target;
// at the target the force is zero. Torque is the offset vector itself.
func (s Spring) Compute(parentPos, bodyPos phys.Vec3) phys.Wrench {
	target := parentPos.Add(s.Offset)
	delta := target.Sub(bodyPos)
	force := delta.NormalizeOrZero().Scale(s.Strength * target.Distance(bodyPos))
	return phys.Wrench{Force: force, Torque: s.Offset}
}

type binding struct {
	body   phys.BodyID
	parent phys.BodyID
}

// System writes one wrench per bound body per tick.
type System struct {
	spring   Spring
	bindings []binding
	index    map[phys.BodyID]int
}

func NewSystem(spring Spring) *System {
	return &System{
		spring: spring,
		index:  make(map[phys.BodyID]int),
	}
}

func (s *System) Spring() Spring { return s.spring }

// Bind attaches body to parent. Binding an already bound body replaces its
// parent.
func (s *System) Bind(body, parent phys.BodyID) {
	if i, ok := s.index[body]; ok {
		s.bindings[i].parent = parent
		return
	}
	s.index[body] = len(s.bindings)
	s.bindings = append(s.bindings, binding{body: body, parent: parent})
}

// Len returns the number of bound bodies.
func (s *System) Len() int { return len(s.bindings) }

// Apply overwrites the wrench of every bound body each tick. Rigidly
// parented bodies, and bodies or parents without a pose, get a zero wrench
// so a force from an earlier tick never lingers. parenting may be nil.
func (s *System) Apply(poses phys.PoseSource, parenting phys.ParentingSource, sink phys.ForceSink) {
	if sink == nil {
		return
	}
	for _, b := range s.bindings {
		sink.SetWrench(b.body, s.wrench(poses, parenting, b))
	}
}

func (s *System) wrench(poses phys.PoseSource, parenting phys.ParentingSource, b binding) phys.Wrench {
	if poses == nil {
		return phys.Wrench{}
	}
	if parenting != nil && parenting.IsRigidlyParented(b.body) {
		return phys.Wrench{}
	}
	body, ok := poses.Pose(b.body)
	if !ok {
		return phys.Wrench{}
	}
	parent, ok := poses.Pose(b.parent)
	if !ok {
		return phys.Wrench{}
	}
	return s.spring.Compute(parent.Position, body.Position)
}
