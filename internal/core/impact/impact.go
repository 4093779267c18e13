// Package impact detects floor strikes from a tracked body's position stream
// using one-sample finite differences on the vertical axis.
package impact

import (
	"time"

	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
	"github.com/zeusync/hitsense/internal/core/thresholds"
)

// State is the one-sample history kept per tracked body.
type State struct {
	LastPos phys.Vec3
	LastVel phys.Vec3
}

// Sample is the outcome of one evaluation tick.
type Sample struct {
	Velocity     phys.Vec3 // displacement since the previous tick
	Acceleration phys.Vec3 // change in displacement since the previous tick
	Hit          bool
}

// Step applies the per-tick rule. The hit decision uses the history in st;
// the returned state always advances to (current, velocity).
func Step(st State, current phys.Vec3, th thresholds.Thresholds) (State, Sample) {
	v := current.Sub(st.LastPos)
	a := v.Sub(st.LastVel)

	s := Sample{
		Velocity:     v,
		Acceleration: a,
		Hit:          a.Y < th.AccFactor && v.Y < th.VelFactor,
	}
	return State{LastPos: current, LastVel: v}, s
}

// Impact is raised on every tick that satisfies the threshold condition.
type Impact struct {
	Body         phys.BodyID
	Tick         uint64
	Time         time.Time
	Velocity     float32 // vertical velocity estimate
	Acceleration float32 // vertical acceleration estimate
}
