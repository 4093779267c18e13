// Package contact debounces engine collision notifications into one-shot
// zone hits. Each contact body (a drumstick) carries a small state machine
// that is Idle or Engaged with the zone that engaged it.
package contact

import (
	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
)

// Zone is a contact-zone category such as "don" or "ka". The empty Zone
// means "no zone".
type Zone string

const NoZone Zone = ""

// State is Idle (zero value) or Engaged(zone).
type State struct {
	zone Zone
}

var Idle = State{}

func Engaged(z Zone) State { return State{zone: z} }

func (s State) IsEngaged() bool { return s.zone != NoZone }

// Zone returns the engaging zone, or NoZone when idle.
func (s State) Zone() Zone { return s.zone }

func (s State) String() string {
	if !s.IsEngaged() {
		return "idle"
	}
	return "engaged(" + string(s.zone) + ")"
}

// Classified is a collision notification resolved against the registry.
type Classified struct {
	Phase phys.Phase
	Body  phys.BodyID // the side carrying debounce state
	Other phys.BodyID // the opposite side
	Zone  Zone        // category of the zoned side, if exactly one side is zoned
	Zoned int         // number of sides that carry a zone
}

// Dispatch tells the caller whether a zone action must run.
type Dispatch struct {
	Fire bool
	Zone Zone
}

// Transition is the debounce rule: pure in (state, notification) and
// producing at most one dispatch.
func Transition(s State, c Classified) (State, Dispatch) {
	switch c.Phase {
	case phys.Begin:
		if s.IsEngaged() || c.Zoned != 1 {
			return s, Dispatch{}
		}
		return Engaged(c.Zone), Dispatch{Fire: true, Zone: c.Zone}
	case phys.End:
		if s.IsEngaged() && c.Zoned == 1 && c.Zone == s.zone {
			return Idle, Dispatch{}
		}
		return s, Dispatch{}
	default:
		return s, Dispatch{}
	}
}
