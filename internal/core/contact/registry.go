package contact

import (
	"fmt"
	"sort"

	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
)

type role uint8

const (
	roleNone role = iota
	roleBody
	roleZone
)

// Registry maps collider identities to their role in contact resolution.
type Registry struct {
	bodies map[phys.BodyID]phys.BodyID // body -> parent
	zones  map[phys.BodyID]Zone
}

func NewRegistry() *Registry {
	return &Registry{
		bodies: make(map[phys.BodyID]phys.BodyID),
		zones:  make(map[phys.BodyID]Zone),
	}
}

// AddBody registers a contact body and the reference body it returns to.
func (r *Registry) AddBody(id, parent phys.BodyID) error {
	if _, ok := r.zones[id]; ok {
		return fmt.Errorf("%w: %d is a zone collider", ErrRoleConflict, id)
	}
	r.bodies[id] = parent
	return nil
}

// AddZone tags a collider with a zone category. Several colliders may share
// one zone.
func (r *Registry) AddZone(collider phys.BodyID, z Zone) error {
	if z == NoZone {
		return ErrEmptyZone
	}
	if _, ok := r.bodies[collider]; ok {
		return fmt.Errorf("%w: %d is a contact body", ErrRoleConflict, collider)
	}
	r.zones[collider] = z
	return nil
}

func (r *Registry) Parent(body phys.BodyID) (phys.BodyID, bool) {
	p, ok := r.bodies[body]
	return p, ok
}

func (r *Registry) ZoneOf(collider phys.BodyID) (Zone, bool) {
	z, ok := r.zones[collider]
	return z, ok
}

// Zones lists every distinct zone category, sorted.
func (r *Registry) Zones() []Zone {
	seen := make(map[Zone]struct{}, len(r.zones))
	out := make([]Zone, 0, len(r.zones))
	for _, z := range r.zones {
		if _, ok := seen[z]; ok {
			continue
		}
		seen[z] = struct{}{}
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) roleOf(id phys.BodyID) role {
	if _, ok := r.bodies[id]; ok {
		return roleBody
	}
	if _, ok := r.zones[id]; ok {
		return roleZone
	}
	return roleNone
}

// Classify resolves which side of the notification carries debounce state
// and which carries a zone. A pair with no contact body is unresolved.
func (r *Registry) Classify(c phys.Collision) (Classified, error) {
	ra, rb := r.roleOf(c.A), r.roleOf(c.B)

	out := Classified{Phase: c.Phase}
	switch {
	case ra == roleBody:
		out.Body, out.Other = c.A, c.B
	case rb == roleBody:
		out.Body, out.Other = c.B, c.A
	default:
		return Classified{}, ErrUnresolvedPair
	}

	if z, ok := r.ZoneOf(c.A); ok {
		out.Zoned++
		out.Zone = z
	}
	if z, ok := r.ZoneOf(c.B); ok {
		out.Zoned++
		out.Zone = z
	}
	if out.Zoned != 1 {
		out.Zone = NoZone
	}
	return out, nil
}
