package contact

import (
	"context"
	"errors"
	"time"

	"github.com/zeusync/hitsense/internal/core/observability/log"
	"github.com/zeusync/hitsense/internal/core/observability/metrics"
	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
)

// Hit is produced once per engagement of a contact body with a zone.
type Hit struct {
	Body  phys.BodyID
	Zone  Zone
	Other phys.BodyID // the zone collider that was touched
	Tick  uint64
	Time  time.Time
}

// Action is the side effect registered for a zone.
type Action func(Hit)

// Pair is the long-lived debounce state of one contact body.
type Pair struct {
	Body   phys.BodyID
	Parent phys.BodyID
	State  State
}

// Machine owns the debounce state of every registered contact body. It is
// driven from the tick goroutine only.
type Machine struct {
	registry  *Registry
	pairs     map[phys.BodyID]*Pair
	actions   map[Zone][]Action
	onRelease []func(Hit)
	now       func() time.Time
	logger    log.Log
	metrics   *metrics.Recorder
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Machine) { m.metrics = r }
}

func NewMachine(registry *Registry, logger log.Log, opts ...Option) *Machine {
	m := &Machine{
		registry: registry,
		pairs:    make(map[phys.BodyID]*Pair),
		actions:  make(map[Zone][]Action),
		now:      time.Now,
		logger:   logger.With(log.String("component", "contact")),
	}
	for _, opt := range opts {
		opt(m)
	}
	for body, parent := range registry.bodies {
		m.pairs[body] = &Pair{Body: body, Parent: parent}
	}
	return m
}

// AddBody registers a contact body after construction.
func (m *Machine) AddBody(body, parent phys.BodyID) error {
	if err := m.registry.AddBody(body, parent); err != nil {
		return err
	}
	if _, ok := m.pairs[body]; !ok {
		m.pairs[body] = &Pair{Body: body, Parent: parent}
	}
	return nil
}

// Zones lists the zone categories known to the registry.
func (m *Machine) Zones() []Zone { return m.registry.Zones() }

// OnZone registers an action for a zone. Actions run in registration order,
// inline with the notification that engaged the zone.
func (m *Machine) OnZone(z Zone, a Action) {
	m.actions[z] = append(m.actions[z], a)
}

// OnRelease registers a callback for Engaged -> Idle transitions. Callbacks
// run inline with the notification that released the zone.
func (m *Machine) OnRelease(fn func(Hit)) {
	m.onRelease = append(m.onRelease, fn)
}

// Pair returns a copy of the debounce state of body.
func (m *Machine) Pair(body phys.BodyID) (Pair, bool) {
	p, ok := m.pairs[body]
	if !ok {
		return Pair{}, false
	}
	return *p, true
}

// Pairs returns copies of every pair.
func (m *Machine) Pairs() []Pair {
	out := make([]Pair, 0, len(m.pairs))
	for _, p := range m.pairs {
		out = append(out, *p)
	}
	return out
}

// Process drains one tick's notifications in delivery order and returns the
// hits dispatched. Notifications without a contact body are dropped with a
// diagnostic and processing continues.
func (m *Machine) Process(ctx context.Context, tick uint64, batch []phys.Collision) []Hit {
	var hits []Hit
	for _, c := range batch {
		cl, err := m.registry.Classify(c)
		if err != nil {
			if errors.Is(err, ErrUnresolvedPair) {
				m.metrics.Unresolved(ctx)
			}
			m.logger.Warn("no contact body in collision",
				log.String("phase", c.Phase.String()),
				log.Uint64("a", uint64(c.A)),
				log.Uint64("b", uint64(c.B)),
				log.Uint64("tick", tick))
			continue
		}

		pair, ok := m.pairs[cl.Body]
		if !ok {
			parent, _ := m.registry.Parent(cl.Body)
			pair = &Pair{Body: cl.Body, Parent: parent}
			m.pairs[cl.Body] = pair
		}
		prev := pair.State
		next, d := Transition(prev, cl)
		pair.State = next

		if d.Fire {
			hit := Hit{Body: cl.Body, Zone: d.Zone, Other: cl.Other, Tick: tick, Time: m.now()}
			hits = append(hits, hit)
			m.metrics.Dispatch(ctx, string(d.Zone))
			m.logger.Debug("zone hit",
				log.Uint64("body", uint64(cl.Body)),
				log.String("zone", string(d.Zone)),
				log.Uint64("tick", tick))
			for _, a := range m.actions[d.Zone] {
				a(hit)
			}
			continue
		}

		if prev.IsEngaged() && !next.IsEngaged() {
			rel := Hit{Body: cl.Body, Zone: prev.Zone(), Other: cl.Other, Tick: tick, Time: m.now()}
			for _, fn := range m.onRelease {
				fn(rel)
			}
		}
	}
	return hits
}
