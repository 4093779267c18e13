package impact

import (
	"context"
	"time"

	"github.com/zeusync/hitsense/internal/core/observability/log"
	"github.com/zeusync/hitsense/internal/core/observability/metrics"
	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
	"github.com/zeusync/hitsense/internal/core/thresholds"
)

// Detector tracks a set of bodies and evaluates them once per tick. It is
// not safe for concurrent use; the tick runner owns it.
type Detector struct {
	states  map[phys.BodyID]*State
	order   []phys.BodyID
	now     func() time.Time
	logger  log.Log
	metrics *metrics.Recorder
}

type Option func(*Detector)

// WithClock overrides the timestamp source for raised impacts.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(d *Detector) { d.metrics = r }
}

func NewDetector(logger log.Log, opts ...Option) *Detector {
	d := &Detector{
		states: make(map[phys.BodyID]*State),
		now:    time.Now,
		logger: logger.With(log.String("component", "impact")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Attach starts tracking id from a zero history. Attaching an already
// tracked body keeps its history.
func (d *Detector) Attach(id phys.BodyID) {
	if _, ok := d.states[id]; ok {
		return
	}
	d.states[id] = &State{}
	d.order = append(d.order, id)
	d.logger.Info("tracking body", log.Uint64("body", uint64(id)))
}

// Detach stops tracking id and forgets its history.
func (d *Detector) Detach(id phys.BodyID) {
	if _, ok := d.states[id]; !ok {
		return
	}
	delete(d.states, id)
	for i, b := range d.order {
		if b == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Tracked returns the tracked bodies in attachment order.
func (d *Detector) Tracked() []phys.BodyID {
	out := make([]phys.BodyID, len(d.order))
	copy(out, d.order)
	return out
}

func (d *Detector) History(id phys.BodyID) (State, bool) {
	st, ok := d.states[id]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Evaluate runs one tick over every tracked body. With no thresholds nothing
// is evaluated; a body without a pose this tick is skipped and keeps its
// history.
func (d *Detector) Evaluate(ctx context.Context, tick uint64, poses phys.PoseSource, th *thresholds.Thresholds) []Impact {
	if th == nil || poses == nil {
		return nil
	}

	var out []Impact
	for _, id := range d.order {
		pose, ok := poses.Pose(id)
		if !ok {
			d.logger.Debug("no pose sample, skipping", log.Uint64("body", uint64(id)), log.Uint64("tick", tick))
			continue
		}

		st := d.states[id]
		next, s := Step(*st, pose.Position, *th)
		*st = next

		if s.Hit {
			imp := Impact{
				Body:         id,
				Tick:         tick,
				Time:         d.now(),
				Velocity:     s.Velocity.Y,
				Acceleration: s.Acceleration.Y,
			}
			out = append(out, imp)
			d.metrics.Impact(ctx)
			d.logger.Info("foot hit floor",
				log.Uint64("body", uint64(id)),
				log.Uint64("tick", tick),
				log.Time("at", imp.Time),
				log.Float32("y_vel", imp.Velocity),
				log.Float32("y_acc", imp.Acceleration))
		}
	}
	return out
}
