// Package system drives the detector core one fixed step at a time.
package system

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/hitsense/internal/core/contact"
	"github.com/zeusync/hitsense/internal/core/events/bus"
	"github.com/zeusync/hitsense/internal/core/impact"
	"github.com/zeusync/hitsense/internal/core/observability/log"
	"github.com/zeusync/hitsense/internal/core/restoring"
	"github.com/zeusync/hitsense/internal/core/systems"
	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
	"github.com/zeusync/hitsense/internal/core/thresholds"
)

// DefaultRate is the fixed step used when none is configured.
const DefaultRate = time.Second / 90

var (
	ErrDuplicateSystem = errors.New("system already registered")
	ErrAlreadyRunning  = errors.New("runner already running")
)

// Components are the collaborators of one tick. Any nil component disables
// the stage that needs it.
type Components struct {
	Poses      phys.PoseSource
	Collisions phys.CollisionSource
	Forces     phys.ForceSink
	Parenting  phys.ParentingSource

	Loader    *thresholds.Loader
	Store     *thresholds.Store
	Detector  *impact.Detector
	Machine   *contact.Machine
	Restoring *restoring.System
	Bus       bus.EventBus
}

type stage struct {
	sys     systems.System
	metrics systems.Metrics
}

// Runner executes the stages of each tick in phase order:
// pending reload, impact evaluation, collision draining, restoring forces,
// then any late stages such as the bridge flush.
type Runner struct {
	mu      sync.Mutex
	stages  []*stage
	byName  map[string]*stage
	reload  atomic.Bool
	tick    uint64
	rate    time.Duration
	now     func() time.Time
	last    time.Time
	logger  log.Log
	running atomic.Bool

	machine   *contact.Machine
	restoring *restoring.System
}

// Status is a snapshot of the core between two ticks.
type Status struct {
	Ticks    uint64
	Contacts []contact.Pair
	Springs  int
}

type Option func(*Runner)

func WithRate(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.rate = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(c Components, logger log.Log, opts ...Option) *Runner {
	r := &Runner{
		byName:    make(map[string]*stage),
		rate:      DefaultRate,
		now:       time.Now,
		logger:    logger.With(log.String("component", "runner")),
		machine:   c.Machine,
		restoring: c.Restoring,
	}
	for _, opt := range opts {
		opt(r)
	}

	store := c.Store
	if store == nil && c.Loader != nil {
		store = c.Loader.Store()
	}
	if c.Loader != nil {
		_ = r.Add(&reloadStage{loader: c.Loader, pending: &r.reload})
	}
	if c.Detector != nil {
		_ = r.Add(&impactStage{detector: c.Detector, poses: c.Poses, store: store, bus: c.Bus, logger: r.logger})
	}
	if c.Machine != nil {
		// both actions publish while the batch is folded, so sinks see
		// engagements and releases in notification order
		if c.Bus != nil {
			b, logger := c.Bus, r.logger
			engaged := func(h contact.Hit) {
				publish(b, logger, bus.NewEvent(bus.ContactEngaged, sourceContact, h.Time, h))
			}
			for _, z := range c.Machine.Zones() {
				c.Machine.OnZone(z, engaged)
			}
			c.Machine.OnRelease(func(h contact.Hit) {
				publish(b, logger, bus.NewEvent(bus.ContactReleased, sourceContact, h.Time, h))
			})
		}
		_ = r.Add(&contactStage{machine: c.Machine, collisions: c.Collisions})
	}
	if c.Restoring != nil {
		_ = r.Add(&restoringStage{system: c.Restoring, poses: c.Poses, parenting: c.Parenting, sink: c.Forces})
	}
	return r
}

// Add registers an extra stage. Stages of the same phase run in the order
// they were added.
func (r *Runner) Add(s systems.System) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSystem, s.Name())
	}
	st := &stage{sys: s}
	r.stages = append(r.stages, st)
	r.byName[s.Name()] = st
	sort.SliceStable(r.stages, func(i, j int) bool {
		return r.stages[i].sys.ExecutionPhase() < r.stages[j].sys.ExecutionPhase()
	})
	return nil
}

// ExecutionOrder lists stage names in the order a tick runs them.
func (r *Runner) ExecutionOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.stages))
	for i, st := range r.stages {
		out[i] = st.sys.Name()
	}
	return out
}

// SystemMetrics returns the execution counters of a stage.
func (r *Runner) SystemMetrics(name string) (systems.Metrics, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.byName[name]
	if !ok {
		return systems.Metrics{}, false
	}
	return st.metrics, true
}

// RequestReload asks for a thresholds reload at the start of the next tick.
// Requests made before that tick collapse into one. Safe from any goroutine.
func (r *Runner) RequestReload() {
	r.reload.Store(true)
}

// Ticks returns the number of completed ticks.
func (r *Runner) Ticks() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tick
}

// Status reports tick count, debounce state and bound springs. It waits for
// a running tick to finish, so the snapshot never shows a half-applied step.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{Ticks: r.tick}
	if r.machine != nil {
		st.Contacts = r.machine.Pairs()
	}
	if r.restoring != nil {
		st.Springs = r.restoring.Len()
	}
	return st
}

// Tick runs one fixed step. Stage errors are logged and joined; every stage
// runs regardless.
func (r *Runner) Tick(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	frame := systems.Frame{Tick: r.tick, Time: now}
	if !r.last.IsZero() {
		frame.Delta = now.Sub(r.last)
	}
	r.last = now

	var all error
	for _, st := range r.stages {
		start := time.Now()
		err := st.sys.FixedUpdate(ctx, frame)
		st.metrics.Observe(start, time.Since(start), err)
		if err != nil {
			r.logger.Warn("system failed",
				log.String("system", st.sys.Name()),
				log.Uint64("tick", frame.Tick),
				log.Error(err))
			all = errors.Join(all, err)
		}
	}
	r.tick++
	return all
}

// Run ticks at the configured rate until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	ticker := time.NewTicker(r.rate)
	defer ticker.Stop()

	r.logger.Info("runner started", log.Duration("rate", r.rate))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped", log.Uint64("ticks", r.Ticks()))
			return nil
		case <-ticker.C:
			_ = r.Tick(ctx)
		}
	}
}
