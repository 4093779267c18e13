package system

import (
	"context"
	"sync/atomic"

	"github.com/zeusync/hitsense/internal/core/contact"
	"github.com/zeusync/hitsense/internal/core/events/bus"
	"github.com/zeusync/hitsense/internal/core/impact"
	"github.com/zeusync/hitsense/internal/core/observability/log"
	"github.com/zeusync/hitsense/internal/core/restoring"
	"github.com/zeusync/hitsense/internal/core/systems"
	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
	"github.com/zeusync/hitsense/internal/core/thresholds"
)

const (
	sourceImpact  = "impact"
	sourceContact = "contact"
)

// reloadStage applies at most one pending reload per tick.
type reloadStage struct {
	loader  *thresholds.Loader
	pending *atomic.Bool
}

func (s *reloadStage) Name() string                           { return "thresholds.reload" }
func (s *reloadStage) ExecutionPhase() systems.ExecutionPhase { return systems.PhasePreUpdate }

func (s *reloadStage) FixedUpdate(ctx context.Context, _ systems.Frame) error {
	if !s.pending.Swap(false) {
		return nil
	}
	// failures are already logged and counted by the loader; the previous
	// thresholds stay live
	_ = s.loader.Reload(ctx)
	return nil
}

type impactStage struct {
	detector *impact.Detector
	poses    phys.PoseSource
	store    *thresholds.Store
	bus      bus.EventBus
	logger   log.Log
}

func (s *impactStage) Name() string                           { return "impact.evaluate" }
func (s *impactStage) ExecutionPhase() systems.ExecutionPhase { return systems.PhaseUpdate }

func (s *impactStage) FixedUpdate(ctx context.Context, frame systems.Frame) error {
	var th *thresholds.Thresholds
	if s.store != nil {
		th = s.store.Current()
	}
	impacts := s.detector.Evaluate(ctx, frame.Tick, s.poses, th)
	if len(impacts) == 0 {
		return nil
	}
	events := make([]bus.Event, len(impacts))
	for i, imp := range impacts {
		events[i] = bus.NewEvent(bus.ImpactDetected, sourceImpact, imp.Time, imp)
	}
	publish(s.bus, s.logger, events...)
	return nil
}

// contactStage feeds the tick's notifications to the debounce machine. Zone
// events are published by the machine's actions.
type contactStage struct {
	machine    *contact.Machine
	collisions phys.CollisionSource
}

func (s *contactStage) Name() string                           { return "contact.process" }
func (s *contactStage) ExecutionPhase() systems.ExecutionPhase { return systems.PhasePostUpdate }

func (s *contactStage) FixedUpdate(ctx context.Context, frame systems.Frame) error {
	if s.collisions == nil {
		return nil
	}
	batch := s.collisions.DrainCollisions()
	if len(batch) == 0 {
		return nil
	}
	s.machine.Process(ctx, frame.Tick, batch)
	return nil
}

type restoringStage struct {
	system    *restoring.System
	poses     phys.PoseSource
	parenting phys.ParentingSource
	sink      phys.ForceSink
}

func (s *restoringStage) Name() string                           { return "restoring.apply" }
func (s *restoringStage) ExecutionPhase() systems.ExecutionPhase { return systems.PhaseFixedUpdate }

func (s *restoringStage) FixedUpdate(_ context.Context, _ systems.Frame) error {
	s.system.Apply(s.poses, s.parenting, s.sink)
	return nil
}

// publish hands events to the feedback sinks in order. A failing sink never
// stops the tick.
func publish(b bus.EventBus, logger log.Log, events ...bus.Event) {
	if b == nil || len(events) == 0 {
		return
	}
	if err := b.PublishBatch(events...); err != nil {
		logger.Warn("event sink failed",
			log.String("type", events[0].Type()),
			log.Int("events", len(events)),
			log.Error(err))
	}
}
