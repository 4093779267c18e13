// Package metrics exposes the core's counters through the global
// OpenTelemetry meter. Without an installed SDK every instrument is a no-op.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zeusync/hitsense/internal/core/events/bus"
)

const instrumentationName = "github.com/zeusync/hitsense/internal/core"

// Recorder groups the instruments used across the detector components.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	impacts    metric.Int64Counter
	dispatches metric.Int64Counter
	unresolved metric.Int64Counter
	reloads    metric.Int64Counter
	published  metric.Int64Counter
	failures   metric.Int64Counter
}

// New creates a Recorder on the global meter provider.
func New() (*Recorder, error) {
	return NewWithMeter(otel.Meter(instrumentationName))
}

// NewWithMeter creates a Recorder on the given meter.
func NewWithMeter(m metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err error

	r.impacts, err = m.Int64Counter(
		"hitsense.impacts",
		metric.WithDescription("Impact events raised by the kinematic detector"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating impacts counter: %w", err)
	}

	r.dispatches, err = m.Int64Counter(
		"hitsense.contact.dispatches",
		metric.WithDescription("Zone actions dispatched by the contact debounce machine"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dispatches counter: %w", err)
	}

	r.unresolved, err = m.Int64Counter(
		"hitsense.contact.unresolved",
		metric.WithDescription("Collision notifications dropped because no contact body was involved"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unresolved counter: %w", err)
	}

	r.reloads, err = m.Int64Counter(
		"hitsense.thresholds.reloads",
		metric.WithDescription("Threshold reload attempts by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating reloads counter: %w", err)
	}

	r.published, err = m.Int64Counter(
		"hitsense.events.published",
		metric.WithDescription("Events published on the bus by type"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating published counter: %w", err)
	}

	r.failures, err = m.Int64Counter(
		"hitsense.events.handler_errors",
		metric.WithDescription("Publishes where at least one handler failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handler errors counter: %w", err)
	}

	return r, nil
}

func (r *Recorder) Impact(ctx context.Context) {
	if r == nil {
		return
	}
	r.impacts.Add(ctx, 1)
}

func (r *Recorder) Dispatch(ctx context.Context, zone string) {
	if r == nil {
		return
	}
	r.dispatches.Add(ctx, 1, metric.WithAttributes(attribute.String("zone", zone)))
}

func (r *Recorder) Unresolved(ctx context.Context) {
	if r == nil {
		return
	}
	r.unresolved.Add(ctx, 1)
}

func (r *Recorder) Reload(ctx context.Context, ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.reloads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

var _ bus.Observer = (*Recorder)(nil)

// OnPublish counts bus publishes so the Recorder can be added as a bus
// observer.
func (r *Recorder) OnPublish(eventType string, _ bus.Event) {
	if r == nil {
		return
	}
	r.published.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", eventType)))
}

func (r *Recorder) OnDelivered(eventType string, _ int, err error, _ int64) {
	if r == nil || err == nil {
		return
	}
	r.failures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", eventType)))
}
