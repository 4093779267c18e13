package systems

import (
	"context"
	"time"
)

// System is one stage of the fixed step. Stages of the same tick run on the
// tick goroutine in ExecutionPhase order and never block.
type System interface {
	// Identity

	Name() string

	// Configuration

	ExecutionPhase() ExecutionPhase

	// Execution

	FixedUpdate(ctx context.Context, frame Frame) error
}

// Frame describes the tick being executed.
type Frame struct {
	Tick  uint64
	Time  time.Time
	Delta time.Duration
}

// ExecutionPhase defines when a system runs inside a tick
type ExecutionPhase uint8

const (
	// PhasePreUpdate applies pending configuration before anything reads it.
	PhasePreUpdate ExecutionPhase = iota
	// PhaseUpdate evaluates tracked bodies.
	PhaseUpdate
	// PhasePostUpdate consumes the collision notifications of the step.
	PhasePostUpdate
	// PhaseFixedUpdate writes continuous outputs such as forces.
	PhaseFixedUpdate
	// PhaseLateUpdate runs after all outputs are written.
	PhaseLateUpdate
)

func (p ExecutionPhase) String() string {
	switch p {
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseFixedUpdate:
		return "fixed_update"
	case PhaseLateUpdate:
		return "late_update"
	default:
		return "unknown"
	}
}

// Func adapts a function to System.
type Func struct {
	ID    string
	Phase ExecutionPhase
	Fn    func(ctx context.Context, frame Frame) error
}

func (f Func) Name() string                   { return f.ID }
func (f Func) ExecutionPhase() ExecutionPhase { return f.Phase }

func (f Func) FixedUpdate(ctx context.Context, frame Frame) error {
	return f.Fn(ctx, frame)
}

// Metrics provides runtime metrics for a system
type Metrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
	LastExecutionTime    time.Time
}

// Observe folds one execution into m.
func (m *Metrics) Observe(at time.Time, took time.Duration, err error) {
	m.ExecutionCount++
	m.TotalExecutionTime += took
	m.AverageExecutionTime = m.TotalExecutionTime / time.Duration(m.ExecutionCount)
	if took > m.MaxExecutionTime {
		m.MaxExecutionTime = took
	}
	m.LastExecutionTime = at
	if err != nil {
		m.ErrorCount++
		m.LastError = err
	}
}
