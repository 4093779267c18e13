package bridge

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// EngineFrame is one step of engine state pushed by the engine plugin.
type EngineFrame struct {
	Tick       uint64           `json:"tick"`
	Poses      []PoseFrame      `json:"poses,omitempty"`
	Collisions []CollisionFrame `json:"collisions,omitempty"`

	// Rigid, when present, replaces the set of bodies locked to their parent.
	Rigid *[]string `json:"rigid,omitempty"`
}

type PoseFrame struct {
	Body     string      `json:"body"`
	Position [3]float32  `json:"position"`
	Rotation *[4]float32 `json:"rotation,omitempty"`
}

type CollisionFrame struct {
	Phase string `json:"phase"`
	A     string `json:"a"`
	B     string `json:"b"`
}

// ForceFrame is sent back to the engine after every tick.
type ForceFrame struct {
	Tick   uint64        `json:"tick"`
	Forces []WrenchFrame `json:"forces"`
}

type WrenchFrame struct {
	Body   string     `json:"body"`
	Force  [3]float32 `json:"force"`
	Torque [3]float32 `json:"torque"`
}

// FeedbackMessage is the payload fanned out to feedback clients.
type FeedbackMessage struct {
	Type         string    `json:"type"`
	Body         string    `json:"body"`
	Tick         uint64    `json:"tick"`
	Time         time.Time `json:"time"`
	Zone         string    `json:"zone,omitempty"`
	Other        string    `json:"other,omitempty"`
	Velocity     float32   `json:"velocity,omitempty"`
	Acceleration float32   `json:"acceleration,omitempty"`
}

// StatusFrame is served on the status endpoint.
type StatusFrame struct {
	Ticks             uint64         `json:"ticks"`
	EngineTick        uint64         `json:"engine_tick"`
	Engines           int            `json:"engines"`
	FeedbackClients   int            `json:"feedback_clients"`
	PendingCollisions int            `json:"pending_collisions"`
	Springs           int            `json:"springs"`
	Contacts          []ContactFrame `json:"contacts"`
}

type ContactFrame struct {
	Body   string `json:"body"`
	Parent string `json:"parent"`
	State  string `json:"state"`
}

// DecodeEngineFrame parses one JSON engine frame.
func DecodeEngineFrame(data []byte) (EngineFrame, error) {
	var f EngineFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return EngineFrame{}, errors.Wrap(ErrMalformedFrame, err.Error())
	}
	return f, nil
}
