package bridge

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/zeusync/hitsense/internal/core/contact"
	"github.com/zeusync/hitsense/internal/core/events/bus"
	"github.com/zeusync/hitsense/internal/core/impact"
	"github.com/zeusync/hitsense/internal/core/observability/log"
)

// Hub turns bus events into FeedbackMessages for remote feedback clients
// such as audio or haptics players.
type Hub struct {
	world   *World
	clients *broadcaster
	subs    []bus.Subscription
	logger  log.Log
}

func NewHub(world *World, logger log.Log) *Hub {
	return &Hub{
		world:   world,
		clients: newBroadcaster(),
		logger:  logger.With(log.String("component", "feedback")),
	}
}

// Attach subscribes the hub to every detector event type.
func (h *Hub) Attach(b bus.EventBus) error {
	for _, typ := range []string{bus.ImpactDetected, bus.ContactEngaged, bus.ContactReleased} {
		sub, err := b.Subscribe(typ, h.handle)
		if err != nil {
			h.Detach()
			return errors.Wrapf(err, "subscribing to %s", typ)
		}
		h.subs = append(h.subs, sub)
	}
	return nil
}

// Detach cancels the hub's subscriptions and disconnects all clients.
func (h *Hub) Detach() {
	for _, sub := range h.subs {
		_ = sub.Cancel()
	}
	h.subs = nil
	h.clients.closeAll()
}

// Clients returns the number of connected feedback clients.
func (h *Hub) Clients() int { return h.clients.len() }

func (h *Hub) handle(e bus.Event) error {
	msg, ok := h.message(e)
	if !ok {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding feedback message")
	}
	for _, id := range h.clients.broadcast(data) {
		h.logger.Warn("feedback client too slow, disconnected", log.String("client_id", id))
	}
	return nil
}

func (h *Hub) message(e bus.Event) (FeedbackMessage, bool) {
	msg := FeedbackMessage{Type: e.Type(), Time: e.Timestamp()}
	switch v := e.Data().(type) {
	case impact.Impact:
		msg.Body = h.world.NameOf(v.Body)
		msg.Tick = v.Tick
		msg.Velocity = v.Velocity
		msg.Acceleration = v.Acceleration
	case contact.Hit:
		msg.Body = h.world.NameOf(v.Body)
		msg.Tick = v.Tick
		msg.Zone = string(v.Zone)
		msg.Other = h.world.NameOf(v.Other)
	default:
		return FeedbackMessage{}, false
	}
	return msg, true
}
