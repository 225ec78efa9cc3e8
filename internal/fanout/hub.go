package fanout

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tiback/helpdesk/internal/events"
)

// Subscriber is one live connection's membership in zero or more
// channels. Events arrive on a buffered FIFO channel; a subscriber
// that cannot keep up loses events rather than blocking publishers.
type Subscriber struct {
	id     string
	events chan events.Event
}

// ID returns the subscriber's opaque identifier.
func (s *Subscriber) ID() string {
	return s.id
}

// Events is the delivery stream. It is closed when the subscriber is
// dropped from the hub.
func (s *Subscriber) Events() <-chan events.Event {
	return s.events
}

// Hub maintains the dynamic subscription topology. Join and leave
// never touch storage and hold no transaction locks; publish is
// non-blocking relative to the caller.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Subscriber]struct{}
	members  map[*Subscriber]map[string]struct{}
	buffer   int
	logger   *zap.Logger
}

// NewHub builds a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		channels: make(map[string]map[*Subscriber]struct{}),
		members:  make(map[*Subscriber]map[string]struct{}),
		buffer:   buffer,
		logger:   logger,
	}
}

// NewSubscriber registers a connection with the hub. The subscriber
// belongs to no channels until it joins some.
func (h *Hub) NewSubscriber() *Subscriber {
	sub := &Subscriber{
		id:     uuid.NewString(),
		events: make(chan events.Event, h.buffer),
	}
	h.mu.Lock()
	h.members[sub] = make(map[string]struct{})
	h.mu.Unlock()
	return sub
}

// Join adds the subscriber to a channel. Events published after Join
// returns are guaranteed to reach the subscriber; events racing the
// join may or may not.
func (h *Hub) Join(sub *Subscriber, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	memberships, ok := h.members[sub]
	if !ok {
		return
	}
	memberships[channel] = struct{}{}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Subscriber]struct{})
	}
	h.channels[channel][sub] = struct{}{}
}

// Leave removes the subscriber from a channel.
func (h *Hub) Leave(sub *Subscriber, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sub, channel)
}

func (h *Hub) leaveLocked(sub *Subscriber, channel string) {
	if memberships, ok := h.members[sub]; ok {
		delete(memberships, channel)
	}
	if subs, ok := h.channels[channel]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Drop removes the subscriber from every channel and closes its event
// stream. Used on disconnect; no stale subscriptions survive it.
func (h *Hub) Drop(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	memberships, ok := h.members[sub]
	if !ok {
		return
	}
	for channel := range memberships {
		h.leaveLocked(sub, channel)
	}
	delete(h.members, sub)
	close(sub.events)
}

// Publish delivers the event to every current subscriber of the
// channel and reports how many received it. Slow subscribers are
// skipped with a log line; delivery failure never propagates.
func (h *Hub) Publish(channel string, event events.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for sub := range h.channels[channel] {
		select {
		case sub.events <- event:
			delivered++
		default:
			h.logger.Warn("dropping event for slow subscriber",
				zap.String("channel", channel),
				zap.String("subscriber", sub.id),
				zap.String("event_id", event.ID))
		}
	}
	return delivered
}

// Subscribers reports the current membership count of a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
