// Package realtime fans record-change events out to all of a user's
// connected devices. Channels are keyed by user id and exist only while at
// least one connection is joined; delivery is fire-and-forget, at most
// once per connection.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"record-sync/models"
)

const (
	EventCallUpdate    = "call_update"
	EventMessageUpdate = "message_update"
)

// Event is one relayed record change. Payload is passed through verbatim.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"data"`
}

// RecordEvent builds the outbound event for a record mutation.
func RecordEvent(rec *models.Record) Event {
	name := EventCallUpdate
	if rec.Kind == models.KindMessage {
		name = EventMessageUpdate
	}
	payload, _ := json.Marshal(rec)
	return Event{Name: name, Payload: payload}
}

// subscriberBuffer bounds how far a slow connection may lag before events
// are dropped for it.
const subscriberBuffer = 32

// Subscriber is one joined connection's view of its user channel.
type Subscriber struct {
	UserID string
	C      chan Event

	done chan struct{}
}

// Done is closed when the subscriber is removed from its channel.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Hub is the connection registry: an owned map from user id to the set of
// joined subscribers, guarded by a RWMutex. Subscribe and Unsubscribe are
// the only mutators.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Subscriber]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		channels: make(map[string]map[*Subscriber]struct{}),
		logger:   logger,
	}
}

// Subscribe joins a new connection to the user's channel, creating the
// channel if this is the user's first connection.
func (h *Hub) Subscribe(userID string) *Subscriber {
	sub := &Subscriber{
		UserID: userID,
		C:      make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.channels[userID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.channels[userID] = set
	}
	set[sub] = struct{}{}

	return sub
}

// Unsubscribe removes the connection from its channel and discards the
// channel once its last connection is gone.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.channels[sub.UserID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}

	delete(set, sub)
	if len(set) == 0 {
		delete(h.channels, sub.UserID)
	}
	close(sub.done)
}

// Publish relays an event to every connection joined under the user,
// the publisher's own siblings included. A subscriber whose buffer is
// full misses the event.
func (h *Hub) Publish(userID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.channels[userID] {
		select {
		case sub.C <- ev:
		default:
			h.logger.Debug("dropping event for slow subscriber", "user_id", userID, "event", ev.Name)
		}
	}
}

// Connections reports how many connections are joined under the user.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[userID])
}
