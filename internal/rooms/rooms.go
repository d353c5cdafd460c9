// Package rooms is the room membership registry: a thin multiplexer mapping
// logical room keys to connected client sinks. No business logic lives here.
package rooms

import (
	"log/slog"
	"sync"
)

// Event is the wire frame for everything pushed to a client.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Sink is the outbound side of one client connection. Implementations must
// serialize their own writes so that a broadcast is atomic per message.
type Sink interface {
	ID() string
	Send(Event) error
}

// Room keys are stable prefixes concatenated with an entity id.
func ServiceTypeRoom(serviceTypeID string) string { return "service-type:" + serviceTypeID }
func ProviderRoom(providerUserID string) string   { return "provider:" + providerUserID }
func RequestRoom(requestID string) string         { return "request:" + requestID }
func BookingRoom(bookingID string) string         { return "booking:" + bookingID }

// Registry tracks which sink belongs to which rooms. State is process-local
// and in-memory; persisted entities are never read or written here.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Sink
	joined map[string]map[string]struct{}
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]Sink),
		joined: make(map[string]map[string]struct{}),
		logger: logger,
	}
}

// Join adds the sink to the room. Joining a room the sink is already in is
// a no-op.
func (r *Registry) Join(roomKey string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[roomKey]
	if !ok {
		members = make(map[string]Sink)
		r.rooms[roomKey] = members
	}
	members[s.ID()] = s
	keys, ok := r.joined[s.ID()]
	if !ok {
		keys = make(map[string]struct{})
		r.joined[s.ID()] = keys
	}
	keys[roomKey] = struct{}{}
}

// Leave removes the sink from the room. Leaving a room the sink was never
// in is a no-op, not an error.
func (r *Registry) Leave(roomKey, sinkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(roomKey, sinkID)
}

func (r *Registry) leaveLocked(roomKey, sinkID string) {
	if members, ok := r.rooms[roomKey]; ok {
		delete(members, sinkID)
		if len(members) == 0 {
			delete(r.rooms, roomKey)
		}
	}
	if keys, ok := r.joined[sinkID]; ok {
		delete(keys, roomKey)
		if len(keys) == 0 {
			delete(r.joined, sinkID)
		}
	}
}

// Drop removes the sink from every room it joined. Called on disconnect;
// the implicit leaves carry no notification side effects.
func (r *Registry) Drop(sinkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomKey := range r.joined[sinkID] {
		if members, ok := r.rooms[roomKey]; ok {
			delete(members, sinkID)
			if len(members) == 0 {
				delete(r.rooms, roomKey)
			}
		}
	}
	delete(r.joined, sinkID)
}

// In reports whether the sink is currently a member of the room.
func (r *Registry) In(roomKey, sinkID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomKey][sinkID]
	return ok
}

// Members returns the current member count of the room.
func (r *Registry) Members(roomKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomKey])
}

// Broadcast delivers the event to every member of the room and returns the
// number of sinks written. Delivery is at-most-once; send errors are logged
// and the sink is skipped, never retried.
func (r *Registry) Broadcast(roomKey string, ev Event) int {
	return r.broadcast(roomKey, "", ev)
}

// BroadcastExcept delivers to every member except the named sink. Used for
// relays where the sender must not echo (typing, join/leave notices).
func (r *Registry) BroadcastExcept(roomKey, exceptSinkID string, ev Event) int {
	return r.broadcast(roomKey, exceptSinkID, ev)
}

func (r *Registry) broadcast(roomKey, exceptSinkID string, ev Event) int {
	r.mu.RLock()
	sinks := make([]Sink, 0, len(r.rooms[roomKey]))
	for id, s := range r.rooms[roomKey] {
		if id == exceptSinkID {
			continue
		}
		sinks = append(sinks, s)
	}
	r.mu.RUnlock()

	sent := 0
	for _, s := range sinks {
		if err := s.Send(ev); err != nil {
			r.logger.Warn("room send failed", "room", roomKey, "sink", s.ID(), "event", ev.Name, "error", err)
			continue
		}
		sent++
	}
	return sent
}
