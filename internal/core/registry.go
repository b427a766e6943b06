package core

import (
	"fmt"
	"sync"

	"github.com/samber/lo"
)

// Departure describes a participant removed from a room.
type Departure struct {
	Room      string
	Name      string
	RoomEmpty bool
}

type roomMembers struct {
	members map[string]Participant
	order   []string
}

// Registry tracks which connections are in which room and their profiles.
// A connection belongs to at most one room, and a room with no participants
// is removed immediately.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*roomMembers
	index  map[string]string // conn id -> room id
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*roomMembers),
		index: make(map[string]string),
	}
}

// Join inserts or updates a participant, creating the room when absent.
// A connection registered in another room must leave it first.
func (r *Registry) Join(room string, p Participant) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if room == "" {
		return fmt.Errorf("%w: missing or invalid room", ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if current, ok := r.index[p.ConnID]; ok && current != room {
		return fmt.Errorf("%w: connection %s is in room %s", ErrInvalidInput, p.ConnID, current)
	}

	rm, ok := r.rooms[room]
	if !ok {
		rm = &roomMembers{members: make(map[string]Participant)}
		r.rooms[room] = rm
	}
	if _, exists := rm.members[p.ConnID]; !exists {
		rm.order = append(rm.order, p.ConnID)
	}
	rm.members[p.ConnID] = p
	r.index[p.ConnID] = room
	return nil
}

// Leave removes the connection from whichever room holds it.
func (r *Registry) Leave(connID string) (Departure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.index[connID]
	if !ok {
		return Departure{}, ErrNotFound
	}
	rm := r.rooms[room]
	p := rm.members[connID]

	delete(rm.members, connID)
	delete(r.index, connID)
	rm.order = lo.Without(rm.order, connID)

	dep := Departure{Room: room, Name: p.Name}
	if len(rm.members) == 0 {
		delete(r.rooms, room)
		dep.RoomEmpty = true
	}
	return dep, nil
}

// Participants returns a snapshot of the room in join order.
func (r *Registry) Participants(room string) ([]Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[room]
	if !ok {
		return nil, false
	}
	return lo.Map(rm.order, func(id string, _ int) Participant {
		return rm.members[id]
	}), true
}

// Lookup returns the participant registered for connID in room.
func (r *Registry) Lookup(room, connID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[room]
	if !ok {
		return Participant{}, false
	}
	p, ok := rm.members[connID]
	return p, ok
}

// RoomOf returns the room the connection is registered in.
func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.index[connID]
	return room, ok
}

// Count returns the number of participants in room.
func (r *Registry) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rm, ok := r.rooms[room]; ok {
		return len(rm.members)
	}
	return 0
}

// Rooms lists the ids of all non-empty rooms.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.rooms)
}

// Shutdown drops all state. Later joins fail with ErrClosed.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.rooms = make(map[string]*roomMembers)
	r.index = make(map[string]string)
}
