package core

import (
	"sync"

	"github.com/samber/lo"
)

// History keeps the ordered log of delivered records for each room.
// Logs are created on first append and discarded with Destroy.
type History struct {
	mu    sync.RWMutex
	logs  map[string][]Record
	limit int
}

// NewHistory creates a store. A positive limit caps each room's log,
// dropping the oldest records first.
func NewHistory(limit int) *History {
	return &History{
		logs:  make(map[string][]Record),
		limit: limit,
	}
}

// Append adds rec to the tail of the room's log.
func (h *History) Append(room string, rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := append(h.logs[room], rec)
	if h.limit > 0 && len(entries) > h.limit {
		entries = append([]Record(nil), entries[len(entries)-h.limit:]...)
	}
	h.logs[room] = entries
}

// ReplayFor returns a copy of the room's log as visible to role.
// End-users never see system or private records.
func (h *History) ReplayFor(room string, role Role) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.Filter(h.logs[room], func(rec Record, _ int) bool {
		return rec.visibleTo(role)
	})
}

// Len returns the number of records in the room's log.
func (h *History) Len(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.logs[room])
}

// Destroy discards the room's log.
func (h *History) Destroy(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.logs, room)
}

// Shutdown discards every log.
func (h *History) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = make(map[string][]Record)
}
