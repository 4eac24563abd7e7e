package main

import "sync"

// RoomTable is the process-wide, mutex-guarded map of room-id to Room. It
// is the only owner of Room values; Rooms are created lazily on first use
// and reaped once empty (§3, §9 "prefer a single owning actor or a pair of
// mutex-guarded maps").
type RoomTable struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRoomTable returns an empty room table.
func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for id, creating it if it does not yet
// exist (§3 Lifecycle "created lazily on the first connection").
func (t *RoomTable) GetOrCreate(id string) *Room {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rooms[id]
	if !ok {
		r = NewRoom(id)
		t.rooms[id] = r
	}
	return r
}

// Get returns the room for id if it currently exists.
func (t *RoomTable) Get(id string) (*Room, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rooms[id]
	return r, ok
}

// ReapEmpty deletes every room that is currently empty and returns how
// many were removed (§3, §4.F empty-room sweep).
func (t *RoomTable) ReapEmpty() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, r := range t.rooms {
		if r.IsEmpty() {
			delete(t.rooms, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of currently tracked rooms.
func (t *RoomTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}

// Stats aggregates message/byte counters across every tracked room.
func (t *RoomTable) Stats() (rooms int, messages, bytes uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.rooms {
		m, b := r.Stats()
		messages += m
		bytes += b
	}
	return len(t.rooms), messages, bytes
}

// RoomStats describes one room's shape for a diagnostic API listing.
type RoomStats struct {
	ID           string `json:"id"`
	HasPublisher bool   `json:"has_publisher"`
	Subscribers  int    `json:"subscribers"`
	Messages     uint64 `json:"messages"`
	Bytes        uint64 `json:"bytes"`
}

// Snapshot returns a per-room stats listing for the REST side-channel.
func (t *RoomTable) Snapshot() []RoomStats {
	t.mu.Lock()
	rooms := make([]*Room, 0, len(t.rooms))
	for _, r := range t.rooms {
		rooms = append(rooms, r)
	}
	t.mu.Unlock()

	out := make([]RoomStats, 0, len(rooms))
	for _, r := range rooms {
		messages, bytes := r.Stats()
		out = append(out, RoomStats{
			ID:           r.ID,
			HasPublisher: r.Publisher() != nil,
			Subscribers:  r.SubscriberCount(),
			Messages:     messages,
			Bytes:        bytes,
		})
	}
	return out
}
