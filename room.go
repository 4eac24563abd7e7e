package main

import "sync"

// Room holds the state for one stream channel: at most one publisher,
// any number of subscribers, and per-room counters (§3, §4.B). Rooms own
// nothing but references to connections; they are created lazily and
// reaped when empty (§3 Lifecycle).
type Room struct {
	mu sync.Mutex

	ID string

	publisher   *Connection
	subscribers map[string]*Connection // keyed by Connection.ID

	messages uint64
	bytes    uint64
}

// NewRoom creates an empty room for id.
func NewRoom(id string) *Room {
	return &Room{
		ID:          id,
		subscribers: make(map[string]*Connection),
	}
}

// SetPublisher replaces any prior publisher. The prior publisher is NOT
// forcibly closed — it simply loses the publisher slot (§4.B).
func (r *Room) SetPublisher(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publisher = c
}

// RemovePublisher clears the publisher slot if it currently holds conn.
// Subscribers are unaffected.
func (r *Room) RemovePublisher(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.publisher == conn {
		r.publisher = nil
	}
}

// Publisher returns the current publisher connection, or nil.
func (r *Room) Publisher() *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publisher
}

// AddSubscriber adds conn to the subscriber set. Idempotent.
func (r *Room) AddSubscriber(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[conn.ID] = conn
}

// RemoveSubscriber removes conn from the subscriber set. Idempotent.
func (r *Room) RemoveSubscriber(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, conn.ID)
}

// SubscriberCount returns the number of tracked subscribers, including
// any not-yet-swept dead ones.
func (r *Room) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

// BroadcastBinary sends msg to every subscriber whose connection is
// currently connected, lazily dropping any subscriber whose socket has
// already transitioned to disconnected (§4.B). Returns the number of
// successful sends.
func (r *Room) BroadcastBinary(msg []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages++
	r.bytes += uint64(len(msg))

	sent := 0
	for id, sub := range r.subscribers {
		if !sub.Connected() {
			delete(r.subscribers, id)
			continue
		}
		sub.SendBinary(msg)
		sent++
	}
	return sent
}

// BroadcastTextToSubscribers sends msg to every connected subscriber
// except excludeID (pass "" to exclude no one). Mirrors BroadcastBinary's
// lazy-eviction policy.
func (r *Room) BroadcastTextToSubscribers(msg []byte, excludeID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sent := 0
	for id, sub := range r.subscribers {
		if id == excludeID {
			continue
		}
		if !sub.Connected() {
			delete(r.subscribers, id)
			continue
		}
		sub.SendText(msg)
		sent++
	}
	return sent
}

// SendToPublisher sends msg to the publisher if one is connected.
// Returns true if a send was attempted.
func (r *Room) SendToPublisher(msg []byte) bool {
	r.mu.Lock()
	pub := r.publisher
	r.mu.Unlock()

	if pub == nil || !pub.Connected() {
		return false
	}
	pub.SendText(msg)
	return true
}

// IsEmpty reports whether the room has neither a publisher nor any
// subscribers (§3 Lifecycle).
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publisher == nil && len(r.subscribers) == 0
}

// Stats returns the room's message and byte counters.
func (r *Room) Stats() (messages, bytes uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages, r.bytes
}
