package main

import (
	"log"
	"sync"
	"time"

	"github.com/rustyguts/screenrelay/store"
)

// Hub is the process-wide wiring point: the presence registry, the room
// table, the signaling coordinator, and the set of currently-connected
// login channels all live here (§2 Control & data flow, §9 "global
// mutable state ... prefer a single owning task/actor"). The Router reads
// and mutates state exclusively through Hub's methods.
type Hub struct {
	Rooms     *RoomTable
	Presence  *Presence
	Signaling *Signaling

	loginMu    sync.Mutex
	loginConns map[string]*Connection // Connection.ID -> conn, every /login socket

	store *store.Store // optional, may be nil (non-authoritative diagnostic cache)
}

// NewHub wires a Hub with st as its optional diagnostic store (nil
// disables persistence entirely, per §6's "implementations MAY omit
// persistence") and heartbeatWindow as the liveness window (§4.F).
func NewHub(st *store.Store, heartbeatWindow time.Duration) *Hub {
	h := &Hub{
		Rooms:      NewRoomTable(),
		loginConns: make(map[string]*Connection),
		store:      st,
	}
	h.Presence = NewPresence(h.broadcastRoster, heartbeatWindow)
	h.Signaling = NewSignaling(h)
	return h
}

// AddLoginConn registers a newly-accepted /login connection so it
// receives future online_users_update broadcasts even before it sends a
// `login` message.
func (h *Hub) AddLoginConn(conn *Connection) {
	h.loginMu.Lock()
	h.loginConns[conn.ID] = conn
	h.loginMu.Unlock()
}

// RemoveLoginConn unregisters a /login connection and logs out whatever
// user-id, if any, it was bound to.
func (h *Hub) RemoveLoginConn(conn *Connection) {
	h.loginMu.Lock()
	delete(h.loginConns, conn.ID)
	h.loginMu.Unlock()

	if userID, ok := h.Presence.Logout(conn); ok {
		h.auditLog("logout", userID, "")
	}
}

// broadcastRoster publishes the current roster to every connected login
// channel (§4.C Broadcast). The payload is serialized once and reused for
// every recipient (§5 Resources).
func (h *Hub) broadcastRoster(roster []RosterEntry) {
	payload := mustMarshal(OnlineUsersUpdateMsg{Type: TypeOnlineUsersUpdate, Data: roster})

	h.loginMu.Lock()
	conns := make([]*Connection, 0, len(h.loginConns))
	for _, c := range h.loginConns {
		conns = append(conns, c)
	}
	h.loginMu.Unlock()

	for _, c := range conns {
		c.SendText(payload)
	}

	h.persistRoster(roster)
}

// auditLog records a presence event to the optional diagnostic store. A
// nil store, or a write failure, is non-fatal — the store never gates
// live protocol behavior (§6 "carries NO authority").
func (h *Hub) auditLog(action, userID, detail string) {
	if h.store == nil {
		return
	}
	if err := h.store.InsertAuditEvent(action, userID, detail); err != nil {
		log.Printf("[hub] audit log: %v", err)
	}
}

func (h *Hub) persistRoster(roster []RosterEntry) {
	if h.store == nil {
		return
	}
	if err := h.store.SaveRosterSnapshot(roster); err != nil {
		log.Printf("[hub] persist roster: %v", err)
	}
}
