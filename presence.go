package main

import (
	"fmt"
	"sync"
	"time"
)

// User is a presence record, created on a successful `login` (§3).
type User struct {
	UserID    string
	Name      string
	IconID    int
	LoginTime time.Time
	Conn      *Connection
}

// Presence is the process-wide presence registry: user-id -> (connection,
// display name, avatar-id, last-heartbeat), plus the online-roster
// broadcaster (§4.C). It is a pair of maps (by user-id and by connection
// ID) guarded by a single mutex.
type Presence struct {
	mu        sync.Mutex
	byUser    map[string]*User
	byConnID  map[string]string // Connection.ID -> UserID, for Logout/reverse lookup
	onChanged func(roster []RosterEntry)
	window    time.Duration
}

// NewPresence returns an empty presence registry. onChanged, if non-nil,
// is invoked with the new roster snapshot after every membership-changing
// operation (§4.C Broadcast). window is the liveness window of §4.F; pass
// heartbeatWindow for the default.
func NewPresence(onChanged func(roster []RosterEntry), window time.Duration) *Presence {
	return &Presence{
		byUser:    make(map[string]*User),
		byConnID:  make(map[string]string),
		onChanged: onChanged,
		window:    window,
	}
}

// Login validates and records a user, evicting any prior connection
// bound to the same user-id (§3 invariant: at most one live User per
// user-id). Returns the sanitized icon actually stored and an error if
// userID or name is empty or longer than maxNameLength.
func (p *Presence) Login(conn *Connection, userID, name string, requestedIcon func(fallback int) int) (icon int, evicted *Connection, err error) {
	if userID == "" || name == "" {
		return 0, nil, fmt.Errorf("presence: login requires non-empty id and name")
	}
	if len(userID) > maxNameLength || len(name) > maxNameLength {
		return 0, nil, fmt.Errorf("presence: id and name must be at most %d bytes", maxNameLength)
	}

	p.mu.Lock()
	fallback := iconUnknown
	if prev, ok := p.byUser[userID]; ok {
		fallback = prev.IconID
		evicted = prev.Conn
		delete(p.byConnID, prev.Conn.ID)
	}
	icon = requestedIcon(fallback)

	now := time.Now()
	p.byUser[userID] = &User{
		UserID:    userID,
		Name:      name,
		IconID:    icon,
		LoginTime: now,
		Conn:      conn,
	}
	p.byConnID[conn.ID] = userID
	conn.Touch(now)
	p.mu.Unlock()

	p.publish()
	return icon, evicted, nil
}

// Logout removes the user-id bound to conn, if any (§4.C).
func (p *Presence) Logout(conn *Connection) (userID string, ok bool) {
	p.mu.Lock()
	userID, ok = p.byConnID[conn.ID]
	if ok {
		delete(p.byConnID, conn.ID)
		delete(p.byUser, userID)
	}
	p.mu.Unlock()

	if ok {
		p.publish()
	}
	return userID, ok
}

// Touch resets a user's last-heartbeat to now (§4.C).
func (p *Presence) Touch(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.byUser[userID]; ok {
		now := time.Now()
		u.Conn.Touch(now)
	}
}

// UserIDForConn resolves a connection's bound user-id, for the `ping`
// message which carries no explicit id (§4.F Heartbeats).
func (p *Presence) UserIDForConn(conn *Connection) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID, ok := p.byConnID[conn.ID]
	return userID, ok
}

// Roster returns a snapshot of every known user (§4.C roster). Order is
// not guaranteed (§3 OnlineRoster snapshot).
func (p *Presence) Roster() []RosterEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rosterLocked()
}

func (p *Presence) rosterLocked() []RosterEntry {
	out := make([]RosterEntry, 0, len(p.byUser))
	for _, u := range p.byUser {
		out = append(out, RosterEntry{ID: u.UserID, Name: u.Name, IconID: u.IconID})
	}
	return out
}

// Find returns the connection bound to userID, if any.
func (p *Presence) Find(userID string) (*Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.byUser[userID]
	if !ok {
		return nil, false
	}
	return u.Conn, true
}

// Online reports whether userID is present and its connection's last
// heartbeat is within the liveness window (§4.C.online, §4.E).
func (p *Presence) Online(userID string) bool {
	p.mu.Lock()
	u, ok := p.byUser[userID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	last := u.Conn.LastHeartbeat()
	if last.IsZero() {
		return false
	}
	return time.Since(last) < p.window
}

// ReapExpired closes and removes every user whose heartbeat has timed out
// (§4.F). Returns the removed user-ids.
func (p *Presence) ReapExpired(now time.Time) []string {
	p.mu.Lock()
	var expired []*User
	for id, u := range p.byUser {
		last := u.Conn.LastHeartbeat()
		if last.IsZero() {
			continue
		}
		if now.Sub(last) > p.window {
			expired = append(expired, u)
			delete(p.byUser, id)
			delete(p.byConnID, u.Conn.ID)
		}
	}
	p.mu.Unlock()

	if len(expired) == 0 {
		return nil
	}
	ids := make([]string, len(expired))
	for i, u := range expired {
		ids[i] = u.UserID
		u.Conn.Close("heartbeat timeout")
	}
	p.publish()
	return ids
}

func (p *Presence) publish() {
	if p.onChanged == nil {
		return
	}
	p.onChanged(p.Roster())
}
