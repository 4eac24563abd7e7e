package main

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubAddAndRemoveLoginConn(t *testing.T) {
	h := NewHub(nil, heartbeatWindow)
	conn, client := newTestConnection(t)

	h.AddLoginConn(conn)
	h.Presence.Login(conn, "alice", "Alice", identityIcon)

	// A presence change while registered as a login conn should broadcast.
	h.broadcastRoster(h.Presence.Roster())
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, _, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Errorf("msgType = %d, want TextMessage", msgType)
	}

	h.RemoveLoginConn(conn)
	if _, ok := h.Presence.Find("alice"); ok {
		t.Error("expected RemoveLoginConn to log the bound user out")
	}
}

func TestHubRemoveLoginConnWithoutPriorLoginIsNoop(t *testing.T) {
	h := NewHub(nil, heartbeatWindow)
	conn, _ := newTestConnection(t)

	h.AddLoginConn(conn)
	h.RemoveLoginConn(conn) // must not panic even though no user was logged in
}

func TestHubBroadcastRosterFansOutToAllLoginConns(t *testing.T) {
	h := NewHub(nil, heartbeatWindow)
	a, aClient := newTestConnection(t)
	b, bClient := newTestConnection(t)

	h.AddLoginConn(a)
	h.AddLoginConn(b)

	h.broadcastRoster([]RosterEntry{{ID: "alice", Name: "Alice", IconID: 5}})

	for _, c := range []*websocket.Conn{aClient, bClient} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := c.ReadMessage(); err != nil {
			t.Errorf("expected both login conns to receive the broadcast: %v", err)
		}
	}
}

func TestHubAuditLogAndPersistRosterNoopWithNilStore(t *testing.T) {
	h := NewHub(nil, heartbeatWindow)
	// Must not panic with a nil store.
	h.auditLog("login", "alice", "")
	h.persistRoster([]RosterEntry{{ID: "alice", Name: "Alice", IconID: 5}})
}
