package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newTestConnection spins up a real loopback websocket pair: the
// server side wrapped in a Connection, and the raw client-side
// *websocket.Conn used to read what Connection sends and write what
// Connection should read. Exercises real transport rather than mocking
// it, since gorilla/websocket has no exported in-memory constructor.
func newTestConnection(t *testing.T) (*Connection, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	var serverConn *Connection
	ready := make(chan struct{})
	done := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConn = NewConnection(ws, r.RemoteAddr)
		serverConn.Start()
		close(ready)
		<-done
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		close(done)
		srv.Close()
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	<-ready
	return serverConn, clientConn
}

func TestConnectionSendTextReachesPeer(t *testing.T) {
	conn, client := newTestConnection(t)

	conn.SendText([]byte(`{"type":"ping"}`))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Errorf("msgType = %d, want TextMessage", msgType)
	}
	if string(data) != `{"type":"ping"}` {
		t.Errorf("data = %q", data)
	}
}

func TestConnectionSendBinaryReachesPeer(t *testing.T) {
	conn, client := newTestConnection(t)

	payload := []byte{1, 2, 3, 4}
	conn.SendBinary(payload)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("msgType = %d, want BinaryMessage", msgType)
	}
	if string(data) != string(payload) {
		t.Errorf("data = %v, want %v", data, payload)
	}
}

func TestConnectionReadLoopDispatchesByFrameType(t *testing.T) {
	conn, client := newTestConnection(t)

	var gotText, gotBinary []byte
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- conn.ReadLoop(
			func(b []byte) { gotText = b },
			func(b []byte) { gotBinary = b },
		)
	}()

	if err := client.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if err := client.WriteMessage(websocket.BinaryMessage, []byte{9, 9, 9}); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	// Give the read loop a moment to process both frames before closing.
	time.Sleep(100 * time.Millisecond)
	conn.Close("test done")
	<-loopDone

	if string(gotText) != "hello" {
		t.Errorf("gotText = %q, want %q", gotText, "hello")
	}
	if string(gotBinary) != string([]byte{9, 9, 9}) {
		t.Errorf("gotBinary = %v, want [9 9 9]", gotBinary)
	}
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	conn, _ := newTestConnection(t)

	conn.Close("first")
	conn.Close("second") // must not panic on double-close

	if conn.Connected() {
		t.Error("expected Connected() == false after Close")
	}
}

func TestConnectionSendAfterCloseIsNoop(t *testing.T) {
	conn, _ := newTestConnection(t)
	conn.Close("bye")

	// Must not panic sending on a closed outbound channel.
	conn.SendText([]byte("too late"))
	conn.SendBinary([]byte{1})
}

func TestConnectionTouchAndLastHeartbeat(t *testing.T) {
	conn, _ := newTestConnection(t)

	if !conn.LastHeartbeat().IsZero() {
		t.Fatal("expected zero LastHeartbeat before any Touch")
	}

	now := time.Now()
	conn.Touch(now)

	got := conn.LastHeartbeat()
	if got.UnixMilli() != now.UnixMilli() {
		t.Errorf("LastHeartbeat = %v, want %v", got, now)
	}
}

func TestConnectionConcurrentSendAndCloseNeverPanics(t *testing.T) {
	for i := 0; i < 50; i++ {
		conn, _ := newTestConnection(t)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				conn.SendText([]byte("x"))
			}
		}()
		go func() {
			defer wg.Done()
			conn.Close("racing close")
		}()
		wg.Wait()
	}
}

func TestConnectionOutboundQueueOverflowDropsRatherThanBlocks(t *testing.T) {
	conn, _ := newTestConnection(t)

	// Flood well past outboundQueueSize without ever reading on the
	// client side; SendText must never block the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < outboundQueueSize*4; i++ {
			conn.SendText([]byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SendText blocked under queue overflow")
	}
}
