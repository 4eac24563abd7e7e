package main

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
)

// Role is the non-login role a connection plays within a room (§3
// ClientRole). Immutable for the connection's lifetime.
type Role int

const (
	RolePublisher Role = iota
	RoleSubscriber
)

func (r Role) String() string {
	if r == RolePublisher {
		return "publisher"
	}
	return "subscriber"
}

// Channel classifies what a connection was accepted for (§6).
type Channel int

const (
	ChannelLogin Channel = iota
	ChannelRoom
)

// outboundFrame is one queued write.
type outboundFrame struct {
	binary bool
	data   []byte
}

// Connection is one live WebSocket session, exclusively owned by the
// server from accept to close (§4.A). Writes are serialized through a
// bounded queue drained by a single writer goroutine so that two logical
// producers (e.g. the router and a periodic roster broadcast) never
// interleave bytes within one frame sequence (§5).
type Connection struct {
	ID       string // stable opaque handle (§3)
	PeerAddr string // diagnostic only, carries no authority (§4.A)

	Channel Channel
	RoomID  string // set only for ChannelRoom connections
	Role    Role   // valid only for ChannelRoom connections

	ws *websocket.Conn

	// closeMu guards closed and the outbound channel's lifecycle: Close
	// closing the channel must never race a concurrent enqueue's send on
	// it, so both go through this lock rather than a bare atomic flag.
	closeMu  sync.Mutex
	closed   bool
	outbound chan outboundFrame
	done     chan struct{}

	lastHeartbeatMS atomic.Int64 // monotonic ms, 0 = never

	breaker *gobreaker.CircuitBreaker
}

// NewConnection wraps an upgraded websocket connection. The caller must
// call Start to begin the writer goroutine before any Send call.
func NewConnection(ws *websocket.Conn, peerAddr string) *Connection {
	c := &Connection{
		ID:       uuid.NewString(),
		PeerAddr: peerAddr,
		ws:       ws,
		outbound: make(chan outboundFrame, outboundQueueSize),
		done:     make(chan struct{}),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "conn-" + c.ID,
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
	})
	return c
}

// Start launches the dedicated writer goroutine that serializes all
// outbound frames for this connection (§4.A, §5).
func (c *Connection) Start() {
	go c.writeLoop()
}

func (c *Connection) writeLoop() {
	for frame := range c.outbound {
		_, _ = c.breaker.Execute(func() (any, error) {
			var err error
			if frame.binary {
				err = c.ws.WriteMessage(websocket.BinaryMessage, frame.data)
			} else {
				err = c.ws.WriteMessage(websocket.TextMessage, frame.data)
			}
			return nil, err
		})
	}
}

// SendText enqueues a text frame. A send on an already-closed or
// breaker-open connection is a silent best-effort no-op (§4.A Failures,
// §7 Peer-gone) — the reaper or the room's lazy eviction will eventually
// remove the stale connection.
func (c *Connection) SendText(data []byte) {
	c.enqueue(outboundFrame{binary: false, data: data})
}

// SendBinary enqueues a binary frame (opaque video payload, §6).
func (c *Connection) SendBinary(data []byte) {
	c.enqueue(outboundFrame{binary: true, data: data})
}

func (c *Connection) enqueue(f outboundFrame) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.outbound <- f:
	default:
		// Queue is full: the consumer is too slow. Drop this frame and
		// disconnect the connection rather than block the sender and every
		// other room member behind it (§4.D Back-pressure, §7
		// Resource-overflow). Close runs on its own goroutine because it
		// takes closeMu, which is held here.
		log.Printf("[conn %s] outbound queue full, dropping frame and closing", c.ID)
		go c.Close("outbound queue overflow")
	}
}

// IsHealthy reports whether recent writes have been succeeding. Callers
// (notably Room broadcast paths) may use this to proactively evict a
// connection whose circuit breaker has opened instead of continuing to
// queue frames for it.
func (c *Connection) IsHealthy() bool {
	return c.breaker.State() == gobreaker.StateClosed
}

// Connected reports whether the connection is still open.
func (c *Connection) Connected() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return !c.closed
}

// Close closes the underlying socket with a normal closure and the given
// reason, and stops the writer goroutine. Idempotent, and safe to call
// concurrently with SendText/SendBinary: the outbound channel is only
// ever closed while holding closeMu, the same lock enqueue holds across
// its closed check and channel send, so a send can never land on an
// already-closed channel.
func (c *Connection) Close(reason string) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	close(c.outbound)
	c.closeMu.Unlock()

	close(c.done)
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	_ = c.ws.Close()
}

// Touch records a heartbeat at the current time (§4.C.touch).
func (c *Connection) Touch(now time.Time) {
	c.lastHeartbeatMS.Store(now.UnixMilli())
}

// LastHeartbeat returns the last recorded heartbeat time, or the zero
// time if Touch was never called.
func (c *Connection) LastHeartbeat() time.Time {
	ms := c.lastHeartbeatMS.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ReadLoop blocks reading frames from the socket, invoking onText for
// text messages and onBinary for binary ones, until a read fails (the
// peer closed, or Close was called). It returns that read error, which is
// never nil; a peer's close frame arrives as a *websocket.CloseError.
func (c *Connection) ReadLoop(onText func([]byte), onBinary func([]byte)) error {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		switch msgType {
		case websocket.TextMessage:
			if onText != nil {
				onText(data)
			}
		case websocket.BinaryMessage:
			if onBinary != nil {
				onBinary(data)
			}
		}
	}
}
