package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSServer is the WebSocket signaling and media-relay listener (§6). It
// classifies every inbound connection by URL path into a login,
// publisher, or subscriber channel and hands it to Hub/Router for the
// rest of its lifetime.
type WSServer struct {
	addr           string
	tlsConfig      *tls.Config // nil => non-secure ws:// by default (§6)
	idleTimeout    time.Duration
	hub            *Hub
	router         *Router
	maxConnections int
	perIPLimit     int // 0 disables the per-IP cap

	connCount atomic.Int64

	ipMu     sync.Mutex
	ipCounts map[string]int
}

// NewWSServer returns a WSServer listening on addr. tlsConfig may be nil
// for the default non-secure transport. perIPLimit caps simultaneous
// connections from a single remote IP (0 disables the cap).
func NewWSServer(addr string, tlsConfig *tls.Config, idleTimeout time.Duration, hub *Hub, router *Router, maxConnections, perIPLimit int) *WSServer {
	return &WSServer{
		addr:           addr,
		tlsConfig:      tlsConfig,
		idleTimeout:    idleTimeout,
		hub:            hub,
		router:         router,
		maxConnections: maxConnections,
		perIPLimit:     perIPLimit,
		ipCounts:       make(map[string]int),
	}
}

// acquireIP reserves one connection slot for ip, returning false if
// perIPLimit is already reached.
func (s *WSServer) acquireIP(ip string) bool {
	if s.perIPLimit <= 0 {
		return true
	}
	s.ipMu.Lock()
	defer s.ipMu.Unlock()
	if s.ipCounts[ip] >= s.perIPLimit {
		return false
	}
	s.ipCounts[ip]++
	return true
}

func (s *WSServer) releaseIP(ip string) {
	if s.perIPLimit <= 0 {
		return
	}
	s.ipMu.Lock()
	defer s.ipMu.Unlock()
	if s.ipCounts[ip] <= 1 {
		delete(s.ipCounts, ip)
		return
	}
	s.ipCounts[ip]--
}

// Run starts the HTTP(S) server and blocks until ctx is canceled.
func (s *WSServer) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		kind, roomID, role, reason := classifyPath(r.URL.Path)

		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		if !s.acquireIP(ip) {
			http.Error(w, "too many connections from this address", http.StatusTooManyRequests)
			return
		}
		defer s.releaseIP(ip)

		// The handshake always completes, even for a path the router will
		// reject; the client then sees a normal WS close frame carrying the
		// reason instead of a half-open socket or a bare HTTP error the
		// websocket client library can't see (§4.A Failures, §6, §7).
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[server] websocket upgrade failed: %v", err)
			return
		}

		conn := NewConnection(ws, r.RemoteAddr)
		conn.Start()

		if reason != "" {
			conn.Close(reason)
			return
		}

		if s.maxConnections > 0 && s.connCount.Load() >= int64(s.maxConnections) {
			conn.Close("server full")
			return
		}

		s.connCount.Add(1)
		defer s.connCount.Add(-1)

		switch kind {
		case ChannelLogin:
			s.serveLogin(ctx, conn)
		case ChannelRoom:
			s.serveRoom(ctx, conn, roomID, role)
		}
	})

	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		TLSConfig:         s.tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       s.idleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[server] shutdown: %v", err)
		}
	}()

	log.Printf("[server] listening on %s (tls=%v)", s.addr, s.tlsConfig != nil)

	var err error
	if s.tlsConfig != nil {
		err = httpSrv.ListenAndServeTLS("", "")
	} else {
		err = httpSrv.ListenAndServe()
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *WSServer) serveLogin(ctx context.Context, conn *Connection) {
	conn.Channel = ChannelLogin
	s.hub.AddLoginConn(conn)
	defer s.hub.RemoveLoginConn(conn)

	err := conn.ReadLoop(
		func(text []byte) { s.router.HandleLoginText(conn, text) },
		nil, // binary is ignored on the login channel (§4.D.1)
	)
	if err != nil && ctx.Err() == nil {
		log.Printf("[server] login conn %s closed: %v", conn.ID, err)
	}
	conn.Close("client disconnected")
}

func (s *WSServer) serveRoom(ctx context.Context, conn *Connection, roomID string, role Role) {
	conn.Channel = ChannelRoom
	conn.RoomID = roomID
	conn.Role = role

	room := s.hub.Rooms.GetOrCreate(roomID)
	switch role {
	case RolePublisher:
		room.SetPublisher(conn)
		if room.SubscriberCount() > 0 {
			conn.SendText(mustMarshal(StartStreamingMsg{Type: TypeStartStreaming}))
		}
	case RoleSubscriber:
		room.AddSubscriber(conn)
		if pub := room.Publisher(); pub != nil && pub.Connected() {
			pub.SendText(mustMarshal(StartStreamingMsg{Type: TypeStartStreaming}))
		}
	}

	err := conn.ReadLoop(
		func(text []byte) { s.router.HandleRoomText(conn, room, text) },
		func(data []byte) { s.router.HandleRoomBinary(conn, room, data) },
	)
	if err != nil && ctx.Err() == nil {
		log.Printf("[server] room conn %s (%s/%s) closed: %v", conn.ID, roomID, role, err)
	}

	switch role {
	case RolePublisher:
		room.RemovePublisher(conn)
	case RoleSubscriber:
		room.RemoveSubscriber(conn)
	}
	conn.Close("client disconnected")
}

// classifyPath implements §6's three path shapes: login ("/" or
// "/login"), "/publish/{room_id}", "/subscribe/{room_id}". Any other
// path is rejected; reason is empty for a valid path, and otherwise
// names the WS close reason the caller should send: "Invalid path
// format" for a shape that isn't "/verb/id", "Invalid action" for a
// well-formed "/verb/id" whose verb isn't publish or subscribe.
func classifyPath(path string) (kind Channel, roomID string, role Role, reason string) {
	if path == "/" || path == "/login" {
		return ChannelLogin, "", 0, ""
	}

	parts := splitNonEmpty(path, '/')
	if len(parts) != 2 {
		return 0, "", 0, "Invalid path format"
	}
	action, id := parts[0], parts[1]
	if id == "" {
		return 0, "", 0, "Invalid path format"
	}
	switch action {
	case "publish":
		return ChannelRoom, id, RolePublisher, ""
	case "subscribe":
		return ChannelRoom, id, RoleSubscriber, ""
	default:
		return 0, "", 0, "Invalid action"
	}
}

func splitNonEmpty(path string, sep byte) []string {
	var parts []string
	for _, p := range strings.Split(path, string(sep)) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
