package main

import (
	"encoding/json"
	"log"
)

// Router classifies every inbound frame by the connection's channel kind
// and role, and for text frames the JSON `type` tag, then applies the
// forwarding rules of §4.D. It is the single place that decides where a
// message goes; Connection and Room never make routing decisions
// themselves.
type Router struct {
	hub     *Hub
	limiter *ControlRateLimiter
	metrics *Metrics // optional, may be nil
}

// NewRouter returns a Router wired to hub, rate-limiting control
// messages to controlMsgsPerSecond per connection (0 disables the limit).
// metrics may be nil to disable Prometheus instrumentation.
func NewRouter(hub *Hub, controlMsgsPerSecond int, metrics *Metrics) *Router {
	return &Router{
		hub:     hub,
		limiter: NewControlRateLimiter(controlMsgsPerSecond),
		metrics: metrics,
	}
}

// HandleLoginText processes one text message on a login connection
// (§4.D.1). Binary frames on a login connection are ignored by the
// caller before this is reached.
func (rt *Router) HandleLoginText(conn *Connection, raw []byte) {
	if !rt.limiter.Allow(conn.ID) {
		return
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Payload error: not valid JSON. Ignored on login channels (§7).
		return
	}

	switch env.Type {
	case TypeLogin:
		rt.handleLogin(conn, env)
	case TypeLogout:
		// The socket stays open and registered as a login channel, so it
		// still receives the roster update this logout triggers (§4.C).
		if userID, ok := rt.hub.Presence.Logout(conn); ok {
			rt.hub.auditLog("logout", userID, "")
		}
	case TypeGetOnlineUsers:
		rt.handleGetOnlineUsers(conn)
	case TypeHeartbeat:
		rt.handleHeartbeat(conn, env)
	case TypePing:
		rt.handlePing(conn)
	case TypeWatchRequest:
		rt.hub.Signaling.WatchRequest(conn, env)
	case TypeWatchRequestCancel:
		rt.hub.Signaling.ForwardToTarget(raw, env.TargetID)
	case TypeApprovalRequired:
		rt.hub.Signaling.ForwardToViewer(raw, env.ViewerID)
	case TypeWatchRequestAccept:
		rt.hub.Signaling.Accepted(raw, env.ViewerID, env.TargetID)
	case TypeWatchRequestReject:
		rt.hub.Signaling.ForwardToViewer(raw, env.ViewerID)
	case TypeStreamingOK:
		rt.hub.Signaling.StreamingOK(raw, env.ViewerID, env.TargetID)
	case TypeKickViewer:
		rt.hub.Signaling.ForwardToViewer(raw, env.ViewerID)
	case TypeViewerMicState:
		rt.hub.Signaling.ForwardToTarget(raw, env.TargetID)
	default:
		// Unknown type on a login channel: ignored, no fan-out (§6, §8).
	}
}

func (rt *Router) handleLogin(conn *Connection, env Envelope) {
	if rt.metrics != nil {
		rt.metrics.loginAttempts.Inc()
	}

	var data LoginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		log.Printf("[router] malformed login data: %v", err)
		if rt.metrics != nil {
			rt.metrics.loginFailures.Inc()
		}
		return
	}

	icon, evicted, err := rt.hub.Presence.Login(conn, data.ID, data.Name, data.requestedIcon)
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.loginFailures.Inc()
		}
		conn.SendText(mustMarshal(LoginResponse{
			Type:    TypeLoginResponse,
			Success: false,
			Message: err.Error(),
		}))
		return
	}
	if evicted != nil && evicted != conn {
		evicted.Close("replaced by new login")
	}

	conn.SendText(mustMarshal(LoginResponse{
		Type:    TypeLoginResponse,
		Success: true,
		Message: "login successful",
		Data:    LoginResponseData{ID: data.ID, Name: data.Name, IconID: icon},
	}))
	rt.hub.auditLog("login", data.ID, "")
}

func (rt *Router) handleGetOnlineUsers(conn *Connection) {
	roster := rt.hub.Presence.Roster()
	brief := make([]OnlineUserBrief, len(roster))
	for i, r := range roster {
		brief[i] = OnlineUserBrief{ID: r.ID, Name: r.Name}
	}
	conn.SendText(mustMarshal(OnlineUsersMsg{Type: TypeOnlineUsers, Data: brief}))
}

func (rt *Router) handleHeartbeat(conn *Connection, env Envelope) {
	userID := env.ID
	if userID == "" {
		var ok bool
		userID, ok = rt.hub.Presence.UserIDForConn(conn)
		if !ok {
			return
		}
	}
	rt.hub.Presence.Touch(userID)
}

func (rt *Router) handlePing(conn *Connection) {
	userID, ok := rt.hub.Presence.UserIDForConn(conn)
	if !ok {
		return
	}
	rt.hub.Presence.Touch(userID)
}

// HandleRoomBinary processes one binary frame on a room connection
// (§4.D.2/.3). Subscribers may never send binary; publishers fan out to
// every subscriber.
func (rt *Router) HandleRoomBinary(conn *Connection, room *Room, data []byte) {
	if conn.Role != RolePublisher {
		// Payload/role error: subscriber binary is dropped (§4.B, §7).
		return
	}
	room.BroadcastBinary(data)
}

// HandleRoomText processes one text frame on a room connection (§4.D.2/.3).
func (rt *Router) HandleRoomText(conn *Connection, room *Room, raw []byte) {
	if !rt.limiter.Allow(conn.ID) {
		return
	}

	var env Envelope
	msgType := TypeUnknown
	if err := json.Unmarshal(raw, &env); err == nil {
		msgType = env.Type
	}

	if conn.Role == RolePublisher {
		rt.handlePublisherText(room, msgType, raw)
		return
	}
	rt.handleSubscriberText(conn, room, msgType, raw)
}

func (rt *Router) handlePublisherText(room *Room, msgType MessageType, raw []byte) {
	switch msgType {
	case TypeMousePosition, TypeAudioOpus:
		// Publisher signaling: subscribers only, sender excluded is moot
		// since the publisher is never itself a subscriber (§3 invariant).
		room.BroadcastTextToSubscribers(raw, "")
	default:
		room.BroadcastTextToSubscribers(raw, "")
	}
}

func (rt *Router) handleSubscriberText(conn *Connection, room *Room, msgType MessageType, raw []byte) {
	if msgType == TypeViewerAudioOpus {
		// Forward to the publisher AND every other subscriber, so viewers
		// can hear each other while the publisher also hears them (§4.D.3).
		room.SendToPublisher(raw)
		room.BroadcastTextToSubscribers(raw, conn.ID)
		return
	}
	// Any other subscriber text is forwarded to the publisher only.
	room.SendToPublisher(raw)
}
