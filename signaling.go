package main

import "log"

// Signaling implements the request/approval handshake of §4.E between a
// viewer and a target, routed by user-id through the Presence registry.
// Per the design note in §9, state is kept implicit — recomputed from
// each incoming message and the current Presence/Room state — rather
// than materialized as a stored per-(viewer,target) record; this is
// sufficient to satisfy the idempotence laws of §8 (repeating
// watch_request_accepted simply repeats its side effects).
type Signaling struct {
	hub *Hub
}

// NewSignaling returns a coordinator wired to hub.
func NewSignaling(hub *Hub) *Signaling {
	return &Signaling{hub: hub}
}

// WatchRequest handles Idle -> Requested: relay to the target as
// start_streaming_request if online, else reply watch_request_error to
// the viewer and stay Idle (§4.E).
func (s *Signaling) WatchRequest(viewer *Connection, env Envelope) {
	if !s.hub.Presence.Online(env.TargetID) {
		viewer.SendText(mustMarshal(WatchRequestErrorMsg{
			Type:     TypeWatchRequestError,
			Message:  "target user is not online",
			TargetID: env.TargetID,
		}))
		return
	}
	target, ok := s.hub.Presence.Find(env.TargetID)
	if !ok {
		viewer.SendText(mustMarshal(WatchRequestErrorMsg{
			Type:     TypeWatchRequestError,
			Message:  "target user is not online",
			TargetID: env.TargetID,
		}))
		return
	}
	target.SendText(mustMarshal(StartStreamingRequestMsg{
		Type:     TypeStartStreamingRequest,
		ViewerID: env.ViewerID,
		TargetID: env.TargetID,
		Action:   env.Action,
	}))
}

// ForwardToTarget implements the plain viewer->target forwards of §4.E
// (`watch_request_canceled`) by relaying the original message bytes
// verbatim to the target's login connection, when online.
func (s *Signaling) ForwardToTarget(raw []byte, targetID string) {
	if !s.hub.Presence.Online(targetID) {
		return
	}
	target, ok := s.hub.Presence.Find(targetID)
	if !ok {
		return
	}
	target.SendText(raw)
}

// ForwardToViewer implements the plain target->viewer forwards of §4.E
// (`approval_required`, `watch_request_rejected`, `streaming_ok`,
// `kick_viewer`) by relaying the original message bytes verbatim.
func (s *Signaling) ForwardToViewer(raw []byte, viewerID string) {
	viewer, ok := s.hub.Presence.Find(viewerID)
	if !ok {
		return
	}
	viewer.SendText(raw)
}

// Accepted implements target->server `watch_request_accepted`: forward
// to the viewer AND to the target's publisher-room publisher connection
// to trigger capture (§4.E). Repeating this for an already-accepted pair
// is allowed and simply retriggers the publisher (§8 idempotence law).
func (s *Signaling) Accepted(raw []byte, viewerID, targetID string) {
	s.ForwardToViewer(raw, viewerID)
	s.triggerPublisher(targetID)
}

// StreamingOK implements target->server `streaming_ok`: forward to the
// viewer, then locate the Room whose id equals targetID and, if its
// publisher is connected, send it start_streaming (§4.E).
func (s *Signaling) StreamingOK(raw []byte, viewerID, targetID string) {
	s.ForwardToViewer(raw, viewerID)
	s.triggerPublisher(targetID)
}

func (s *Signaling) triggerPublisher(targetID string) {
	room, ok := s.hub.Rooms.Get(targetID)
	if !ok {
		return
	}
	pub := room.Publisher()
	if pub == nil || !pub.Connected() {
		return
	}
	pub.SendText(mustMarshal(StartStreamingMsg{Type: TypeStartStreaming}))
	log.Printf("[signal] triggered start_streaming for publisher room %q", targetID)
}
