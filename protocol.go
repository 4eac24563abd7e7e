package main

import "encoding/json"

// MessageType is the `type` tag carried by every JSON control message on a
// login or room channel (§6). An unrecognized tag is kept as-is and falls
// to the default branch of the dispatch switches in router.go; a message
// with no `type` field, or that is not valid JSON, is TypeUnknown.
type MessageType string

// Login-channel message types, client -> server.
const (
	TypeLogin              MessageType = "login"
	TypeLogout             MessageType = "logout"
	TypeGetOnlineUsers     MessageType = "get_online_users"
	TypeHeartbeat          MessageType = "heartbeat"
	TypePing               MessageType = "ping"
	TypeWatchRequest       MessageType = "watch_request"
	TypeWatchRequestCancel MessageType = "watch_request_canceled"
	TypeApprovalRequired   MessageType = "approval_required"
	TypeWatchRequestAccept MessageType = "watch_request_accepted"
	TypeWatchRequestReject MessageType = "watch_request_rejected"
	TypeStreamingOK        MessageType = "streaming_ok"
	TypeKickViewer         MessageType = "kick_viewer"
	TypeViewerMicState     MessageType = "viewer_mic_state"
)

// Login-channel message types, server -> client.
const (
	TypeLoginResponse         MessageType = "login_response"
	TypeOnlineUsers           MessageType = "online_users"
	TypeOnlineUsersUpdate     MessageType = "online_users_update"
	TypeWatchRequestError     MessageType = "watch_request_error"
	TypeStartStreamingRequest MessageType = "start_streaming_request"
)

// Room-channel message types (bidirectional text payloads, §6).
const (
	TypeMousePosition   MessageType = "mouse_position"
	TypeAudioOpus       MessageType = "audio_opus"
	TypeViewerAudioOpus MessageType = "viewer_audio_opus"
)

// TypeStartStreaming is the server-synthesized message sent to a publisher
// to trigger capture (§4.E, §6).
const TypeStartStreaming MessageType = "start_streaming"

// TypeUnknown is the zero value: the Type of a message that carried no
// `type` field, and the type the room router uses for a body that was not
// valid JSON.
const TypeUnknown MessageType = ""

// iconMin, iconMax bound the valid avatar-id range (§3).
const iconMin, iconMax = 3, 21

// iconUnknown is the sanitized sentinel substituted for an out-of-range
// avatar-id; it must never be echoed back verbatim as the invalid value
// (§8 boundary behavior).
const iconUnknown = -1

// sanitizeIcon clamps an avatar-id to the unknown sentinel when outside
// [iconMin, iconMax].
func sanitizeIcon(id int) int {
	if id < iconMin || id > iconMax {
		return iconUnknown
	}
	return id
}

// Envelope is the generic shape every inbound text message is parsed into
// first. It is a superset of fields across all message types; fields that
// don't apply to a given Type are simply left zero. This realizes the
// "parse once into a tagged variant, dispatch on the tag" design note (§9)
// without a different Go struct per wire message.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	ViewerID  string          `json:"viewer_id,omitempty"`
	TargetID  string          `json:"target_id,omitempty"`
	Action    string          `json:"action,omitempty"`
	ID        string          `json:"id,omitempty"`
	StreamURL string          `json:"stream_url,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// LoginData is the nested `data` object of a `login` message. IconID and
// ViewerIconID are both accepted; IconID takes precedence when both are
// present, matching the original source's fallback order.
type LoginData struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IconID       *int   `json:"icon_id,omitempty"`
	ViewerIconID *int   `json:"viewer_icon_id,omitempty"`
}

// requestedIcon resolves the icon_id/viewer_icon_id alias pair into a
// single sanitized value, falling back to fallback (e.g. a previously
// known icon) when neither field is present.
func (d LoginData) requestedIcon(fallback int) int {
	switch {
	case d.IconID != nil:
		return sanitizeIcon(*d.IconID)
	case d.ViewerIconID != nil:
		return sanitizeIcon(*d.ViewerIconID)
	default:
		return fallback
	}
}

// OnlineUserBrief is one entry of an `online_users` unicast reply (§6) —
// deliberately narrower than RosterEntry: no icon_id.
type OnlineUserBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RosterEntry is one entry of an `online_users_update` broadcast (§6).
type RosterEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IconID int    `json:"icon_id"`
}

// LoginResponseData is the `data` object of a `login_response` message.
type LoginResponseData struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IconID int    `json:"icon_id"`
}

// LoginResponse is the unicast reply to a `login` message.
type LoginResponse struct {
	Type    MessageType       `json:"type"`
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    LoginResponseData `json:"data"`
}

// OnlineUsersMsg is the unicast reply to `get_online_users`.
type OnlineUsersMsg struct {
	Type MessageType       `json:"type"`
	Data []OnlineUserBrief `json:"data"`
}

// OnlineUsersUpdateMsg is broadcast to every login connection after any
// presence-membership change (§4.C).
type OnlineUsersUpdateMsg struct {
	Type MessageType   `json:"type"`
	Data []RosterEntry `json:"data"`
}

// WatchRequestErrorMsg is the unicast error reply when a watch_request
// names a target that is not online (§4.E, §7).
type WatchRequestErrorMsg struct {
	Type     MessageType `json:"type"`
	Message  string      `json:"message"`
	TargetID string      `json:"target_id"`
}

// StartStreamingRequestMsg forwards a watch_request to its target as a
// start_streaming_request, passing through `action` when present.
type StartStreamingRequestMsg struct {
	Type     MessageType `json:"type"`
	ViewerID string      `json:"viewer_id"`
	TargetID string      `json:"target_id"`
	Action   string      `json:"action,omitempty"`
}

// StartStreamingMsg is the server-synthesized trigger sent to a publisher.
type StartStreamingMsg struct {
	Type MessageType `json:"type"`
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Every type above is a plain, always-marshalable struct; a failure
		// here means a programming error, not a runtime condition.
		panic("protocol: marshal: " + err.Error())
	}
	return data
}
