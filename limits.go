package main

import "time"

// ratePeriod is the window ControlRateLimiter counts control messages
// over.
const ratePeriod = time.Second

// Operational limits — named constants for values scattered across the
// spec as bare numbers, gathered here so they are each named once.
const (
	// heartbeatWindow is the liveness window of §4.F / §4.C.online: a user
	// with no heartbeat for longer than this is no longer "online".
	heartbeatWindow = 15 * time.Second

	// reaperTick is the liveness-reaper sweep interval (§4.F).
	reaperTick = 5 * time.Second

	// roomReapInterval is the empty-room sweep interval (§3, §4.F).
	roomReapInterval = 60 * time.Second

	// outboundQueueSize bounds the per-connection outbound message queue
	// (§4.D Back-pressure, §9). A slow consumer whose queue fills is
	// disconnected rather than allowed to block the room (§7
	// Resource-overflow). Sized to absorb a brief stall without dropping a
	// healthy but momentarily busy client.
	outboundQueueSize = 64

	// controlRateLimit is the default maximum number of text control
	// messages accepted per connection per second before the router starts
	// dropping them (§7 Resource-overflow). 0 disables the limit.
	controlRateLimit = 50

	// maxNameLength bounds display name and user-id length accepted at
	// login.
	maxNameLength = 64

	// breakerFailureThreshold is the number of consecutive outbound write
	// failures on a connection before its circuit breaker opens.
	breakerFailureThreshold = 5

	// breakerOpenTimeout is how long the breaker stays open before allowing
	// a single probe send.
	breakerOpenTimeout = 10 * time.Second
)
