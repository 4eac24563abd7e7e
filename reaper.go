package main

import (
	"context"
	"log"
	"time"
)

// RunLivenessReaper sweeps the presence registry every reaperTick,
// closing and evicting any user whose heartbeat has timed out (§4.F).
// Runs until ctx is canceled. metrics may be nil.
func RunLivenessReaper(ctx context.Context, hub *Hub, tick time.Duration, metrics *Metrics) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := hub.Presence.ReapExpired(time.Now())
			for _, userID := range removed {
				log.Printf("[reaper] evicted %q (heartbeat timeout)", userID)
				hub.auditLog("reap", userID, "heartbeat timeout")
			}
			if metrics != nil && len(removed) > 0 {
				metrics.reapedUsers.Add(float64(len(removed)))
			}
		}
	}
}

// RunRoomReaper deletes empty rooms every interval (§3 Lifecycle, §4.F).
// metrics may be nil.
func RunRoomReaper(ctx context.Context, rooms *RoomTable, interval time.Duration, metrics *Metrics) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rooms.ReapEmpty(); n > 0 {
				log.Printf("[reaper] removed %d empty room(s)", n)
				if metrics != nil {
					metrics.reapedRooms.Add(float64(n))
				}
			}
		}
	}
}
