package main

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 8 {
		t.Errorf("len(families) = %d, want 8", len(families))
	}
}

func TestRunMetricsSamplerUpdatesGauges(t *testing.T) {
	hub := NewHub(nil, heartbeatWindow)
	conn, _ := newTestConnection(t)
	hub.Presence.Login(conn, "alice", "Alice", identityIcon)
	room := hub.Rooms.GetOrCreate("r1")
	room.BroadcastBinary([]byte{1, 2, 3})

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunMetricsSampler(ctx, hub, metrics, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(metrics.onlineUsers) == 1 && testutil.ToFloat64(metrics.activeRooms) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := testutil.ToFloat64(metrics.onlineUsers); got != 1 {
		t.Errorf("onlineUsers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.activeRooms); got != 1 {
		t.Errorf("activeRooms = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.roomMessages); got != 1 {
		t.Errorf("roomMessages = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.roomBytes); got != 3 {
		t.Errorf("roomBytes = %v, want 3", got)
	}
}

func TestRunMetricsSamplerStopsOnContextCancel(t *testing.T) {
	hub := NewHub(nil, heartbeatWindow)
	metrics := NewMetrics(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunMetricsSampler(ctx, hub, metrics, 10*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected RunMetricsSampler to return after context cancellation")
	}
}
