package main

import "testing"

func TestControlRateLimiterDisabledAtZero(t *testing.T) {
	rl := NewControlRateLimiter(0)
	for i := 0; i < 1000; i++ {
		if !rl.Allow("conn-1") {
			t.Fatal("expected a disabled limiter to always allow")
		}
	}
}

func TestControlRateLimiterEnforcesLimit(t *testing.T) {
	rl := NewControlRateLimiter(3)

	allowed := 0
	for i := 0; i < 5; i++ {
		if rl.Allow("conn-1") {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("allowed = %d, want 3 within the first window", allowed)
	}
}

func TestControlRateLimiterPerConnection(t *testing.T) {
	rl := NewControlRateLimiter(1)

	if !rl.Allow("conn-1") {
		t.Error("expected conn-1's first message to be allowed")
	}
	if !rl.Allow("conn-2") {
		t.Error("expected conn-2's budget to be independent of conn-1's")
	}
	if rl.Allow("conn-1") {
		t.Error("expected conn-1's second message within the window to be denied")
	}
}
