package http

import (
	"testing"
	"time"
)

func TestRateLimiterSpendsBurstThenRefills(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3, 3, time.Minute)
	current := time.Unix(0, 0)
	rl.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		if !rl.Allow("editor-key") {
			t.Fatalf("expected request %d within the burst to pass", i+1)
		}
	}
	if rl.Allow("editor-key") {
		t.Fatalf("expected request beyond the burst to be refused")
	}

	current = current.Add(time.Second)
	if !rl.Allow("editor-key") {
		t.Fatalf("expected a refilled token after one second")
	}
}

func TestRateLimiterKeepsClientsApart(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 0.001, time.Minute)
	current := time.Unix(0, 0)
	rl.now = func() time.Time { return current }

	if !rl.Allow("api-key:0") || rl.Allow("api-key:0") {
		t.Fatalf("expected the API key client to get exactly one request")
	}
	if !rl.Allow("ip:192.0.2.1") {
		t.Fatalf("expected the IP client to have its own bucket")
	}
	if !rl.Allow("") {
		t.Fatalf("expected an anonymous client to be allowed once")
	}
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1, time.Minute)
	current := time.Unix(0, 0)
	rl.now = func() time.Time { return current }

	rl.Allow("ip:198.51.100.4")
	rl.Allow("ip:198.51.100.5")
	if got := rl.Clients(); got != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", got)
	}

	current = current.Add(2 * time.Minute)
	rl.Allow("ip:198.51.100.6")
	if got := rl.Clients(); got != 1 {
		t.Fatalf("expected idle clients to be dropped, got %d tracked", got)
	}
}
