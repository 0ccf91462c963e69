package server

import (
	"testing"
	"time"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("key-a"); !ok {
			t.Fatalf("burst request %d denied", i)
		}
	}
	ok, wait := rl.Allow("key-a")
	if ok {
		t.Fatalf("exhausted bucket must deny")
	}
	if wait <= 0 || wait > time.Second {
		t.Fatalf("wait = %v", wait)
	}

	now = now.Add(1500 * time.Millisecond)
	if ok, _ := rl.Allow("key-a"); !ok {
		t.Fatalf("token should have refilled after 1.5s at 1 rps")
	}
	if ok, _ := rl.Allow("key-a"); ok {
		t.Fatalf("only one token should have refilled")
	}
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	if ok, _ := rl.Allow("key-a"); !ok {
		t.Fatalf("first key-a denied")
	}
	if ok, _ := rl.Allow("key-a"); ok {
		t.Fatalf("second key-a allowed")
	}
	if ok, _ := rl.Allow("key-b"); !ok {
		t.Fatalf("key-b must have its own bucket")
	}
}
