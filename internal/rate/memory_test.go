package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterAllowsUpToLimit(t *testing.T) {
	limiter := NewMemory(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "1.2.3.4", now)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter, err := limiter.Allow(context.Background(), "1.2.3.4", now)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatalf("4th request should be rejected")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("unexpected retryAfter %v", retryAfter)
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewMemory(1, time.Minute)
	now := time.Now()

	if allowed, _, _ := limiter.Allow(context.Background(), "a", now); !allowed {
		t.Fatalf("first key should be allowed")
	}
	if allowed, _, _ := limiter.Allow(context.Background(), "b", now); !allowed {
		t.Fatalf("second key should not share the first key's count")
	}
	if allowed, _, _ := limiter.Allow(context.Background(), "a", now); allowed {
		t.Fatalf("first key should now be exhausted")
	}
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	limiter := NewMemory(1, time.Minute)
	now := time.Now()

	limiter.Allow(context.Background(), "a", now)
	if allowed, _, _ := limiter.Allow(context.Background(), "a", now); allowed {
		t.Fatalf("expected rejection inside the window")
	}

	later := now.Add(time.Minute + time.Second)
	if allowed, _, _ := limiter.Allow(context.Background(), "a", later); !allowed {
		t.Fatalf("expected a fresh window after expiry")
	}
}

func TestMemoryLimiterSweep(t *testing.T) {
	limiter := NewMemory(10, time.Minute)
	now := time.Now()

	limiter.Allow(context.Background(), "stale", now)
	limiter.Allow(context.Background(), "fresh", now.Add(30*time.Second))

	limiter.Sweep(now.Add(61 * time.Second))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.entries["stale"]; ok {
		t.Fatalf("expired entry should have been evicted")
	}
	if _, ok := limiter.entries["fresh"]; !ok {
		t.Fatalf("live entry should have survived the sweep")
	}
}
