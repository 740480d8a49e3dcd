package middleware

import (
	"testing"
	"time"
)

func TestIPRateLimiterAllowsWithinBudget(t *testing.T) {
	limiter := NewIPRateLimiter(5, time.Minute, 5, time.Minute)

	for i := 0; i < 5; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("request over budget should be denied")
	}

	// Separate keys have independent budgets.
	if !limiter.Allow("10.0.0.2") {
		t.Fatal("different key must not share the exhausted budget")
	}
}

func TestIPRateLimiterDefaultsEmptyKey(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Minute, 1, time.Minute)

	if !limiter.Allow("") {
		t.Fatal("first request on empty key should be allowed")
	}
	if limiter.Allow("") {
		t.Fatal("empty keys share the fallback bucket")
	}
}
