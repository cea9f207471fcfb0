package nemesis

import (
	"context"
	"testing"
	"time"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

func TestTokenBucket_BurstThenDeny(t *testing.T) {
	limiter := NewTokenBucketLimiter(map[domain.LimitClass]ClassConfig{
		domain.LimitClassLogin: {Limit: 3, Window: time.Hour},
	})
	t.Cleanup(func() { _ = limiter.Close() })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := limiter.Check(ctx, "k", domain.LimitClassLogin)
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("burst request %d should be allowed", i+1)
		}
	}

	// Refill is ~3/hour, so the bucket is empty now.
	res, err := limiter.Check(ctx, "k", domain.LimitClassLogin)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Allowed {
		t.Error("request beyond burst should be denied")
	}
	if res.ResetAt.Before(time.Now()) {
		t.Error("ResetAt should point into the future when throttled")
	}
}

func TestTokenBucket_KeysIndependent(t *testing.T) {
	limiter := NewTokenBucketLimiter(map[domain.LimitClass]ClassConfig{
		domain.LimitClassLogin: {Limit: 1, Window: time.Hour},
	})
	t.Cleanup(func() { _ = limiter.Close() })

	ctx := context.Background()
	limiter.Check(ctx, "a", domain.LimitClassLogin)
	if res, _ := limiter.Check(ctx, "a", domain.LimitClassLogin); res.Allowed {
		t.Fatal("key a should be throttled")
	}
	if res, _ := limiter.Check(ctx, "b", domain.LimitClassLogin); !res.Allowed {
		t.Error("key b has its own bucket")
	}
}
