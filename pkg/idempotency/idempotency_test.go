package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestMemoryStore_ClaimCompleteReplay(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, claimed, err := s.Claim(ctx, "k1", time.Hour); err != nil || !claimed {
		t.Fatalf("first claim = %v, %v", claimed, err)
	}
	if _, _, err := s.Claim(ctx, "k1", time.Hour); !errors.Is(err, ErrInProgress) {
		t.Fatalf("second claim while pending = %v, want ErrInProgress", err)
	}

	_ = s.Complete(ctx, "k1", "booking-1", time.Hour)
	got, claimed, err := s.Claim(ctx, "k1", time.Hour)
	if err != nil || claimed || got != "booking-1" {
		t.Fatalf("replay = %q, %v, %v", got, claimed, err)
	}
}

func TestMemoryStore_ReleaseAndExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, _, _ = s.Claim(ctx, "k", time.Minute)
	_ = s.Release(ctx, "k")
	if _, claimed, _ := s.Claim(ctx, "k", time.Minute); !claimed {
		t.Error("released key must be claimable")
	}

	_ = s.Complete(ctx, "k", "done", time.Minute)
	now = now.Add(2 * time.Minute)
	if _, claimed, _ := s.Claim(ctx, "k", time.Minute); !claimed {
		t.Error("expired key must be claimable")
	}
}

func TestRedisStore_FailsOpen(t *testing.T) {
	// Nothing listens on this port; every call fails and the store must
	// still let the request through.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	s := NewRedisStore(rdb, RedisOptions{BreakerFailures: 2, BreakerTimeout: time.Minute}, zap.NewNop())
	for i := 0; i < 4; i++ {
		_, claimed, err := s.Claim(context.Background(), "k", time.Minute)
		if err != nil || !claimed {
			t.Fatalf("attempt %d: claimed=%v err=%v", i, claimed, err)
		}
	}
}
