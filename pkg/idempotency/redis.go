package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const keyPrefix = "dentflow:idem:"

type RedisOptions struct {
	// Consecutive failures before the breaker opens.
	BreakerFailures uint32
	// How long the breaker stays open before probing Redis again.
	BreakerTimeout time.Duration
}

// RedisStore keeps idempotency keys in Redis behind a circuit breaker. When
// Redis is unhealthy the store fails open: every request is treated as new,
// and double submission is still caught by the booking lock.
type RedisStore struct {
	rdb *redis.Client
	cb  *gobreaker.CircuitBreaker[string]
	log *zap.Logger
}

func NewRedisStore(rdb *redis.Client, opts RedisOptions, log *zap.Logger) *RedisStore {
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "idempotency-redis",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &RedisStore{rdb: rdb, cb: cb, log: log}
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	val, err := s.cb.Execute(func() (string, error) {
		ok, err := s.rdb.SetNX(ctx, keyPrefix+key, pending, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return "", nil
		}
		v, err := s.rdb.Get(ctx, keyPrefix+key).Result()
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET; the slot is free again.
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if v == "" {
			return "", fmt.Errorf("empty idempotency value for %s", key)
		}
		return v, nil
	})
	if err != nil {
		s.log.Warn("idempotency store unavailable, proceeding without it", zap.Error(err))
		return "", true, nil
	}
	switch val {
	case "":
		return "", true, nil
	case pending:
		return "", false, ErrInProgress
	}
	return val, false, nil
}

func (s *RedisStore) Complete(ctx context.Context, key, result string, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (string, error) {
		return "", s.rdb.Set(ctx, keyPrefix+key, result, ttl).Err()
	})
	if err != nil {
		s.log.Warn("failed to store idempotency result", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	_, err := s.cb.Execute(func() (string, error) {
		return "", s.rdb.Del(ctx, keyPrefix+key).Err()
	})
	if err != nil {
		s.log.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return rdb, nil
}
