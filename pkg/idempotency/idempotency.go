// Package idempotency remembers the outcome of a request for a client-chosen
// key so a retried request returns the original result instead of repeating
// the side effect.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// pending marks a key whose request is still running.
const pending = "\x00pending"

var ErrInProgress = errors.New("a request with this idempotency key is still in progress")

type Store interface {
	// Claim reserves key for ttl. When the key is already taken it returns the
	// stored result, or ErrInProgress if the first request has not finished.
	Claim(ctx context.Context, key string, ttl time.Duration) (result string, claimed bool, err error)
	// Complete stores the result of a claimed key.
	Complete(ctx context.Context, key, result string, ttl time.Duration) error
	// Release drops a claim so the request can be retried.
	Release(ctx context.Context, key string) error
}
