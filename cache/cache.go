// Package cache defines the small shared-cache capability set the game
// core depends on: JSON get/set with TTL and a bounded list push. Two
// bindings exist: Redis for deployments with a shared cache, and an
// in-process fallback used when REDIS_URL is unset or unreachable.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by GetJSON when the key does not exist.
var ErrMiss = errors.New("cache: miss")

// Cache is the capability set consumed by the game state cache, the
// engagement engine and the taunt director. Implementations must be safe
// for concurrent use. Errors are advisory: callers log and fall back to
// their in-memory authoritative copy.
type Cache interface {
	// GetJSON unmarshals the value at key into out. Returns ErrMiss when
	// the key is absent.
	GetJSON(ctx context.Context, key string, out any) error

	// SetJSON marshals v and stores it at key with the given TTL.
	// A zero TTL stores without expiry.
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error

	// PushLog prepends a JSON-encoded entry to the list at key, trims the
	// list to max items and refreshes the TTL.
	PushLog(ctx context.Context, key string, entry any, max int64, ttl time.Duration) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Connected reports whether the backing store is reachable. The
	// memory binding always reports false so health checks can tell the
	// two apart.
	Connected(ctx context.Context) bool
}
