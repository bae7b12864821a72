// Package cache provides one get/set/expire contract with two
// interchangeable backends: Redis when a client is available, an
// in-process map otherwise. The backend is selected once at startup;
// callers never branch per call. The memory backend trades cross-instance
// consistency for availability: entries are scoped to one process and
// lost on restart.
package cache

import (
	"context"
	"time"
)

// Cache is the shared contract. Get reports a miss with ok=false rather
// than an error; errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
