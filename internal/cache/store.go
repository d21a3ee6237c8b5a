package cache

import (
	"context"
	"time"
)

// Store is the key/TTL cache contract. Callers must treat any error as
// non-fatal: a failed Get is a miss, a failed SetWithTTL is a no-op.
type Store interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetWithTTL stores the value with an expiry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

// TranscriptKey derives the cache key for a video's transcript. Keys are
// namespaced so unrelated deployments sharing a store never collide.
func TranscriptKey(namespace, videoID string) string {
	return namespace + ":transcript:" + videoID
}
