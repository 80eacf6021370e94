package pipeline

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupeSet is a concurrency-safe set of seen keys. The initial size only
// preallocates: the set grows before it would evict, so a key added once is
// reported as seen for the lifetime of the set.
type DedupeSet struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, struct{}]
	capacity int
}

// NewDedupeSet builds a set sized for initialSize keys.
func NewDedupeSet(initialSize int) (*DedupeSet, error) {
	cache, err := lru.New[string, struct{}](initialSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &DedupeSet{cache: cache, capacity: initialSize}, nil
}

// Add records key and reports whether it had not been seen before.
func (d *DedupeSet) Add(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cache.Contains(key) {
		return false
	}
	if d.cache.Len() >= d.capacity {
		d.capacity *= 2
		d.cache.Resize(d.capacity)
	}
	d.cache.Add(key, struct{}{})
	return true
}
