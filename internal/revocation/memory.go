package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryRegistry keeps raw tokens in a process-local set.
type MemoryRegistry struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
	now    func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		tokens: make(map[string]struct{}),
		now:    time.Now,
	}
}

func (r *MemoryRegistry) WithClock(now func() time.Time) *MemoryRegistry {
	r.now = now
	return r
}

func (r *MemoryRegistry) Blacklist(_ context.Context, token string) error {
	if token == "" {
		return nil
	}
	r.mu.Lock()
	r.tokens[token] = struct{}{}
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) IsBlacklisted(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	r.mu.RLock()
	_, found := r.tokens[token]
	r.mu.RUnlock()
	return found, nil
}

func (r *MemoryRegistry) Sweep(_ context.Context) (int, error) {
	now := r.now()

	r.mu.RLock()
	var evict []string
	for token := range r.tokens {
		exp, hasExpiry, ok := expiryOf(token)
		if !ok || (hasExpiry && exp.Before(now)) {
			evict = append(evict, token)
		}
	}
	r.mu.RUnlock()

	if len(evict) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	for _, token := range evict {
		delete(r.tokens, token)
	}
	r.mu.Unlock()
	return len(evict), nil
}

func (r *MemoryRegistry) Size(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens), nil
}
