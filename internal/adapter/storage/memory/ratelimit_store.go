package memory

import (
	"context"
	"sync"
	"time"

	"qr-payment-ledger/internal/core/ports"
)

// RateLimitStore is an in-process ports.RateLimitStore using fixed-window
// counters, for single-instance deployments without Redis.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	id    int64
	count int64
}

// NewRateLimitStore creates an empty in-memory rate limit store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow counts the request against key's current window.
func (s *RateLimitStore) Allow(_ context.Context, key string, limit int64, win time.Duration) (*ports.RateLimitResult, error) {
	secs := int64(win.Seconds())
	if secs < 1 {
		secs = 1
	}
	id := s.now().Unix() / secs

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || w.id != id {
		w = &window{id: id}
		s.windows[key] = w
	}
	w.count++

	return &ports.RateLimitResult{
		Allowed:   w.count <= limit,
		Limit:     limit,
		Remaining: max(limit-w.count, 0),
		ResetAt:   (id + 1) * secs,
	}, nil
}
