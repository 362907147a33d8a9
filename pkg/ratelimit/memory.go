package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCapacity is returned when every key slot holds a live window.
var ErrCapacity = errors.New("rate limiter capacity exceeded")

// MemoryLimiter keeps at most MaxKeys windows; expired windows are collected when full.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	data    map[string]*bucket
	maxKeys int
}

type bucket struct {
	count     int
	windowEnd time.Time
}

// MemoryConfig configures a MemoryLimiter.
type MemoryConfig struct {
	Now     func() time.Time
	MaxKeys int
}

func NewMemoryLimiter(cfg MemoryConfig) *MemoryLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &MemoryLimiter{
		now:     cfg.Now,
		data:    make(map[string]*bucket),
		maxKeys: cfg.MaxKeys,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.data[key]
	if !ok || !now.Before(b.windowEnd) {
		if !ok && len(m.data) >= m.maxKeys {
			m.gc(now)
			if len(m.data) >= m.maxKeys {
				return Decision{}, ErrCapacity
			}
		}
		b = &bucket{windowEnd: now.Add(window)}
		m.data[key] = b
	}

	if b.count < limit {
		b.count++
		return Decision{Allowed: true, Limit: limit, Remaining: limit - b.count, ResetAt: b.windowEnd}, nil
	}
	return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: b.windowEnd}, nil
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MemoryLimiter) gc(now time.Time) {
	for key, b := range m.data {
		if !now.Before(b.windowEnd) {
			delete(m.data, key)
		}
	}
}
