// Package ratelimit provides per-actor request limits shared across pipeline runs, and per-host
// pacing for outbound browser sessions.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more event under key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Memory is an in-process sliding-window limiter. Each key keeps the timestamps of its recent
// events; old keys are purged by a cleanup goroutine.
type Memory struct {
	mu            sync.Mutex
	events        map[string][]time.Time
	now           func() time.Time
	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

// NewMemory creates a limiter. A positive cleanupInterval starts the purge goroutine;
// call Stop to release it.
func NewMemory(cleanupInterval time.Duration) *Memory {
	m := &Memory{
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
	if cleanupInterval > 0 {
		m.cleanupTicker = time.NewTicker(cleanupInterval)
		m.cleanupStop = make(chan struct{})
		go m.cleanup(cleanupInterval)
	}
	return m
}

// Allow records an event for key and reports whether the key is still within limit.
// A non-positive limit means unlimited.
func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	kept := m.prune(m.events[key], now, window)
	kept = append(kept, now)
	m.events[key] = kept
	return len(kept) <= limit, nil
}

func (m *Memory) prune(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	out := ts[:0]
	for _, t := range ts {
		if !t.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (m *Memory) cleanup(maxAge time.Duration) {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.purge(maxAge)
		case <-m.cleanupStop:
			return
		}
	}
}

// purge drops keys with no event newer than maxAge.
func (m *Memory) purge(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-maxAge)
	for key, ts := range m.events {
		if len(ts) == 0 || ts[len(ts)-1].Before(cutoff) {
			delete(m.events, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() {
		if m.cleanupTicker != nil {
			m.cleanupTicker.Stop()
		}
		if m.cleanupStop != nil {
			close(m.cleanupStop)
		}
	})
}
