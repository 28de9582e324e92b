package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryLimiter is an in-process Limiter for tests and single-node
// development setups.
type MemoryLimiter struct {
	mu          sync.Mutex
	now         func() time.Time
	maxRequests int
	window      time.Duration
	cooldown    time.Duration
	counters    map[string]*windowCount
	cooldowns   map[string]time.Time
}

type windowCount struct {
	count     int
	windowEnd time.Time
}

func NewMemoryLimiter(maxRequests int, window, cooldown time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		now:         time.Now,
		maxRequests: maxRequests,
		window:      window,
		cooldown:    cooldown,
		counters:    make(map[string]*windowCount),
		cooldowns:   make(map[string]time.Time),
	}
}

// SetNow replaces the time source.
func (m *MemoryLimiter) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryLimiter) CheckIPRateLimitWithPurpose(_ context.Context, ip, purpose string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wc, ok := m.counters[purpose+":"+ip]
	if !ok || m.now().After(wc.windowEnd) {
		return false, nil
	}
	return wc.count >= m.maxRequests, nil
}

func (m *MemoryLimiter) RecordIPRequestWithPurpose(_ context.Context, ip, purpose string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := purpose + ":" + ip
	now := m.now()
	wc, ok := m.counters[key]
	if !ok || now.After(wc.windowEnd) {
		m.counters[key] = &windowCount{count: 1, windowEnd: now.Add(m.window)}
		return nil
	}
	wc.count++
	return nil
}

func (m *MemoryLimiter) CheckEmailCooldown(_ context.Context, email, purpose string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.cooldowns[purpose+":"+strings.ToLower(strings.TrimSpace(email))]
	return ok && m.now().Before(until), nil
}

func (m *MemoryLimiter) SetEmailCooldown(_ context.Context, email, purpose string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cooldowns[purpose+":"+strings.ToLower(strings.TrimSpace(email))] = m.now().Add(m.cooldown)
	return nil
}
