// Package ratelimit throttles abuse-prone endpoints per client IP and per
// email address.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultMaxRequests = 10
	DefaultWindow      = 15 * time.Minute
	DefaultCooldown    = 2 * time.Minute
)

// Limiter keeps fixed-window IP counters and per-email cooldowns in Redis.
type Limiter struct {
	client      *redis.Client
	keyPrefix   string
	maxRequests int
	window      time.Duration
	cooldown    time.Duration
}

type Option func(*Limiter)

// WithLimits overrides the IP window and the email cooldown.
func WithLimits(maxRequests int, window, cooldown time.Duration) Option {
	return func(l *Limiter) {
		l.maxRequests = maxRequests
		l.window = window
		l.cooldown = cooldown
	}
}

// WithKeyPrefix namespaces all keys written by the limiter.
func WithKeyPrefix(prefix string) Option {
	return func(l *Limiter) { l.keyPrefix = prefix }
}

func NewLimiter(client *redis.Client, opts ...Option) *Limiter {
	l := &Limiter{
		client:      client,
		keyPrefix:   "ratelimit:",
		maxRequests: DefaultMaxRequests,
		window:      DefaultWindow,
		cooldown:    DefaultCooldown,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) ipKey(ip, purpose string) string {
	return fmt.Sprintf("%sip:%s:%s", l.keyPrefix, purpose, ip)
}

// Email addresses are hashed so the keyspace does not leak them.
func (l *Limiter) emailKey(email, purpose string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("%semail:%s:%s", l.keyPrefix, purpose, hex.EncodeToString(sum[:]))
}

// CheckIPRateLimitWithPurpose reports whether ip has used up its window for
// purpose. It does not count the current request.
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, l.ipKey(ip, purpose)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read ip counter: %w", err)
	}
	return count >= l.maxRequests, nil
}

var recordScript = redis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	if count == 1 then
		redis.call("EXPIRE", KEYS[1], ARGV[1])
	end
	return count
`)

// RecordIPRequestWithPurpose counts one request from ip. The window starts
// with the first request.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	err := recordScript.Run(ctx, l.client, []string{l.ipKey(ip, purpose)}, int(l.window.Seconds())).Err()
	if err != nil {
		return fmt.Errorf("failed to record ip request: %w", err)
	}
	return nil
}

// CheckEmailCooldown reports whether email is still cooling down for purpose.
func (l *Limiter) CheckEmailCooldown(ctx context.Context, email, purpose string) (bool, error) {
	n, err := l.client.Exists(ctx, l.emailKey(email, purpose)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}
	return n > 0, nil
}

// SetEmailCooldown starts the cooldown for email.
func (l *Limiter) SetEmailCooldown(ctx context.Context, email, purpose string) error {
	if err := l.client.Set(ctx, l.emailKey(email, purpose), "1", l.cooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}
	return nil
}
