package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PasswordResetRepository records redeemed password reset tokens in Redis so
// a token and its code work only once, and counts wrong codes per token.
type PasswordResetRepository struct {
	client *redis.Client
}

// NewPasswordResetRepository creates a new password reset repository instance
func NewPasswordResetRepository(client *redis.Client) *PasswordResetRepository {
	return &PasswordResetRepository{
		client: client,
	}
}

// MarkRedeemed implements ResetTokenLedger. The marker expires with the token.
func (r *PasswordResetRepository) MarkRedeemed(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Expired tokens never verify; nothing to remember.
		return true, nil
	}
	// Round up so the marker never expires before the token.
	ttl = ttl.Truncate(time.Second) + time.Second

	ok, err := r.client.SetNX(ctx, passwordResetKey(token), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record password reset token: %w", err)
	}
	return ok, nil
}

// Release implements ResetTokenLedger.
func (r *PasswordResetRepository) Release(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, passwordResetKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to release password reset token: %w", err)
	}
	return nil
}

var failureScript = redis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	if count == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return count
`)

// RecordFailure implements ResetTokenLedger.
func (r *PasswordResetRepository) RecordFailure(ctx context.Context, token string, ttl time.Duration) (int64, error) {
	count, err := failureScript.Run(ctx, r.client, []string{passwordResetFailuresKey(token)}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to record password reset failure: %w", err)
	}
	return count, nil
}

// Failures implements ResetTokenLedger.
func (r *PasswordResetRepository) Failures(ctx context.Context, token string) (int64, error) {
	count, err := r.client.Get(ctx, passwordResetFailuresKey(token)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read password reset failures: %w", err)
	}
	return count, nil
}

// passwordResetKey generates a Redis key for password reset tokens
func passwordResetKey(token string) string {
	return fmt.Sprintf("password_reset:redeemed:%s", hashToken(token))
}

func passwordResetFailuresKey(token string) string {
	return fmt.Sprintf("password_reset:failures:%s", hashToken(token))
}
