package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/taskhub-api/internal/tokens"
)

// TokenService defines the interface for access token creation and validation.
type TokenService interface {
	CreateToken(userID uuid.UUID, email string, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// AccountTokens issues and checks email verification and password reset
// tokens. *tokens.Service implements it.
type AccountTokens interface {
	IssueVerificationToken(subjectID, email string) (string, error)
	VerifyVerificationToken(token string) (bool, *tokens.Payload)
	IssueResetToken(subjectID, email string) (token, code string, err error)
	VerifyResetToken(token, code string) (bool, *tokens.Payload)
}

// RefreshTokenRepository defines the interface for refresh token storage
type RefreshTokenRepository interface {
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
}

// ResetTokenLedger remembers reset tokens that were already used and counts
// wrong codes per token.
type ResetTokenLedger interface {
	// MarkRedeemed records token as used until expiresAt. It returns false
	// when the token had already been redeemed.
	MarkRedeemed(ctx context.Context, token string, expiresAt time.Time) (bool, error)
	// Release forgets a redemption whose password change did not persist.
	Release(ctx context.Context, token string) error
	// RecordFailure counts one rejected attempt for token and returns the
	// total. The counter lives for ttl from the first failure.
	RecordFailure(ctx context.Context, token string, ttl time.Duration) (int64, error)
	// Failures returns the rejected attempts recorded for token.
	Failures(ctx context.Context, token string) (int64, error)
}

// EmailService defines the interface for email operations
type EmailService interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, token string) error
	SendPasswordResetCode(ctx context.Context, toEmail, name, code string) error
}

// RateLimiter throttles requests per client IP and per email address.
type RateLimiter interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email, purpose string) (bool, error)
	SetEmailCooldown(ctx context.Context, email, purpose string) error
}

var _ AccountTokens = (*tokens.Service)(nil)
