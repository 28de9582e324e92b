package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/taskhub-api/internal/logging"
	"github.com/redmonkez12/taskhub-api/internal/tokens"
	"github.com/redmonkez12/taskhub-api/internal/user"
)

var (
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrEmailNotVerified         = errors.New("email not verified, please check your inbox")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification link")
	ErrInvalidOTP               = errors.New("invalid or expired OTP")
	ErrEmailDelivery            = errors.New("failed to send email")
	ErrAccountInactive          = errors.New("account is inactive")
)

// Service handles authentication business logic
type Service struct {
	users                user.Store
	authRepo             RefreshTokenRepository
	resetLedger          ResetTokenLedger
	pasetoService        TokenService
	accountTokens        AccountTokens
	emailService         EmailService
	logger               *logging.Logger
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
}

func NewService(
	users user.Store,
	authRepo RefreshTokenRepository,
	resetLedger ResetTokenLedger,
	pasetoService TokenService,
	accountTokens AccountTokens,
	emailService EmailService,
	logger *logging.Logger,
	accessTokenDuration time.Duration,
	refreshTokenDuration time.Duration,
) *Service {
	return &Service{
		users:                users,
		authRepo:             authRepo,
		resetLedger:          resetLedger,
		pasetoService:        pasetoService,
		accountTokens:        accountTokens,
		emailService:         emailService,
		logger:               logger,
		accessTokenDuration:  accessTokenDuration,
		refreshTokenDuration: refreshTokenDuration,
	}
}

// RegisterInput holds the registration form.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an inactive account and sends the verification email.
// The account is rolled back when the email cannot be sent.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := ValidateName(in.FirstName); err != nil {
		return nil, err
	}
	if err := ValidateName(in.LastName); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var created *user.User
	err = s.users.WithinTx(ctx, func(ctx context.Context, tx user.Store) error {
		u, err := tx.Create(ctx, user.CreateParams{
			Username:     in.Username,
			Email:        in.Email,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			PasswordHash: passwordHash,
		})
		if err != nil {
			return err
		}

		token, err := s.accountTokens.IssueVerificationToken(u.ID.String(), u.Email)
		if err != nil {
			return fmt.Errorf("failed to issue verification token: %w", err)
		}

		if err := s.emailService.SendVerificationEmail(ctx, u.Email, u.DisplayName(), token); err != nil {
			return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
		}

		created = u
		return nil
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) || errors.Is(err, user.ErrDuplicateUsername) || errors.Is(err, ErrEmailDelivery) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}

// VerifyEmail activates the account named by a verification token. It
// reports whether the account was newly activated; an already active
// account is not an error.
func (s *Service) VerifyEmail(ctx context.Context, token string) (bool, error) {
	ok, payload := s.accountTokens.VerifyVerificationToken(token)
	if !ok {
		return false, ErrInvalidVerificationToken
	}

	existingUser, err := s.userFromPayload(ctx, payload.SubjectID, payload.Email)
	if err != nil {
		return false, err
	}
	if existingUser.IsActive {
		return false, nil
	}

	activated, err := s.users.Activate(ctx, existingUser.ID)
	if err != nil {
		return false, fmt.Errorf("failed to verify email: %w", err)
	}
	return activated, nil
}

// ResendVerificationEmail sends a fresh verification link to an inactive
// account. Always returns nil to prevent email enumeration attacks.
func (s *Service) ResendVerificationEmail(ctx context.Context, email string) error {
	existingUser, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for resend verification", "error", err)
		}
		return nil
	}
	if existingUser.IsActive {
		return nil
	}

	token, err := s.accountTokens.IssueVerificationToken(existingUser.ID.String(), existingUser.Email)
	if err != nil {
		s.logger.Warn("failed to issue verification token", "error", err)
		return nil
	}

	if err := s.emailService.SendVerificationEmail(ctx, existingUser.Email, existingUser.DisplayName(), token); err != nil {
		s.logger.Warn("failed to resend verification email", "user_id", existingUser.ID, "error", err)
	}
	return nil
}

// RequestPasswordReset issues a reset token for an active account and emails
// its one-time code. The token is returned to the caller while the code only
// travels by email. Unknown or inactive addresses get a token for a random
// subject so both cases look alike.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return "", err
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if err != nil || !existingUser.IsActive {
		token, _, err := s.accountTokens.IssueResetToken(uuid.NewString(), email)
		if err != nil {
			return "", fmt.Errorf("failed to issue reset token: %w", err)
		}
		return token, nil
	}

	token, code, err := s.accountTokens.IssueResetToken(existingUser.ID.String(), existingUser.Email)
	if err != nil {
		return "", fmt.Errorf("failed to issue reset token: %w", err)
	}

	if err := s.emailService.SendPasswordResetCode(ctx, existingUser.Email, existingUser.DisplayName(), code); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}

	return token, nil
}

// MaxResetAttempts is the number of wrong codes after which a reset token
// stops working.
const MaxResetAttempts = 5

// ResetPassword sets a new password given a reset token and its one-time
// code. Each token can be redeemed once and dies after MaxResetAttempts
// wrong codes.
func (s *Service) ResetPassword(ctx context.Context, token, code, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	failures, err := s.resetLedger.Failures(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to check reset attempts: %w", err)
	}
	if failures >= MaxResetAttempts {
		return ErrInvalidOTP
	}

	ok, payload := s.accountTokens.VerifyResetToken(token, code)
	if !ok {
		// Counted for at most the lifetime of any reset token.
		if _, err := s.resetLedger.RecordFailure(ctx, token, tokens.ResetTTL); err != nil {
			s.logger.Warn("failed to record password reset failure", "error", err)
		}
		return ErrInvalidOTP
	}

	existingUser, err := s.userFromPayload(ctx, payload.SubjectID, payload.Email)
	if err != nil {
		return err
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// The token is marked last so a failed update leaves it usable.
	var redeemed bool
	err = s.users.WithinTx(ctx, func(ctx context.Context, tx user.Store) error {
		if err := tx.UpdatePassword(ctx, existingUser.ID, passwordHash); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		fresh, err := s.resetLedger.MarkRedeemed(ctx, token, payload.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to redeem reset token: %w", err)
		}
		if !fresh {
			return ErrInvalidOTP
		}
		redeemed = true
		return nil
	})
	if err != nil {
		if redeemed {
			if relErr := s.resetLedger.Release(ctx, token); relErr != nil {
				s.logger.Error("failed to release reset token after rollback", "error", relErr)
			}
		}
		return err
	}

	// Revoke all refresh tokens for security
	if err := s.authRepo.RevokeAllUserTokens(ctx, existingUser.ID); err != nil {
		s.logger.Warn("failed to revoke all user tokens after password reset", "user_id", existingUser.ID, "error", err)
	}

	return nil
}

func (s *Service) userFromPayload(ctx context.Context, subjectID, email string) (*user.User, error) {
	id, err := uuid.Parse(subjectID)
	if err != nil {
		return nil, user.ErrNotFound
	}

	u, err := s.users.GetByIDAndEmail(ctx, id, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// Login authenticates a user and returns tokens
func (s *Service) Login(ctx context.Context, email, password string) (*AuthTokens, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existingUser, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(existingUser.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if !existingUser.IsActive {
		return nil, ErrEmailNotVerified
	}

	authTokens, err := s.generateTokens(ctx, existingUser.ID, existingUser.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return authTokens, nil
}

// RefreshAccessToken rotates a refresh token and issues a new token pair.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	rt, err := s.authRepo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, ErrInvalidToken
		}
		if errors.Is(err, ErrRefreshTokenRevoked) || errors.Is(err, ErrRefreshTokenExpired) || errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	// Revoke old refresh token before issuing new ones to prevent reuse
	if err := s.authRepo.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to revoke old refresh token: %w", err)
	}

	existingUser, err := s.users.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !existingUser.IsActive {
		return nil, ErrAccountInactive
	}

	authTokens, err := s.generateTokens(ctx, existingUser.ID, existingUser.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return authTokens, nil
}

// RevokeRefreshToken revokes a refresh token
func (s *Service) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return s.authRepo.RevokeRefreshToken(ctx, refreshToken)
}

// Profile returns the current user.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile validates and applies the given profile changes. Names and
// bio are trimmed and phone numbers stored in E.164 form.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, update user.ProfileUpdate) (*user.User, error) {
	for _, name := range []*string{update.FirstName, update.LastName} {
		if name == nil {
			continue
		}
		*name = strings.TrimSpace(*name)
		if err := ValidateName(*name); err != nil {
			return nil, err
		}
	}
	if update.PhoneNo != nil {
		phone, err := NormalizePhone(*update.PhoneNo)
		if err != nil {
			return nil, err
		}
		update.PhoneNo = &phone
	}
	if update.Bio != nil {
		*update.Bio = strings.TrimSpace(*update.Bio)
		if err := ValidateBio(*update.Bio); err != nil {
			return nil, err
		}
	}
	if update.ProfilePic != nil {
		*update.ProfilePic = strings.TrimSpace(*update.ProfilePic)
		if err := ValidateProfilePic(*update.ProfilePic); err != nil {
			return nil, err
		}
	}
	return s.users.UpdateProfile(ctx, userID, update)
}

const (
	DefaultProfilePageSize = 20
	MaxProfilePageSize     = 100
)

// ListProfiles returns a page of active accounts and the total count. A
// non-positive limit selects the default page size.
func (s *Service) ListProfiles(ctx context.Context, page user.Page) ([]user.User, int, error) {
	if page.Limit <= 0 {
		page.Limit = DefaultProfilePageSize
	}
	if page.Limit > MaxProfilePageSize {
		page.Limit = MaxProfilePageSize
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	users, total, err := s.users.ListActive(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list profiles: %w", err)
	}
	return users, total, nil
}

// Deactivate disables the account and ends all of its sessions.
func (s *Service) Deactivate(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		return err
	}
	if err := s.authRepo.RevokeAllUserTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke tokens of deactivated user", "user_id", userID, "error", err)
	}
	return nil
}

// generateTokens creates both access and refresh tokens
func (s *Service) generateTokens(ctx context.Context, userID uuid.UUID, email string) (*AuthTokens, error) {
	accessToken, err := s.pasetoService.CreateToken(userID, email, s.accessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(s.refreshTokenDuration)
	if err := s.authRepo.StoreRefreshToken(ctx, userID, refreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTokenDuration.Seconds()),
	}, nil
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
