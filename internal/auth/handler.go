package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/taskhub-api/internal/httputil"
	"github.com/redmonkez12/taskhub-api/internal/logging"
	"github.com/redmonkez12/taskhub-api/internal/user"
)

// Rate limit purposes
const (
	purposeRegister      = "register"
	purposeLogin         = "login"
	purposePasswordReset = "password_reset"
	purposeResetVerify   = "password_reset_verify"
	purposeResend        = "resend_verification"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service         *Service
	rateLimiter     RateLimiter
	isProduction    bool
	accessDuration  time.Duration
	refreshDuration time.Duration
}

func NewHandler(service *Service, rateLimiter RateLimiter, isProduction bool, accessDuration, refreshDuration time.Duration) *Handler {
	return &Handler{
		service:         service,
		rateLimiter:     rateLimiter,
		isProduction:    isProduction,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// EmailRequest is the body of endpoints that only take an email address.
type EmailRequest struct {
	Email string `json:"email"`
}

// PasswordResetRequestResponse carries the reset token. The matching code
// is sent by email.
type PasswordResetRequestResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// PasswordResetVerifyRequest represents the password reset confirmation
type PasswordResetVerifyRequest struct {
	Token       string `json:"token"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// UpdateProfileRequest holds optional profile changes.
type UpdateProfileRequest struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	PhoneNo    *string `json:"phone_no"`
	Bio        *string `json:"bio"`
	ProfilePic *string `json:"profile_pic"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	FullName   string    `json:"full_name"`
	PhoneNo    string    `json:"phone_no"`
	Bio        string    `json:"bio"`
	ProfilePic string    `json:"profile_pic"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProfileSummary is the public view of another account. Contact details
// are left out.
type ProfileSummary struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	Bio        string    `json:"bio"`
	ProfilePic string    `json:"profile_pic"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProfileListResponse is one page of active profiles.
type ProfileListResponse struct {
	Profiles []ProfileSummary `json:"profiles"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		FullName:   u.ProfileName(),
		PhoneNo:    u.PhoneNo,
		Bio:        u.Bio,
		ProfilePic: u.ProfilePic,
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt,
	}
}

func toProfileSummary(u *user.User) ProfileSummary {
	return ProfileSummary{
		ID:         u.ID,
		Username:   u.Username,
		FullName:   u.ProfileName(),
		Bio:        u.Bio,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

// validationCodes maps input validation errors to response codes.
var validationCodes = map[error]string{
	ErrUsernameRequired:   httputil.CodeUsernameRequired,
	ErrInvalidUsername:    httputil.CodeInvalidUsername,
	ErrEmailRequired:      httputil.CodeEmailRequired,
	ErrInvalidEmailFormat: httputil.CodeInvalidEmailFormat,
	ErrPasswordRequired:   httputil.CodePasswordRequired,
	ErrPasswordTooShort:   httputil.CodePasswordTooShort,
	ErrPasswordTooWeak:    httputil.CodePasswordTooWeak,
	ErrInvalidName:        httputil.CodeInvalidName,
	ErrInvalidPhone:       httputil.CodeInvalidPhone,
	ErrBioTooLong:         httputil.CodeBioTooLong,
	ErrInvalidProfilePic:  httputil.CodeInvalidProfilePic,
}

// respondValidationError writes a 400 if err is a validation error.
func respondValidationError(w http.ResponseWriter, logger *logging.Logger, err error) bool {
	for target, code := range validationCodes {
		if errors.Is(err, target) {
			logger.Warn("validation error", "error", err.Error())
			respondError(w, target.Error(), code, http.StatusBadRequest)
			return true
		}
	}
	return false
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an inactive account and send a verification email. The account is rolled back if the email cannot be sent.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration form"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email or username already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.ipLimited(r.Context(), logger, ip, purposeRegister) {
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})
	h.recordIP(r.Context(), logger, ip, purposeRegister)

	newUser, err := h.service.Register(r.Context(), RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case respondValidationError(w, logger, err):
		case errors.Is(err, user.ErrDuplicateEmail):
			logger.Warn("registration failed: email already exists")
			respondError(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
		case errors.Is(err, user.ErrDuplicateUsername):
			logger.Warn("registration failed: username already exists")
			respondError(w, "username already exists", httputil.CodeUsernameAlreadyExists, http.StatusConflict)
		case errors.Is(err, ErrEmailDelivery):
			logger.Error("registration failed: verification email not sent", "error", err.Error())
			respondError(w, "failed to send verification email, please try again later", httputil.CodeEmailDeliveryFailed, http.StatusInternalServerError)
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	respondJSON(w, RegisterResponse{
		User:    toUserResponse(newUser),
		Message: "Registration successful. Please check your email to verify your account.",
	}, http.StatusCreated)
}

// VerifyEmail handles email verification
// @Summary      Verify email address
// @Description  Activate the account named by the verification token sent via email
// @Tags         auth
// @Produce      json
// @Param        token path string true "Verification token"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired link"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/verify-email/{token} [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := chi.URLParam(r, "token")
	if token == "" {
		logger.Warn("email verification failed: token missing")
		respondError(w, "verification token required", httputil.CodeVerificationTokenRequired, http.StatusBadRequest)
		return
	}

	activated, err := h.service.VerifyEmail(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidVerificationToken):
			logger.Warn("email verification failed: invalid token")
			respondError(w, "Invalid or expired verification link.", httputil.CodeVerificationFailed, http.StatusBadRequest)
		case errors.Is(err, user.ErrNotFound):
			logger.Warn("email verification failed: user not found")
			respondError(w, "User not found.", httputil.CodeNotFound, http.StatusNotFound)
		default:
			logger.Error("email verification failed: internal error", "error", err.Error())
			respondError(w, "failed to verify email", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	message := "Email verified successfully. You can now login."
	if !activated {
		message = "Email already verified. You can login now."
	}
	logger.Info("email verified", "activated", activated)

	respondJSON(w, MessageResponse{Message: message}, http.StatusOK)
}

// ResendVerificationEmail handles resending verification email
// @Summary      Resend verification email
// @Description  Send a new verification email to the user. Always returns success to prevent email enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /auth/resend-verification [post]
func (h *Handler) ResendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid resend verification request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if !h.allowEmailRequest(w, r, logger, req.Email, purposeResend) {
		return
	}

	// Process request (always returns nil for security)
	_ = h.service.ResendVerificationEmail(r.Context(), req.Email)

	respondJSON(w, MessageResponse{
		Message: "If your email is registered and not verified, a new verification link has been sent.",
	}, http.StatusOK)
}

// RequestPasswordReset starts a password reset
// @Summary      Request password reset
// @Description  Returns a reset token and emails the matching one-time code. The response is the same whether or not the account exists.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} PasswordResetRequestResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body or email"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/password-reset/request [post]
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid password reset request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if !h.allowEmailRequest(w, r, logger, req.Email, purposePasswordReset) {
		return
	}

	token, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		switch {
		case respondValidationError(w, logger, err):
		case errors.Is(err, ErrEmailDelivery):
			logger.Error("password reset email not sent", "error", err.Error())
			respondError(w, "failed to send reset code, please try again later", httputil.CodeEmailDeliveryFailed, http.StatusInternalServerError)
		default:
			logger.Error("password reset request failed: internal error", "error", err.Error())
			respondError(w, "failed to request password reset", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, PasswordResetRequestResponse{
		Token:   token,
		Message: "If an account exists with that email, a reset code has been sent.",
	}, http.StatusOK)
}

// ResetPassword handles password reset with token and code
// @Summary      Reset password
// @Description  Set a new password using the reset token and the one-time code from the email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body PasswordResetVerifyRequest true "Reset token, code and new password"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request, token or code"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/password-reset/verify [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.ipLimited(r.Context(), logger, ip, purposeResetVerify) {
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}
	h.recordIP(r.Context(), logger, ip, purposeResetVerify)

	var req PasswordResetVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		respondError(w, "reset token required", httputil.CodeResetTokenRequired, http.StatusBadRequest)
		return
	}
	if req.OTP == "" {
		respondError(w, "otp required", httputil.CodeOTPRequired, http.StatusBadRequest)
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.OTP, req.NewPassword)
	if err != nil {
		switch {
		case respondValidationError(w, logger, err):
		case errors.Is(err, ErrInvalidOTP):
			logger.Warn("password reset failed: invalid token or code")
			respondError(w, "Invalid or expired OTP.", httputil.CodeInvalidOTP, http.StatusBadRequest)
		case errors.Is(err, user.ErrNotFound):
			logger.Warn("password reset failed: user not found")
			respondError(w, "User not found.", httputil.CodeNotFound, http.StatusNotFound)
		default:
			logger.Error("password reset failed: internal error", "error", err.Error())
			respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("password reset successfully")

	respondJSON(w, MessageResponse{
		Message: "Password reset successfully. You can now login with your new password.",
	}, http.StatusOK)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate user and receive access and refresh tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} AuthTokens
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "Email not verified"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.ipLimited(r.Context(), logger, ip, purposeLogin) {
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})
	h.recordIP(r.Context(), logger, ip, purposeLogin)

	tokens, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("login failed: invalid credentials")
			respondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
		case errors.Is(err, ErrEmailNotVerified):
			logger.Warn("login failed: email not verified")
			respondError(w, "email not verified, please check your inbox", httputil.CodeEmailNotVerified, http.StatusForbidden)
		default:
			logger.Error("login failed: internal error", "error", err.Error())
			respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user logged in successfully")
	h.respondTokens(w, r, tokens, "logged in successfully")
}

// Refresh handles access token refresh
// @Summary      Refresh access token
// @Description  Use a refresh token to get a new token pair. The old refresh token is revoked.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token, unless sent as a cookie"
// @Success      200 {object} AuthTokens
// @Failure      400 {object} httputil.ErrorResponse "Refresh token missing"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired refresh token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	refreshToken := refreshTokenFromRequest(r)
	if refreshToken == "" {
		logger.Warn("refresh token missing from both body and cookie")
		respondError(w, "refresh token required", httputil.CodeRefreshTokenRequired, http.StatusBadRequest)
		return
	}

	tokens, err := h.service.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrRefreshTokenRevoked), errors.Is(err, ErrRefreshTokenExpired):
			logger.Warn("token refresh failed: invalid or expired token", "error", err.Error())
			respondError(w, "invalid or expired refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
		case errors.Is(err, ErrAccountInactive):
			logger.Warn("token refresh failed: account inactive")
			respondError(w, "account is inactive", httputil.CodeAccountInactive, http.StatusForbidden)
		default:
			logger.Error("token refresh failed: internal error", "error", err.Error())
			respondError(w, "failed to refresh token", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("access token refreshed successfully")
	h.respondTokens(w, r, tokens, "token refreshed successfully")
}

// Logout handles user logout
// @Summary      User logout
// @Description  Logout user by revoking refresh token and clearing cookies
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Optional refresh token"
// @Success      200 {object} MessageResponse
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if refreshToken := refreshTokenFromRequest(r); refreshToken != "" {
		if err := h.service.RevokeRefreshToken(r.Context(), refreshToken); err != nil {
			logger.Warn("failed to revoke refresh token", "error", err)
			// Continue - still clear cookies
		}
	}

	ClearAuthCookies(w)

	logger.Info("user logged out successfully")

	respondJSON(w, MessageResponse{Message: "logged out"}, http.StatusOK)
}

// Me returns the authenticated user's profile
// @Summary      Current user
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} UserResponse
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid access token"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		h.respondUserError(w, logger, err, "failed to load profile")
		return
	}

	respondJSON(w, toUserResponse(u), http.StatusOK)
}

// UpdateMe changes the authenticated user's profile
// @Summary      Update current user
// @Tags         account
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UpdateProfileRequest true "Fields to change"
// @Success      200 {object} UserResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid access token"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /me [patch]
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid profile update body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, user.ProfileUpdate{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		PhoneNo:    req.PhoneNo,
		Bio:        req.Bio,
		ProfilePic: req.ProfilePic,
	})
	if err != nil {
		if respondValidationError(w, logger, err) {
			return
		}
		h.respondUserError(w, logger, err, "failed to update profile")
		return
	}

	logger.Info("profile updated")
	respondJSON(w, toUserResponse(u), http.StatusOK)
}

// DeleteMe deactivates the authenticated user's account
// @Summary      Deactivate current user
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} MessageResponse
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid access token"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /me [delete]
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	if err := h.service.Deactivate(r.Context(), userID); err != nil {
		h.respondUserError(w, logger, err, "failed to deactivate account")
		return
	}

	ClearAuthCookies(w)
	logger.Info("account deactivated")

	respondJSON(w, MessageResponse{Message: "account deactivated"}, http.StatusOK)
}

// ListProfiles returns a page of active accounts
// @Summary      List active profiles
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query int false "Page size (default 20, max 100)"
// @Param        offset query int false "Number of profiles to skip"
// @Success      200 {object} ProfileListResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid pagination"
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid access token"
// @Router       /profiles [get]
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	page, err := pageFromQuery(r)
	if err != nil {
		respondError(w, err.Error(), httputil.CodeInvalidPagination, http.StatusBadRequest)
		return
	}

	users, total, err := h.service.ListProfiles(r.Context(), page)
	if err != nil {
		logger.Error("failed to list profiles", "error", err.Error())
		respondError(w, "failed to list profiles", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	resp := ProfileListResponse{
		Profiles: make([]ProfileSummary, 0, len(users)),
		Total:    total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	for i := range users {
		resp.Profiles = append(resp.Profiles, toProfileSummary(&users[i]))
	}
	respondJSON(w, resp, http.StatusOK)
}

var errInvalidPage = errors.New("limit must be 1-100 and offset must not be negative")

func pageFromQuery(r *http.Request) (user.Page, error) {
	page := user.Page{Limit: DefaultProfilePageSize}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxProfilePageSize {
			return user.Page{}, errInvalidPage
		}
		page.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return user.Page{}, errInvalidPage
		}
		page.Offset = n
	}
	return page, nil
}

func (h *Handler) respondUserError(w http.ResponseWriter, logger *logging.Logger, err error, message string) {
	if errors.Is(err, user.ErrNotFound) {
		respondError(w, "user not found", httputil.CodeNotFound, http.StatusNotFound)
		return
	}
	logger.Error(message, "error", err.Error())
	respondError(w, message, httputil.CodeInternalError, http.StatusInternalServerError)
}

func (h *Handler) respondTokens(w http.ResponseWriter, r *http.Request, tokens *AuthTokens, message string) {
	if ShouldUseCookies(r) {
		SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.isProduction, h.accessDuration, h.refreshDuration)
		// Don't return tokens in response body when using cookies
		respondJSON(w, MessageResponse{Message: message}, http.StatusOK)
		return
	}
	respondJSON(w, tokens, http.StatusOK)
}

// ipLimited checks the per-IP window. Limiter failures are logged and let
// the request through.
func (h *Handler) ipLimited(ctx context.Context, logger *logging.Logger, ip, purpose string) bool {
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(ctx, ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return false
	}
	if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
	}
	return exceeded
}

func (h *Handler) recordIP(ctx context.Context, logger *logging.Logger, ip, purpose string) {
	if err := h.rateLimiter.RecordIPRequestWithPurpose(ctx, ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
}

// allowEmailRequest applies the IP window and the per-email cooldown to
// endpoints that send mail. It writes the 429 itself.
func (h *Handler) allowEmailRequest(w http.ResponseWriter, r *http.Request, logger *logging.Logger, email, purpose string) bool {
	ctx := r.Context()
	ip := getClientIP(r)

	if h.ipLimited(ctx, logger, ip, purpose) {
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return false
	}

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(ctx, email, purpose)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
	} else if onCooldown {
		logger.Warn("email on cooldown", "purpose", purpose)
		respondError(w, "please wait before requesting another email", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return false
	}

	h.recordIP(ctx, logger, ip, purpose)
	if err := h.rateLimiter.SetEmailCooldown(ctx, email, purpose); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}
	return true
}

func refreshTokenFromRequest(r *http.Request) string {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
		return strings.TrimSpace(req.RefreshToken)
	}
	if cookieToken, err := GetRefreshTokenFromCookie(r); err == nil {
		return cookieToken
	}
	return ""
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// getClientIP returns the client address. The router's RealIP middleware has
// already applied X-Forwarded-For and X-Real-IP to RemoteAddr.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Routes mounts the public auth endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Get("/verify-email/{token}", h.VerifyEmail)
	r.Post("/resend-verification", h.ResendVerificationEmail)
	r.Post("/password-reset/request", h.RequestPasswordReset)
	r.Post("/password-reset/verify", h.ResetPassword)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
}

// AccountRoutes mounts the endpoints that require an access token.
func (h *Handler) AccountRoutes(r chi.Router) {
	r.Get("/", h.Me)
	r.Patch("/", h.UpdateMe)
	r.Delete("/", h.DeleteMe)
}

// ProfileRoutes mounts the profile directory. Callers must wrap it in
// RequireAuth.
func (h *Handler) ProfileRoutes(r chi.Router) {
	r.Get("/", h.ListProfiles)
}
