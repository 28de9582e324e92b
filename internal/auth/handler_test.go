package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskhub-api/internal/httputil"
	"github.com/redmonkez12/taskhub-api/internal/ratelimit"
)

func (e *testEnv) router() http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", e.handler.Routes)
	r.Route("/me", func(r chi.Router) {
		r.Use(NewMiddleware(e.paseto).RequireAuth)
		e.handler.AccountRoutes(r)
	})
	r.Route("/profiles", func(r chi.Router) {
		r.Use(NewMiddleware(e.paseto).RequireAuth)
		e.handler.ProfileRoutes(r)
	})
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	h := env.router()

	rec := doJSON(t, h, http.MethodPost, "/auth/register", RegisterRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  testPassword,
		FirstName: "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[RegisterResponse](t, rec)
	assert.Equal(t, "alice", reg.User.Username)
	assert.False(t, reg.User.IsActive)

	rec = doJSON(t, h, http.MethodPost, "/auth/login", LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, httputil.CodeEmailNotVerified, decode[httputil.ErrorResponse](t, rec).Code)

	rec = doJSON(t, h, http.MethodGet, "/auth/verify-email/"+env.mailer.lastVerificationToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, decode[MessageResponse](t, rec).Message, "verified successfully")

	rec = doJSON(t, h, http.MethodPost, "/auth/login", LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tokens := decode[AuthTokens](t, rec)

	rec = doJSON(t, h, http.MethodGet, "/me", nil, "Authorization", "Bearer "+tokens.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decode[UserResponse](t, rec)
	assert.Equal(t, reg.User.ID, me.ID)
	assert.True(t, me.IsActive)

	rec = doJSON(t, h, http.MethodPatch, "/me", map[string]string{"last_name": "Liddell"}, "Authorization", "Bearer "+tokens.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Liddell", decode[UserResponse](t, rec).LastName)

	rec = doJSON(t, h, http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decode[AuthTokens](t, rec)

	rec = doJSON(t, h, http.MethodPost, "/auth/logout", RefreshRequest{RefreshToken: rotated.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: rotated.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/me", nil, "Authorization", "Bearer "+tokens.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/auth/login", LoginRequest{Email: "alice@example.com", Password: testPassword})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterErrorsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	h := env.router()

	rec := doJSON(t, h, http.MethodPost, "/auth/register", RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodePasswordTooWeak, decode[httputil.ErrorResponse](t, rec).Code)

	env.register(t, "alice", "alice@example.com")
	rec = doJSON(t, h, http.MethodPost, "/auth/register", RegisterRequest{Username: "bob", Email: "alice@example.com", Password: testPassword})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, httputil.CodeEmailAlreadyExists, decode[httputil.ErrorResponse](t, rec).Code)

	env.mailer.err = errMailerDown
	rec = doJSON(t, h, http.MethodPost, "/auth/register", RegisterRequest{Username: "carol", Email: "carol@example.com", Password: testPassword})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, httputil.CodeEmailDeliveryFailed, decode[httputil.ErrorResponse](t, rec).Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifyEmailOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	h := env.router()

	rec := doJSON(t, h, http.MethodGet, "/auth/verify-email/v4.local.bogus", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, "Invalid or expired verification link.", body.Error)
	assert.Equal(t, httputil.CodeVerificationFailed, body.Code)

	token, err := env.tokens.IssueVerificationToken("7b0c7f0e-8a53-4a59-9b53-8c1c8e5d5a01", "ghost@example.com")
	require.NoError(t, err)
	rec = doJSON(t, h, http.MethodGet, "/auth/verify-email/"+token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	h := env.router()
	env.registerActive(t, "alice", "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/auth/password-reset/request", EmailRequest{Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[PasswordResetRequestResponse](t, rec)
	require.NotEmpty(t, resp.Token)
	code := env.mailer.lastResetCode(t)

	rec = doJSON(t, h, http.MethodPost, "/auth/password-reset/verify", PasswordResetVerifyRequest{Token: resp.Token, OTP: "", NewPassword: "N3wPassword"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeOTPRequired, decode[httputil.ErrorResponse](t, rec).Code)

	wrong := "999999"
	if code == wrong {
		wrong = "888888"
	}
	rec = doJSON(t, h, http.MethodPost, "/auth/password-reset/verify", PasswordResetVerifyRequest{Token: resp.Token, OTP: wrong, NewPassword: "N3wPassword"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, "Invalid or expired OTP.", body.Error)
	assert.Equal(t, httputil.CodeInvalidOTP, body.Code)

	rec = doJSON(t, h, http.MethodPost, "/auth/password-reset/verify", PasswordResetVerifyRequest{Token: resp.Token, OTP: code, NewPassword: "N3wPassword"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/auth/login", LoginRequest{Email: "alice@example.com", Password: "N3wPassword"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/auth/password-reset/request", EmailRequest{Email: "alice@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "per-email cooldown")
	assert.Equal(t, httputil.CodeCooldownActive, decode[httputil.ErrorResponse](t, rec).Code)
}

func TestPasswordResetVerifyResistsGuessing(t *testing.T) {
	env := newTestEnv(t)
	h := env.router()
	env.registerActive(t, "alice", "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/auth/password-reset/request", EmailRequest{Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[PasswordResetRequestResponse](t, rec).Token
	code := env.mailer.lastResetCode(t)

	wrong := "999999"
	if code == wrong {
		wrong = "888888"
	}
	for i := 0; i < MaxResetAttempts; i++ {
		rec = doJSON(t, h, http.MethodPost, "/auth/password-reset/verify", PasswordResetVerifyRequest{Token: token, OTP: wrong, NewPassword: "N3wPassword"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/auth/password-reset/verify", PasswordResetVerifyRequest{Token: token, OTP: code, NewPassword: "N3wPassword"})
	require.Equal(t, http.StatusBadRequest, rec.Code, "token is dead after too many wrong codes")
	assert.Equal(t, httputil.CodeInvalidOTP, decode[httputil.ErrorResponse](t, rec).Code)

	attempts := MaxResetAttempts + 1
	for ; attempts < ratelimit.DefaultMaxRequests; attempts++ {
		rec = doJSON(t, h, http.MethodPost, "/auth/password-reset/verify", PasswordResetVerifyRequest{Token: token, OTP: wrong, NewPassword: "N3wPassword"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/auth/password-reset/verify", PasswordResetVerifyRequest{Token: token, OTP: code, NewPassword: "N3wPassword"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, httputil.CodeTooManyRequests, decode[httputil.ErrorResponse](t, rec).Code)

	rec = doJSON(t, h, http.MethodPost, "/auth/login", LoginRequest{Email: "alice@example.com", Password: testPassword})
	assert.Equal(t, http.StatusOK, rec.Code, "password unchanged")
}

func TestPasswordResetRequestDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnv(t)
	h := env.router()
	env.registerActive(t, "alice", "alice@example.com")

	known := doJSON(t, h, http.MethodPost, "/auth/password-reset/request", EmailRequest{Email: "alice@example.com"})
	unknown := doJSON(t, h, http.MethodPost, "/auth/password-reset/request", EmailRequest{Email: "ghost@example.com"})

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)

	a := decode[PasswordResetRequestResponse](t, known)
	b := decode[PasswordResetRequestResponse](t, unknown)
	assert.Equal(t, a.Message, b.Message)
	assert.Len(t, b.Token, len(a.Token))
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t)
	h := env.router()

	for i := 0; i < 10; i++ {
		rec := doJSON(t, h, http.MethodPost, "/auth/login", LoginRequest{Email: "a@x.com", Password: "x"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := doJSON(t, h, http.MethodPost, "/auth/login", LoginRequest{Email: "a@x.com", Password: "x"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, httputil.CodeTooManyRequests, decode[httputil.ErrorResponse](t, rec).Code)
}

func TestLoginWithCookies(t *testing.T) {
	env := newTestEnv(t)
	h := env.router()
	env.registerActive(t, "alice", "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/auth/login", LoginRequest{Email: "alice@example.com", Password: testPassword}, AuthModeHeader, "cookie")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "access_token")

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, accessTokenCookie)
	require.Contains(t, cookies, refreshTokenCookie)
	assert.True(t, cookies[accessTokenCookie].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookies[accessTokenCookie])
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func (e *testEnv) accessToken(t *testing.T, email string) string {
	t.Helper()
	authTokens, err := e.service.Login(context.Background(), email, testPassword)
	require.NoError(t, err)
	return authTokens.AccessToken
}

func TestProfileFieldsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	h := env.router()
	env.registerActive(t, "alice", "alice@example.com")
	bearer := "Bearer " + env.accessToken(t, "alice@example.com")

	rec := doJSON(t, h, http.MethodPatch, "/me", map[string]string{
		"first_name":  "Alice",
		"last_name":   "Liddell",
		"phone_no":    "+1 201 555 0123",
		"bio":         "Curiouser and curiouser.",
		"profile_pic": "https://cdn.example.com/alice.png",
	}, "Authorization", bearer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decode[UserResponse](t, rec)
	assert.Equal(t, "Alice Liddell", me.FullName)
	assert.Equal(t, "+12015550123", me.PhoneNo)
	assert.Equal(t, "Curiouser and curiouser.", me.Bio)
	assert.Equal(t, "https://cdn.example.com/alice.png", me.ProfilePic)

	rec = doJSON(t, h, http.MethodGet, "/me", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, me, decode[UserResponse](t, rec))

	tests := []struct {
		body map[string]string
		code string
	}{
		{map[string]string{"phone_no": "not a number"}, httputil.CodeInvalidPhone},
		{map[string]string{"bio": strings.Repeat("a", 1001)}, httputil.CodeBioTooLong},
		{map[string]string{"profile_pic": "data:image/png;base64,AAAA"}, httputil.CodeInvalidProfilePic},
	}
	for _, tt := range tests {
		rec = doJSON(t, h, http.MethodPatch, "/me", tt.body, "Authorization", bearer)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Equal(t, tt.code, decode[httputil.ErrorResponse](t, rec).Code)
	}
}

func TestListProfilesOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	h := env.router()
	env.registerActive(t, "alice", "alice@example.com")
	env.registerActive(t, "bob", "bob@example.com")
	env.register(t, "mallory", "mallory@example.com")
	bearer := "Bearer " + env.accessToken(t, "alice@example.com")

	rec := doJSON(t, h, http.MethodGet, "/profiles", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/profiles", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "alice@example.com")
	assert.NotContains(t, rec.Body.String(), "mallory")

	list := decode[ProfileListResponse](t, rec)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, DefaultProfilePageSize, list.Limit)
	assert.Len(t, list.Profiles, 2)
	for _, p := range list.Profiles {
		assert.Equal(t, p.Username, p.FullName)
	}

	rec = doJSON(t, h, http.MethodGet, "/profiles?limit=1&offset=1", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list = decode[ProfileListResponse](t, rec)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, 1, list.Offset)
	assert.Len(t, list.Profiles, 1)

	for _, q := range []string{"limit=0", "limit=101", "limit=ten", "offset=-1"} {
		rec = doJSON(t, h, http.MethodGet, "/profiles?"+q, nil, "Authorization", bearer)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, httputil.CodeInvalidPagination, decode[httputil.ErrorResponse](t, rec).Code)
	}
}
