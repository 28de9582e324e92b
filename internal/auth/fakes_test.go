package auth

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskhub-api/internal/logging"
	"github.com/redmonkez12/taskhub-api/internal/ratelimit"
	"github.com/redmonkez12/taskhub-api/internal/tokens"
	"github.com/redmonkez12/taskhub-api/internal/user"
)

type memoryUsers struct {
	mu          sync.Mutex
	users       map[uuid.UUID]user.User
	now         func() time.Time
	passwordErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[uuid.UUID]user.User{}, now: time.Now}
}

func (m *memoryUsers) Create(_ context.Context, p user.CreateParams) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == p.Email {
			return nil, user.ErrDuplicateEmail
		}
		if u.Username == p.Username {
			return nil, user.ErrDuplicateUsername
		}
	}

	u := user.User{
		ID:           uuid.New(),
		Username:     p.Username,
		Email:        p.Email,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		PasswordHash: p.PasswordHash,
		CreatedAt:    m.now(),
		UpdatedAt:    m.now(),
	}
	m.users[u.ID] = u
	return &u, nil
}

func (m *memoryUsers) find(match func(user.User) bool) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	return m.find(func(u user.User) bool { return u.ID == id })
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return m.find(func(u user.User) bool { return u.Email == email })
}

func (m *memoryUsers) GetByIDAndEmail(_ context.Context, id uuid.UUID, email string) (*user.User, error) {
	return m.find(func(u user.User) bool { return u.ID == id && u.Email == email })
}

func (m *memoryUsers) update(id uuid.UUID, fn func(*user.User)) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = m.now()
	m.users[id] = u
	return &u, nil
}

func (m *memoryUsers) Activate(_ context.Context, id uuid.UUID) (bool, error) {
	var changed bool
	_, err := m.update(id, func(u *user.User) {
		changed = !u.IsActive
		u.IsActive = true
	})
	return changed, err
}

func (m *memoryUsers) Deactivate(_ context.Context, id uuid.UUID) error {
	_, err := m.update(id, func(u *user.User) { u.IsActive = false })
	return err
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	failure := m.passwordErr
	m.mu.Unlock()
	if failure != nil {
		return failure
	}
	_, err := m.update(id, func(u *user.User) { u.PasswordHash = hash })
	return err
}

func (m *memoryUsers) UpdateProfile(_ context.Context, id uuid.UUID, p user.ProfileUpdate) (*user.User, error) {
	return m.update(id, func(u *user.User) {
		if p.FirstName != nil {
			u.FirstName = *p.FirstName
		}
		if p.LastName != nil {
			u.LastName = *p.LastName
		}
		if p.PhoneNo != nil {
			u.PhoneNo = *p.PhoneNo
		}
		if p.Bio != nil {
			u.Bio = *p.Bio
		}
		if p.ProfilePic != nil {
			u.ProfilePic = *p.ProfilePic
		}
	})
}

func (m *memoryUsers) ListActive(_ context.Context, page user.Page) ([]user.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []user.User
	for _, u := range m.users {
		if u.IsActive {
			active = append(active, u)
		}
	}
	slices.SortFunc(active, func(a, b user.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	total := len(active)
	start := min(page.Offset, total)
	end := min(start+page.Limit, total)
	return active[start:end], total, nil
}

// WithinTx restores the previous state when fn fails.
func (m *memoryUsers) WithinTx(ctx context.Context, fn func(ctx context.Context, tx user.Store) error) error {
	m.mu.Lock()
	snapshot := make(map[uuid.UUID]user.User, len(m.users))
	for k, v := range m.users {
		snapshot[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.users = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type memoryRefreshTokens struct {
	mu      sync.Mutex
	tokens  map[string]RefreshToken
	revoked map[string]bool
}

func newMemoryRefreshTokens() *memoryRefreshTokens {
	return &memoryRefreshTokens{tokens: map[string]RefreshToken{}, revoked: map[string]bool{}}
}

func (m *memoryRefreshTokens) StoreRefreshToken(_ context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[hashToken(token)] = RefreshToken{UserID: userID, TokenHash: hashToken(token), ExpiresAt: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (m *memoryRefreshTokens) GetRefreshToken(_ context.Context, token string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := hashToken(token)
	if m.revoked[h] {
		return nil, ErrRefreshTokenRevoked
	}
	rt, ok := m.tokens[h]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	if rt.IsExpired() {
		return nil, ErrRefreshTokenExpired
	}
	return &rt, nil
}

func (m *memoryRefreshTokens) RevokeRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := hashToken(token)
	if _, ok := m.tokens[h]; !ok {
		return ErrRefreshTokenNotFound
	}
	m.revoked[h] = true
	return nil
}

func (m *memoryRefreshTokens) RevokeAllUserTokens(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, rt := range m.tokens {
		if rt.UserID == userID {
			m.revoked[h] = true
		}
	}
	return nil
}

type memoryLedger struct {
	mu       sync.Mutex
	redeemed map[string]bool
	failures map[string]int64
	err      error
}

func (m *memoryLedger) MarkRedeemed(_ context.Context, token string, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.redeemed == nil {
		m.redeemed = map[string]bool{}
	}
	if m.redeemed[token] {
		return false, nil
	}
	m.redeemed[token] = true
	return true, nil
}

func (m *memoryLedger) Release(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.redeemed, token)
	return nil
}

func (m *memoryLedger) RecordFailure(_ context.Context, token string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if m.failures == nil {
		m.failures = map[string]int64{}
	}
	m.failures[token]++
	return m.failures[token], nil
}

func (m *memoryLedger) Failures(_ context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return m.failures[token], nil
}

type sentEmail struct {
	to, name, value string
}

type fakeMailer struct {
	mu           sync.Mutex
	verification []sentEmail
	reset        []sentEmail
	err          error
}

var errMailerDown = errors.New("smtp unavailable")

func (f *fakeMailer) SendVerificationEmail(_ context.Context, to, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.verification = append(f.verification, sentEmail{to, name, token})
	return nil
}

func (f *fakeMailer) SendPasswordResetCode(_ context.Context, to, name, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reset = append(f.reset, sentEmail{to, name, code})
	return nil
}

func (f *fakeMailer) lastVerificationToken(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.verification, "no verification email sent")
	return f.verification[len(f.verification)-1].value
}

func (f *fakeMailer) lastResetCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reset, "no reset email sent")
	return f.reset[len(f.reset)-1].value
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	service *Service
	users   *memoryUsers
	refresh *memoryRefreshTokens
	ledger  *memoryLedger
	mailer  *fakeMailer
	tokens  *tokens.Service
	paseto  *PasetoService
	clock   *testClock
	limiter *ratelimit.MemoryLimiter
	handler *Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	keys, err := tokens.GenerateKeys()
	require.NoError(t, err)

	clock := &testClock{now: time.Now()}
	tokenSvc, err := tokens.New(keys, tokens.WithClock(clock))
	require.NoError(t, err)

	pasetoSvc, err := NewPasetoService([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	env := &testEnv{
		users:   newMemoryUsers(),
		refresh: newMemoryRefreshTokens(),
		ledger:  &memoryLedger{},
		mailer:  &fakeMailer{},
		tokens:  tokenSvc,
		paseto:  pasetoSvc,
		clock:   clock,
		limiter: ratelimit.NewMemoryLimiter(ratelimit.DefaultMaxRequests, ratelimit.DefaultWindow, ratelimit.DefaultCooldown),
	}
	env.service = NewService(
		env.users,
		env.refresh,
		env.ledger,
		env.paseto,
		env.tokens,
		env.mailer,
		logging.NewNop(),
		15*time.Minute,
		7*24*time.Hour,
	)
	env.handler = NewHandler(env.service, env.limiter, false, 15*time.Minute, 7*24*time.Hour)
	return env
}

const testPassword = "Sup3rSecret"

func (e *testEnv) register(t *testing.T, username, email string) *user.User {
	t.Helper()
	u, err := e.service.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: testPassword,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) registerActive(t *testing.T, username, email string) *user.User {
	t.Helper()
	u := e.register(t, username, email)
	_, err := e.service.VerifyEmail(context.Background(), e.mailer.lastVerificationToken(t))
	require.NoError(t, err)
	return u
}
