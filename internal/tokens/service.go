package tokens

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/golang-jwt/jwt/v5"

	"github.com/redmonkez12/taskhub-api/internal/logging"
)

const (
	VerificationTTL = 24 * time.Hour
	ResetTTL        = 5 * time.Minute
)

// Kind identifies what a token may be used for. It is bound into both the
// signed claims and the encryption layer.
type Kind string

const (
	KindVerification Kind = "verify-email"
	KindReset        Kind = "reset-password"
)

const (
	outerHeader = "v4.local."
	jwsClaim    = "jws"
	// nonce (32) + MAC (32) of a v4.local token
	minOuterBody = 64
)

// Payload is the claim set carried inside a token.
type Payload struct {
	SubjectID   string    `json:"subject_id"`
	Email       string    `json:"email"`
	OneTimeCode string    `json:"one_time_code,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type claims struct {
	Email string `json:"email"`
	OTP   string `json:"otp,omitempty"`
	jwt.RegisteredClaims
}

// Observer receives issuance and verification outcomes.
type Observer interface {
	TokenIssued(kind string)
	TokenVerified(kind, result string)
}

// Service issues and verifies signed-then-encrypted verification and reset
// tokens. It holds no per-token state and is safe for concurrent use.
type Service struct {
	active      keyring
	retired     []keyring
	retiredKeys []Keys
	clock       Clock
	logger      *logging.Logger
	observer    Observer
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger used to record why verifications failed.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithObserver sets the metrics sink.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithRetiredKeys keeps old key pairs usable for verification only.
func WithRetiredKeys(keys ...Keys) Option {
	return func(s *Service) { s.retiredKeys = append(s.retiredKeys, keys...) }
}

// New creates a Service. Both keys must be KeySize bytes.
func New(keys Keys, opts ...Option) (*Service, error) {
	active, err := newKeyring(keys)
	if err != nil {
		return nil, err
	}

	s := &Service{
		active: active,
		clock:  systemClock{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for i, k := range s.retiredKeys {
		kr, err := newKeyring(k)
		if err != nil {
			return nil, fmt.Errorf("retired key pair %d: %w", i, err)
		}
		s.retired = append(s.retired, kr)
	}
	s.retiredKeys = nil

	return s, nil
}

// IssueVerificationToken returns a token proving (subjectID, email) requested
// activation. It is valid for 24 hours.
func (s *Service) IssueVerificationToken(subjectID, email string) (string, error) {
	return s.issue(KindVerification, subjectID, email, "", VerificationTTL)
}

// VerifyVerificationToken reports whether token is a valid, unexpired
// verification token and returns its payload.
func (s *Service) VerifyVerificationToken(token string) (bool, *Payload) {
	return s.collapse(KindVerification, token, "")
}

// IssueResetToken returns a 5 minute reset token together with the one-time
// code bound inside it. The code is returned separately and must be delivered
// on its own channel.
func (s *Service) IssueResetToken(subjectID, email string) (token, code string, err error) {
	code, err = GenerateCode()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	token, err = s.issue(KindReset, subjectID, email, code, ResetTTL)
	if err != nil {
		return "", "", err
	}
	return token, code, nil
}

// VerifyResetToken reports whether token is a valid, unexpired reset token
// whose one-time code equals code.
func (s *Service) VerifyResetToken(token, code string) (bool, *Payload) {
	return s.collapse(KindReset, token, code)
}

// Inspect runs the full verification for kind and returns the specific
// failure. It exists for audit logging and operator tooling; request paths
// use the Verify methods.
func (s *Service) Inspect(kind Kind, token, code string) (*Payload, error) {
	p, err := s.decode(kind, token)
	if err != nil {
		return nil, err
	}

	if kind == KindReset {
		if subtle.ConstantTimeCompare([]byte(code), []byte(p.OneTimeCode)) != 1 {
			return nil, ErrCodeMismatch
		}
	}
	return p, nil
}

func (s *Service) collapse(kind Kind, token, code string) (bool, *Payload) {
	p, err := s.Inspect(kind, token, code)
	result := reason(err)
	if s.observer != nil {
		s.observer.TokenVerified(string(kind), result)
	}
	if err != nil {
		s.logger.Debug("token verification failed", "kind", string(kind), "reason", result)
		return false, nil
	}
	return true, p
}

func (s *Service) issue(kind Kind, subjectID, email, code string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	now := s.clock.Now()
	c := claims{
		Email: email,
		OTP:   code,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Audience:  jwt.ClaimStrings{string(kind)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.active.signing)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	outer := paseto.NewToken()
	outer.SetString(jwsClaim, signed)

	if s.observer != nil {
		s.observer.TokenIssued(string(kind))
	}
	return outer.V4Encrypt(s.active.encryption, []byte(kind)), nil
}

// decode decrypts and verifies token, trying the active key pair first and
// then any retired pairs.
func (s *Service) decode(kind Kind, token string) (*Payload, error) {
	if err := checkShape(token); err != nil {
		return nil, err
	}

	for _, kr := range s.keyrings() {
		p, err := s.decodeWith(kr, kind, token)
		if err == nil {
			return p, nil
		}
		// A pair that decrypted the token is authoritative for it.
		if !errors.Is(err, errOuter) {
			return nil, err
		}
	}
	return nil, ErrCrypto
}

var errOuter = fmt.Errorf("%w: outer layer", ErrCrypto)

func (s *Service) decodeWith(kr keyring, kind Kind, token string) (*Payload, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	outer, err := parser.ParseV4Local(kr.encryption, token, []byte(kind))
	if err != nil {
		return nil, errOuter
	}

	signed, err := outer.GetString(jwsClaim)
	if err != nil {
		return nil, fmt.Errorf("%w: missing signed claims", ErrMalformedToken)
	}

	var c claims
	_, err = jwt.ParseWithClaims(signed, &c,
		func(*jwt.Token) (any, error) { return kr.signing, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(kind)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	if c.Subject == "" || c.Email == "" || c.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: incomplete claims", ErrMalformedToken)
	}
	if !s.clock.Now().Before(c.ExpiresAt.Time) {
		return nil, ErrExpired
	}
	if kind == KindReset && !isCode(c.OTP) {
		return nil, fmt.Errorf("%w: reset token without a valid code", ErrMalformedToken)
	}

	return &Payload{
		SubjectID:   c.Subject,
		Email:       c.Email,
		OneTimeCode: c.OTP,
		ExpiresAt:   c.ExpiresAt.Time,
	}, nil
}

func (s *Service) keyrings() []keyring {
	out := make([]keyring, 0, 1+len(s.retired))
	out = append(out, s.active)
	return append(out, s.retired...)
}

// checkShape rejects input that cannot be a v4.local token at all.
func checkShape(token string) error {
	body, ok := strings.CutPrefix(token, outerHeader)
	if !ok {
		return fmt.Errorf("%w: unexpected header", ErrMalformedToken)
	}
	if i := strings.IndexByte(body, '.'); i >= 0 {
		body = body[:i]
	}
	raw, err := base64.RawURLEncoding.Strict().DecodeString(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(raw) <= minOuterBody {
		return fmt.Errorf("%w: token too short", ErrMalformedToken)
	}
	return nil
}
