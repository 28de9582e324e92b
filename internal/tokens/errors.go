package tokens

import "errors"

// Verification failures. They stay distinguishable inside the package and in
// Inspect, but the public Verify methods collapse all of them into a plain
// false so callers cannot tell which check failed.
var (
	ErrMalformedToken = errors.New("malformed token")
	ErrCrypto         = errors.New("token decryption or signature check failed")
	ErrExpired        = errors.New("token has expired")
	ErrCodeMismatch   = errors.New("one-time code does not match")
)

// Issuance failures, returned to the caller as-is.
var (
	ErrInvalidInput = errors.New("invalid token input")
	ErrEncoding     = errors.New("failed to encode token")
)

// reason maps a verification error onto a short label for logs and metrics.
func reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrCodeMismatch):
		return "code_mismatch"
	default:
		return "crypto"
	}
}
