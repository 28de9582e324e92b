package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"aidanwoods.dev/go-paseto"
)

// KeySize is the required length in bytes of both the signing and the
// encryption key.
const KeySize = 32

// Keys is one signing/encryption key pair.
type Keys struct {
	SigningKey    []byte
	EncryptionKey []byte
}

// keyring is a validated Keys value ready for use.
type keyring struct {
	signing    []byte
	encryption paseto.V4SymmetricKey
}

func newKeyring(k Keys) (keyring, error) {
	if len(k.SigningKey) != KeySize {
		return keyring{}, fmt.Errorf("signing key must be exactly %d bytes, got %d", KeySize, len(k.SigningKey))
	}
	if len(k.EncryptionKey) != KeySize {
		return keyring{}, fmt.Errorf("encryption key must be exactly %d bytes, got %d", KeySize, len(k.EncryptionKey))
	}

	enc, err := paseto.V4SymmetricKeyFromBytes(k.EncryptionKey)
	if err != nil {
		return keyring{}, fmt.Errorf("failed to create encryption key: %w", err)
	}

	signing := make([]byte, KeySize)
	copy(signing, k.SigningKey)

	return keyring{signing: signing, encryption: enc}, nil
}

// GenerateKeys returns a fresh random key pair.
func GenerateKeys() (Keys, error) {
	sign := make([]byte, KeySize)
	if _, err := rand.Read(sign); err != nil {
		return Keys{}, fmt.Errorf("failed to generate signing key: %w", err)
	}
	enc := make([]byte, KeySize)
	if _, err := rand.Read(enc); err != nil {
		return Keys{}, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return Keys{SigningKey: sign, EncryptionKey: enc}, nil
}

// ParseHexKeys decodes a hex encoded key pair.
func ParseHexKeys(signingHex, encryptionHex string) (Keys, error) {
	sign, err := hex.DecodeString(strings.TrimSpace(signingHex))
	if err != nil {
		return Keys{}, fmt.Errorf("signing key is not valid hex: %w", err)
	}
	enc, err := hex.DecodeString(strings.TrimSpace(encryptionHex))
	if err != nil {
		return Keys{}, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	return Keys{SigningKey: sign, EncryptionKey: enc}, nil
}

// ParseRetiredKeys decodes a comma separated list of "signing:encryption" hex
// pairs. An empty string yields no keys.
func ParseRetiredKeys(s string) ([]Keys, error) {
	var out []Keys
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sign, enc, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("retired key %q must be in the form signing:encryption", part)
		}
		k, err := ParseHexKeys(sign, enc)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// Hex returns both keys hex encoded.
func (k Keys) Hex() (signing, encryption string) {
	return hex.EncodeToString(k.SigningKey), hex.EncodeToString(k.EncryptionKey)
}
