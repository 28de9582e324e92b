package auth

import (
	"errors"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"
)

var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrInvalidUsername    = errors.New("username must be 3-150 characters: letters, digits and @/./+/-/_ only")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooWeak    = errors.New("password must contain at least one uppercase letter, one lowercase letter and one digit")
	ErrInvalidName        = errors.New("names must be at most 150 characters")
	ErrInvalidPhone       = errors.New("phone number must be in international format, e.g. +12015550123")
	ErrBioTooLong         = errors.New("bio must be at most 1000 characters")
	ErrInvalidProfilePic  = errors.New("profile picture must be an http or https URL")
)

const (
	minUsernameLen = 3
	maxUsernameLen = 150
	maxNameLen     = 150
	maxEmailLen    = 254
	minPasswordLen = 8
	maxBioLen      = 1000
	maxPictureLen  = 2048
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

func ValidateUsername(username string) error {
	if username == "" {
		return ErrUsernameRequired
	}
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen || !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > maxEmailLen {
		return ErrInvalidEmailFormat
	}
	addr, err := mail.ParseAddress(email)
	// Reject display-name forms such as "Alice <a@x.com>".
	if err != nil || addr.Address != email {
		return ErrInvalidEmailFormat
	}
	return nil
}

// ValidatePassword requires at least 8 characters with one lowercase letter,
// one uppercase letter and one digit.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return ErrPasswordTooShort
	}

	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return ErrPasswordTooWeak
	}
	return nil
}

func ValidateName(name string) error {
	if utf8.RuneCountInString(name) > maxNameLen {
		return ErrInvalidName
	}
	return nil
}

// NormalizeEmail lowercases the domain part, leaving the local part as typed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// NormalizePhone parses an international number and returns it in E.164
// form. An empty input stays empty and clears the number.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}
	if !strings.HasPrefix(phone, "+") {
		return "", ErrInvalidPhone
	}

	num, err := phonenumbers.Parse(phone, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > maxBioLen {
		return ErrBioTooLong
	}
	return nil
}

// ValidateProfilePic accepts an empty value or an absolute http(s) URL.
func ValidateProfilePic(pic string) error {
	if pic == "" {
		return nil
	}
	if len(pic) > maxPictureLen {
		return ErrInvalidProfilePic
	}
	u, err := url.Parse(pic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidProfilePic
	}
	return nil
}
