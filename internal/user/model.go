package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PhoneNo      string    `json:"phone_no"` // E.164, empty when unset
	Bio          string    `json:"bio"`
	ProfilePic   string    `json:"profile_pic"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins first and last name, trimming whatever is missing. It is
// empty when neither is set.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ProfileName is the full name, or the username when no name is set.
func (u *User) ProfileName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Username
}

// DisplayName is the name used to greet the user: the first name when set,
// the username otherwise.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// CreateParams holds the fields of a new account.
type CreateParams struct {
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
}

// ProfileUpdate holds optional profile changes; nil fields are left alone
// and empty strings clear a field.
type ProfileUpdate struct {
	FirstName  *string
	LastName   *string
	PhoneNo    *string
	Bio        *string
	ProfilePic *string
}

// IsEmpty reports whether the update changes nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.PhoneNo == nil && p.Bio == nil && p.ProfilePic == nil
}

// Page selects a slice of a listing.
type Page struct {
	Limit  int
	Offset int
}
