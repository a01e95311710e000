package domain

import (
	"strconv"
	"time"
)

// Identity is the set of claims carried by access and refresh tokens. It is
// derived from a User at login and never stored on its own.
type Identity struct {
	ID    int64  `json:"id"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

// Subject returns the id as a string, as used in session keys and the JWT sub.
func (i Identity) Subject() string {
	return strconv.FormatInt(i.ID, 10)
}

// SessionRecord is the single currently-valid session for (role, id). A new
// login replaces it, which revokes the previous access token.
type SessionRecord struct {
	Identity
	AccessToken string    `json:"accessToken"`
	IssuedAt    time.Time `json:"issuedAt"`
	DeviceID    string    `json:"deviceId,omitempty"`
	Platform    string    `json:"platform,omitempty"`
}

// User is the identity source's view of an account.
type User struct {
	ID           int64
	Phone        string
	Email        string
	Role         Role
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the claims carried in tokens.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Phone: u.Phone, Email: u.Email, Role: u.Role}
}
