package model

import (
	"errors"
	"time"
)

// User represents a forum member
type User struct {
	ID             int64     `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	Nickname       string    `db:"nickname" json:"nickname"`
	PasswordHashed string    `db:"password_hashed" json:"-"` // "-" hides from JSON output
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// UserSummary is the public part of a user, embedded in posts and comments.
type UserSummary struct {
	ID       int64  `db:"id" json:"id"`
	Nickname string `db:"nickname" json:"nickname"`
}

// RegisterRequest represents the data needed to register a new user
type RegisterRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User constraints
const (
	MaxEmailLength    = 30
	MaxNicknameLength = 10
	MinPasswordLength = 8
)

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists is returned when attempting to register a taken email
	ErrEmailExists = errors.New("email already exists")

	// ErrInvalidCredentials is returned when the password does not match
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRegistration is returned when register fields fail validation
	ErrInvalidRegistration = errors.New("invalid registration")
)
