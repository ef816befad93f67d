package auth

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials indicates a login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailExists signals a duplicate email registration.
	ErrEmailExists = errors.New("email already registered")
	// ErrUserNotFound indicates missing user.
	ErrUserNotFound = errors.New("user not found")
)

// User models the account entity persisted in storage.
type User struct {
	ID           string    `json:"userId"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// WithoutSecrets returns a copy of u safe to send to clients.
func (u *User) WithoutSecrets() *User {
	if u == nil {
		return nil
	}
	public := *u
	public.PasswordHash = ""
	return &public
}

// Credentials captures raw credential input for login.
type Credentials struct {
	Email    string
	Password string
}
