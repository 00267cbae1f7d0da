package models

import (
	"time"

	id "spamgate/pkg/domain"
)

// User is a registered account. PasswordHash is a bcrypt hash.
type User struct {
	ID           id.UserID
	Username     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// LoginRequest is a posted login form.
type LoginRequest struct {
	Username string
	Password string
	// CaptchaToken is the recaptcha-v3-token field, possibly empty.
	CaptchaToken string
}

// RegisterRequest is a posted registration form.
type RegisterRequest struct {
	Username     string `validate:"required,min=3,max=60,alphanum"`
	Email        string `validate:"required,email,max=254"`
	Password     string `validate:"required,min=8,max=72"`
	CaptchaToken string
}

// LoginResult is a successful login: the user and a signed session token.
type LoginResult struct {
	User         *User
	SessionToken string
	ExpiresAt    time.Time
}
