package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Account is a registered user. Accounts are immutable once created.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialised
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the result of a successful sign-in.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// Claims are the JWT claims carried by an access token.
// Subject holds the account id in decimal.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidInput       = errors.New("auth: username and password are required")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrUsernameExists     = errors.New("auth: username already exists")
	ErrTokenInvalid       = errors.New("auth: invalid token")
)
