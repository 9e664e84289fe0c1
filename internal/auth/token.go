package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType is reported to clients alongside every access token.
const TokenType = "Bearer"

// Issuer signs and verifies access tokens for accounts held by a Service.
type Issuer struct {
	accounts *Service
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewIssuer creates a session issuer. ttl must be positive.
func NewIssuer(accounts *Service, secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		accounts: accounts,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SignIn checks credentials and issues an access token whose subject is
// the account id.
func (i *Issuer) SignIn(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	account, err := i.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if !i.accounts.VerifyPassword(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := i.Sign(account)
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken: token,
		TokenType:   TokenType,
		ExpiresIn:   int64(i.ttl / time.Second),
	}, nil
}

// Sign issues an access token for account without checking credentials.
func (i *Issuer) Sign(account *Account) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
		Username: account.Username,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// Verify validates signature, algorithm and expiry, and returns the claims.
// Every failure wraps ErrTokenInvalid.
func (i *Issuer) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// AccountID returns the subject as an account id.
func (c *Claims) AccountID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, c.Subject)
	}
	return id, nil
}
