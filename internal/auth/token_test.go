package auth

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssuer_SignInAndVerify(t *testing.T) {
	svc, issuer := testIssuer(t)
	alice := seedAccount(t, svc, "alice")

	session, err := issuer.SignIn(t.Context(), "alice", "test-password")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if session.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", session.TokenType)
	}
	if session.ExpiresIn != 900 {
		t.Errorf("ExpiresIn = %d, want 900", session.ExpiresIn)
	}

	claims, err := issuer.Verify(session.AccessToken)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != strconv.FormatInt(alice.ID, 10) {
		t.Errorf("Subject = %q, want %d", claims.Subject, alice.ID)
	}
	if claims.Username != "alice" {
		t.Errorf("Username = %q, want alice", claims.Username)
	}
	if claims.ID == "" {
		t.Error("JTI should not be empty")
	}
	id, err := claims.AccountID()
	if err != nil || id != alice.ID {
		t.Errorf("AccountID() = %d, %v; want %d", id, err, alice.ID)
	}
}

func TestIssuer_SignIn_Failures(t *testing.T) {
	svc, issuer := testIssuer(t)
	seedAccount(t, svc, "alice")

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"empty username", "", "pw", ErrInvalidInput},
		{"empty password", "alice", "", ErrInvalidInput},
		{"unknown user", "bob", "pw", ErrUserNotFound},
		{"wrong password", "alice", "nope", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.SignIn(t.Context(), tt.username, tt.password); !errors.Is(err, tt.want) {
				t.Errorf("SignIn() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIssuer_Verify_Rejects(t *testing.T) {
	svc, issuer := testIssuer(t)
	alice := seedAccount(t, svc, "alice")

	valid, err := issuer.Sign(alice)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	expiredIssuer := NewIssuer(svc, testSecret, time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.Sign(alice)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	otherSecret, err := NewIssuer(svc, "another-secret-that-is-32-bytes-long", time.Minute).Sign(alice)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing HS512 token: %v", err)
	}

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-number",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"tampered", valid[:len(valid)-2] + "xx"},
		{"expired", expired},
		{"wrong secret", otherSecret},
		{"wrong algorithm", hs512},
		{"non-numeric subject", badSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Verify(tt.token); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}
