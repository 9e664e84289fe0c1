package auth

import (
	"context"
	"errors"
	"fmt"
)

// Logger defines the logging interface used by the auth services.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service is the credential store. It is the only writer of accounts.
type Service struct {
	repo   AccountRepository
	logger Logger
}

// NewService creates a credential store backed by repo.
func NewService(repo AccountRepository) *Service {
	return &Service{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// Register creates an account with a freshly hashed password.
func (s *Service) Register(ctx context.Context, username, password string) (*Account, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	account := &Account{Username: username, PasswordHash: hash}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account registered", "account_id", account.ID, "username", username)
	return account, nil
}

// Unregister deletes the account with the given id after checking the
// password. It returns the account as it was before deletion.
func (s *Service) Unregister(ctx context.Context, id int64, password string) (*Account, error) {
	if id <= 0 || password == "" {
		return nil, ErrInvalidInput
	}

	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.VerifyPassword(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("account unregistered", "account_id", id, "username", account.Username)
	return account, nil
}

// FindByUsername looks up an account by username.
func (s *Service) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return s.repo.GetByUsername(ctx, username)
}

// FindByID looks up an account by id.
func (s *Service) FindByID(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// VerifyPassword reports whether plain matches hash. A malformed hash
// never verifies.
func (s *Service) VerifyPassword(plain, hash string) bool {
	ok, err := VerifyPassword(plain, hash)
	if err != nil {
		s.logger.Warn("stored password hash is malformed", "error", err)
		return false
	}
	return ok
}

// AccountExists reports whether an account with id exists.
func (s *Service) AccountExists(ctx context.Context, id int64) (bool, error) {
	if _, err := s.FindByID(ctx, id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
