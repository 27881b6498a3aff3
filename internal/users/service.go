package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/b3datalake/datalake-api/internal/models"
	"github.com/b3datalake/datalake-api/internal/passwords"
)

var (
	// ErrUsernameTaken is returned by Register for an existing username.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	// ErrInvalidInput is returned for an empty username or an unhashable password.
	ErrInvalidInput = errors.New("invalid username or password")
)

// Service encapsulates registration and login against the credential store
type Service struct {
	repo   UserRepository
	hasher *passwords.Hasher
}

func NewService(r UserRepository, h *passwords.Hasher) *Service {
	return &Service{repo: r, hasher: h}
}

// Register stores a new credential. Username uniqueness is checked before
// the insert and again by the store.
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" {
		return nil, ErrInvalidInput
	}
	existing, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, passwords.ErrInvalidPassword) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}
	u := &models.User{Username: username, PasswordHash: hash}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Authenticate returns the stored user when password matches.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
