package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/service/auth"
	"github.com/mquint/readflow-api/internal/store"
)

// PasswordHashVerifier combines hashing for registration with comparison
// for login.
type PasswordHashVerifier interface {
	auth.PasswordHasher
	auth.PasswordVerifier
}

// UserService handles registration, login and account lookup.
type UserService struct {
	users      store.UserStore
	passwords  PasswordHashVerifier
	jwtService auth.JWTService
	logger     *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(
	users store.UserStore,
	passwords PasswordHashVerifier,
	jwtService auth.JWTService,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:      users,
		passwords:  passwords,
		jwtService: jwtService,
		logger:     logger.With("component", "user_service"),
	}
}

// Register creates a new account and returns it with a signed access token.
func (s *UserService) Register(
	ctx context.Context,
	username, email, password string,
) (*domain.User, string, error) {
	user, err := domain.NewUser(username, email, password)
	if err != nil {
		return nil, "", err
	}

	hashed, err := s.passwords.Hash(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	user.HashedPassword = hashed
	user.Password = ""

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.jwtService.GenerateToken(ctx, user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("user registered",
		"user_id", user.ID,
		"username", user.Username)
	return user, token, nil
}

// Login verifies the credentials and returns the account with a signed
// access token. An unknown username and a wrong password are reported the
// same way, so login failures leak nothing about which accounts exist.
func (s *UserService) Login(
	ctx context.Context,
	username, password string,
) (*domain.User, string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, "", auth.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.passwords.Compare(user.HashedPassword, password); err != nil {
		return nil, "", auth.ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateToken(ctx, user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return user, token, nil
}

// GetUser returns an account by ID.
func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}
