// Package authpw provides email/password account management: registration,
// sign-in, profile updates, and password reset.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"studyhub/api/internal/auth"
	"studyhub/api/internal/store"
	"studyhub/api/internal/util"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// UserStore is the storage surface the service needs.
type UserStore interface {
	InsertUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	UpdateUserProfile(ctx context.Context, userID, name, email string) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	SaveResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetUserByResetToken(ctx context.Context, tokenHash string) (store.User, error)
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if req.Name == "" || req.Email == "" || req.Password == "" {
		return store.User{}, fmt.Errorf("%w: name, email, and password are required", ErrInvalidInput)
	}
	if len(req.Password) < 8 {
		return store.User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if !strings.Contains(req.Email, "@") {
		return store.User{}, fmt.Errorf("%w: malformed email address", ErrInvalidInput)
	}

	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return store.User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID("usr"),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         "student",
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (store.User, error) {
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID, name, email string) (store.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" {
		return store.User{}, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}

	if existing, err := s.store.GetUserByEmail(ctx, email); err == nil && existing.ID != userID {
		return store.User{}, ErrEmailTaken
	}

	if err := s.store.UpdateUserProfile(ctx, userID, name, email); err != nil {
		return store.User{}, fmt.Errorf("update profile: %w", err)
	}
	return s.store.GetUserByID(ctx, userID)
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// RequestPasswordReset issues a reset token for the account behind email.
// Returns the user and the raw token; callers email the token and must not
// expose it in the API response. A missing account yields no error and no
// token, so the endpoint cannot be used to probe for registered emails.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (store.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, "", nil
	}

	token, err := util.NewToken()
	if err != nil {
		return store.User{}, "", fmt.Errorf("generate reset token: %w", err)
	}

	expiresAt := time.Now().Add(1 * time.Hour)
	if err := s.store.SaveResetToken(ctx, user.ID, auth.HashToken(token), expiresAt); err != nil {
		return store.User{}, "", fmt.Errorf("save reset token: %w", err)
	}
	return user, token, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return fmt.Errorf("%w: token and new password are required", ErrInvalidInput)
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	user, err := s.store.GetUserByResetToken(ctx, auth.HashToken(token))
	if err != nil {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	// UpdateUserPassword also clears the reset token, so it is single use.
	if err := s.store.UpdateUserPassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
