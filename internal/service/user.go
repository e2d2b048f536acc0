// Package service provides business logic for the chat platform.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/capitalize-ai/chat-platform/internal/auth"
	"github.com/capitalize-ai/chat-platform/internal/model"
	"github.com/capitalize-ai/chat-platform/internal/store"
	"github.com/capitalize-ai/chat-platform/pkg/logger"
)

// UserService handles registration, login, and user lookup.
type UserService struct {
	users  store.UserStore
	issuer *auth.TokenIssuer
	logger *logger.Logger
}

// NewUserService creates a new user service.
func NewUserService(users store.UserStore, issuer *auth.TokenIssuer, log *logger.Logger) *UserService {
	return &UserService{
		users:  users,
		issuer: issuer,
		logger: log,
	}
}

// Register creates a new user account and returns it with a fresh credential.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if len(name) < 2 || len(name) > 50 {
		return nil, fmt.Errorf("name must be between 2 and 50 characters: %w", model.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email address: %w", model.ErrInvalidInput)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("password must be at least 6 characters: %w", model.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Avatar:       req.Avatar,
		LastSeen:     now,
		CreatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))

	return &model.AuthResponse{User: *user, Token: token}, nil
}

// Login verifies credentials and returns the user with a fresh credential.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("invalid email or password: %w", model.ErrUnauthenticated)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid email or password: %w", model.ErrUnauthenticated)
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	return &model.AuthResponse{User: *user, Token: token}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.Get(ctx, id)
}

// List returns all users except the caller, optionally filtered by a search
// term matched against name and email.
func (s *UserService) List(ctx context.Context, callerID, search string) (*model.ListUsersResponse, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	search = strings.ToLower(strings.TrimSpace(search))
	filtered := make([]model.User, 0, len(users))
	for _, u := range users {
		if u.ID == callerID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		filtered = append(filtered, u)
	}

	return &model.ListUsersResponse{Users: filtered, Total: len(filtered)}, nil
}
