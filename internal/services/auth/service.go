package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/observability/metrics"
	"github.com/mcoot/movienight/internal/services/credential"
	"github.com/mcoot/movienight/internal/services/membership"
	"github.com/mcoot/movienight/internal/services/session"
)

// Service handles registration, login and session management
type Service struct {
	coordinator *membership.Coordinator
	hasher      credential.Hasher
	issuer      *session.Issuer
	logger      *slog.Logger
}

// New creates a new auth Service
func New(
	coordinator *membership.Coordinator,
	hasher credential.Hasher,
	issuer *session.Issuer,
	logger *slog.Logger,
) *Service {
	return &Service{
		coordinator: coordinator,
		hasher:      hasher,
		issuer:      issuer,
		logger:      logger,
	}
}

// Register creates a user account
func (s *Service) Register(ctx context.Context, info model.UserInfo) (*model.User, error) {
	return s.coordinator.CreateUser(ctx, info)
}

// Login verifies credentials and issues a session. Unknown users and wrong
// passwords both fail with ErrAuthFailure.
func (s *Service) Login(ctx context.Context, info model.UserInfo) (*session.Tokens, error) {
	const op = "login"

	user, err := s.coordinator.GetUser(ctx, info.Username)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrInvalidIdentifier) {
			metrics.LoginAttemptsTotal.WithLabelValues("rejected").Inc()
			return nil, model.Ef(model.KindAuthFailure, op, "invalid credentials", nil)
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(info.Password, user.Salt, user.HashedPassword)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.LoginAttemptsTotal.WithLabelValues("rejected").Inc()
		s.logger.Info("login rejected", "username", info.Username)
		return nil, model.Ef(model.KindAuthFailure, op, "invalid credentials", nil)
	}

	tokens, err := s.issuer.Issue(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("accepted").Inc()
	return tokens, nil
}

// Refresh exchanges a refresh token for a new session
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*session.Tokens, error) {
	return s.issuer.Refresh(ctx, refreshToken)
}

// Logout revokes a refresh token
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.issuer.Revoke(ctx, refreshToken)
}

// Authenticate returns the username an access token belongs to
func (s *Service) Authenticate(accessToken string) (string, error) {
	return s.issuer.Validate(accessToken)
}

// UpdatePassword changes a user's password after verifying the old one
func (s *Service) UpdatePassword(ctx context.Context, old, updated model.UserInfo) error {
	return s.coordinator.UpdatePassword(ctx, old, updated)
}
