package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/movienight/internal/dependencies/mocks"
	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/repository"
	"github.com/mcoot/movienight/internal/services/credential"
	"github.com/mcoot/movienight/internal/services/membership"
	"github.com/mcoot/movienight/internal/services/session"
	"github.com/mcoot/movienight/internal/storage/memory"
	"github.com/mcoot/movienight/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	hasher := credential.New(credential.Config{Time: 1, Memory: 1024, Threads: 1})
	coordinator := membership.NewCoordinator(
		membership.DefaultConfig(),
		repository.NewUserRepository(s.storage),
		repository.NewGroupRepository(s.storage),
		hasher, s.clock, mocks.NewMockIDs(), logger,
	)
	issuer, err := session.New(session.Config{Secret: "test-secret"}, s.clock, s.storage)
	s.Require().NoError(err)
	s.service = New(coordinator, hasher, issuer, logger)
	s.ctx = context.Background()
}

func (s *ServiceSuite) register(username, password string) {
	_, err := s.service.Register(s.ctx, model.UserInfo{Username: username, Password: password})
	s.Require().NoError(err)
}

// Register tests

func (s *ServiceSuite) TestRegisterSucceeds() {
	user, err := s.service.Register(s.ctx, model.UserInfo{Username: "alice", Password: "pw"})
	s.Require().NoError(err)
	s.Equal("alice", user.Username)
	s.NotEmpty(user.ID)
}

func (s *ServiceSuite) TestRegisterDuplicateUsername() {
	s.register("alice", "pw")
	_, err := s.service.Register(s.ctx, model.UserInfo{Username: "alice", Password: "pw"})
	s.ErrorIs(err, model.ErrConflict)
}

// Login tests

func (s *ServiceSuite) TestLoginSucceeds() {
	s.register("alice", "pw")

	tokens, err := s.service.Login(s.ctx, model.UserInfo{Username: "alice", Password: "pw"})
	s.Require().NoError(err)

	username, err := s.service.Authenticate(tokens.AccessToken)
	s.Require().NoError(err)
	s.Equal("alice", username)
}

func (s *ServiceSuite) TestLoginWrongPassword() {
	s.register("alice", "pw")

	_, err := s.service.Login(s.ctx, model.UserInfo{Username: "alice", Password: "wrong"})
	s.ErrorIs(err, model.ErrAuthFailure)
}

func (s *ServiceSuite) TestLoginUnknownUser() {
	_, err := s.service.Login(s.ctx, model.UserInfo{Username: "nobody", Password: "pw"})
	s.ErrorIs(err, model.ErrAuthFailure)
	s.NotErrorIs(err, model.ErrNotFound)
}

func (s *ServiceSuite) TestLoginMalformedUsername() {
	_, err := s.service.Login(s.ctx, model.UserInfo{Username: "!", Password: "pw"})
	s.ErrorIs(err, model.ErrAuthFailure)
}

// Session tests

func (s *ServiceSuite) TestSessionExpires() {
	s.register("alice", "pw")
	tokens, err := s.service.Login(s.ctx, model.UserInfo{Username: "alice", Password: "pw"})
	s.Require().NoError(err)

	s.clock.Advance(time.Hour)
	_, err = s.service.Authenticate(tokens.AccessToken)
	s.ErrorIs(err, model.ErrExpired)

	refreshed, err := s.service.Refresh(s.ctx, tokens.RefreshToken)
	s.Require().NoError(err)
	username, err := s.service.Authenticate(refreshed.AccessToken)
	s.Require().NoError(err)
	s.Equal("alice", username)
}

func (s *ServiceSuite) TestLogoutRevokesRefresh() {
	s.register("alice", "pw")
	tokens, err := s.service.Login(s.ctx, model.UserInfo{Username: "alice", Password: "pw"})
	s.Require().NoError(err)

	s.Require().NoError(s.service.Logout(s.ctx, tokens.RefreshToken))

	_, err = s.service.Refresh(s.ctx, tokens.RefreshToken)
	s.ErrorIs(err, model.ErrInvalidToken)
}

// UpdatePassword tests

func (s *ServiceSuite) TestUpdatePasswordChangesLogin() {
	s.register("carol", "pw1")

	err := s.service.UpdatePassword(s.ctx,
		model.UserInfo{Username: "carol", Password: "pw1"},
		model.UserInfo{Username: "carol", Password: "pw2"})
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx, model.UserInfo{Username: "carol", Password: "pw1"})
	s.ErrorIs(err, model.ErrAuthFailure)
	_, err = s.service.Login(s.ctx, model.UserInfo{Username: "carol", Password: "pw2"})
	s.NoError(err)
}

func (s *ServiceSuite) TestUpdatePasswordWrongOldPassword() {
	s.register("carol", "pw1")

	err := s.service.UpdatePassword(s.ctx,
		model.UserInfo{Username: "carol", Password: "pw1x"},
		model.UserInfo{Username: "carol", Password: "pw2"})
	s.ErrorIs(err, model.ErrAuthFailure)

	_, err = s.service.Login(s.ctx, model.UserInfo{Username: "carol", Password: "pw1"})
	s.NoError(err)
}
