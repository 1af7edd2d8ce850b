package session

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/movienight/internal/dependencies/mocks"
	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/storage/memory"
)

type IssuerSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	storage *memory.Storage
	issuer  *Issuer
	ctx     context.Context
}

func TestIssuerSuite(t *testing.T) {
	suite.Run(t, new(IssuerSuite))
}

func (s *IssuerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.storage = memory.New()
	s.ctx = context.Background()

	cfg := DefaultConfig()
	cfg.Secret = "test-secret"
	issuer, err := New(cfg, s.clock, s.storage)
	s.Require().NoError(err)
	s.issuer = issuer
}

func (s *IssuerSuite) TestNewRequiresSecret() {
	_, err := New(DefaultConfig(), s.clock, s.storage)
	s.ErrorIs(err, ErrMissingSecret)
}

func (s *IssuerSuite) TestIssueAndValidate() {
	tokens, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(s.clock.Now().Add(15*time.Minute), tokens.AccessExpiresAt)
	s.Equal(s.clock.Now().Add(7*24*time.Hour), tokens.RefreshExpiresAt)

	username, err := s.issuer.Validate(tokens.AccessToken)
	s.Require().NoError(err)
	s.Equal("bob", username)
}

func (s *IssuerSuite) TestIssueRejectsInvalidUsername() {
	_, err := s.issuer.Issue(s.ctx, "not valid!")
	s.ErrorIs(err, model.ErrInvalidIdentifier)
}

func (s *IssuerSuite) TestAccessTokenExpires() {
	tokens, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	s.clock.Advance(14 * time.Minute)
	_, err = s.issuer.Validate(tokens.AccessToken)
	s.NoError(err)

	s.clock.Advance(2 * time.Minute)
	_, err = s.issuer.Validate(tokens.AccessToken)
	s.ErrorIs(err, model.ErrExpired)
	s.NotErrorIs(err, model.ErrInvalidToken)
}

func (s *IssuerSuite) TestTamperedPayloadIsInvalid() {
	tokens, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	parts := strings.Split(tokens.AccessToken, ".")
	s.Require().Len(parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	s.Require().NoError(err)
	forged := strings.Replace(string(payload), `"sub":"bob"`, `"sub":"eve"`, 1)
	s.Require().NotEqual(string(payload), forged)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = s.issuer.Validate(strings.Join(parts, "."))
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *IssuerSuite) TestForeignSecretIsInvalid() {
	cfg := DefaultConfig()
	cfg.Secret = "other-secret"
	other, err := New(cfg, s.clock, s.storage)
	s.Require().NoError(err)

	tokens, err := other.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	_, err = s.issuer.Validate(tokens.AccessToken)
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *IssuerSuite) TestWrongIssuerIsInvalid() {
	cfg := DefaultConfig()
	cfg.Secret = "test-secret"
	cfg.Issuer = "someone-else"
	other, err := New(cfg, s.clock, s.storage)
	s.Require().NoError(err)

	tokens, err := other.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	_, err = s.issuer.Validate(tokens.AccessToken)
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *IssuerSuite) TestUnsignedTokenIsInvalid() {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "bob",
			Issuer:    "movienight",
			ID:        "x",
			ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(time.Hour)),
		},
		TokenUse: UseAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	s.Require().NoError(err)

	_, err = s.issuer.Validate(token)
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *IssuerSuite) TestGarbageIsInvalid() {
	_, err := s.issuer.Validate("not.a.token")
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *IssuerSuite) TestRefreshTokenDoesNotValidateAsAccess() {
	tokens, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	_, err = s.issuer.Validate(tokens.RefreshToken)
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *IssuerSuite) TestRefreshRotatesTokens() {
	tokens, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	s.clock.Advance(time.Hour)
	next, err := s.issuer.Refresh(s.ctx, tokens.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(tokens.RefreshToken, next.RefreshToken)

	username, err := s.issuer.Validate(next.AccessToken)
	s.Require().NoError(err)
	s.Equal("bob", username)
}

func (s *IssuerSuite) TestRefreshTokenReuseIsRejected() {
	tokens, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	_, err = s.issuer.Refresh(s.ctx, tokens.RefreshToken)
	s.Require().NoError(err)

	_, err = s.issuer.Refresh(s.ctx, tokens.RefreshToken)
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *IssuerSuite) TestAccessTokenCannotRefresh() {
	tokens, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	_, err = s.issuer.Refresh(s.ctx, tokens.AccessToken)
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *IssuerSuite) TestExpiredRefreshToken() {
	tokens, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	s.clock.Advance(8 * 24 * time.Hour)
	_, err = s.issuer.Refresh(s.ctx, tokens.RefreshToken)
	s.ErrorIs(err, model.ErrExpired)
}

func (s *IssuerSuite) TestRevokePreventsRefresh() {
	tokens, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	s.Require().NoError(s.issuer.Revoke(s.ctx, tokens.RefreshToken))

	_, err = s.issuer.Refresh(s.ctx, tokens.RefreshToken)
	s.ErrorIs(err, model.ErrInvalidToken)

	s.ErrorIs(s.issuer.Revoke(s.ctx, tokens.RefreshToken), model.ErrInvalidToken)
}

func (s *IssuerSuite) TestRevokeExpiredTokenIsNoop() {
	tokens, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	s.clock.Advance(8 * 24 * time.Hour)
	s.NoError(s.issuer.Revoke(s.ctx, tokens.RefreshToken))
}

func (s *IssuerSuite) TestEachIssueHasDistinctIDs() {
	a, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)
	b, err := s.issuer.Issue(s.ctx, "bob")
	s.Require().NoError(err)

	s.NotEqual(a.AccessToken, b.AccessToken)
	s.NotEqual(a.RefreshToken, b.RefreshToken)
}
