// Package session issues and validates signed access and refresh tokens.
// Refresh tokens are single use: each exchange consumes the old token and
// issues a new pair.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/ksuid"

	"github.com/mcoot/movienight/internal/dependencies/clock"
	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/observability/metrics"
	"github.com/mcoot/movienight/internal/storage"
)

const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// ErrMissingSecret is returned by New when no signing secret is configured
var ErrMissingSecret = errors.New("session signing secret is required")

// Config holds token issuing settings
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// DefaultConfig returns the default session configuration. Secret must be set
// by the caller.
func DefaultConfig() Config {
	return Config{
		Issuer:     "movienight",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

// Tokens is an issued access/refresh pair
type Tokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Claims are the claims carried by every token
type Claims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
}

// Validator resolves an access token to a username
type Validator interface {
	Validate(token string) (string, error)
}

// Issuer issues, validates and rotates tokens
type Issuer struct {
	cfg    Config
	secret []byte
	clock  clock.Clock
	store  storage.RefreshTokenStore
	newID  func() string
}

// Ensure Issuer implements Validator
var _ Validator = (*Issuer)(nil)

// New creates an Issuer. Refresh token ids are recorded in store.
func New(cfg Config, clk clock.Clock, store storage.RefreshTokenStore) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	def := DefaultConfig()
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = def.AccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = def.RefreshTTL
	}

	return &Issuer{
		cfg:    cfg,
		secret: []byte(cfg.Secret),
		clock:  clk,
		store:  store,
		newID:  func() string { return ksuid.New().String() },
	}, nil
}

// Issue creates a new access/refresh pair for username
func (i *Issuer) Issue(ctx context.Context, username string) (*Tokens, error) {
	const op = "issue tokens"
	if err := model.ValidateUsername(username); err != nil {
		return nil, err
	}

	now := i.clock.Now()

	access, accessExp, err := i.sign(username, UseAccess, i.newID(), now, i.cfg.AccessTTL)
	if err != nil {
		return nil, model.E(model.KindInvalidToken, op, err)
	}

	refreshID := i.newID()
	refresh, refreshExp, err := i.sign(username, UseRefresh, refreshID, now, i.cfg.RefreshTTL)
	if err != nil {
		return nil, model.E(model.KindInvalidToken, op, err)
	}

	err = i.store.SaveRefreshToken(ctx, storage.RefreshToken{
		ID:        refreshID,
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: refreshExp,
	})
	if err != nil {
		return nil, err
	}

	metrics.AccessTokensIssued.Inc()
	metrics.RefreshTokensIssued.Inc()

	return &Tokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Validate returns the username an access token was issued to. Expired
// tokens fail with ErrExpired; anything else wrong fails with
// ErrInvalidToken.
func (i *Issuer) Validate(token string) (string, error) {
	metrics.JWTValidationsTotal.Inc()

	claims, err := i.parse("validate token", token, UseAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Refresh exchanges a refresh token for a new pair. Each refresh token can be
// exchanged once; a reused or revoked token fails with ErrInvalidToken.
func (i *Issuer) Refresh(ctx context.Context, token string) (*Tokens, error) {
	const op = "refresh tokens"

	claims, err := i.parse(op, token, UseRefresh)
	if err != nil {
		return nil, err
	}

	stored, err := i.store.ConsumeRefreshToken(ctx, claims.ID)
	if err != nil {
		if model.KindOf(err) == model.KindNotFound {
			metrics.JWTValidationsFailed.WithLabelValues("reused").Inc()
			return nil, model.Ef(model.KindInvalidToken, op, "refresh token already used or revoked", err)
		}
		return nil, err
	}
	if stored.Username != claims.Subject {
		metrics.JWTValidationsFailed.WithLabelValues("subject").Inc()
		return nil, model.Ef(model.KindInvalidToken, op, "refresh token subject mismatch", nil)
	}
	if !i.clock.Now().Before(stored.ExpiresAt) {
		metrics.JWTValidationsFailed.WithLabelValues("expired").Inc()
		return nil, model.Ef(model.KindExpired, op, "refresh token expired", nil)
	}

	metrics.RefreshTokensUsed.Inc()
	return i.Issue(ctx, claims.Subject)
}

// Revoke invalidates a refresh token. Revoking an expired token is a no-op.
func (i *Issuer) Revoke(ctx context.Context, token string) error {
	const op = "revoke token"

	claims, err := i.parse(op, token, UseRefresh)
	if err != nil {
		if errors.Is(err, model.ErrExpired) {
			return nil
		}
		return err
	}

	if _, err := i.store.ConsumeRefreshToken(ctx, claims.ID); err != nil {
		if model.KindOf(err) == model.KindNotFound {
			return model.Ef(model.KindInvalidToken, op, "refresh token already used or revoked", err)
		}
		return err
	}

	metrics.RefreshTokensRevoked.Inc()
	return nil
}

func (i *Issuer) sign(username, use, id string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl).Truncate(time.Second)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    i.cfg.Issuer,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenUse: use,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (i *Issuer) parse(op, token, use string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			metrics.JWTValidationsFailed.WithLabelValues("expired").Inc()
			return nil, model.E(model.KindExpired, op, err)
		}
		metrics.JWTValidationsFailed.WithLabelValues("invalid").Inc()
		return nil, model.E(model.KindInvalidToken, op, err)
	}

	if claims.TokenUse != use {
		metrics.JWTValidationsFailed.WithLabelValues("token_use").Inc()
		return nil, model.Ef(model.KindInvalidToken, op, "unexpected token use "+claims.TokenUse, nil)
	}
	if claims.Subject == "" || claims.ID == "" {
		metrics.JWTValidationsFailed.WithLabelValues("claims").Inc()
		return nil, model.Ef(model.KindInvalidToken, op, "missing subject or id", nil)
	}
	return claims, nil
}
