package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/movienight/internal/config"
	"github.com/mcoot/movienight/internal/dependencies/clock"
	"github.com/mcoot/movienight/internal/dependencies/ids"
	"github.com/mcoot/movienight/internal/repository"
	"github.com/mcoot/movienight/internal/services/auth"
	"github.com/mcoot/movienight/internal/services/credential"
	"github.com/mcoot/movienight/internal/services/membership"
	"github.com/mcoot/movienight/internal/services/session"
	"github.com/mcoot/movienight/internal/services/watch"
	"github.com/mcoot/movienight/internal/storage"
	"github.com/mcoot/movienight/internal/storage/memory"
	redisstorage "github.com/mcoot/movienight/internal/storage/redis"
	"github.com/mcoot/movienight/internal/storage/sqlstore"
)

// Storage type constants
const (
	StorageTypeMemory = config.StorageMemory
	StorageTypeRedis  = config.StorageRedis
	StorageTypeSQL    = config.StorageSQL
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock
	IDs   ids.Generator

	// Repositories
	Users  *repository.UserRepository
	Groups *repository.GroupRepository

	// Services
	Hasher          credential.Hasher
	Issuer          *session.Issuer
	Coordinator     *membership.Coordinator
	WatchController *watch.Controller
	AuthService     *auth.Service
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sql")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLConfig holds database settings (required if StorageType is "sql")
	SQLConfig *sqlstore.Config
	// AutoMigrate applies pending schema migrations when opening a SQL store
	AutoMigrate bool

	// SessionConfig must carry a signing secret
	SessionConfig session.Config
	// CredentialConfig zero fields fall back to credential.DefaultConfig()
	CredentialConfig credential.Config
	// MembershipConfig zero value uses membership.DefaultConfig()
	MembershipConfig membership.Config
}

// ConfigFrom maps loaded server configuration onto factory settings
func ConfigFrom(cfg *config.Config, logger *slog.Logger) Config {
	redisCfg := cfg.RedisSettings()
	sqlCfg := cfg.SQLSettings()
	return Config{
		Logger:           logger,
		StorageType:      cfg.Storage.Type,
		RedisConfig:      &redisCfg,
		SQLConfig:        &sqlCfg,
		AutoMigrate:      cfg.Storage.SQL.AutoMigrate,
		SessionConfig:    cfg.SessionSettings(),
		CredentialConfig: cfg.CredentialSettings(),
		MembershipConfig: cfg.MembershipSettings(),
	}
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app, err := newWithDependencies(
		store,
		clock.New(),
		ids.New(),
		credential.New(cfg.CredentialConfig),
		cfg.SessionConfig,
		cfg.MembershipConfig,
		logger,
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

func openStorage(ctx context.Context, cfg Config, logger *slog.Logger) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQL:
		if cfg.SQLConfig == nil {
			return nil, errors.New("SQLConfig required when StorageType is sql")
		}
		sqlStore, err := sqlstore.Open(ctx, *cfg.SQLConfig)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := sqlStore.Migrate(ctx, logger); err != nil {
				_ = sqlStore.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		return sqlStore, nil
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'sql'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	idGen ids.Generator,
	hasher credential.Hasher,
	sessionCfg session.Config,
	membershipCfg membership.Config,
	logger *slog.Logger,
) (*App, error) {
	issuer, err := session.New(sessionCfg, clk, store)
	if err != nil {
		return nil, err
	}

	users := repository.NewUserRepository(store)
	groups := repository.NewGroupRepository(store)
	coordinator := membership.NewCoordinator(membershipCfg, users, groups, hasher, clk, idGen, logger)
	watchController := watch.NewController(groups, clk, idGen, logger)
	authService := auth.New(coordinator, hasher, issuer, logger)

	return &App{
		Storage:         store,
		Clock:           clk,
		IDs:             idGen,
		Users:           users,
		Groups:          groups,
		Hasher:          hasher,
		Issuer:          issuer,
		Coordinator:     coordinator,
		WatchController: watchController,
		AuthService:     authService,
	}, nil
}
