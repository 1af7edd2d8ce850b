// Package config loads server settings from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/mcoot/movienight/internal/api"
	"github.com/mcoot/movienight/internal/logging"
	"github.com/mcoot/movienight/internal/services/credential"
	"github.com/mcoot/movienight/internal/services/membership"
	"github.com/mcoot/movienight/internal/services/session"
	redisstorage "github.com/mcoot/movienight/internal/storage/redis"
	"github.com/mcoot/movienight/internal/storage/sqlstore"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQL    = "sql"
)

// Config holds all server configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        logging.Config   `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	Session    SessionConfig    `yaml:"session"`
	Credential CredentialConfig `yaml:"credential"`
	Membership MembershipConfig `yaml:"membership"`
}

// ServerConfig defines the HTTP listener
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ReadTimeout       Duration `yaml:"read_timeout"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	WriteTimeout      Duration `yaml:"write_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and configures the document store
type StorageConfig struct {
	Type  string      `yaml:"type"`
	Redis RedisConfig `yaml:"redis"`
	SQL   SQLConfig   `yaml:"sql"`
}

// RedisConfig defines the redis connection
type RedisConfig struct {
	URL          string `yaml:"url"`
	PoolSize     int    `yaml:"pool_size"`
	MinIdleConns   int      `yaml:"min_idle_conns"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	KeyPrefix      string   `yaml:"key_prefix"`
}

// SQLConfig defines the database connection
type SQLConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	AcquireTimeout  Duration `yaml:"acquire_timeout"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
}

// SessionConfig defines token signing
type SessionConfig struct {
	Secret     string   `yaml:"secret"`
	Issuer     string   `yaml:"issuer"`
	AccessTTL  Duration `yaml:"access_ttl"`
	RefreshTTL Duration `yaml:"refresh_ttl"`
}

// CredentialConfig defines argon2id cost parameters
type CredentialConfig struct {
	Time      uint32 `yaml:"time"`
	MemoryKiB uint32 `yaml:"memory_kib"`
	Threads   uint8  `yaml:"threads"`
}

// MembershipConfig tunes the membership coordinator
type MembershipConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// Duration is a time.Duration written as a Go duration string in YAML
type Duration time.Duration

// UnmarshalYAML parses values such as "15s" or "7h"
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the built-in configuration
func Default() *Config {
	server := api.DefaultServerConfig()
	redis := redisstorage.DefaultConfig()
	sql := sqlstore.DefaultConfig()
	sess := session.DefaultConfig()
	cred := credential.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Host:              server.Host,
			Port:              server.Port,
			ReadTimeout:       Duration(server.ReadTimeout),
			ReadHeaderTimeout: Duration(server.ReadHeaderTimeout),
			WriteTimeout:      Duration(server.WriteTimeout),
			IdleTimeout:       Duration(server.IdleTimeout),
			ShutdownTimeout:   Duration(server.ShutdownTimeout),
		},
		Log: logging.DefaultConfig(),
		Storage: StorageConfig{
			Type: StorageMemory,
			Redis: RedisConfig{
				URL:          redis.URL,
				PoolSize:     redis.PoolSize,
				MinIdleConns:   redis.MinIdleConns,
				ConnectTimeout: Duration(redis.ConnectTimeout),
				KeyPrefix:      redis.KeyPrefix,
			},
			SQL: SQLConfig{
				Driver:          sql.Driver,
				DSN:             sql.DSN,
				MaxOpenConns:    sql.MaxOpenConns,
				MaxIdleConns:    sql.MaxIdleConns,
				ConnMaxLifetime: Duration(sql.ConnMaxLifetime),
				AcquireTimeout:  Duration(sql.AcquireTimeout),
				AutoMigrate:     true,
			},
		},
		Session: SessionConfig{
			Issuer:     sess.Issuer,
			AccessTTL:  Duration(sess.AccessTTL),
			RefreshTTL: Duration(sess.RefreshTTL),
		},
		Credential: CredentialConfig{
			Time:      cred.Time,
			MemoryKiB: cred.Memory,
			Threads:   cred.Threads,
		},
		Membership: MembershipConfig{
			MaxAttempts: membership.DefaultConfig().MaxAttempts,
		},
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded first if present; path may be empty to skip the YAML file.
// ${VAR} references in the YAML file are expanded from the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.UnmarshalStrict([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from environment variables
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("STORAGE_TYPE", &c.Storage.Type)
	str("REDIS_URL", &c.Storage.Redis.URL)
	str("DATABASE_URL", &c.Storage.SQL.DSN)
	str("DATABASE_DRIVER", &c.Storage.SQL.Driver)
	str("JWT_SECRET", &c.Session.Secret)
	str("MOVIENIGHT_HOST", &c.Server.Host)
	str("MOVIENIGHT_LOG_LEVEL", &c.Log.Level)
	str("MOVIENIGHT_LOG_FORMAT", &c.Log.Format)
	str("MOVIENIGHT_LOG_FILE", &c.Log.File)

	if v, ok := lookup("MOVIENIGHT_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MOVIENIGHT_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory, StorageRedis, StorageSQL:
	default:
		return fmt.Errorf("invalid storage type %q: must be memory, redis or sql", c.Storage.Type)
	}
	if c.Session.Secret == "" {
		return errors.New("session secret is required (set JWT_SECRET)")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

// ServerSettings returns the HTTP server configuration
func (c *Config) ServerSettings() api.ServerConfig {
	return api.ServerConfig{
		Host:              c.Server.Host,
		Port:              c.Server.Port,
		ReadTimeout:       time.Duration(c.Server.ReadTimeout),
		ReadHeaderTimeout: time.Duration(c.Server.ReadHeaderTimeout),
		WriteTimeout:      time.Duration(c.Server.WriteTimeout),
		IdleTimeout:       time.Duration(c.Server.IdleTimeout),
		ShutdownTimeout:   time.Duration(c.Server.ShutdownTimeout),
	}
}

// RedisSettings returns the redis storage configuration
func (c *Config) RedisSettings() redisstorage.Config {
	return redisstorage.Config{
		URL:          c.Storage.Redis.URL,
		PoolSize:     c.Storage.Redis.PoolSize,
		MinIdleConns:   c.Storage.Redis.MinIdleConns,
		ConnectTimeout: time.Duration(c.Storage.Redis.ConnectTimeout),
		KeyPrefix:      c.Storage.Redis.KeyPrefix,
	}
}

// SQLSettings returns the SQL storage configuration
func (c *Config) SQLSettings() sqlstore.Config {
	return sqlstore.Config{
		Driver:          c.Storage.SQL.Driver,
		DSN:             c.Storage.SQL.DSN,
		MaxOpenConns:    c.Storage.SQL.MaxOpenConns,
		MaxIdleConns:    c.Storage.SQL.MaxIdleConns,
		ConnMaxLifetime: time.Duration(c.Storage.SQL.ConnMaxLifetime),
		AcquireTimeout:  time.Duration(c.Storage.SQL.AcquireTimeout),
	}
}

// SessionSettings returns the token issuer configuration
func (c *Config) SessionSettings() session.Config {
	return session.Config{
		Secret:     c.Session.Secret,
		Issuer:     c.Session.Issuer,
		AccessTTL:  time.Duration(c.Session.AccessTTL),
		RefreshTTL: time.Duration(c.Session.RefreshTTL),
	}
}

// CredentialSettings returns the password hashing configuration
func (c *Config) CredentialSettings() credential.Config {
	def := credential.DefaultConfig()
	return credential.Config{
		Time:    c.Credential.Time,
		Memory:  c.Credential.MemoryKiB,
		Threads: c.Credential.Threads,
		KeyLen:  def.KeyLen,
		SaltLen: def.SaltLen,
	}
}

// MembershipSettings returns the coordinator configuration
func (c *Config) MembershipSettings() membership.Config {
	return membership.Config{MaxAttempts: c.Membership.MaxAttempts}
}
