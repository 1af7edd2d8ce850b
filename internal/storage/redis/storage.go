package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/movienight/internal/storage"
)

// Each document is a hash {data, rev}. Writes run as scripts so the revision
// check and the write are atomic per key.
var (
	insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'rev', 1)
return 1
`)

	updateScript = redis.NewScript(`
local rev = redis.call('HGET', KEYS[1], 'rev')
if not rev then
	return -1
end
local expected = tonumber(ARGV[2])
if expected > 0 and tonumber(rev) ~= expected then
	return -2
end
redis.call('HSET', KEYS[1], 'data', ARGV[1])
return redis.call('HINCRBY', KEYS[1], 'rev', 1)
`)

	deleteScript = redis.NewScript(`
local rev = redis.call('HGET', KEYS[1], 'rev')
if not rev then
	return -1
end
local expected = tonumber(ARGV[1])
if expected > 0 and tonumber(rev) ~= expected then
	return -2
end
redis.call('DEL', KEYS[1])
return 1
`)
)

const (
	scriptMissing = -1
	scriptStale   = -2
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}
	opts.DialTimeout = cfg.ConnectTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Document operations

func (s *Storage) Get(ctx context.Context, table storage.Table, key string) (*storage.Document, error) {
	const op = "redis.get"
	if err := checkTable(table); err != nil {
		return nil, storage.Failure(op, err)
	}

	vals, err := s.client.HMGet(ctx, s.documentKey(table, key), "data", "rev").Result()
	if err != nil {
		return nil, storage.Failure(op, err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, storage.NotFound(op, table, key)
	}

	data, ok := vals[0].(string)
	if !ok {
		return nil, storage.Failure(op, fmt.Errorf("unexpected data type %T", vals[0]))
	}
	revStr, ok := vals[1].(string)
	if !ok {
		return nil, storage.Failure(op, fmt.Errorf("unexpected rev type %T", vals[1]))
	}
	rev, err := strconv.ParseInt(revStr, 10, 64)
	if err != nil {
		return nil, storage.Failure(op, err)
	}

	return &storage.Document{Key: key, Data: data, Revision: rev}, nil
}

func (s *Storage) Insert(ctx context.Context, table storage.Table, key, data string) (*storage.Document, error) {
	const op = "redis.insert"
	if err := checkTable(table); err != nil {
		return nil, storage.Failure(op, err)
	}

	created, err := insertScript.Run(ctx, s.client, []string{s.documentKey(table, key)}, data).Int64()
	if err != nil {
		return nil, storage.Failure(op, err)
	}
	if created == 0 {
		return nil, storage.Conflict(op, table, key)
	}
	return &storage.Document{Key: key, Data: data, Revision: 1}, nil
}

func (s *Storage) Update(ctx context.Context, table storage.Table, key, data string, revision int64) (*storage.Document, error) {
	const op = "redis.update"
	if err := checkTable(table); err != nil {
		return nil, storage.Failure(op, err)
	}

	rev, err := updateScript.Run(ctx, s.client, []string{s.documentKey(table, key)}, data, revision).Int64()
	if err != nil {
		return nil, storage.Failure(op, err)
	}
	switch rev {
	case scriptMissing:
		return nil, storage.NotFound(op, table, key)
	case scriptStale:
		return nil, storage.StaleRevision(op, table, key, revision)
	}
	return &storage.Document{Key: key, Data: data, Revision: rev}, nil
}

func (s *Storage) Delete(ctx context.Context, table storage.Table, key string, revision int64) error {
	const op = "redis.delete"
	if err := checkTable(table); err != nil {
		return storage.Failure(op, err)
	}

	res, err := deleteScript.Run(ctx, s.client, []string{s.documentKey(table, key)}, revision).Int64()
	if err != nil {
		return storage.Failure(op, err)
	}
	switch res {
	case scriptMissing:
		return storage.NotFound(op, table, key)
	case scriptStale:
		return storage.StaleRevision(op, table, key, revision)
	}
	return nil
}

func checkTable(table storage.Table) error {
	switch table {
	case storage.TableUsers, storage.TableGroups:
		return nil
	}
	return storage.UnknownTable(table)
}

// Refresh token operations

type refreshTokenValue struct {
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expires_at"`
}

// SaveRefreshToken stores the token with a TTL matching its expiry. A token
// already past its expiry is stored without a TTL; it is still rejected on
// use because the JWT itself has expired.
func (s *Storage) SaveRefreshToken(ctx context.Context, token storage.RefreshToken) error {
	const op = "redis.save_refresh_token"

	data, err := json.Marshal(refreshTokenValue{Username: token.Username, ExpiresAt: token.ExpiresAt.Unix()})
	if err != nil {
		return storage.Failure(op, err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl < time.Second {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.refreshTokenKey(token.ID), data, ttl).Err(); err != nil {
		return storage.Failure(op, err)
	}
	return nil
}

func (s *Storage) ConsumeRefreshToken(ctx context.Context, id string) (*storage.RefreshToken, error) {
	const op = "redis.consume_refresh_token"

	data, err := s.client.GetDel(ctx, s.refreshTokenKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.NotFound(op, "refresh_tokens", id)
		}
		return nil, storage.Failure(op, err)
	}

	var v refreshTokenValue
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, storage.Failure(op, err)
	}
	return &storage.RefreshToken{
		ID:        id,
		Username:  v.Username,
		ExpiresAt: time.Unix(v.ExpiresAt, 0),
	}, nil
}
