// Package sqlstore keeps documents in relational tables through database/sql.
// Each table holds (key, data, revision) rows; there are no foreign keys
// between tables.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/mcoot/movienight/internal/storage"
	"github.com/mcoot/movienight/internal/storage/sqlstore/migrations"
)

type tableSpec struct {
	name   string
	keyCol string
}

var tables = map[storage.Table]tableSpec{
	storage.TableUsers:  {name: "users", keyCol: "username"},
	storage.TableGroups: {name: "movie_groups", keyCol: "id"},
}

// Storage is a SQL-backed implementation of the storage interface
type Storage struct {
	db  *sqlx.DB
	cfg Config
}

// Open connects to the database and verifies the connection
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	if _, err := gooseDialect(cfg.Driver); err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewWithDB(db, cfg), nil
}

// NewWithDB wraps an existing connection pool (for testing)
func NewWithDB(db *sqlx.DB, cfg Config) *Storage {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultConfig().AcquireTimeout
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &Storage{db: db, cfg: cfg}
}

// Close closes the connection pool
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pool
func (s *Storage) DB() *sqlx.DB {
	return s.db
}

// Migrate applies all pending schema migrations
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) error {
	dialect, err := gooseDialect(s.cfg.Driver)
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{logger})
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db.DB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the latest applied migration version
func (s *Storage) SchemaVersion(ctx context.Context) (int64, error) {
	dialect, err := gooseDialect(s.cfg.Driver)
	if err != nil {
		return 0, err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, s.db.DB)
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// withConn runs fn on a pooled connection, waiting at most AcquireTimeout
// for one. The connection is returned to the pool when fn returns.
func (s *Storage) withConn(ctx context.Context, op string, fn func(conn *sqlx.Conn) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.AcquireTimeout)
	conn, err := s.db.Connx(acquireCtx)
	cancel()
	if err != nil {
		return storage.Failure(op, fmt.Errorf("acquire connection: %w", err))
	}
	defer func() { _ = conn.Close() }()

	return fn(conn)
}

func lookupTable(op string, table storage.Table) (tableSpec, error) {
	spec, ok := tables[table]
	if !ok {
		return tableSpec{}, storage.Failure(op, storage.UnknownTable(table))
	}
	return spec, nil
}

func dbError(op string, err error) error {
	return storage.Failure(op, fmt.Errorf("db error: %w", err))
}

// Document operations

type documentRow struct {
	Data     string `db:"data"`
	Revision int64  `db:"revision"`
}

func (s *Storage) Get(ctx context.Context, table storage.Table, key string) (*storage.Document, error) {
	const op = "sql.get"
	spec, err := lookupTable(op, table)
	if err != nil {
		return nil, err
	}

	var row documentRow
	err = s.withConn(ctx, op, func(conn *sqlx.Conn) error {
		query := conn.Rebind(fmt.Sprintf("SELECT data, revision FROM %s WHERE %s = ?", spec.name, spec.keyCol))
		if err := conn.GetContext(ctx, &row, query, key); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.NotFound(op, table, key)
			}
			return dbError(op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &storage.Document{Key: key, Data: row.Data, Revision: row.Revision}, nil
}

func (s *Storage) Insert(ctx context.Context, table storage.Table, key, data string) (*storage.Document, error) {
	const op = "sql.insert"
	spec, err := lookupTable(op, table)
	if err != nil {
		return nil, err
	}

	err = s.withConn(ctx, op, func(conn *sqlx.Conn) error {
		query := conn.Rebind(fmt.Sprintf(
			"INSERT INTO %s (%s, data, revision) VALUES (?, ?, 1) ON CONFLICT (%s) DO NOTHING",
			spec.name, spec.keyCol, spec.keyCol,
		))
		res, err := conn.ExecContext(ctx, query, key, data)
		if err != nil {
			return dbError(op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return dbError(op, err)
		}
		if n == 0 {
			return storage.Conflict(op, table, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &storage.Document{Key: key, Data: data, Revision: 1}, nil
}

func (s *Storage) Update(ctx context.Context, table storage.Table, key, data string, revision int64) (*storage.Document, error) {
	const op = "sql.update"
	spec, err := lookupTable(op, table)
	if err != nil {
		return nil, err
	}

	var newRevision int64
	err = s.withConn(ctx, op, func(conn *sqlx.Conn) error {
		query := fmt.Sprintf("UPDATE %s SET data = ?, revision = revision + 1 WHERE %s = ?", spec.name, spec.keyCol)
		args := []any{data, key}
		if revision > 0 {
			query += " AND revision = ?"
			args = append(args, revision)
		}
		query = conn.Rebind(query + " RETURNING revision")

		err := conn.QueryRowxContext(ctx, query, args...).Scan(&newRevision)
		if errors.Is(err, sql.ErrNoRows) {
			return s.missOrStale(ctx, conn, op, spec, table, key, revision)
		}
		if err != nil {
			return dbError(op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &storage.Document{Key: key, Data: data, Revision: newRevision}, nil
}

func (s *Storage) Delete(ctx context.Context, table storage.Table, key string, revision int64) error {
	const op = "sql.delete"
	spec, err := lookupTable(op, table)
	if err != nil {
		return err
	}

	return s.withConn(ctx, op, func(conn *sqlx.Conn) error {
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", spec.name, spec.keyCol)
		args := []any{key}
		if revision > 0 {
			query += " AND revision = ?"
			args = append(args, revision)
		}

		res, err := conn.ExecContext(ctx, conn.Rebind(query), args...)
		if err != nil {
			return dbError(op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return dbError(op, err)
		}
		if n == 0 {
			return s.missOrStale(ctx, conn, op, spec, table, key, revision)
		}
		return nil
	})
}

// missOrStale explains why a conditional write touched no rows
func (s *Storage) missOrStale(ctx context.Context, conn *sqlx.Conn, op string, spec tableSpec, table storage.Table, key string, revision int64) error {
	var current int64
	query := conn.Rebind(fmt.Sprintf("SELECT revision FROM %s WHERE %s = ?", spec.name, spec.keyCol))
	err := conn.QueryRowxContext(ctx, query, key).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.NotFound(op, table, key)
	}
	if err != nil {
		return dbError(op, err)
	}
	return storage.StaleRevision(op, table, key, revision)
}

// Refresh token operations

func (s *Storage) SaveRefreshToken(ctx context.Context, token storage.RefreshToken) error {
	const op = "sql.save_refresh_token"
	return s.withConn(ctx, op, func(conn *sqlx.Conn) error {
		if !token.IssuedAt.IsZero() {
			sweep := conn.Rebind("DELETE FROM refresh_tokens WHERE expires_at <= ?")
			if _, err := conn.ExecContext(ctx, sweep, token.IssuedAt.Unix()); err != nil {
				return dbError(op, err)
			}
		}
		query := conn.Rebind("INSERT INTO refresh_tokens (jti, username, expires_at) VALUES (?, ?, ?)")
		if _, err := conn.ExecContext(ctx, query, token.ID, token.Username, token.ExpiresAt.Unix()); err != nil {
			return dbError(op, err)
		}
		return nil
	})
}

type refreshTokenRow struct {
	Username  string `db:"username"`
	ExpiresAt int64  `db:"expires_at"`
}

func (s *Storage) ConsumeRefreshToken(ctx context.Context, id string) (*storage.RefreshToken, error) {
	const op = "sql.consume_refresh_token"

	var row refreshTokenRow
	err := s.withConn(ctx, op, func(conn *sqlx.Conn) error {
		query := conn.Rebind("DELETE FROM refresh_tokens WHERE jti = ? RETURNING username, expires_at")
		if err := conn.GetContext(ctx, &row, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.NotFound(op, "refresh_tokens", id)
			}
			return dbError(op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &storage.RefreshToken{ID: id, Username: row.Username, ExpiresAt: time.Unix(row.ExpiresAt, 0)}, nil
}

// gooseLogger routes goose output through slog
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	if l.logger != nil {
		l.logger.Info(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
	}
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	if l.logger != nil {
		l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
	}
}
