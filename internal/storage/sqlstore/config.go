package sqlstore

import (
	"fmt"
	"time"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite"   // modernc.org/sqlite
	DriverPostgres = "postgres" // github.com/lib/pq
	DriverPgx      = "pgx"      // github.com/jackc/pgx/v5/stdlib
)

// Config holds SQL connection pool settings
type Config struct {
	// Driver is one of DriverSQLite, DriverPostgres, DriverPgx
	Driver string
	// DSN is the driver-specific data source name
	DSN string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// AcquireTimeout bounds the wait for a pooled connection
	AcquireTimeout time.Duration
}

// DefaultConfig returns sensible defaults for a local sqlite database
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             "file:movienight.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		AcquireTimeout:  5 * time.Second,
	}
}

// gooseDialect maps a driver to its goose dialect
func gooseDialect(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "postgres", nil
	case DriverPgx:
		return "pgx", nil
	}
	return "", fmt.Errorf("unsupported sql driver %q", driver)
}
