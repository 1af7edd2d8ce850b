package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcoot/movienight/internal/model"
)

// Table names one of the independent document tables
type Table string

const (
	TableUsers  Table = "users"  // keyed by username
	TableGroups Table = "groups" // keyed by group id
)

// Document is one stored row: the serialized entity plus its revision.
// Revisions start at 1 and increase by one on every update.
type Document struct {
	Key      string
	Data     string
	Revision int64
}

// RefreshToken records an outstanding single-use refresh token
type RefreshToken struct {
	ID        string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ErrRevisionMismatch is wrapped by a Conflict error when a conditional
// write was based on a stale revision.
var ErrRevisionMismatch = errors.New("document revision mismatch")

// DocumentStore provides full-document reads and writes by primary key with
// single-key atomicity only.
//
// Update and Delete are conditional when revision > 0: the write only
// applies if the stored revision still equals it. A revision of 0 writes
// unconditionally.
type DocumentStore interface {
	Get(ctx context.Context, table Table, key string) (*Document, error)
	Insert(ctx context.Context, table Table, key, data string) (*Document, error)
	Update(ctx context.Context, table Table, key, data string, revision int64) (*Document, error)
	Delete(ctx context.Context, table Table, key string, revision int64) error
}

// RefreshTokenStore tracks issued refresh tokens so each can be used once
type RefreshTokenStore interface {
	// SaveRefreshToken records token. Backends without native expiry also
	// drop tokens that expired at or before token.IssuedAt.
	SaveRefreshToken(ctx context.Context, token RefreshToken) error
	// ConsumeRefreshToken atomically removes and returns the token
	ConsumeRefreshToken(ctx context.Context, id string) (*RefreshToken, error)
}

// Storage is the full backend contract
type Storage interface {
	DocumentStore
	RefreshTokenStore
	Close() error
}

// NotFound builds the error returned for a missing key
func NotFound(op string, table Table, key string) error {
	return model.Ef(model.KindNotFound, op, fmt.Sprintf("%s/%s", table, key), nil)
}

// Conflict builds the error returned when inserting an existing key
func Conflict(op string, table Table, key string) error {
	return model.Ef(model.KindConflict, op, fmt.Sprintf("%s/%s already exists", table, key), nil)
}

// StaleRevision builds the error returned when a conditional write lost a race
func StaleRevision(op string, table Table, key string, revision int64) error {
	return model.Ef(model.KindConflict, op, fmt.Sprintf("%s/%s at revision %d", table, key, revision), ErrRevisionMismatch)
}

// Failure wraps a backend failure
func Failure(op string, err error) error {
	return model.E(model.KindStorage, op, err)
}

// UnknownTable reports a table name no backend knows about
func UnknownTable(table Table) error {
	return fmt.Errorf("unknown table %q", table)
}
