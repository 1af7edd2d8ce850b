package memory

import (
	"context"
	"sync"

	"github.com/mcoot/movienight/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	tables        map[storage.Table]map[string]storage.Document
	refreshTokens map[string]storage.RefreshToken
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		tables: map[storage.Table]map[string]storage.Document{
			storage.TableUsers:  make(map[string]storage.Document),
			storage.TableGroups: make(map[string]storage.Document),
		},
		refreshTokens: make(map[string]storage.RefreshToken),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}

// Document operations

func (s *Storage) Get(ctx context.Context, table storage.Table, key string) (*storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.table("memory.get", table)
	if err != nil {
		return nil, err
	}
	doc, ok := rows[key]
	if !ok {
		return nil, storage.NotFound("memory.get", table, key)
	}
	return &doc, nil
}

func (s *Storage) Insert(ctx context.Context, table storage.Table, key, data string) (*storage.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.table("memory.insert", table)
	if err != nil {
		return nil, err
	}
	if _, exists := rows[key]; exists {
		return nil, storage.Conflict("memory.insert", table, key)
	}
	doc := storage.Document{Key: key, Data: data, Revision: 1}
	rows[key] = doc
	return &doc, nil
}

func (s *Storage) Update(ctx context.Context, table storage.Table, key, data string, revision int64) (*storage.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.table("memory.update", table)
	if err != nil {
		return nil, err
	}
	current, ok := rows[key]
	if !ok {
		return nil, storage.NotFound("memory.update", table, key)
	}
	if revision > 0 && current.Revision != revision {
		return nil, storage.StaleRevision("memory.update", table, key, revision)
	}
	doc := storage.Document{Key: key, Data: data, Revision: current.Revision + 1}
	rows[key] = doc
	return &doc, nil
}

func (s *Storage) Delete(ctx context.Context, table storage.Table, key string, revision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.table("memory.delete", table)
	if err != nil {
		return err
	}
	current, ok := rows[key]
	if !ok {
		return storage.NotFound("memory.delete", table, key)
	}
	if revision > 0 && current.Revision != revision {
		return storage.StaleRevision("memory.delete", table, key, revision)
	}
	delete(rows, key)
	return nil
}

func (s *Storage) table(op string, table storage.Table) (map[string]storage.Document, error) {
	rows, ok := s.tables[table]
	if !ok {
		return nil, storage.Failure(op, storage.UnknownTable(table))
	}
	return rows, nil
}

// Refresh token operations

func (s *Storage) SaveRefreshToken(ctx context.Context, token storage.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !token.IssuedAt.IsZero() {
		for id, t := range s.refreshTokens {
			if !t.ExpiresAt.After(token.IssuedAt) {
				delete(s.refreshTokens, id)
			}
		}
	}
	s.refreshTokens[token.ID] = token
	return nil
}

func (s *Storage) ConsumeRefreshToken(ctx context.Context, id string) (*storage.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.refreshTokens[id]
	if !ok {
		return nil, storage.NotFound("memory.consume_refresh_token", "refresh_tokens", id)
	}
	delete(s.refreshTokens, id)
	return &token, nil
}
