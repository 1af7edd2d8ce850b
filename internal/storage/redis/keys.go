package redis

import (
	"fmt"

	"github.com/mcoot/movienight/internal/storage"
)

// documentKey returns the Redis key for a document hash
func (s *Storage) documentKey(table storage.Table, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.cfg.KeyPrefix, table, key)
}

// refreshTokenKey returns the Redis key for an outstanding refresh token
func (s *Storage) refreshTokenKey(id string) string {
	return fmt.Sprintf("%s:refresh_token:%s", s.cfg.KeyPrefix, id)
}
