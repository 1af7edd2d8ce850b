package ids

import "github.com/google/uuid"

// Generator produces identifiers for new users and groups
type Generator interface {
	// NewID returns a new random UUID string
	NewID() string
}

// UUIDGenerator implements Generator with version 4 UUIDs
type UUIDGenerator struct{}

// New creates a new UUIDGenerator
func New() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a new version 4 UUID
func (g *UUIDGenerator) NewID() string {
	return uuid.NewString()
}
