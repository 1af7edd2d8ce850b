// Package credential derives and verifies salted password hashes with argon2id.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/observability/metrics"
)

// Config holds argon2id parameters
type Config struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultConfig returns the production argon2id parameters
func DefaultConfig() Config {
	return Config{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		KeyLen:  32,
		SaltLen: 16,
	}
}

// Hasher derives and verifies password hashes
type Hasher interface {
	Hash(plain string) (hashed, salt string, err error)
	Verify(plain, salt, hashed string) (bool, error)
}

// Manager implements Hasher
type Manager struct {
	cfg     Config
	entropy io.Reader
}

// Ensure Manager implements Hasher
var _ Hasher = (*Manager)(nil)

// New creates a Manager reading salts from crypto/rand
func New(cfg Config) *Manager {
	return NewWithEntropy(cfg, rand.Reader)
}

// NewWithEntropy creates a Manager reading salts from r (for testing)
func NewWithEntropy(cfg Config, r io.Reader) *Manager {
	def := DefaultConfig()
	if cfg.Time == 0 {
		cfg.Time = def.Time
	}
	if cfg.Memory == 0 {
		cfg.Memory = def.Memory
	}
	if cfg.Threads == 0 {
		cfg.Threads = def.Threads
	}
	if cfg.KeyLen == 0 {
		cfg.KeyLen = def.KeyLen
	}
	if cfg.SaltLen == 0 {
		cfg.SaltLen = def.SaltLen
	}
	return &Manager{cfg: cfg, entropy: r}
}

// Hash derives a hash of plain under a fresh random salt. Both values are
// returned base64 encoded.
func (m *Manager) Hash(plain string) (string, string, error) {
	salt := make([]byte, m.cfg.SaltLen)
	if _, err := io.ReadFull(m.entropy, salt); err != nil {
		return "", "", model.Ef(model.KindHasher, "hash password", "read salt", err)
	}

	start := time.Now()
	key := m.derive(plain, salt)
	metrics.PasswordHashDuration.Observe(time.Since(start).Seconds())

	return encode(key), encode(salt), nil
}

// Verify reports whether plain hashes to hashed under salt. A mismatch is
// false with a nil error; only undecodable inputs are errors.
func (m *Manager) Verify(plain, salt, hashed string) (bool, error) {
	saltBytes, err := decode(salt)
	if err != nil {
		return false, model.Ef(model.KindVerify, "verify password", "decode salt", err)
	}
	want, err := decode(hashed)
	if err != nil {
		return false, model.Ef(model.KindVerify, "verify password", "decode hash", err)
	}
	if len(saltBytes) == 0 || len(want) == 0 {
		return false, model.Ef(model.KindVerify, "verify password", "empty salt or hash", errors.New("missing credential material"))
	}
	if len(want) != int(m.cfg.KeyLen) {
		return false, model.Ef(model.KindVerify, "verify password", fmt.Sprintf("hash length %d, expected %d", len(want), m.cfg.KeyLen), nil)
	}

	got := m.derive(plain, saltBytes)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func (m *Manager) derive(plain string, salt []byte) []byte {
	return argon2.IDKey([]byte(plain), salt, m.cfg.Time, m.cfg.Memory, m.cfg.Threads, m.cfg.KeyLen)
}

func encode(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(b)
}

func decode(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(s)
}
