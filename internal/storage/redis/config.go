package redis

import "time"

// Config holds Redis connection settings
type Config struct {
	// URL is a redis:// or rediss:// URL; the path selects the database
	URL string

	PoolSize     int
	MinIdleConns int

	// ConnectTimeout bounds the dial and the startup ping
	ConnectTimeout time.Duration

	// KeyPrefix namespaces every key written by this service
	KeyPrefix string
}

func DefaultConfig() Config {
	return Config{
		URL:            "redis://localhost:6379/0",
		PoolSize:       10,
		MinIdleConns:   2,
		ConnectTimeout: 5 * time.Second,
		KeyPrefix:      "movienight",
	}
}
