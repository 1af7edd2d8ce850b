package factory

import (
	"path/filepath"

	"github.com/mcoot/movienight/internal/services/session"
	"github.com/mcoot/movienight/internal/storage/sqlstore"
)

func sqlConfigForTest(dir string) sqlstore.Config {
	cfg := sqlstore.DefaultConfig()
	cfg.DSN = "file:" + filepath.Join(dir, "movienight.db") + "?_pragma=busy_timeout(5000)"
	cfg.MaxOpenConns = 1
	return cfg
}

func sessionWithSecret() session.Config {
	cfg := session.DefaultConfig()
	cfg.Secret = "secret"
	return cfg
}
