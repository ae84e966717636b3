package database

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"tokenaudit/internal/platform/config"
)

var ErrDisabled = errors.New("audit database disabled")

// Open connects to the SQLite file holding the run audit log. An empty path
// disables the audit log and returns ErrDisabled.
func Open(cfg config.AuditConfig) (*sql.DB, error) {
	if cfg.DatabasePath == "" {
		return nil, ErrDisabled
	}

	dsn := cfg.DatabasePath
	if len(dsn) > 5 && dsn[:5] == "file:" {
		dsn = dsn[5:]
	}
	dsn += "?_busy_timeout=5000&_journal_mode=WAL"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConnections
	if maxConns < 1 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
