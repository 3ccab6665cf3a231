// Package persist stores completed encounters in a local SQLite database
// via modernc.org/sqlite
// (no cgo) since raidtrackd is a single-process desktop daemon, not a
// clustered game server.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DB wraps a *sql.DB opened against the sqlite driver.
type DB struct {
	Conn *sql.DB
	log  *zap.Logger
}

// NewDB opens (creating if absent) the sqlite database at path.
func NewDB(ctx context.Context, path string, log *zap.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1) // sqlite: single writer avoids SQLITE_BUSY under goose+WAL

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db %s: %w", path, err)
	}

	return &DB{Conn: conn, log: log}, nil
}

func (db *DB) Close() error {
	return db.Conn.Close()
}
