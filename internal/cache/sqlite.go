package cache

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the single-node cache backend for deployments without
// redis. Expired rows are skipped on read and purged by a janitor ticker.
type SQLiteStore struct {
	db   *sql.DB
	done chan struct{}
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db, done: make(chan struct{})}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	go s.janitor()
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM cache_entries WHERE key = ?", key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if time.Now().Unix() >= expiresAt {
		s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
		return "", false, nil
	}
	return value, true, nil
}

func (s *SQLiteStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	close(s.done)
	return s.db.Close()
}

// janitor purges expired rows every minute so the file does not grow
// unbounded between reads.
func (s *SQLiteStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			res, err := s.db.Exec("DELETE FROM cache_entries WHERE expires_at <= ?", time.Now().Unix())
			if err != nil {
				continue
			}
			if n, _ := res.RowsAffected(); n > 0 {
				log.Printf("[cache] purged %d expired entries", n)
			}
		case <-s.done:
			return
		}
	}
}
