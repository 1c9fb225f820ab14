package store

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultSlotKey names the simulator state slot.
const DefaultSlotKey = "papersim.state"

const schema = `
CREATE TABLE IF NOT EXISTS slots (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// SQLite stores one snapshot per key in a local database file.
type SQLite struct {
	db  *sql.DB
	key string
}

func NewSQLite(path, key string) (*SQLite, error) {
	if key == "" {
		key = DefaultSlotKey
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, key: key}, nil
}

func (s *SQLite) Save(data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO slots (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		s.key, data, time.Now().UTC(),
	)
	return err
}

func (s *SQLite) Load() ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM slots WHERE key = ?`, s.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
