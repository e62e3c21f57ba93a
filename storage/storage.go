package storage

import (
	"database/sql"
	"fmt"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
)

// Storage keys used by the board: one for the serialized post list, one
// for the current display name.
const (
	PostsKey    = "postboard_posts"
	UsernameKey = "postboard_username"
)

// Storage is a small key/value layer over SQLite
type Storage struct {
	db *sql.DB
}

// Open connects to the SQLite database at path.
func Open(path string) (*Storage, error) {
	db, err := connection(path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key. The second return value is false
// when the key is absent.
func (s *Storage) Get(key string) (string, bool, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("value").From("kv").Where(sb.Equal("key", key))

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	var value string
	err := s.db.QueryRow(query, args...).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query error: %w", err)
	}

	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Storage) Put(key string, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value)
		VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value`,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("insert error: %w", err)
	}

	return nil
}

// Delete removes key from storage. Deleting an absent key is a no-op.
func (s *Storage) Delete(key string) error {
	db := sqlbuilder.NewDeleteBuilder()
	db.DeleteFrom("kv").Where(db.Equal("key", key))

	query, args := db.BuildWithFlavor(sqlbuilder.SQLite)

	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("delete error: %w", err)
	}

	return nil
}
