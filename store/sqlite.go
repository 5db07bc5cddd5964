package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SqliteStore stores all collections in a single SQLite database.
//
// Tables:
//
//	records(collection, id, data)   PRIMARY KEY (collection, id)
//	sequences(collection, last_id)  PRIMARY KEY (collection)
//
// Ids only grow, so ORDER BY id is insertion order.
type SqliteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sequences (
		collection TEXT PRIMARY KEY,
		last_id INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sequences table: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func decodeRecord(raw string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SqliteStore) GetAll(collection string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query("SELECT data FROM records WHERE collection = ? ORDER BY id", collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Record{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *SqliteStore) getByID(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, collection string, id int) (Record, error) {
	var raw string
	err := q.QueryRow(
		"SELECT data FROM records WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

func (s *SqliteStore) GetByID(collection string, id int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getByID(s.db, collection, id)
}

func (s *SqliteStore) Create(collection string, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO sequences (collection, last_id) VALUES (?, 1)
		 ON CONFLICT(collection) DO UPDATE SET last_id = last_id + 1`,
		collection,
	); err != nil {
		return nil, err
	}
	var id int
	if err := tx.QueryRow("SELECT last_id FROM sequences WHERE collection = ?", collection).Scan(&id); err != nil {
		return nil, err
	}

	rec := Record{}
	merge(rec, fields)
	rec[IDField] = id
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(
		"INSERT INTO records (collection, id, data) VALUES (?, ?, ?)",
		collection, id, string(b),
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return decodeRecord(string(b))
}

func (s *SqliteStore) DeleteByID(collection string, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		"DELETE FROM records WHERE collection = ? AND id = ?",
		collection, id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SqliteStore) Update(collection string, id int, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec, err := s.getByID(tx, collection, id)
	if err != nil || rec == nil {
		return nil, err
	}
	merge(rec, fields)
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(
		"UPDATE records SET data = ? WHERE collection = ? AND id = ?",
		string(b), collection, id,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return decodeRecord(string(b))
}

func (s *SqliteStore) ListCollections() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query("SELECT DISTINCT collection FROM records ORDER BY collection")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
