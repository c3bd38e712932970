// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package unitdata is the unit's persistent key/value store. It is the
// only state carried from one hook execution to the next.
package unitdata

import (
	"database/sql"
	"encoding/json"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	_ "github.com/mattn/go-sqlite3"
)

var logger = loggo.GetLogger("neutronapi.unitdata")

// FileName is the store's file name within the charm directory.
const FileName = ".unit-state.db"

const createTable = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT,
    data TEXT,
    PRIMARY KEY (key)
)`

// Store is a key/value store backed by SQLite. Writes are staged in a
// transaction until Flush.
type Store struct {
	db *sql.DB
	tx *sql.Tx
}

// Open opens, creating if needed, the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Annotatef(err, "opening %s", path)
	}
	if _, err := db.Exec(createTable); err != nil {
		_ = db.Close()
		return nil, errors.Annotatef(err, "creating kv table in %s", path)
	}
	s := &Store{db: db}
	if err := s.begin(); err != nil {
		_ = db.Close()
		return nil, errors.Trace(err)
	}
	return s, nil
}

// OpenCharmDir opens the store kept in charmDir.
func OpenCharmDir(charmDir string) (*Store, error) {
	return Open(filepath.Join(charmDir, FileName))
}

func (s *Store) begin() error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Annotate(err, "starting transaction")
	}
	s.tx = tx
	return nil
}

// Get decodes the value stored under key into out. It returns false
// when the key is absent.
func (s *Store) Get(key string, out interface{}) (bool, error) {
	var data string
	err := s.tx.QueryRow("SELECT data FROM kv WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	} else if err != nil {
		return false, errors.Annotatef(err, "reading %q", key)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, errors.Annotatef(err, "decoding %q", key)
	}
	return true, nil
}

// Set stores value under key.
func (s *Store) Set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Annotatef(err, "encoding %q", key)
	}
	_, err = s.tx.Exec("INSERT OR REPLACE INTO kv (key, data) VALUES (?, ?)", key, string(data))
	return errors.Annotatef(err, "writing %q", key)
}

// Unset removes key.
func (s *Store) Unset(key string) error {
	_, err := s.tx.Exec("DELETE FROM kv WHERE key = ?", key)
	return errors.Annotatef(err, "deleting %q", key)
}

// Keys returns every stored key with the given prefix.
func (s *Store) Keys(prefix string) ([]string, error) {
	rows, err := s.tx.Query("SELECT key FROM kv WHERE key LIKE ? ORDER BY key", prefix+"%")
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Trace(err)
		}
		keys = append(keys, key)
	}
	return keys, errors.Trace(rows.Err())
}

// Flush commits staged writes.
func (s *Store) Flush() error {
	if err := s.tx.Commit(); err != nil {
		return errors.Annotate(err, "committing unit state")
	}
	logger.Tracef("unit state committed")
	return errors.Trace(s.begin())
}

// Rollback discards writes staged since the last flush.
func (s *Store) Rollback() error {
	if err := s.tx.Rollback(); err != nil {
		return errors.Annotate(err, "discarding unit state")
	}
	logger.Tracef("unit state discarded")
	return errors.Trace(s.begin())
}

// Close discards unflushed writes and closes the store.
func (s *Store) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
	}
	return errors.Trace(s.db.Close())
}
