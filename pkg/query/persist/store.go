// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package persist backs the query cache with an on-disk badger store
// so a fresh process can paint its first screen from the previous
// run's data while the real fetch is in flight.
//
// Entries carry a TTL: anything the previous run cached longer ago
// than the retention window is garbage, not a warm start, and badger
// drops it on its own.
package persist

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// DefaultRetention bounds how stale a warm-start entry may be.
const DefaultRetention = 24 * time.Hour

// BadgerStore is a byte-level key/value store on a local badger
// database. It satisfies query.Store.
type BadgerStore struct {
	db        *badger.DB
	retention time.Duration
	logger    *slog.Logger
}

// Option customizes a BadgerStore.
type Option func(*BadgerStore)

// WithRetention overrides the entry TTL. Zero or negative disables
// expiry.
func WithRetention(d time.Duration) Option {
	return func(s *BadgerStore) { s.retention = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *BadgerStore) { s.logger = l }
}

// Open opens (creating if needed) the store at dir. The directory is
// owned by this process for the lifetime of the store; badger holds a
// lock on it.
func Open(dir string, opts ...Option) (*BadgerStore, error) {
	s := &BadgerStore{
		retention: DefaultRetention,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	badgerOpts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithCompactL0OnClose(true)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening cache store at %s: %w", dir, err)
	}
	s.db = db
	s.logger.Debug("warm cache opened", "dir", dir, "retention", s.retention)
	return s, nil
}

// Load returns the stored bytes for key. A missing or expired key is
// found=false, not an error.
func (s *BadgerStore) Load(key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry %q: %w", key, err)
	}
	return data, true, nil
}

// Save replaces the bytes for key, stamping the retention TTL.
func (s *BadgerStore) Save(key string, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if s.retention > 0 {
			e = e.WithTTL(s.retention)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("writing cache entry %q: %w", key, err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing cache store: %w", err)
	}
	return nil
}
