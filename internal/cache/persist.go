// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package cache

import (
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

// entryKeyPrefix namespaces cache entries inside the shared Badger DB.
const entryKeyPrefix = "recentry:"

// savePersisted writes an entry through to Badger with a matching TTL.
// Store failures degrade to memory-only operation: logged, never surfaced
// to the request path.
func (s *Store) savePersisted(entry *recommend.CacheEntry) {
	if !s.persist {
		return
	}

	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Error().Err(err).Msg("cache entry marshal failed")
		return
	}

	key := []byte(entryKeyPrefix + entry.Key.String())
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(ttl))
	})
	if err != nil {
		cerr := &recommend.CacheError{Op: "persist", Err: err}
		s.logger.Warn().Err(cerr).Msg("cache write-through failed, continuing memory-only")
	}
}

// deletePersisted removes an entry from Badger, absorbing failures.
func (s *Store) deletePersisted(ks string) {
	if !s.persist {
		return
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(entryKeyPrefix + ks))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		cerr := &recommend.CacheError{Op: "delete", Err: err}
		s.logger.Warn().Err(cerr).Msg("cache delete failed")
	}
}

// loadPersisted rehydrates unexpired entries from Badger into the LRU,
// oldest-generated first so recently generated entries end up most
// recently used. Returns the number loaded.
func (s *Store) loadPersisted() (int, error) {
	var entries []*recommend.CacheEntry
	now := time.Now()

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry recommend.CacheEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					// A corrupt entry is skipped, not fatal.
					s.logger.Warn().Err(err).Msg("skipping corrupt persisted cache entry")
					return nil
				}
				if !entry.Expired(now) {
					entries = append(entries, &entry)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("reading persisted entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, &recommend.CacheError{Op: "load", Err: err}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].GeneratedAt.Before(entries[j].GeneratedAt)
	})

	s.mu.Lock()
	for _, entry := range entries {
		s.insertLocked(entry.Key.String(), entry)
	}
	s.mu.Unlock()

	return len(entries), nil
}
