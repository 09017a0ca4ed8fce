// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/phoenix-pocx/plotterd/pkg/logging"
)

const keyPrefix = "dl/"

// Store is the durable deadline tier. It is the single writer;
// everything display-facing reads from it through bounded queries.
//
// Keys are laid out as "dl/<chain>/<inverted big-endian height>" so a
// forward scan over one chain's prefix yields entries newest-block
// first, and over-cap entries are always at the tail of the scan.
type Store struct {
	db     *badger.DB
	logger *logging.Logger

	mu     sync.Mutex
	counts map[string]int
}

// Open opens (or creates) the store at dir.
func Open(dir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithCompactL0OnClose(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open deadline store: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With("component", "deadline_store"),
		counts: make(map[string]int),
	}
	if err := s.loadCounts(); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("deadline store opened", "dir", dir, "chains", len(s.counts))
	return s, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores an entry, replacing any previous entry for the same
// (chain, height) pair, then trims the chain back under the cap. The
// trim removes from the tail of the key order, so its cost stays
// proportional to the overflow rather than the chain size.
func (s *Store) Insert(entry Entry) error {
	if entry.Chain == "" {
		return errors.New("insert deadline: empty chain")
	}
	// The chain name is a key segment; a separator inside it would
	// break prefix isolation between chains.
	if strings.ContainsRune(entry.Chain, '/') {
		return fmt.Errorf("insert deadline: chain %q contains a key separator", entry.Chain)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey(entry.Chain, entry.Height)
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode deadline entry: %w", err)
	}

	replaced := false
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			replaced = true
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("insert deadline: %w", err)
	}

	if !replaced {
		s.counts[entry.Chain]++
	}
	if s.counts[entry.Chain] > MaxEntriesPerChain {
		if err := s.trimLocked(entry.Chain); err != nil {
			return err
		}
	}
	return nil
}

// trimLocked deletes the oldest entries of chain until the count is
// back under the cap. Caller holds s.mu.
func (s *Store) trimLocked(chain string) error {
	over := s.counts[chain] - MaxEntriesPerChain
	if over <= 0 {
		return nil
	}
	prefix := chainPrefix(chain)

	var victims [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek to the end of the chain's key range and walk backward.
		seek := append(append([]byte{}, prefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(victims) < over; it.Next() {
			victims = append(victims, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan deadline tail: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range victims {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("trim deadline tail: %w", err)
	}
	s.counts[chain] -= len(victims)
	return nil
}

// RecentByChain returns up to limit entries for one chain, newest
// block first.
func (s *Store) RecentByChain(chain string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = MaxEntriesPerChain
	}
	prefix := chainPrefix(chain)

	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(entries) < limit; it.Next() {
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				s.logger.Warn("skipping undecodable deadline entry",
					"key", string(it.Item().Key()), "error", err)
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read deadlines for %s: %w", chain, err)
	}
	return entries, nil
}

// Recent returns up to limit entries across all chains, newest
// timestamp first. A non-positive limit returns everything.
func (s *Store) Recent(limit int) ([]Entry, error) {
	s.mu.Lock()
	chains := make([]string, 0, len(s.counts))
	for chain := range s.counts {
		chains = append(chains, chain)
	}
	s.mu.Unlock()
	sort.Strings(chains)

	var merged []Entry
	for _, chain := range chains {
		entries, err := s.RecentByChain(chain, limit)
		if err != nil {
			return nil, err
		}
		merged = append(merged, entries...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Count returns the stored entry count for one chain.
func (s *Store) Count(chain string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[chain]
}

// Chains lists the chains with at least one stored entry, sorted.
func (s *Store) Chains() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	chains := make([]string, 0, len(s.counts))
	for chain := range s.counts {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}

// loadCounts rebuilds the per-chain counters from a keys-only scan at
// open time.
func (s *Store) loadCounts() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			chain, ok := chainFromKey(it.Item().Key())
			if !ok {
				continue
			}
			s.counts[chain]++
		}
		return nil
	})
}

func chainPrefix(chain string) []byte {
	return []byte(keyPrefix + chain + "/")
}

// entryKey inverts the height so ascending key order is descending
// block order.
func entryKey(chain string, height uint64) []byte {
	key := chainPrefix(chain)
	var inv [8]byte
	binary.BigEndian.PutUint64(inv[:], math.MaxUint64-height)
	return append(key, inv[:]...)
}

// chainFromKey strips the prefix and the fixed-width height suffix.
// The suffix is raw binary, so splitting on '/' is not safe here.
func chainFromKey(key []byte) (string, bool) {
	rest := strings.TrimPrefix(string(key), keyPrefix)
	if len(rest) <= 9 || rest[len(rest)-9] != '/' {
		return "", false
	}
	return rest[:len(rest)-9], true
}
