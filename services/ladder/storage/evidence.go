// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/PrimeLadder/services/ladder/detect"
)

const keyPrefix = "zeros/"

// EvidenceStore records zero indices per (family, prime).
//
// Keys are "zeros/<family-id>/<prime>" and values are JSON index lists.
// Writes merge with what is already stored, so recording the same ladder
// twice is a no-op.
//
// Thread Safety: Safe for concurrent use.
type EvidenceStore struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ detect.EvidenceSource = (*EvidenceStore)(nil)

// NewEvidenceStore wraps an open database. The caller keeps ownership of db.
func NewEvidenceStore(db *badger.DB, logger *slog.Logger) *EvidenceStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvidenceStore{db: db, logger: logger}
}

func evidenceKey(familyID, prime string) []byte {
	return []byte(keyPrefix + familyID + "/" + prime)
}

// KnownZeros returns the stored indices for prime, or nil if none.
func (s *EvidenceStore) KnownZeros(ctx context.Context, familyID string, prime uint64) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []int
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = readIndices(txn, evidenceKey(familyID, strconv.FormatUint(prime, 10)))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read evidence %s/%d: %w", familyID, prime, err)
	}
	return out, nil
}

// Record merges every ladder of m into the store under familyID.
func (s *EvidenceStore) Record(ctx context.Context, familyID string, m *detect.LadderMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ladders := m.Ladders()
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, l := range ladders {
			key := evidenceKey(familyID, l.Prime.String())
			existing, err := readIndices(txn, key)
			if err != nil {
				return err
			}
			merged := detect.NewLadderMap()
			merged.Add(l.Prime, existing...)
			merged.Add(l.Prime, l.Indices...)
			data, err := json.Marshal(merged.Indices(l.Prime))
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record evidence for %s: %w", familyID, err)
	}
	s.logger.Debug("evidence recorded",
		slog.String("family", familyID),
		slog.Int("primes", len(ladders)),
	)
	return nil
}

// Load returns everything stored for familyID.
func (s *EvidenceStore) Load(ctx context.Context, familyID string) (*detect.LadderMap, error) {
	out := detect.NewLadderMap()
	prefix := []byte(keyPrefix + familyID + "/")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			primeKey := strings.TrimPrefix(string(item.Key()), string(prefix))
			p, ok := new(big.Int).SetString(primeKey, 10)
			if !ok {
				return fmt.Errorf("corrupt evidence key %q", item.Key())
			}
			var indices []int
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &indices)
			}); err != nil {
				return err
			}
			out.Add(p, indices...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load evidence for %s: %w", familyID, err)
	}
	return out, nil
}

// Compact runs one round of value log garbage collection. It is a no-op
// for in-memory databases and when nothing needs rewriting.
func (s *EvidenceStore) Compact(ratio float64) error {
	if s.db.Opts().InMemory {
		return nil
	}
	err := s.db.RunValueLogGC(ratio)
	if err == nil || errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return fmt.Errorf("value log gc: %w", err)
}

func readIndices(txn *badger.Txn, key []byte) ([]int, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var indices []int
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &indices)
	})
	return indices, err
}
