// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report builds the persisted outputs of a ladder run: the
// prime -> index map, the prime -> residue table, the flat ladder prime
// list, and a run summary.
//
// Maps are encoded as JSON objects with decimal string keys in ascending
// numeric order, so identical runs produce byte-identical files.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/AleutianAI/PrimeLadder/services/ladder/detect"
	"github.com/AleutianAI/PrimeLadder/services/ladder/residue"
)

// Sentinel errors for report decoding.
var (
	// ErrInvalidKey is returned for a map key that is not a positive integer.
	ErrInvalidKey = errors.New("invalid prime key")

	// ErrMalformedEntry is returned for a residue pair without two elements.
	ErrMalformedEntry = errors.New("malformed residue entry")
)

// PrimeIndexMap is the persisted prime -> ascending index list.
type PrimeIndexMap struct {
	ladders *detect.LadderMap
}

// NewPrimeIndexMap wraps a copy of m.
func NewPrimeIndexMap(m *detect.LadderMap) PrimeIndexMap {
	return PrimeIndexMap{ladders: m.Clone()}
}

// Ladders returns a copy of the underlying map.
func (p PrimeIndexMap) Ladders() *detect.LadderMap {
	if p.ladders == nil {
		return detect.NewLadderMap()
	}
	return p.ladders.Clone()
}

// MarshalJSON writes {"73":[11,18],...} with keys in numeric order.
func (p PrimeIndexMap) MarshalJSON() ([]byte, error) {
	var ladders []detect.Ladder
	if p.ladders != nil {
		ladders = p.ladders.Ladders()
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, l := range ladders {
		if i > 0 {
			buf.WriteByte(',')
		}
		indices, err := json.Marshal(l.Indices)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "%q:", l.Prime.String())
		buf.Write(indices)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the form written by MarshalJSON, in any key order.
func (p *PrimeIndexMap) UnmarshalJSON(data []byte) error {
	var raw map[string][]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m, err := detect.FromStrings(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	p.ladders = m
	return nil
}

// ResidueRow is the residue list of one prime.
type ResidueRow struct {
	Prime   *big.Int
	Entries []residue.Entry
}

// ResidueTable is the persisted prime -> [(index, residue)] table. Rows are
// in ascending prime order and entries follow the index list order.
type ResidueTable struct {
	Form residue.Form
	Rows []ResidueRow
}

// BuildResidueTable computes the residue of every (prime, index) pair.
func BuildResidueTable(m *detect.LadderMap, form residue.Form) ResidueTable {
	ladders := m.Ladders()
	rows := make([]ResidueRow, len(ladders))
	for i, l := range ladders {
		rows[i] = ResidueRow{Prime: l.Prime, Entries: residue.Table(l.Prime, l.Indices, form)}
	}
	return ResidueTable{Form: form, Rows: rows}
}

// Verify recomputes every stored residue with the table's form.
func (t ResidueTable) Verify() error {
	for _, row := range t.Rows {
		if err := residue.Verify(row.Prime, row.Entries, t.Form); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON writes {"73":[[11,23],[18,37]],...}.
func (t ResidueTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:[", row.Prime.String())
		for j, e := range row.Entries {
			if j > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(&buf, "[%d,%s]", e.N, e.Residue.String())
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the form written by MarshalJSON. The form itself is
// not persisted; set Form before calling Verify.
func (t *ResidueTable) UnmarshalJSON(data []byte) error {
	var raw map[string][][]json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	rows := make([]ResidueRow, 0, len(raw))
	for key, pairs := range raw {
		p, ok := new(big.Int).SetString(key, 10)
		if !ok || p.Sign() <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		row := ResidueRow{Prime: p, Entries: make([]residue.Entry, len(pairs))}
		for i, pair := range pairs {
			if len(pair) != 2 {
				return fmt.Errorf("%w: prime %s position %d", ErrMalformedEntry, key, i)
			}
			n, err := pair[0].Int64()
			if err != nil {
				return fmt.Errorf("%w: prime %s position %d: %v", ErrMalformedEntry, key, i, err)
			}
			r, ok := new(big.Int).SetString(pair[1].String(), 10)
			if !ok {
				return fmt.Errorf("%w: prime %s position %d", ErrMalformedEntry, key, i)
			}
			row.Entries[i] = residue.Entry{N: int(n), Residue: r}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Prime.Cmp(rows[j].Prime) < 0 })
	t.Rows = rows
	return nil
}

// LadderList is the flat ascending list of ladder primes handed to
// curve lookups.
type LadderList []*big.Int

// NewLadderList lists the primes of m.
func NewLadderList(m *detect.LadderMap) LadderList {
	return LadderList(m.Primes())
}
