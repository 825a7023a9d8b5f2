// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detect finds ladder primes: primes that divide the normalized
// numerator M_n (or are zeros of b_n mod p) at two or more indices n.
//
// Two strategies share one output contract, a LadderMap from prime to the
// ascending, deduplicated index list:
//
//   - PairwiseGCD works on exact numerators. Every pair (M_i, M_j) is
//     reduced to g = gcd(M_i, M_j) and the primes of g are credited with
//     both indices.
//   - DirectScan works prime by prime. Each candidate's modular sequence is
//     computed and its zeros inside the safe window are collected; a prime
//     is kept when the combined evidence shows at least two zeros.
//
// Both strategies fan out over an errgroup worker pool. Workers build
// private maps which are merged by key after the pool drains, so no shared
// mutable state exists while work is in flight.
//
// Recoverable problems (excluded primes, exhausted factorization budgets)
// are returned as Diagnostics next to the result. Only invariant violations
// and infrastructure failures are returned as errors.
package detect

import (
	"errors"
	"math/big"
	"sort"
	"strconv"
)

// Sentinel errors for detection.
var (
	// ErrInvalidOptions is returned when scan options are inconsistent.
	ErrInvalidOptions = errors.New("invalid detector options")
)

// Ladder is one ladder prime with its ascending index list.
type Ladder struct {
	Prime   *big.Int
	Indices []int
}

type ladderEntry struct {
	prime   *big.Int
	indices []int
}

// LadderMap maps primes to ascending, deduplicated index lists.
//
// The zero value is not usable; create maps with NewLadderMap.
//
// Thread Safety: Not safe for concurrent mutation. Detector workers each
// own a map and results are merged after the workers finish.
type LadderMap struct {
	entries map[string]*ladderEntry
}

// NewLadderMap returns an empty map.
func NewLadderMap() *LadderMap {
	return &LadderMap{entries: make(map[string]*ladderEntry)}
}

// Add records indices for prime p.
func (m *LadderMap) Add(p *big.Int, indices ...int) {
	key := p.String()
	e, ok := m.entries[key]
	if !ok {
		e = &ladderEntry{prime: new(big.Int).Set(p)}
		m.entries[key] = e
	}
	e.indices = mergeSorted(e.indices, indices)
}

// AddUint records indices for a machine-sized prime.
func (m *LadderMap) AddUint(p uint64, indices ...int) {
	m.Add(new(big.Int).SetUint64(p), indices...)
}

// Merge unions other into m, key by key.
func (m *LadderMap) Merge(other *LadderMap) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		m.Add(e.prime, e.indices...)
	}
}

// Len returns the number of primes.
func (m *LadderMap) Len() int { return len(m.entries) }

// Indices returns a copy of the index list of p, or nil.
func (m *LadderMap) Indices(p *big.Int) []int {
	e, ok := m.entries[p.String()]
	if !ok {
		return nil
	}
	return append([]int(nil), e.indices...)
}

// IndicesUint is Indices for a machine-sized prime.
func (m *LadderMap) IndicesUint(p uint64) []int {
	return m.Indices(new(big.Int).SetUint64(p))
}

// Ladders returns every entry in ascending prime order.
func (m *LadderMap) Ladders() []Ladder {
	out := make([]Ladder, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, Ladder{Prime: new(big.Int).Set(e.prime), Indices: append([]int(nil), e.indices...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prime.Cmp(out[j].Prime) < 0 })
	return out
}

// Primes returns the primes in ascending order.
func (m *LadderMap) Primes() []*big.Int {
	ladders := m.Ladders()
	out := make([]*big.Int, len(ladders))
	for i, l := range ladders {
		out[i] = l.Prime
	}
	return out
}

// Restrict returns the entries with lo <= p <= hi and at least minCount
// indices inside [minIndex, maxIndex].
func (m *LadderMap) Restrict(lo, hi uint64, minIndex, maxIndex, minCount int) *LadderMap {
	out := NewLadderMap()
	bLo := new(big.Int).SetUint64(lo)
	bHi := new(big.Int).SetUint64(hi)
	for _, e := range m.entries {
		if e.prime.Cmp(bLo) < 0 || e.prime.Cmp(bHi) > 0 {
			continue
		}
		var kept []int
		for _, n := range e.indices {
			if n >= minIndex && n <= maxIndex {
				kept = append(kept, n)
			}
		}
		if len(kept) >= minCount && len(kept) > 0 {
			out.Add(e.prime, kept...)
		}
	}
	return out
}

// Clone returns a deep copy.
func (m *LadderMap) Clone() *LadderMap {
	out := NewLadderMap()
	out.Merge(m)
	return out
}

// Equal reports whether both maps hold the same primes and index lists.
func (m *LadderMap) Equal(other *LadderMap) bool {
	if m.Len() != other.Len() {
		return false
	}
	for key, e := range m.entries {
		o, ok := other.entries[key]
		if !ok || len(o.indices) != len(e.indices) {
			return false
		}
		for i := range e.indices {
			if e.indices[i] != o.indices[i] {
				return false
			}
		}
	}
	return true
}

// Strings returns the map with decimal string keys, the persisted form.
func (m *LadderMap) Strings() map[string][]int {
	out := make(map[string][]int, len(m.entries))
	for key, e := range m.entries {
		out[key] = append([]int(nil), e.indices...)
	}
	return out
}

// FromStrings rebuilds a map from its persisted form.
func FromStrings(in map[string][]int) (*LadderMap, error) {
	out := NewLadderMap()
	for key, indices := range in {
		p, ok := new(big.Int).SetString(key, 10)
		if !ok || p.Sign() <= 0 {
			return nil, errors.New("invalid prime key " + strconv.Quote(key))
		}
		out.Add(p, indices...)
	}
	return out, nil
}

// mergeSorted returns the sorted, deduplicated union of a (already sorted)
// and b (any order).
func mergeSorted(a, b []int) []int {
	if len(b) == 0 {
		return a
	}
	all := make([]int, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	sort.Ints(all)
	out := all[:0]
	for _, v := range all {
		if len(out) == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
