// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package residue classifies ladder primes and their indices by
// congruence class.
//
// Everything here is a pure function of its arguments. Inputs are never
// mutated and results are freshly allocated.
package residue

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/AleutianAI/PrimeLadder/services/ladder/recurrence"
)

// Sentinel errors for residue classification.
var (
	// ErrInvalidModulus is returned for a modulus below 1.
	ErrInvalidModulus = errors.New("modulus must be positive")

	// ErrMismatch is returned by Verify when a stored residue is wrong.
	ErrMismatch = errors.New("residue mismatch")
)

// DefaultModuli are the secondary classifications of a ladder prime.
var DefaultModuli = []int64{4, 8, 60}

// CubicModuli add the classes used when correlating the s=3 family.
var CubicModuli = []int64{3, 4, 6, 8, 60}

// Form is the linear form k*n + r whose value mod p is an index's residue.
type Form struct {
	K int64
	R int64
}

// Canonical is 2n + 1, the form of alpha = 1/2.
var Canonical = Form{K: 2, R: 1}

// FormOf returns the form q*n + a of a family with alpha = a/q.
func FormOf(f recurrence.Family) Form {
	k, r := f.ResidueForm()
	return Form{K: k, R: r}
}

// Of returns (K*n + R) mod p in [0, p).
func (f Form) Of(n int, p *big.Int) *big.Int {
	v := big.NewInt(f.K)
	v.Mul(v, big.NewInt(int64(n)))
	v.Add(v, big.NewInt(f.R))
	return v.Mod(v, p)
}

func (f Form) String() string {
	return fmt.Sprintf("%dn+%d", f.K, f.R)
}

// Entry is one (index, residue) pair.
type Entry struct {
	N       int
	Residue *big.Int
}

// Table returns the residues of indices for prime p, in the order given.
func Table(p *big.Int, indices []int, form Form) []Entry {
	out := make([]Entry, len(indices))
	for i, n := range indices {
		out[i] = Entry{N: n, Residue: form.Of(n, p)}
	}
	return out
}

// Verify recomputes every residue of a table and reports the first entry
// that does not match.
func Verify(p *big.Int, table []Entry, form Form) error {
	for _, e := range table {
		want := form.Of(e.N, p)
		if e.Residue == nil || want.Cmp(e.Residue) != 0 {
			return fmt.Errorf("%w: p=%s n=%d stored %v, %s gives %s", ErrMismatch, p, e.N, e.Residue, form, want)
		}
	}
	return nil
}

// PrimeResidues returns p mod m for each modulus, keyed by modulus. With
// no moduli DefaultModuli is used.
func PrimeResidues(p *big.Int, moduli ...int64) (map[int64]int64, error) {
	if len(moduli) == 0 {
		moduli = DefaultModuli
	}
	out := make(map[int64]int64, len(moduli))
	r := new(big.Int)
	for _, m := range moduli {
		if m < 1 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidModulus, m)
		}
		out[m] = r.Mod(p, big.NewInt(m)).Int64()
	}
	return out, nil
}

// GroupByClass buckets primes by p mod m. Each bucket is ascending.
func GroupByClass(primes []*big.Int, m int64) (map[int64][]*big.Int, error) {
	if m < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidModulus, m)
	}
	mod := big.NewInt(m)
	out := make(map[int64][]*big.Int)
	for _, p := range primes {
		c := new(big.Int).Mod(p, mod).Int64()
		out[c] = append(out[c], new(big.Int).Set(p))
	}
	for _, bucket := range out {
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].Cmp(bucket[j]) < 0 })
	}
	return out, nil
}

// Split is the partition of primes by p = 1 mod k.
type Split struct {
	K     int64
	Split []*big.Int
	Inert []*big.Int
}

// Fraction returns the share of split primes, or 0 for an empty input.
func (s Split) Fraction() float64 {
	total := len(s.Split) + len(s.Inert)
	if total == 0 {
		return 0
	}
	return float64(len(s.Split)) / float64(total)
}

// SplitLaw partitions primes into p = 1 mod k and the rest.
func SplitLaw(primes []*big.Int, k int64) (Split, error) {
	groups, err := GroupByClass(primes, k)
	if err != nil {
		return Split{}, err
	}
	out := Split{K: k}
	for class, bucket := range groups {
		if class == 1%k {
			out.Split = append(out.Split, bucket...)
		} else {
			out.Inert = append(out.Inert, bucket...)
		}
	}
	sort.Slice(out.Inert, func(i, j int) bool { return out.Inert[i].Cmp(out.Inert[j]) < 0 })
	return out, nil
}
