// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package numerator derives the normalized integers M_n from exact
// coefficients.
//
// For the canonical family the reduced numerator of b_n is even for every
// n >= 2, and M_n = |numerator(b_n)| / 2. The divisor is configurable for
// other families. An indivisible numerator is an invariant violation: the
// structural assumption behind the whole ladder analysis fails, so the
// extractor stops instead of substituting a value.
package numerator

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/AleutianAI/PrimeLadder/services/ladder/recurrence"
)

// DefaultDivisor is the normalization factor of the canonical family.
const DefaultDivisor = 2

// DefaultMinIndex is the first index admitted into ladder analysis.
const DefaultMinIndex = 2

// Sentinel errors for numerator extraction.
var (
	// ErrInvariantViolation is the sentinel behind every *InvariantError.
	ErrInvariantViolation = errors.New("arithmetic invariant violation")

	// ErrInvalidRange is returned when the requested index range is empty or negative.
	ErrInvalidRange = errors.New("invalid index range")

	// ErrDuplicateIndex is returned when a table lists the same n twice.
	ErrDuplicateIndex = errors.New("duplicate index")
)

// InvariantError identifies the index and numerator that broke the
// divisibility assumption.
type InvariantError struct {
	N         int
	Numerator *big.Int
	Divisor   int64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: numerator of b_%d = %s is not divisible by %d",
		ErrInvariantViolation, e.N, e.Numerator, e.Divisor)
}

// Unwrap lets errors.Is match ErrInvariantViolation.
func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// Value is one normalized numerator M_n >= 0.
type Value struct {
	N int
	M *big.Int
}

// Extractor normalizes numerators by a fixed divisor.
type Extractor struct {
	// Divisor is the family-specific factor removed from every numerator.
	// Zero selects DefaultDivisor.
	Divisor int64
}

func (x Extractor) divisor() int64 {
	if x.Divisor == 0 {
		return DefaultDivisor
	}
	return x.Divisor
}

// Extract returns M_n for n in [lo, hi] from an exact sequence.
//
// Outputs:
//   - []Value: ascending by N.
//   - error: *InvariantError on the first indivisible numerator,
//     *recurrence.PrecisionError when hi is beyond the sequence, or
//     ErrInvalidRange.
func (x Extractor) Extract(seq *recurrence.Sequence, lo, hi int) ([]Value, error) {
	if lo < 0 || hi < lo {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, lo, hi)
	}
	if _, err := seq.At(hi); err != nil {
		return nil, err
	}
	out := make([]Value, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		b, _ := seq.At(n)
		m, err := x.Normalize(n, b.Num())
		if err != nil {
			return nil, err
		}
		out = append(out, Value{N: n, M: m})
	}
	return out, nil
}

// Normalize returns |numerator| / divisor, or an *InvariantError.
func (x Extractor) Normalize(n int, numerator *big.Int) (*big.Int, error) {
	div := big.NewInt(x.divisor())
	q, r := new(big.Int).QuoRem(new(big.Int).Abs(numerator), div, new(big.Int))
	if r.Sign() != 0 {
		return nil, &InvariantError{N: n, Numerator: new(big.Int).Set(numerator), Divisor: div.Int64()}
	}
	return q, nil
}

// FromRows normalizes table rows with N >= minIndex, sorted by N.
func (x Extractor) FromRows(rows []Row, minIndex int) ([]Value, error) {
	seen := make(map[int]bool, len(rows))
	out := make([]Value, 0, len(rows))
	for _, row := range rows {
		if row.N < minIndex {
			continue
		}
		if seen[row.N] {
			return nil, fmt.Errorf("%w: n=%d", ErrDuplicateIndex, row.N)
		}
		seen[row.N] = true
		m, err := x.Normalize(row.N, row.Numerator)
		if err != nil {
			return nil, err
		}
		out = append(out, Value{N: row.N, M: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].N < out[j].N })
	return out, nil
}
