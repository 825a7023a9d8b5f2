// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package primes enumerates candidate primes for ladder scans.
//
// Ranges are produced with a segmented sieve of Eratosthenes, so memory
// stays proportional to sqrt(hi) plus the segment size regardless of how
// wide the range is.
package primes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
)

// segmentSize is the number of odd candidates sieved per segment.
const segmentSize = 1 << 16

// ErrInvalidRange is returned when lo > hi.
var ErrInvalidRange = errors.New("invalid prime range")

// Sieve returns all primes <= limit in ascending order.
func Sieve(limit uint64) []uint64 {
	if limit < 2 {
		return nil
	}
	composite := make([]bool, limit+1)
	out := []uint64{2}
	for i := uint64(3); i <= limit; i += 2 {
		if composite[i] {
			continue
		}
		out = append(out, i)
		for j := i * i; j <= limit; j += 2 * i {
			composite[j] = true
		}
	}
	return out
}

// Range returns all primes p with lo <= p <= hi in ascending order.
func Range(ctx context.Context, lo, hi uint64) ([]uint64, error) {
	if lo > hi {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, lo, hi)
	}
	if hi < 2 {
		return nil, nil
	}
	base := Sieve(uint64(math.Sqrt(float64(hi))) + 1)

	var out []uint64
	if lo <= 2 {
		out = append(out, 2)
		lo = 3
	}
	if lo%2 == 0 {
		lo++
	}
	for segLo := lo; segLo <= hi; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Odd candidates segLo, segLo+2, ..., up to segHi.
		segHi := hi
		if span := uint64(2 * (segmentSize - 1)); hi-segLo > span {
			segHi = segLo + span
		}
		count := (segHi-segLo)/2 + 1
		composite := make([]bool, count)
		for _, p := range base[1:] {
			if p*p > segHi {
				break
			}
			start := max(p*p, (segLo+p-1)/p*p)
			if start%2 == 0 {
				start += p
			}
			for m := start; m <= segHi; m += 2 * p {
				composite[(m-segLo)/2] = true
			}
		}
		for i, c := range composite {
			v := segLo + 2*uint64(i)
			if !c && v > 1 {
				out = append(out, v)
			}
		}
		if segHi == hi || segHi+2 < segHi {
			break
		}
		segLo = segHi + 2
	}
	return out, nil
}

// IsPrime reports whether n is prime. Exact for every uint64.
func IsPrime(n uint64) bool {
	return new(big.Int).SetUint64(n).ProbablyPrime(0)
}
