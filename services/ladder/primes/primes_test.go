// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package primes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSieve(t *testing.T) {
	assert.Nil(t, Sieve(1))
	assert.Equal(t, []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}, Sieve(30))
	assert.Len(t, Sieve(10000), 1229)
}

func TestRange_MatchesSieve(t *testing.T) {
	all := Sieve(300000)
	tests := []struct{ lo, hi uint64 }{
		{0, 100},
		{2, 2},
		{14, 16},
		{73, 73},
		{1000, 300000},
		{150001, 150001},
	}
	for _, tt := range tests {
		got, err := Range(context.Background(), tt.lo, tt.hi)
		require.NoError(t, err)

		var want []uint64
		for _, p := range all {
			if p >= tt.lo && p <= tt.hi {
				want = append(want, p)
			}
		}
		assert.Equal(t, want, got, "[%d, %d]", tt.lo, tt.hi)
	}
}

func TestRange_Invalid(t *testing.T) {
	_, err := Range(context.Background(), 10, 5)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestIsPrime(t *testing.T) {
	assert.True(t, IsPrime(73))
	assert.False(t, IsPrime(91))
	assert.False(t, IsPrime(1))
	assert.True(t, IsPrime(9223372036854775783))
}

func TestQueue_CopiesInput(t *testing.T) {
	in := []uint64{2, 3, 5, 7}
	q := NewQueue(in)
	in[0] = 11

	assert.Equal(t, 4, q.Len())
	got := q.Primes()
	assert.Equal(t, []uint64{2, 3, 5, 7}, got)
	got[1] = 13
	assert.Equal(t, []uint64{2, 3, 5, 7}, q.Primes())
}
