// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package residue

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PrimeLadder/services/ladder/recurrence"
)

func ints(vs ...int64) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestTable_Prime73(t *testing.T) {
	p := big.NewInt(73)
	table := Table(p, []int{11, 18}, Canonical)
	require.Len(t, table, 2)
	assert.Equal(t, 11, table[0].N)
	assert.Equal(t, int64(23), table[0].Residue.Int64())
	assert.Equal(t, 18, table[1].N)
	assert.Equal(t, int64(37), table[1].Residue.Int64())

	require.NoError(t, Verify(p, table, Canonical))
}

func TestTable_WrapsModP(t *testing.T) {
	// 2*40+1 = 81 = 8 mod 73.
	table := Table(big.NewInt(73), []int{40}, Canonical)
	assert.Equal(t, int64(8), table[0].Residue.Int64())
}

func TestVerify_DetectsMismatch(t *testing.T) {
	p := big.NewInt(103)
	table := Table(p, []int{37, 42}, Canonical)
	table[1].Residue = big.NewInt(1)
	assert.ErrorIs(t, Verify(p, table, Canonical), ErrMismatch)
}

func TestFormOf(t *testing.T) {
	assert.Equal(t, Canonical, FormOf(recurrence.Canonical()))
	assert.Equal(t, Form{K: 5, R: 1}, FormOf(recurrence.Reciprocal(5)))
	assert.Equal(t, "2n+1", Canonical.String())
}

func TestTable_DoesNotMutateInput(t *testing.T) {
	indices := []int{18, 11}
	Table(big.NewInt(73), indices, Canonical)
	assert.Equal(t, []int{18, 11}, indices)
}

func TestPrimeResidues(t *testing.T) {
	got, err := PrimeResidues(big.NewInt(199))
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{4: 3, 8: 7, 60: 19}, got)

	got, err = PrimeResidues(big.NewInt(73), 3, 6)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{3: 1, 6: 1}, got)

	_, err = PrimeResidues(big.NewInt(73), 0)
	assert.ErrorIs(t, err, ErrInvalidModulus)
}

func TestGroupByClass(t *testing.T) {
	groups, err := GroupByClass(ints(199, 73, 103, 107, 5), 4)
	require.NoError(t, err)
	assert.Equal(t, ints(5, 73), groups[1])
	assert.Equal(t, ints(103, 107, 199), groups[3])
}

func TestSplitLaw(t *testing.T) {
	s, err := SplitLaw(ints(7, 11, 13, 31, 41, 43), 5)
	require.NoError(t, err)
	assert.Equal(t, ints(11, 31, 41), s.Split)
	assert.Equal(t, ints(7, 13, 43), s.Inert)
	assert.InDelta(t, 0.5, s.Fraction(), 1e-12)

	assert.Zero(t, Split{}.Fraction())
	_, err = SplitLaw(nil, 0)
	assert.ErrorIs(t, err, ErrInvalidModulus)
}
