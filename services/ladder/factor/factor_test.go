// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package factor

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigs(vals ...string) []*big.Int {
	out := make([]*big.Int, len(vals))
	for i, v := range vals {
		out[i], _ = new(big.Int).SetString(v, 10)
	}
	return out
}

func assertPrimes(t *testing.T, want []*big.Int, got Factorization) {
	t.Helper()
	require.Len(t, got.Primes, len(want))
	for i := range want {
		assert.Equal(t, 0, want[i].Cmp(got.Primes[i]), "prime %d: want %s got %s", i, want[i], got.Primes[i])
	}
}

func TestFactor_Small(t *testing.T) {
	f := New(DefaultBudget(), nil)

	res, err := f.Factor(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Empty(t, res.Primes)

	res, err = f.Factor(context.Background(), big.NewInt(-2*2*3*73*73*101))
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assertPrimes(t, bigs("2", "3", "73", "101"), res)
}

func TestFactor_Rho(t *testing.T) {
	f := New(DefaultBudget(), nil)

	// 2^64 + 1 = 274177 * 67280421310721, both above the trial limit.
	n := new(big.Int).Lsh(big.NewInt(1), 64)
	n.Add(n, big.NewInt(1))
	res, err := f.Factor(context.Background(), n)
	require.NoError(t, err)
	assertPrimes(t, bigs("274177", "67280421310721"), res)

	n = new(big.Int).Mul(big.NewInt(1000000007), big.NewInt(998244353))
	n.Mul(n, big.NewInt(7))
	res, err = f.Factor(context.Background(), n)
	require.NoError(t, err)
	assertPrimes(t, bigs("7", "998244353", "1000000007"), res)
}

func TestFactor_LargePrimeCofactor(t *testing.T) {
	f := New(DefaultBudget(), nil)
	// 2^127 - 1 is prime.
	m := new(big.Int).Lsh(big.NewInt(1), 127)
	m.Sub(m, big.NewInt(1))
	n := new(big.Int).Mul(m, big.NewInt(6))

	res, err := f.Factor(context.Background(), n)
	require.NoError(t, err)
	require.Len(t, res.Primes, 3)
	assert.Equal(t, 0, res.Primes[2].Cmp(m))
}

func TestFactor_TooLarge(t *testing.T) {
	f := New(Budget{MaxBits: 32}, nil)
	n := new(big.Int).Mul(big.NewInt(1000000007), big.NewInt(998244353))
	n.Mul(n, big.NewInt(5))

	res, err := f.Factor(context.Background(), n)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, res.Complete)
	assertPrimes(t, bigs("5"), res)

	var berr *BudgetError
	require.ErrorAs(t, err, &berr)
	want := new(big.Int).Mul(big.NewInt(1000000007), big.NewInt(998244353))
	assert.Equal(t, 0, want.Cmp(berr.Residual))
}

func TestFactor_IterationBudget(t *testing.T) {
	f := New(Budget{MaxIterations: 10, MaxAttempts: 1}, nil)
	n := new(big.Int).Mul(big.NewInt(1000000007), big.NewInt(998244353))

	_, err := f.Factor(context.Background(), n)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFactor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := New(DefaultBudget(), nil)
	n := new(big.Int).Mul(big.NewInt(1000000007), big.NewInt(998244353))

	_, err := f.Factor(ctx, n)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFactor_Cache(t *testing.T) {
	cache := NewCache(2)
	f := New(DefaultBudget(), cache)

	for i := 0; i < 3; i++ {
		_, err := f.Factor(context.Background(), big.NewInt(73*73*11))
		require.NoError(t, err)
	}
	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)

	_, _ = f.Factor(context.Background(), big.NewInt(15))
	_, _ = f.Factor(context.Background(), big.NewInt(21))
	stats = cache.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Size)
}

func TestCache_FailuresNotCached(t *testing.T) {
	cache := NewCache(8)
	f := New(Budget{MaxBits: 16}, cache)
	n := new(big.Int).Mul(big.NewInt(1000000007), big.NewInt(998244353))

	_, err := f.Factor(context.Background(), n)
	require.Error(t, err)
	assert.Equal(t, 0, cache.Stats().Size)
}
