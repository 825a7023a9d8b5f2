// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package factor finds the distinct prime factors of arbitrary-precision
// integers under an explicit budget.
//
// Every call returns a typed outcome: a complete Factorization, or the
// primes found so far together with a *BudgetError naming why the rest was
// abandoned (time/iteration budget, or a cofactor too large to attempt).
// Nothing is discarded silently; callers record the failure and move on.
package factor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/AleutianAI/PrimeLadder/services/ladder/primes"
)

// Sentinel errors for factorization.
var (
	// ErrTimeout is returned when the time or iteration budget runs out.
	ErrTimeout = errors.New("factorization budget exhausted")

	// ErrTooLarge is returned when a composite cofactor exceeds MaxBits.
	ErrTooLarge = errors.New("cofactor too large to factor")
)

// BudgetError reports an incomplete factorization.
type BudgetError struct {
	Value    *big.Int
	Residual *big.Int
	Reason   error
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("factor %s: %v (unfactored cofactor has %d bits)",
		abbreviate(e.Value), e.Reason, e.Residual.BitLen())
}

// Unwrap exposes ErrTimeout or ErrTooLarge.
func (e *BudgetError) Unwrap() error { return e.Reason }

// Budget bounds the work spent on one value.
type Budget struct {
	// TrialLimit is the largest trial divisor. Default 1<<16.
	TrialLimit uint64

	// MaxIterations caps polynomial evaluations per rho attempt. Default 1<<20.
	MaxIterations int

	// MaxAttempts is the number of rho polynomials x^2+c tried. Default 8.
	MaxAttempts int

	// MaxBits is the largest composite cofactor rho is attempted on. Default 192.
	MaxBits int

	// Timeout bounds wall time per value. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// DefaultBudget returns the defaults documented on Budget.
func DefaultBudget() Budget {
	return Budget{
		TrialLimit:    1 << 16,
		MaxIterations: 1 << 20,
		MaxAttempts:   8,
		MaxBits:       192,
	}
}

func (b Budget) withDefaults() Budget {
	d := DefaultBudget()
	if b.TrialLimit == 0 {
		b.TrialLimit = d.TrialLimit
	}
	if b.MaxIterations <= 0 {
		b.MaxIterations = d.MaxIterations
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = d.MaxAttempts
	}
	if b.MaxBits <= 0 {
		b.MaxBits = d.MaxBits
	}
	return b
}

// Factorization lists distinct prime factors in ascending order.
//
// Values handed out by a Factorizer may be shared through its cache and
// must be treated as read-only.
type Factorization struct {
	Primes   []*big.Int
	Complete bool
}

// Factorizer factors integers under a Budget with an optional shared cache.
//
// Thread Safety: Safe for concurrent use.
type Factorizer struct {
	budget Budget
	small  []uint64
	cache  *Cache
}

// New creates a Factorizer. A nil cache disables memoization.
func New(budget Budget, cache *Cache) *Factorizer {
	budget = budget.withDefaults()
	return &Factorizer{
		budget: budget,
		small:  primes.Sieve(budget.TrialLimit),
		cache:  cache,
	}
}

// Factor returns the distinct prime factors of |n|.
//
// Outputs:
//   - Factorization: all primes found. Complete is false on error.
//   - error: nil, or a *BudgetError wrapping ErrTimeout / ErrTooLarge.
func (f *Factorizer) Factor(ctx context.Context, n *big.Int) (Factorization, error) {
	value := new(big.Int).Abs(n)
	if value.Cmp(big.NewInt(1)) <= 0 {
		return Factorization{Complete: true}, nil
	}
	key := value.String()
	if f.cache != nil {
		if cached, ok := f.cache.Get(key); ok {
			return cached, nil
		}
	}
	if f.budget.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.budget.Timeout)
		defer cancel()
	}

	found := make(map[string]*big.Int)
	rest := f.trialDivide(value, found)

	pending := []*big.Int{}
	if rest.Cmp(big.NewInt(1)) > 0 {
		pending = append(pending, rest)
	}
	residual := big.NewInt(1)
	var reason error
	for len(pending) > 0 {
		c := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if c.ProbablyPrime(20) {
			found[c.String()] = c
			continue
		}
		if reason != nil {
			residual.Mul(residual, c)
			continue
		}
		if c.BitLen() > f.budget.MaxBits {
			reason = ErrTooLarge
			residual.Mul(residual, c)
			continue
		}
		d, err := f.rho(ctx, c)
		if err != nil {
			reason = err
			residual.Mul(residual, c)
			continue
		}
		pending = append(pending, d, new(big.Int).Quo(c, d))
	}

	result := Factorization{Primes: sortedPrimes(found), Complete: reason == nil}
	if reason != nil {
		return result, &BudgetError{Value: value, Residual: residual, Reason: reason}
	}
	if f.cache != nil {
		f.cache.Put(key, result)
	}
	return result, nil
}

// trialDivide strips every small prime factor of v into found and returns
// the remaining cofactor.
func (f *Factorizer) trialDivide(v *big.Int, found map[string]*big.Int) *big.Int {
	rest := new(big.Int).Set(v)
	q, r := new(big.Int), new(big.Int)
	for _, p := range f.small {
		bp := new(big.Int).SetUint64(p)
		if new(big.Int).Mul(bp, bp).Cmp(rest) > 0 {
			break
		}
		divided := false
		for {
			q.QuoRem(rest, bp, r)
			if r.Sign() != 0 {
				break
			}
			rest.Set(q)
			divided = true
		}
		if divided {
			found[bp.String()] = bp
		}
	}
	return rest
}

// rho finds a non-trivial factor of the odd composite n with Brent's
// variant of Pollard rho.
func (f *Factorizer) rho(ctx context.Context, n *big.Int) (*big.Int, error) {
	if n.Bit(0) == 0 {
		return big.NewInt(2), nil
	}
	for c := int64(1); c <= int64(f.budget.MaxAttempts); c++ {
		d, err := brent(ctx, n, c, f.budget.MaxIterations)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
	}
	return nil, ErrTimeout
}

// brent returns a proper factor of n, nil when the cycle closed without one
// (try another c), or ErrTimeout when the budget runs out.
func brent(ctx context.Context, n *big.Int, c int64, maxIter int) (*big.Int, error) {
	const batch = 128
	one := big.NewInt(1)
	bc := big.NewInt(c)
	next := func(x *big.Int) *big.Int {
		y := new(big.Int).Mul(x, x)
		y.Add(y, bc)
		return y.Mod(y, n)
	}

	y := big.NewInt(2)
	x := new(big.Int)
	ys := new(big.Int)
	q := big.NewInt(1)
	g := big.NewInt(1)
	diff := new(big.Int)
	iter := 0

	for r := 1; g.Cmp(one) == 0; r *= 2 {
		x.Set(y)
		for i := 0; i < r; i++ {
			y = next(y)
		}
		for k := 0; k < r && g.Cmp(one) == 0; k += batch {
			if err := ctx.Err(); err != nil {
				return nil, ErrTimeout
			}
			ys.Set(y)
			for i := 0; i < min(batch, r-k); i++ {
				y = next(y)
				diff.Sub(x, y)
				diff.Abs(diff)
				q.Mul(q, diff)
				q.Mod(q, n)
			}
			g.GCD(nil, nil, q, n)
			iter += min(batch, r-k)
			if iter > maxIter {
				return nil, ErrTimeout
			}
		}
	}

	if g.Cmp(n) == 0 {
		// The batched product hit 0 mod n; replay one step at a time.
		for {
			ys = next(ys)
			diff.Sub(x, ys)
			diff.Abs(diff)
			g.GCD(nil, nil, diff, n)
			if g.Cmp(one) > 0 {
				break
			}
		}
	}
	if g.Cmp(n) == 0 {
		return nil, nil
	}
	return new(big.Int).Set(g), nil
}

func sortedPrimes(found map[string]*big.Int) []*big.Int {
	out := make([]*big.Int, 0, len(found))
	for _, p := range found {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

func abbreviate(v *big.Int) string {
	s := v.String()
	if len(s) <= 24 {
		return s
	}
	return s[:10] + "..." + s[len(s)-10:] + fmt.Sprintf(" (%d digits)", len(s))
}
