// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"math/big"
	"sort"
)

// Kind classifies a recoverable problem recorded during a run.
type Kind string

const (
	// KindInvariantViolation marks a numerator that broke the family's
	// divisibility assumption. The run aborts; its summary carries this
	// single diagnostic so batch callers can record which family failed.
	KindInvariantViolation Kind = "invariant_violation"

	// KindModularPrecondition marks a prime excluded because it divides a
	// denominator needed for reduction.
	KindModularPrecondition Kind = "modular_precondition"

	// KindPrecisionExceeded marks a prime whose safe bound ends before the
	// requested window does. Indices holds the first index left unchecked.
	KindPrecisionExceeded Kind = "precision_exceeded"

	// KindFactorizationBudget marks a gcd whose factorization did not finish.
	KindFactorizationBudget Kind = "factorization_budget"

	// KindZeroNumerator marks an index whose M_n is 0 and so carries no
	// divisibility information.
	KindZeroNumerator Kind = "zero_numerator"
)

// Diagnostic is one skipped unit of work.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Prime   string `json:"prime,omitempty"`
	Indices []int  `json:"indices,omitempty"`
	Detail  string `json:"detail"`
}

// Stats summarizes the work done by a detector run.
type Stats struct {
	Candidates      int `json:"candidates"`
	Scanned         int `json:"scanned"`
	Excluded        int `json:"excluded"`
	SkippedWindow   int `json:"skipped_window"`
	Pairs           int `json:"pairs"`
	PairsWithCommon int `json:"pairs_with_common_factor"`
}

func (s *Stats) add(o Stats) {
	s.Candidates += o.Candidates
	s.Scanned += o.Scanned
	s.Excluded += o.Excluded
	s.SkippedWindow += o.SkippedWindow
	s.Pairs += o.Pairs
	s.PairsWithCommon += o.PairsWithCommon
}

// Result is the output of either detection strategy.
type Result struct {
	// Ladders maps each ladder prime to its ascending index list.
	Ladders *LadderMap

	// Diagnostics lists skipped primes and pairs, sorted for stable output.
	Diagnostics []Diagnostic

	// Truncated is set when the run was cancelled before all work finished.
	// Units in flight at cancellation are dropped, never partially reported.
	Truncated bool

	Stats Stats
}

func newResult() *Result {
	return &Result{Ladders: NewLadderMap()}
}

// merge folds a worker's partial result into r.
func (r *Result) merge(o *Result) {
	r.Ladders.Merge(o.Ladders)
	r.Diagnostics = append(r.Diagnostics, o.Diagnostics...)
	r.Truncated = r.Truncated || o.Truncated
	r.Stats.add(o.Stats)
}

// sortDiagnostics orders by kind, then numeric prime, then first index.
func sortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Prime != b.Prime {
			return comparePrimeKeys(a.Prime, b.Prime) < 0
		}
		ai, bi := firstOr(a.Indices), firstOr(b.Indices)
		if ai != bi {
			return ai < bi
		}
		return secondOr(a.Indices) < secondOr(b.Indices)
	})
}

func comparePrimeKeys(a, b string) int {
	x, okx := new(big.Int).SetString(a, 10)
	y, oky := new(big.Int).SetString(b, 10)
	if !okx || !oky {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	return x.Cmp(y)
}

func firstOr(v []int) int {
	if len(v) == 0 {
		return -1
	}
	return v[0]
}

func secondOr(v []int) int {
	if len(v) < 2 {
		return -1
	}
	return v[1]
}
