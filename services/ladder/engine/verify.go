// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"

	"github.com/AleutianAI/PrimeLadder/services/ladder/detect"
	"github.com/AleutianAI/PrimeLadder/services/ladder/report"
	"github.com/AleutianAI/PrimeLadder/services/ladder/residue"
)

// ErrEmptyRange is returned when no prime in the scan range can be
// compared across modes.
var ErrEmptyRange = errors.New("no comparable primes in range")

// Agreement compares the two detector strategies on one window.
type Agreement struct {
	PrimeLo uint64 `json:"prime_lo"`
	PrimeHi uint64 `json:"prime_hi"`
	StartN  int    `json:"start_n"`
	EndN    int    `json:"end_n"`

	Pairwise report.PrimeIndexMap `json:"pairwise"`
	Direct   report.PrimeIndexMap `json:"direct"`

	// OnlyPairwise and OnlyDirect list primes reported by one side only;
	// Mismatched lists primes whose index lists differ.
	OnlyPairwise []string `json:"only_pairwise"`
	OnlyDirect   []string `json:"only_direct"`
	Mismatched   []string `json:"mismatched"`

	Agree       bool                `json:"agree"`
	Diagnostics []detect.Diagnostic `json:"diagnostics"`
}

// ComparableFloor returns the smallest prime bound for which exact and
// modular results must coincide: above every denominator q j + a with
// j <= n and above the denominators of b_0 and the scale.
func (e *Engine) ComparableFloor(n int) uint64 {
	a, q := e.family.AlphaParts()
	floor := new(big.Int).Mul(big.NewInt(q), big.NewInt(int64(n)))
	floor.Add(floor, big.NewInt(a+1))
	for _, den := range []*big.Int{e.family.InitialTerm().Den(), e.family.ScaleFactor().Den()} {
		if den.Cmp(floor) >= 0 {
			floor = new(big.Int).Add(den, big.NewInt(1))
		}
	}
	if !floor.IsUint64() {
		return ^uint64(0)
	}
	return floor.Uint64()
}

// Verify runs both strategies on [MinIndex, Exact.N] and compares the
// ladders for primes in [max(Scan.PrimeLo, floor), Scan.PrimeHi].
func (e *Engine) Verify(ctx context.Context) (*Agreement, error) {
	ctx, span, run, logger := e.startRun(ctx, "verify")
	agreement, err := e.verify(ctx, logger)
	if err != nil {
		_, err = finishRun(span, run, logger, nil, err)
		return nil, err
	}
	merged := &detect.Result{Ladders: agreement.Direct.Ladders(), Diagnostics: agreement.Diagnostics}
	if _, err := finishRun(span, run, logger, merged, nil); err != nil {
		return nil, err
	}
	return agreement, nil
}

func (e *Engine) verify(ctx context.Context, logger *slog.Logger) (*Agreement, error) {
	startN, endN := e.cfg.Exact.MinIndex, e.cfg.Exact.N
	lo := max(e.cfg.Scan.PrimeLo, e.ComparableFloor(endN))
	hi := e.cfg.Scan.PrimeHi
	if hi < lo {
		return nil, fmt.Errorf("%w: [%d, %d] lies below %d", ErrEmptyRange, e.cfg.Scan.PrimeLo, hi, lo)
	}

	pair, err := e.exact(ctx, logger)
	if err != nil {
		return nil, err
	}
	// No prior evidence: it would let the scan confirm primes the exact
	// window cannot see.
	direct, err := e.scan(ctx, lo, hi, startN, endN, nil, logger)
	if err != nil {
		return nil, err
	}
	if pair.Truncated || direct.Truncated {
		return nil, ctx.Err()
	}

	p := pair.Ladders.Restrict(lo, hi, startN, endN, 2)
	d := direct.Ladders.Restrict(lo, hi, startN, endN, 2)
	agreement := &Agreement{
		PrimeLo:      lo,
		PrimeHi:      hi,
		StartN:       startN,
		EndN:         endN,
		Pairwise:     report.NewPrimeIndexMap(p),
		Direct:       report.NewPrimeIndexMap(d),
		OnlyPairwise: []string{},
		OnlyDirect:   []string{},
		Mismatched:   []string{},
		Diagnostics:  append(append([]detect.Diagnostic{}, pair.Diagnostics...), direct.Diagnostics...),
	}

	ps, ds := p.Strings(), d.Strings()
	for key, idx := range ps {
		other, ok := ds[key]
		switch {
		case !ok:
			agreement.OnlyPairwise = append(agreement.OnlyPairwise, key)
		case !equalInts(idx, other):
			agreement.Mismatched = append(agreement.Mismatched, key)
		}
	}
	for key := range ds {
		if _, ok := ps[key]; !ok {
			agreement.OnlyDirect = append(agreement.OnlyDirect, key)
		}
	}
	for _, list := range [][]string{agreement.OnlyPairwise, agreement.OnlyDirect, agreement.Mismatched} {
		sortNumeric(list)
	}
	agreement.Agree = len(agreement.OnlyPairwise) == 0 && len(agreement.OnlyDirect) == 0 && len(agreement.Mismatched) == 0

	logger.Info("cross-mode comparison",
		slog.Uint64("prime_lo", lo),
		slog.Uint64("prime_hi", hi),
		slog.Int("ladders", d.Len()),
		slog.Bool("agree", agreement.Agree),
	)
	return agreement, nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortNumeric(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
}

// Classification is the residue view of a ladder map.
type Classification struct {
	Form         string                       `json:"form"`
	Residues     report.ResidueTable          `json:"residues"`
	PrimeClasses map[string]map[int64]int64   `json:"prime_classes"`
	Groups       map[int64]map[int64][]string `json:"groups"`
	Split        *SplitSummary                `json:"split,omitempty"`
}

// SplitSummary is the p = 1 mod k partition of the ladder primes.
type SplitSummary struct {
	K        int64    `json:"k"`
	Split    []string `json:"split"`
	Inert    []string `json:"inert"`
	Fraction float64  `json:"fraction"`
}

// Classify computes residues of every (prime, index) pair under form, the
// classes of each prime modulo moduli (DefaultModuli when empty), and,
// for splitK > 1, the split/inert partition.
func Classify(m *detect.LadderMap, form residue.Form, moduli []int64, splitK int64) (*Classification, error) {
	if len(moduli) == 0 {
		moduli = residue.DefaultModuli
	}
	primes := m.Primes()
	out := &Classification{
		Form:         form.String(),
		Residues:     report.BuildResidueTable(m, form),
		PrimeClasses: make(map[string]map[int64]int64, len(primes)),
		Groups:       make(map[int64]map[int64][]string, len(moduli)),
	}
	for _, p := range primes {
		classes, err := residue.PrimeResidues(p, moduli...)
		if err != nil {
			return nil, err
		}
		out.PrimeClasses[p.String()] = classes
	}
	for _, mod := range moduli {
		groups, err := residue.GroupByClass(primes, mod)
		if err != nil {
			return nil, err
		}
		byClass := make(map[int64][]string, len(groups))
		for class, bucket := range groups {
			byClass[class] = decimal(bucket)
		}
		out.Groups[mod] = byClass
	}
	if splitK > 1 {
		split, err := residue.SplitLaw(primes, splitK)
		if err != nil {
			return nil, err
		}
		out.Split = &SplitSummary{
			K:        splitK,
			Split:    decimal(split.Split),
			Inert:    decimal(split.Inert),
			Fraction: split.Fraction(),
		}
	}
	return out, nil
}

// Classify classifies m with the engine's residue form. The split law is
// evaluated for k = q, the denominator of alpha, when q > 2.
func (e *Engine) Classify(m *detect.LadderMap, moduli []int64) (*Classification, error) {
	_, q := e.family.AlphaParts()
	var k int64
	if q > 2 {
		k = q
	}
	return Classify(m, e.form, moduli, k)
}

func decimal(vs []*big.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
