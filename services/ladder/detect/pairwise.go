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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/PrimeLadder/services/ladder/factor"
	"github.com/AleutianAI/PrimeLadder/services/ladder/numerator"
)

// PairwiseOptions configures PairwiseGCD.
type PairwiseOptions struct {
	// Workers is the pool size. Zero means GOMAXPROCS.
	Workers int

	// Factorizer factors gcd values. Nil uses a Factorizer with the default
	// budget and a fresh cache.
	Factorizer *factor.Factorizer

	// Logger receives per-run and per-failure records. Nil uses slog.Default().
	Logger *slog.Logger
}

func (o PairwiseOptions) withDefaults() PairwiseOptions {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Factorizer == nil {
		o.Factorizer = factor.New(factor.DefaultBudget(), factor.NewCache(0))
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// PairwiseGCD finds ladder primes from exact normalized numerators.
//
// Description:
//
//	For every pair i < j the gcd g = gcd(M_i, M_j) is computed; when g > 1
//	each prime factor of g is credited with both i and j. Rows of the pair
//	triangle are dealt round-robin to workers so that long and short rows
//	balance out.
//
// Inputs:
//   - ctx: Checked between pairs. Cancellation sets Result.Truncated; rows
//     in flight are discarded.
//   - values: Normalized numerators. Duplicate indices are rejected.
//   - opts: Pool and factorization settings.
//
// Outputs:
//   - *Result: Ladders keyed by prime. A gcd whose factorization ran out of
//     budget still credits the primes found and adds a factorization_budget
//     diagnostic. M_n = 0 is skipped with a zero_numerator diagnostic.
//   - error: ErrInvalidOptions for duplicate indices. Nil otherwise.
//
// Thread Safety: Safe for concurrent use; values are only read.
func PairwiseGCD(ctx context.Context, values []numerator.Value, opts PairwiseOptions) (*Result, error) {
	opts = opts.withDefaults()

	ctx, span := tracer.Start(ctx, "detect.PairwiseGCD",
		trace.WithAttributes(
			attribute.Int("values", len(values)),
			attribute.Int("workers", opts.Workers),
		),
	)
	defer span.End()

	res := newResult()
	live := make([]numerator.Value, 0, len(values))
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		if seen[v.N] {
			err := fmt.Errorf("%w: duplicate index %d", ErrInvalidOptions, v.N)
			span.RecordError(err)
			span.SetStatus(codes.Error, "duplicate index")
			return nil, err
		}
		seen[v.N] = true
		if v.M == nil || v.M.Sign() == 0 {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Kind:    KindZeroNumerator,
				Indices: []int{v.N},
				Detail:  "M_n is zero and carries no divisibility information",
			})
			continue
		}
		live = append(live, v)
	}
	res.Stats.Candidates = len(live)

	workers := min(opts.Workers, max(len(live)-1, 1))
	partials := make([]*Result, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			part := newResult()
			partials[w] = part
			for i := w; i < len(live)-1; i += workers {
				if gctx.Err() != nil {
					part.Truncated = true
					return nil
				}
				row := newResult()
				if !pairRow(gctx, live, i, opts.Factorizer, opts.Logger, row) {
					part.Truncated = true
					return nil
				}
				part.merge(row)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, part := range partials {
		if part != nil {
			res.merge(part)
		}
	}
	if ctx.Err() != nil {
		res.Truncated = true
	}
	sortDiagnostics(res.Diagnostics)

	span.SetAttributes(
		attribute.Int("ladders", res.Ladders.Len()),
		attribute.Int("pairs", res.Stats.Pairs),
		attribute.Bool("truncated", res.Truncated),
	)
	recordRunMetrics(ctx, "pairwise", res)

	opts.Logger.Info("pairwise gcd complete",
		slog.Int("values", len(live)),
		slog.Int("pairs", res.Stats.Pairs),
		slog.Int("ladders", res.Ladders.Len()),
		slog.Int("diagnostics", len(res.Diagnostics)),
		slog.Bool("truncated", res.Truncated),
	)
	return res, nil
}

// pairRow processes pairs (i, j) for all j > i into row. It returns false
// when the context was cancelled before the row finished.
func pairRow(ctx context.Context, live []numerator.Value, i int, f *factor.Factorizer, logger *slog.Logger, row *Result) bool {
	one := big.NewInt(1)
	g := new(big.Int)
	for j := i + 1; j < len(live); j++ {
		if ctx.Err() != nil {
			return false
		}
		a, b := live[i], live[j]
		row.Stats.Pairs++
		g.GCD(nil, nil, a.M, b.M)
		if g.Cmp(one) <= 0 {
			continue
		}
		row.Stats.PairsWithCommon++

		fz, err := f.Factor(ctx, g)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			var be *factor.BudgetError
			if !errors.As(err, &be) {
				be = &factor.BudgetError{Value: new(big.Int).Set(g), Residual: new(big.Int).Set(g), Reason: err}
			}
			row.Diagnostics = append(row.Diagnostics, Diagnostic{
				Kind:    KindFactorizationBudget,
				Indices: []int{a.N, b.N},
				Detail:  be.Error(),
			})
			logger.Warn("gcd factorization incomplete",
				slog.Int("i", a.N),
				slog.Int("j", b.N),
				slog.Int("residual_bits", be.Residual.BitLen()),
				slog.String("error", be.Reason.Error()),
			)
		}
		for _, p := range fz.Primes {
			row.Ladders.Add(p, a.N, b.N)
		}
	}
	return true
}
