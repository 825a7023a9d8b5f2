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
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/PrimeLadder/services/ladder/modular"
	"github.com/AleutianAI/PrimeLadder/services/ladder/primes"
	"github.com/AleutianAI/PrimeLadder/services/ladder/recurrence"
)

// EvidenceSource supplies zero indices found for a prime by earlier runs.
//
// Implementations must be safe for concurrent use; DirectScan queries it
// from every worker.
type EvidenceSource interface {
	// KnownZeros returns the ascending zero indices recorded for the prime
	// under the family id. Unknown primes return (nil, nil).
	KnownZeros(ctx context.Context, familyID string, prime uint64) ([]int, error)
}

// ScanOptions configures DirectScan.
type ScanOptions struct {
	// PrimeLo and PrimeHi bound the candidate primes, inclusive.
	PrimeLo, PrimeHi uint64

	// StartN and EndN bound the target index window, inclusive.
	StartN, EndN int

	// Workers is the pool size. Zero means GOMAXPROCS.
	Workers int

	// Prune stops a prime's scan at the first index where the retention
	// rule holds. The reported index list is then a prefix of the full one.
	Prune bool

	// Prior supplies evidence from earlier windows. May be nil.
	Prior EvidenceSource

	// Inverter computes per-prime sequences when Prune is off. Nil uses
	// modular.NewInverter with the scan's logger.
	Inverter *modular.Inverter

	// Logger receives per-run and per-exclusion records. Nil uses slog.Default().
	Logger *slog.Logger
}

func (o ScanOptions) validate() error {
	if o.PrimeHi < o.PrimeLo {
		return fmt.Errorf("%w: prime range [%d, %d]", ErrInvalidOptions, o.PrimeLo, o.PrimeHi)
	}
	if o.StartN < 0 || o.EndN < o.StartN {
		return fmt.Errorf("%w: index window [%d, %d]", ErrInvalidOptions, o.StartN, o.EndN)
	}
	return nil
}

func (o ScanOptions) withDefaults() ScanOptions {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Inverter == nil {
		o.Inverter = modular.NewInverter(modular.WithLogger(o.Logger))
	}
	return o
}

// DirectScan finds ladder primes by computing b_n mod p prime by prime.
//
// Description:
//
//	For each candidate p the safe bound N_check = SafeBound(family, p, EndN)
//	is computed. Primes with N_check < StartN are skipped. Otherwise the
//	modular sequence B[0..N_check] is computed and its zeros split into
//	earlier evidence (below StartN, from this computation or Prior) and
//	target zeros (StartN..N_check). A prime is retained when it has at
//	least one target zero and either earlier evidence or a second target
//	zero. Its reported indices are the union of both.
//
// Inputs:
//   - ctx: Checked between primes and inside each inversion.
//   - family: The coefficient family.
//   - opts: Ranges, pool size and policies.
//
// Outputs:
//   - *Result: Primes failing the modular precondition are excluded with a
//     modular_precondition diagnostic. On cancellation Truncated is set and
//     primes in flight are dropped.
//   - error: ErrInvalidOptions, recurrence.ErrInvalidFamily, or a failure of
//     the evidence source.
func DirectScan(ctx context.Context, family recurrence.Family, opts ScanOptions) (*Result, error) {
	if err := family.Validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	familyID := family.ID()

	ctx, span := tracer.Start(ctx, "detect.DirectScan",
		trace.WithAttributes(
			attribute.String("family", familyID),
			attribute.Int64("prime_lo", int64(opts.PrimeLo)),
			attribute.Int64("prime_hi", int64(opts.PrimeHi)),
			attribute.Int("start_n", opts.StartN),
			attribute.Int("end_n", opts.EndN),
			attribute.Bool("prune", opts.Prune),
		),
	)
	defer span.End()

	candidates, err := primes.Range(ctx, opts.PrimeLo, opts.PrimeHi)
	if err != nil {
		if ctx.Err() != nil {
			return &Result{Ladders: NewLadderMap(), Truncated: true}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	queue := primes.NewQueue(candidates)

	res := newResult()
	res.Stats.Candidates = queue.Len()
	workers := max(min(opts.Workers, queue.Len()), 1)
	partials := make([]*Result, workers)

	work := make(chan uint64)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(work)
		for _, p := range queue.Primes() {
			select {
			case work <- p:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		part := newResult()
		partials[w] = part
		g.Go(func() error {
			for p := range work {
				if err := scanPrime(gctx, family, familyID, p, opts, part); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, err
	}

	for _, part := range partials {
		res.merge(part)
	}
	if ctx.Err() != nil {
		res.Truncated = true
	}
	sortDiagnostics(res.Diagnostics)

	span.SetAttributes(
		attribute.Int("candidates", res.Stats.Candidates),
		attribute.Int("ladders", res.Ladders.Len()),
		attribute.Bool("truncated", res.Truncated),
	)
	recordRunMetrics(ctx, "direct", res)

	opts.Logger.Info("direct scan complete",
		slog.String("family", familyID),
		slog.Int("candidates", res.Stats.Candidates),
		slog.Int("scanned", res.Stats.Scanned),
		slog.Int("excluded", res.Stats.Excluded),
		slog.Int("ladders", res.Ladders.Len()),
		slog.Bool("truncated", res.Truncated),
	)
	return res, nil
}

// scanPrime handles one candidate. Only evidence-source failures are
// returned; cancellation marks part as truncated.
func scanPrime(ctx context.Context, family recurrence.Family, familyID string, p uint64, opts ScanOptions, part *Result) error {
	if ctx.Err() != nil {
		part.Truncated = true
		return nil
	}
	nCheck := modular.SafeBound(family, p, opts.EndN)
	if nCheck < opts.StartN {
		part.Stats.SkippedWindow++
		part.Diagnostics = append(part.Diagnostics, precisionDiagnostic(p, nCheck, opts.EndN))
		return nil
	}

	var prior []int
	if opts.Prior != nil {
		known, err := opts.Prior.KnownZeros(ctx, familyID, p)
		if err != nil {
			if ctx.Err() != nil {
				part.Truncated = true
				return nil
			}
			return fmt.Errorf("prior evidence for p=%d: %w", p, err)
		}
		for _, n := range known {
			if n < opts.StartN {
				prior = append(prior, n)
			}
		}
	}

	start := time.Now()
	var zeros []int
	var err error
	if opts.Prune {
		zeros, err = pruneZeros(ctx, family, p, nCheck, opts.StartN, len(prior) > 0)
	} else {
		var seq *modular.Sequence
		seq, err = opts.Inverter.Compute(ctx, family, p, nCheck)
		if err == nil {
			zeros = seq.Zeros(0)
		}
	}
	if err != nil {
		var pe *modular.PreconditionError
		switch {
		case errors.As(err, &pe):
			part.Stats.Excluded++
			part.Diagnostics = append(part.Diagnostics, Diagnostic{
				Kind:    KindModularPrecondition,
				Prime:   fmt.Sprintf("%d", p),
				Indices: indexOf(pe.Index),
				Detail:  "prime excluded, ramified/denominator-incompatible: " + pe.Reason,
			})
			recordScanMetrics(ctx, time.Since(start), true)
			opts.Logger.Debug("prime excluded",
				slog.Uint64("prime", p),
				slog.String("reason", pe.Reason),
			)
			return nil
		case ctx.Err() != nil:
			part.Truncated = true
			return nil
		default:
			return fmt.Errorf("scan p=%d: %w", p, err)
		}
	}
	part.Stats.Scanned++
	recordScanMetrics(ctx, time.Since(start), false)
	if nCheck < opts.EndN {
		part.Diagnostics = append(part.Diagnostics, precisionDiagnostic(p, nCheck, opts.EndN))
	}

	var earlier, target []int
	for _, n := range zeros {
		if n < opts.StartN {
			earlier = append(earlier, n)
		} else {
			target = append(target, n)
		}
	}
	if !retained(len(earlier)+len(prior), len(target)) {
		return nil
	}
	indices := append(append(prior, earlier...), target...)
	part.Ladders.AddUint(p, indices...)
	return nil
}

// precisionDiagnostic reports that only [0, nCheck] of the window up to
// endN could be reduced mod p.
func precisionDiagnostic(p uint64, nCheck, endN int) Diagnostic {
	return Diagnostic{
		Kind:    KindPrecisionExceeded,
		Prime:   fmt.Sprintf("%d", p),
		Indices: []int{nCheck + 1},
		Detail:  fmt.Sprintf("insufficient precision: indices %d..%d unchecked, p divides a denominator at %d", nCheck+1, endN, nCheck+1),
	}
}

// retained is the ladder rule: one target zero plus earlier evidence, or
// two target zeros.
func retained(earlier, target int) bool {
	return target >= 1 && (earlier >= 1 || target >= 2)
}

// pruneZeros walks the online recurrence up to nCheck and stops as soon as
// the retention rule holds.
func pruneZeros(ctx context.Context, family recurrence.Family, p uint64, nCheck, startN int, hasPrior bool) ([]int, error) {
	stream, err := modular.NewStream(family, p, nCheck)
	if err != nil {
		return nil, err
	}
	var zeros []int
	earlier, target := 0, 0
	if hasPrior {
		earlier = 1
	}
	for {
		n, v, ok := stream.Next()
		if !ok {
			return zeros, nil
		}
		if n%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if v != 0 {
			continue
		}
		zeros = append(zeros, n)
		if n < startN {
			earlier++
			continue
		}
		target++
		if retained(earlier, target) {
			return zeros, nil
		}
	}
}

func indexOf(n int) []int {
	if n < 0 {
		return nil
	}
	return []int{n}
}
