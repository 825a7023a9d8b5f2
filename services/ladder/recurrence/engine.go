// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/PrimeLadder/services/ladder/rational"
)

var tracer = otel.Tracer("ladder.recurrence")

// Sequence is the exact coefficient sequence b_0..b_N of one family.
//
// A Sequence is read-only after construction and safe for concurrent reads.
type Sequence struct {
	family Family
	terms  []rational.Rational
}

// Family returns the parameters the sequence was computed for.
func (s *Sequence) Family() Family { return s.family }

// Len returns N+1, the number of computed terms.
func (s *Sequence) Len() int { return len(s.terms) }

// At returns b_n, or a *PrecisionError when n lies outside 0..N.
func (s *Sequence) At(n int) (rational.Rational, error) {
	if n < 0 || n >= len(s.terms) {
		return rational.Rational{}, &PrecisionError{Requested: n, Available: len(s.terms)}
	}
	return s.terms[n], nil
}

// Terms returns a copy of the term slice. Rationals are immutable, so the
// elements themselves are shared.
func (s *Sequence) Terms() []rational.Rational {
	out := make([]rational.Rational, len(s.terms))
	copy(out, s.terms)
	return out
}

// Engine computes exact sequences.
//
// Thread Safety: Safe for concurrent use; Compute holds no shared state.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil logger uses slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Compute returns b_0..b_N for the family.
//
// Description:
//
//	Runs the direct convolution recurrence b_n = -sum_{j=1..n} d_j b_{n-j}
//	with d_j = scale * c_j / c_0 over exact rationals.
//
// Inputs:
//   - ctx: Checked once per index; cancellation returns ErrComputeCancelled.
//   - family: Validated before use.
//   - n: Highest index N. Must be >= 0.
//
// Outputs:
//   - *Sequence: N+1 terms.
//   - error: ErrInvalidFamily, ErrNegativeBound or ErrComputeCancelled.
//
// Performance:
//
//	O(N^2) rational multiply-adds. Operand sizes grow with n (denominators
//	collect (q k + a)^s for k <= n), and that growth dominates wall time.
func (e *Engine) Compute(ctx context.Context, family Family, n int) (*Sequence, error) {
	ctx, span := tracer.Start(ctx, "recurrence.Compute")
	defer span.End()
	span.SetAttributes(
		attribute.String("family", family.ID()),
		attribute.Int("bound", n),
	)

	if err := family.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if n < 0 {
		err := fmt.Errorf("%w: got %d", ErrNegativeBound, n)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	ratios := make([]rational.Rational, n+1)
	for j := 1; j <= n; j++ {
		ratios[j] = family.Ratio(j)
	}

	terms := make([]rational.Rational, n+1)
	terms[0] = family.InitialTerm()
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			span.SetAttributes(attribute.Bool("cancelled", true))
			return nil, fmt.Errorf("%w at n=%d: %v", ErrComputeCancelled, i, err)
		}
		var sum rational.Rational
		for j := 1; j <= i; j++ {
			sum = sum.Add(ratios[j].Mul(terms[i-j]))
		}
		terms[i] = sum.Neg()
	}

	e.logger.Debug("exact sequence computed",
		slog.String("family", family.ID()),
		slog.Int("bound", n),
		slog.Duration("elapsed", time.Since(start)),
	)
	return &Sequence{family: family, terms: terms}, nil
}
