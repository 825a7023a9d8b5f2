// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package modular

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/PrimeLadder/services/ladder/recurrence"
)

// Sequence is B[0..N] = b_n mod p for a single prime.
//
// Values are only meaningful for that prime and must not be compared
// across different moduli. Read-only after construction.
type Sequence struct {
	prime  uint64
	values []Element
}

// Prime returns the modulus the sequence was reduced by.
func (s *Sequence) Prime() uint64 { return s.prime }

// Len returns N+1.
func (s *Sequence) Len() int { return len(s.values) }

// At returns B[n], or a *recurrence.PrecisionError outside 0..N.
func (s *Sequence) At(n int) (Element, error) {
	if n < 0 || n >= len(s.values) {
		return 0, &recurrence.PrecisionError{Requested: n, Available: len(s.values)}
	}
	return s.values[n], nil
}

// Values returns a copy of B[0..N].
func (s *Sequence) Values() []Element {
	out := make([]Element, len(s.values))
	copy(out, s.values)
	return out
}

// Zeros returns the ascending indices n >= from with B[n] = 0.
func (s *Sequence) Zeros(from int) []int {
	var zeros []int
	for n := max(from, 0); n < len(s.values); n++ {
		if s.values[n] == 0 {
			zeros = append(zeros, n)
		}
	}
	return zeros
}

// Option configures an Inverter.
type Option func(*Inverter)

// WithSchoolbook disables Karatsuba so every truncated product is O(n^2).
func WithSchoolbook() Option {
	return func(inv *Inverter) { inv.schoolbook = true }
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(inv *Inverter) {
		if logger != nil {
			inv.logger = logger
		}
	}
}

// Inverter computes modular sequences.
//
// Thread Safety: Safe for concurrent use. Each call owns its buffers, so a
// pool of goroutines may share one Inverter across different primes.
type Inverter struct {
	logger     *slog.Logger
	schoolbook bool
}

// NewInverter creates an Inverter.
func NewInverter(opts ...Option) *Inverter {
	inv := &Inverter{logger: slog.Default()}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Compute returns B[0..n] for the family modulo p.
//
// Description:
//
//	Reduces d_1..d_n and b_0 into GF(p), inverts D(t) = 1 + sum d_j t^j to
//	precision n+1 by Newton iteration
//
//	  A <- A (2 - D A)  mod t^{2k}
//
//	starting from A = 1, and scales by b_0.
//
// Inputs:
//   - ctx: Checked between Newton steps.
//   - family: Validated before use.
//   - p: Prime modulus.
//   - n: Highest index.
//
// Outputs:
//   - *Sequence: B[0..n].
//   - error: *PreconditionError when p is unusable (no result is produced),
//     recurrence.ErrInvalidFamily / ErrNegativeBound, or ErrInversionCancelled.
func (inv *Inverter) Compute(ctx context.Context, family recurrence.Family, p uint64, n int) (*Sequence, error) {
	field, b0, d, err := prepare(family, p, n)
	if err != nil {
		return nil, err
	}

	a, err := inv.invert(ctx, field, d)
	if err != nil {
		return nil, err
	}
	for i := range a {
		a[i] = field.Mul(b0, a[i])
	}
	return &Sequence{prime: p, values: a}, nil
}

// invert returns the inverse of d (with d[0] = 1) modulo t^len(d).
func (inv *Inverter) invert(ctx context.Context, field Field, d []Element) ([]Element, error) {
	target := len(d)
	a := []Element{1}
	for prec := 1; prec < target; {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w at precision %d: %v", ErrInversionCancelled, prec, err)
		}
		next := min(2*prec, target)

		da := field.mulTrunc(d[:next], a, next, inv.schoolbook)
		e := make([]Element, next)
		e[0] = field.Sub(2%Element(field.p), da[0])
		for i := 1; i < next; i++ {
			e[i] = field.Neg(da[i])
		}
		a = field.mulTrunc(a, e, next, inv.schoolbook)
		prec = next
	}
	return a, nil
}

// prepare validates inputs and reduces b_0 and d_0..d_n into GF(p).
func prepare(family recurrence.Family, p uint64, n int) (Field, Element, []Element, error) {
	if err := family.Validate(); err != nil {
		return Field{}, 0, nil, err
	}
	if n < 0 {
		return Field{}, 0, nil, fmt.Errorf("%w: got %d", recurrence.ErrNegativeBound, n)
	}
	field, err := NewField(p)
	if err != nil {
		return Field{}, 0, nil, &PreconditionError{Prime: p, Index: -1, Reason: err.Error()}
	}

	b0, err := field.Reduce(family.InitialTerm())
	if err != nil {
		return Field{}, 0, nil, &PreconditionError{Prime: p, Index: -1, Reason: "p divides the denominator of b_0"}
	}
	scale, err := field.Reduce(family.ScaleFactor())
	if err != nil {
		return Field{}, 0, nil, &PreconditionError{Prime: p, Index: -1, Reason: "p divides the denominator of the scale"}
	}

	a, _ := family.AlphaParts()
	numerator := field.Mul(scale, field.Pow(field.FromInt64(a), uint64(family.S)))

	d := make([]Element, n+1)
	d[0] = 1
	for j := 1; j <= n; j++ {
		term := field.FromBig(family.DenominatorTerm(j))
		termInv, err := field.Inv(term)
		if err != nil {
			return Field{}, 0, nil, &PreconditionError{
				Prime:  p,
				Index:  j,
				Reason: fmt.Sprintf("p divides denominator term %s", family.DenominatorTerm(j)),
			}
		}
		d[j] = field.Mul(numerator, field.Pow(termInv, uint64(family.S)))
	}
	return field, b0, d, nil
}

// SafeBound returns the largest index N_check <= n such that p divides no
// denominator term q*j + a for 1 <= j <= N_check.
//
// For alpha = 1/2 this is n when p > 2n+1 and (p-1)/2 - 1 otherwise. The
// result is -1 only for n < 0. It does not check b_0 or the scale; Compute
// reports those as precondition failures.
func SafeBound(family recurrence.Family, p uint64, n int) int {
	if n < 0 || p < 2 {
		return n
	}
	a, q := family.AlphaParts()
	field := Field{p: p}
	qm := field.FromInt64(q)
	if qm == 0 {
		// q*j + a = a mod p, and gcd(a, q) = 1 keeps it non-zero.
		return n
	}
	qInv := field.Pow(qm, p-2)
	j0 := uint64(field.Mul(field.Neg(field.FromInt64(a)), qInv))
	if j0 == 0 {
		j0 = p
	}
	if j0-1 >= uint64(n) {
		return n
	}
	return int(j0 - 1)
}
