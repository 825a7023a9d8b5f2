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
	"fmt"
	"math/big"
	"strings"

	"github.com/AleutianAI/PrimeLadder/services/ladder/rational"
)

// Family holds the parameters of one convolution family.
//
// Alpha must be positive. B0 and Scale are optional; nil selects the
// defaults 1/c_0 and 1.
type Family struct {
	S     int
	Alpha rational.Rational
	B0    *rational.Rational
	Scale *rational.Rational
}

// Canonical returns the family s=2, alpha=1/2 with b_0 = -1/4.
func Canonical() Family {
	return Family{S: 2, Alpha: rational.MustNew(1, 2)}
}

// Cubic returns the s=3, alpha=1/2 family in the normalization used by the
// cubic ladder tables: b_0 = 1/16 and b_n = -1/2 sum b_{n-k}/(2k+1)^3.
func Cubic() Family {
	b0 := rational.MustNew(1, 16)
	scale := rational.MustNew(1, 2)
	return Family{S: 3, Alpha: rational.MustNew(1, 2), B0: &b0, Scale: &scale}
}

// Reciprocal returns the s=2, alpha=1/k family searched for p = 1 mod k laws.
func Reciprocal(k int64) Family {
	return Family{S: 2, Alpha: rational.MustNew(1, k)}
}

// Validate checks the family parameters.
func (f Family) Validate() error {
	if f.S < 1 {
		return fmt.Errorf("%w: exponent s=%d must be >= 1", ErrInvalidFamily, f.S)
	}
	if f.Alpha.Sign() <= 0 {
		return fmt.Errorf("%w: alpha=%s must be positive", ErrInvalidFamily, f.Alpha)
	}
	if !f.Alpha.Num().IsInt64() || !f.Alpha.Den().IsInt64() {
		return fmt.Errorf("%w: alpha=%s does not fit in 64-bit parts", ErrInvalidFamily, f.Alpha)
	}
	if f.B0 != nil && f.B0.IsZero() {
		return fmt.Errorf("%w: b0 must be non-zero", ErrInvalidFamily)
	}
	if f.Scale != nil && f.Scale.IsZero() {
		return fmt.Errorf("%w: scale must be non-zero", ErrInvalidFamily)
	}
	return nil
}

// AlphaParts returns alpha = a/q with gcd(a, q) = 1.
func (f Family) AlphaParts() (a, q int64) {
	return f.Alpha.Num().Int64(), f.Alpha.Den().Int64()
}

// Kernel returns c_k = -1/(k+alpha)^s.
func (f Family) Kernel(k int) rational.Rational {
	base := rational.Int(int64(k)).Add(f.Alpha)
	inv, err := base.Pow(-f.S)
	if err != nil {
		// k + alpha > 0 for a validated family.
		panic(fmt.Sprintf("recurrence: kernel at k=%d: %v", k, err))
	}
	return inv.Neg()
}

// InitialTerm returns b_0.
func (f Family) InitialTerm() rational.Rational {
	if f.B0 != nil {
		return *f.B0
	}
	b0, err := f.Kernel(0).Inv()
	if err != nil {
		panic(fmt.Sprintf("recurrence: kernel c_0 is zero: %v", err))
	}
	return b0
}

// ScaleFactor returns the recurrence scale.
func (f Family) ScaleFactor() rational.Rational {
	if f.Scale != nil {
		return *f.Scale
	}
	return rational.One()
}

// Ratio returns d_j = scale * c_j / c_0 for j >= 1 and d_0 = 1.
//
// With these ratios b_n = -sum_{j=1..n} d_j b_{n-j}, i.e. the generating
// function is b_0 / D(t). For alpha = a/q the ratio is scale * (a/(q j + a))^s.
func (f Family) Ratio(j int) rational.Rational {
	if j == 0 {
		return rational.One()
	}
	a, q := f.AlphaParts()
	base, err := rational.New(a, q*int64(j)+a)
	if err != nil {
		panic(fmt.Sprintf("recurrence: ratio at j=%d: %v", j, err))
	}
	pow, _ := base.Pow(f.S)
	return f.ScaleFactor().Mul(pow)
}

// DenominatorTerm returns q*j + a, the integer whose s-th power appears in
// the denominator of d_j.
func (f Family) DenominatorTerm(j int) *big.Int {
	a, q := f.AlphaParts()
	t := big.NewInt(q)
	t.Mul(t, big.NewInt(int64(j)))
	return t.Add(t, big.NewInt(a))
}

// ResidueForm returns (k, r) such that the family's residue of index n is
// k*n + r. For alpha = a/q this is q*n + a, e.g. 2n+1 for alpha = 1/2.
func (f Family) ResidueForm() (k, r int64) {
	a, q := f.AlphaParts()
	return q, a
}

// ID returns a stable key such as "s2_a1_2" used to label persisted data.
func (f Family) ID() string {
	a, q := f.AlphaParts()
	var b strings.Builder
	fmt.Fprintf(&b, "s%d_a%d_%d", f.S, a, q)
	if f.B0 != nil {
		fmt.Fprintf(&b, "_b%s", strings.ReplaceAll(f.B0.String(), "/", "_"))
	}
	if f.Scale != nil {
		fmt.Fprintf(&b, "_x%s", strings.ReplaceAll(f.Scale.String(), "/", "_"))
	}
	return b.String()
}

func (f Family) String() string {
	return fmt.Sprintf("s=%d alpha=%s b0=%s scale=%s", f.S, f.Alpha, f.InitialTerm(), f.ScaleFactor())
}
