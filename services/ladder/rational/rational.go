// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rational provides an immutable arbitrary-precision rational number.
//
// Every Rational is kept in lowest terms with a positive denominator. All
// operations return fresh values; the big.Int pointers held by a Rational are
// never handed out, so a value can be shared freely between goroutines.
package rational

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Sentinel errors for rational arithmetic.
var (
	// ErrZeroDenominator is returned when constructing a value with denominator 0.
	ErrZeroDenominator = errors.New("zero denominator")

	// ErrDivisionByZero is returned when dividing by or inverting zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrSyntax is returned when a string is not of the form "a" or "a/b".
	ErrSyntax = errors.New("invalid rational syntax")
)

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
)

// Rational is an exact fraction num/den.
//
// Invariants:
//   - den > 0
//   - gcd(|num|, den) = 1
//
// The zero value is the number 0.
type Rational struct {
	num *big.Int
	den *big.Int
}

// Zero returns 0.
func Zero() Rational { return Rational{} }

// One returns 1.
func One() Rational { return Int(1) }

// Int returns the integer n as a Rational.
func Int(n int64) Rational {
	return Rational{num: big.NewInt(n), den: big.NewInt(1)}
}

// New returns num/den in lowest terms.
func New(num, den int64) (Rational, error) {
	return FromBig(big.NewInt(num), big.NewInt(den))
}

// MustNew is New for constants known to be valid. It panics on a zero denominator.
func MustNew(num, den int64) Rational {
	r, err := New(num, den)
	if err != nil {
		panic(err)
	}
	return r
}

// FromBig returns num/den in lowest terms. The arguments are copied.
func FromBig(num, den *big.Int) (Rational, error) {
	if den == nil || den.Sign() == 0 {
		return Rational{}, ErrZeroDenominator
	}
	if num == nil {
		num = bigZero
	}
	return normalize(new(big.Int).Set(num), new(big.Int).Set(den)), nil
}

// FromInt returns the integer n. The argument is copied.
func FromInt(n *big.Int) Rational {
	if n == nil {
		return Rational{}
	}
	return Rational{num: new(big.Int).Set(n), den: big.NewInt(1)}
}

// Parse reads "a", "-a" or "a/b" with decimal integers a and b.
func Parse(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	numStr, denStr, hasSlash := strings.Cut(s, "/")
	num, ok := new(big.Int).SetString(strings.TrimSpace(numStr), 10)
	if !ok {
		return Rational{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	den := big.NewInt(1)
	if hasSlash {
		if den, ok = new(big.Int).SetString(strings.TrimSpace(denStr), 10); !ok {
			return Rational{}, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
	}
	r, err := FromBig(num, den)
	if err != nil {
		return Rational{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return r, nil
}

// MustParse is Parse for literals. It panics on malformed input.
func MustParse(s string) Rational {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// normalize takes ownership of num and den and reduces them in place.
func normalize(num, den *big.Int) Rational {
	if den.Sign() < 0 {
		num.Neg(num)
		den.Neg(den)
	}
	if num.Sign() == 0 {
		return Rational{num: num, den: den.SetInt64(1)}
	}
	g := new(big.Int).GCD(nil, nil, new(big.Int).Abs(num), den)
	if g.Cmp(bigOne) != 0 {
		num.Quo(num, g)
		den.Quo(den, g)
	}
	return Rational{num: num, den: den}
}

func (r Rational) n() *big.Int {
	if r.num == nil {
		return bigZero
	}
	return r.num
}

func (r Rational) d() *big.Int {
	if r.den == nil {
		return bigOne
	}
	return r.den
}

// Num returns a copy of the numerator.
func (r Rational) Num() *big.Int { return new(big.Int).Set(r.n()) }

// Den returns a copy of the (positive) denominator.
func (r Rational) Den() *big.Int { return new(big.Int).Set(r.d()) }

// Sign returns -1, 0 or +1.
func (r Rational) Sign() int { return r.n().Sign() }

// IsZero reports whether r == 0.
func (r Rational) IsZero() bool { return r.Sign() == 0 }

// IsInt reports whether the denominator is 1.
func (r Rational) IsInt() bool { return r.d().Cmp(bigOne) == 0 }

// Add returns r + o.
func (r Rational) Add(o Rational) Rational {
	if r.IsZero() {
		return o.clone()
	}
	if o.IsZero() {
		return r.clone()
	}
	num := new(big.Int).Mul(r.n(), o.d())
	num.Add(num, new(big.Int).Mul(o.n(), r.d()))
	return normalize(num, new(big.Int).Mul(r.d(), o.d()))
}

// Sub returns r - o.
func (r Rational) Sub(o Rational) Rational { return r.Add(o.Neg()) }

// Mul returns r * o.
func (r Rational) Mul(o Rational) Rational {
	if r.IsZero() || o.IsZero() {
		return Rational{}
	}
	return normalize(new(big.Int).Mul(r.n(), o.n()), new(big.Int).Mul(r.d(), o.d()))
}

// Quo returns r / o.
func (r Rational) Quo(o Rational) (Rational, error) {
	inv, err := o.Inv()
	if err != nil {
		return Rational{}, err
	}
	return r.Mul(inv), nil
}

// Inv returns 1 / r.
func (r Rational) Inv() (Rational, error) {
	if r.IsZero() {
		return Rational{}, ErrDivisionByZero
	}
	return normalize(new(big.Int).Set(r.d()), new(big.Int).Set(r.n())), nil
}

// Neg returns -r.
func (r Rational) Neg() Rational {
	return Rational{num: new(big.Int).Neg(r.n()), den: new(big.Int).Set(r.d())}
}

// Abs returns |r|.
func (r Rational) Abs() Rational {
	return Rational{num: new(big.Int).Abs(r.n()), den: new(big.Int).Set(r.d())}
}

// Pow returns r^k. A negative k inverts first and fails for r == 0.
func (r Rational) Pow(k int) (Rational, error) {
	base := r
	if k < 0 {
		inv, err := r.Inv()
		if err != nil {
			return Rational{}, err
		}
		base, k = inv, -k
	}
	e := big.NewInt(int64(k))
	// Powers of coprime integers stay coprime, so no reduction is needed.
	return Rational{
		num: new(big.Int).Exp(base.n(), e, nil),
		den: new(big.Int).Exp(base.d(), e, nil),
	}, nil
}

// Cmp compares r and o and returns -1, 0 or +1.
func (r Rational) Cmp(o Rational) int {
	left := new(big.Int).Mul(r.n(), o.d())
	right := new(big.Int).Mul(o.n(), r.d())
	return left.Cmp(right)
}

// Equal reports whether r == o.
func (r Rational) Equal(o Rational) bool {
	return r.n().Cmp(o.n()) == 0 && r.d().Cmp(o.d()) == 0
}

// String formats r as "num/den", or "num" when den == 1.
func (r Rational) String() string {
	if r.IsInt() {
		return r.n().String()
	}
	return r.n().String() + "/" + r.d().String()
}

// MarshalText implements encoding.TextMarshaler.
func (r Rational) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rational) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Rational) clone() Rational {
	return Rational{num: new(big.Int).Set(r.n()), den: new(big.Int).Set(r.d())}
}
