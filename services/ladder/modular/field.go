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
	"fmt"
	"math/big"
	"math/bits"

	"github.com/AleutianAI/PrimeLadder/services/ladder/primes"
	"github.com/AleutianAI/PrimeLadder/services/ladder/rational"
)

// Element is a residue in [0, p).
type Element uint64

// Field is GF(p) for a prime p < 2^63.
//
// Products use a 128-bit intermediate, so no modulus restriction beyond the
// 63-bit bound (which keeps Add free of overflow) applies.
type Field struct {
	p uint64
}

// NewField returns GF(p). It fails unless p is a prime below 2^63.
func NewField(p uint64) (Field, error) {
	if p < 2 || p >= 1<<63 {
		return Field{}, fmt.Errorf("%w: %d", ErrInvalidModulus, p)
	}
	if !primes.IsPrime(p) {
		return Field{}, fmt.Errorf("%w: %d is composite", ErrInvalidModulus, p)
	}
	return Field{p: p}, nil
}

// Modulus returns p.
func (f Field) Modulus() uint64 { return f.p }

// Add returns a + b mod p.
func (f Field) Add(a, b Element) Element {
	s := uint64(a) + uint64(b)
	if s >= f.p {
		s -= f.p
	}
	return Element(s)
}

// Sub returns a - b mod p.
func (f Field) Sub(a, b Element) Element {
	if a >= b {
		return a - b
	}
	return Element(f.p - uint64(b) + uint64(a))
}

// Neg returns -a mod p.
func (f Field) Neg(a Element) Element {
	if a == 0 {
		return 0
	}
	return Element(f.p - uint64(a))
}

// Mul returns a * b mod p.
func (f Field) Mul(a, b Element) Element {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	return Element(bits.Rem64(hi, lo, f.p))
}

// Pow returns a^e mod p.
func (f Field) Pow(a Element, e uint64) Element {
	result := Element(1 % f.p)
	for e > 0 {
		if e&1 == 1 {
			result = f.Mul(result, a)
		}
		a = f.Mul(a, a)
		e >>= 1
	}
	return result
}

// Inv returns a^{-1} mod p by Fermat's little theorem.
func (f Field) Inv(a Element) (Element, error) {
	if a%Element(f.p) == 0 {
		return 0, ErrNotInvertible
	}
	return f.Pow(a, f.p-2), nil
}

// FromBig reduces an integer into [0, p).
func (f Field) FromBig(v *big.Int) Element {
	m := new(big.Int).Mod(v, new(big.Int).SetUint64(f.p))
	return Element(m.Uint64())
}

// FromInt64 reduces a machine integer into [0, p).
func (f Field) FromInt64(v int64) Element {
	m := v % int64(f.p)
	if m < 0 {
		m += int64(f.p)
	}
	return Element(m)
}

// Reduce maps num/den to num * den^{-1} mod p. It returns ErrNotInvertible
// when p divides the denominator.
func (f Field) Reduce(r rational.Rational) (Element, error) {
	den := f.FromBig(r.Den())
	inv, err := f.Inv(den)
	if err != nil {
		return 0, fmt.Errorf("reduce %s mod %d: %w", r, f.p, err)
	}
	return f.Mul(f.FromBig(r.Num()), inv), nil
}
