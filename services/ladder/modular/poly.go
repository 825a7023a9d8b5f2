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

// karatsubaThreshold is the operand length below which schoolbook
// multiplication is used inside the Karatsuba recursion.
const karatsubaThreshold = 32

// mulTrunc returns the first n coefficients of a*b.
func (f Field) mulTrunc(a, b []Element, n int, schoolbook bool) []Element {
	if len(a) > n {
		a = a[:n]
	}
	if len(b) > n {
		b = b[:n]
	}
	out := make([]Element, n)
	if len(a) == 0 || len(b) == 0 {
		return out
	}
	if schoolbook {
		f.schoolbookInto(out, a, b)
		return out
	}

	m := max(len(a), len(b))
	full := f.karatsuba(pad(a, m), pad(b, m))
	copy(out, full)
	return out
}

// schoolbookInto accumulates the product a*b into out, dropping
// coefficients past len(out).
func (f Field) schoolbookInto(out, a, b []Element) {
	for i, ai := range a {
		if i >= len(out) {
			break
		}
		if ai == 0 {
			continue
		}
		limit := min(len(b), len(out)-i)
		for j := 0; j < limit; j++ {
			out[i+j] = f.Add(out[i+j], f.Mul(ai, b[j]))
		}
	}
}

// karatsuba multiplies two equal-length polynomials and returns all
// 2m-1 product coefficients.
func (f Field) karatsuba(a, b []Element) []Element {
	m := len(a)
	out := make([]Element, 2*m-1)
	if m <= karatsubaThreshold {
		f.schoolbookInto(out, a, b)
		return out
	}

	h := m / 2
	a0, a1 := a[:h], a[h:]
	b0, b1 := b[:h], b[h:]
	hi := m - h

	z0 := f.karatsuba(a0, b0)
	z2 := f.karatsuba(a1, b1)

	as := make([]Element, hi)
	bs := make([]Element, hi)
	for i := 0; i < hi; i++ {
		as[i] = a1[i]
		bs[i] = b1[i]
		if i < h {
			as[i] = f.Add(as[i], a0[i])
			bs[i] = f.Add(bs[i], b0[i])
		}
	}
	z1 := f.karatsuba(as, bs)
	for i := range z0 {
		z1[i] = f.Sub(z1[i], z0[i])
	}
	for i := range z2 {
		z1[i] = f.Sub(z1[i], z2[i])
	}

	for i, v := range z0 {
		out[i] = f.Add(out[i], v)
	}
	for i, v := range z1 {
		out[i+h] = f.Add(out[i+h], v)
	}
	for i, v := range z2 {
		out[i+2*h] = f.Add(out[i+2*h], v)
	}
	return out
}

func pad(a []Element, m int) []Element {
	if len(a) == m {
		return a
	}
	out := make([]Element, m)
	copy(out, a)
	return out
}
