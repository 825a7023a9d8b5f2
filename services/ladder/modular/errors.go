// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package modular computes the coefficient sequence of a family reduced
// modulo a prime p, by Newton inversion of a truncated power series over
// GF(p).
//
// The exact recurrence b_n = -sum_{j=1..n} d_j b_{n-j} says that
// B(t) = b_0 / D(t) with D(t) = 1 + sum_{j>=1} d_j t^j. Reducing d_j and b_0
// into GF(p) and inverting D(t) modulo t^(N+1) gives B[n] = b_n mod p for
// every n whose denominators p does not divide.
//
// # Multiplication model
//
// Truncated products use Karatsuba above a size threshold and schoolbook
// below it, so an inversion costs O(N^1.59) field multiplications. With
// Karatsuba disabled (WithSchoolbook) the cost falls back to O(N^2).
// Moduli are arbitrary primes, so no number-theoretic transform is used.
package modular

import (
	"errors"
	"fmt"
)

// Sentinel errors for modular operations.
var (
	// ErrInvalidModulus is returned for moduli that are not primes in [2, 2^63).
	ErrInvalidModulus = errors.New("modulus must be a prime below 2^63")

	// ErrNotInvertible is returned when inverting zero in GF(p), including a
	// rational whose denominator p divides.
	ErrNotInvertible = errors.New("element not invertible")

	// ErrPrecondition is the sentinel behind every *PreconditionError.
	ErrPrecondition = errors.New("prime excluded, ramified/denominator-incompatible")

	// ErrInversionCancelled is returned when an inversion is cancelled via context.
	ErrInversionCancelled = errors.New("inversion cancelled")
)

// PreconditionError reports a prime that cannot be used for reduction.
//
// Index is the first offending index j (p divides q*j + a), or -1 when the
// failure is not tied to an index (invalid modulus, b_0 or scale denominator).
type PreconditionError struct {
	Prime  uint64
	Index  int
	Reason string
}

func (e *PreconditionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: p=%d at index %d: %s", ErrPrecondition, e.Prime, e.Index, e.Reason)
	}
	return fmt.Sprintf("%s: p=%d: %s", ErrPrecondition, e.Prime, e.Reason)
}

// Unwrap lets errors.Is match ErrPrecondition.
func (e *PreconditionError) Unwrap() error { return ErrPrecondition }
