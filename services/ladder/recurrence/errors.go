// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recurrence computes the exact coefficient sequence b_n of a
// convolution family over arbitrary-precision rationals.
//
// # Family
//
// A Family fixes the exponent s and offset alpha of the kernel
//
//	c_0 = -1/alpha^s,  c_k = -1/(k+alpha)^s  (k >= 1)
//
// together with the initial term b_0 (default 1/c_0) and a recurrence
// scale (default 1). The sequence satisfies
//
//	b_n = -(scale/c_0) * sum_{j=1..n} b_{n-j} c_j
//
// which, for the default scale, is the coefficient identity of the formal
// power series inverse (sum b_n t^n)(sum c_n t^n) = 1.
//
// Different parameter sets found in the literature disagree on b_0 and the
// scale. Neither is assumed here; callers pick them per family.
package recurrence

import (
	"errors"
	"fmt"
)

// Sentinel errors for recurrence operations.
var (
	// ErrInvalidFamily is returned when family parameters are out of range.
	ErrInvalidFamily = errors.New("invalid family parameters")

	// ErrNegativeBound is returned when a negative sequence bound is requested.
	ErrNegativeBound = errors.New("sequence bound must be non-negative")

	// ErrPrecisionExceeded is returned when an index beyond the computed
	// length of a sequence is requested. Re-run with a larger bound.
	ErrPrecisionExceeded = errors.New("insufficient precision")

	// ErrComputeCancelled is returned when a computation is cancelled via context.
	ErrComputeCancelled = errors.New("computation cancelled")
)

// PrecisionError reports a query beyond the computed series length.
type PrecisionError struct {
	Requested int
	Available int
}

func (e *PrecisionError) Error() string {
	return fmt.Sprintf("%s: index %d requested, sequence holds indices 0..%d",
		ErrPrecisionExceeded, e.Requested, e.Available-1)
}

// Unwrap lets errors.Is match ErrPrecisionExceeded.
func (e *PrecisionError) Unwrap() error { return ErrPrecisionExceeded }
