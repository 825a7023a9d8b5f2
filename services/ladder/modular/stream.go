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
	"github.com/AleutianAI/PrimeLadder/services/ladder/recurrence"
)

// Stream produces B[0], B[1], ... one index at a time with the direct
// recurrence B[n] = -sum_{j=1..n} d_j B[n-j] over GF(p).
//
// Each step costs O(n), so the full range is O(N^2); the point is that a
// caller can stop as soon as it has seen enough zeros.
//
// Thread Safety: Not safe for concurrent use.
type Stream struct {
	field  Field
	d      []Element
	values []Element
	next   int
}

// NewStream prepares a Stream for indices 0..n. Preconditions are checked
// up front exactly as in Inverter.Compute.
func NewStream(family recurrence.Family, p uint64, n int) (*Stream, error) {
	field, b0, d, err := prepare(family, p, n)
	if err != nil {
		return nil, err
	}
	values := make([]Element, 1, n+1)
	values[0] = b0
	return &Stream{field: field, d: d, values: values}, nil
}

// Prime returns the modulus.
func (s *Stream) Prime() uint64 { return s.field.p }

// Next returns the next index and value. ok is false once index n has been
// produced.
func (s *Stream) Next() (index int, value Element, ok bool) {
	i := s.next
	if i >= len(s.d) {
		return 0, 0, false
	}
	s.next++
	if i == 0 {
		return 0, s.values[0], true
	}
	var sum Element
	for j := 1; j <= i; j++ {
		sum = s.field.Add(sum, s.field.Mul(s.d[j], s.values[i-j]))
	}
	v := s.field.Neg(sum)
	s.values = append(s.values, v)
	return i, v, true
}
