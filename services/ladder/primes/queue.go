// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package primes

// Queue is a fixed list of candidate primes, each an independent work
// unit.
//
// Each prime is a self-contained job, so a Queue can be drained by one
// goroutine or by a pool without changing results.
type Queue struct {
	primes []uint64
}

// NewQueue wraps an ascending prime list. The slice is copied.
func NewQueue(primes []uint64) *Queue {
	cp := make([]uint64, len(primes))
	copy(cp, primes)
	return &Queue{primes: cp}
}

// Len returns the number of primes in the queue.
func (q *Queue) Len() int { return len(q.primes) }

// Primes returns a copy of the queued primes.
func (q *Queue) Primes() []uint64 {
	cp := make([]uint64, len(q.primes))
	copy(cp, q.primes)
	return cp
}
