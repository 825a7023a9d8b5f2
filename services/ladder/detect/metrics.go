// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for detector runs.
var (
	tracer = otel.Tracer("ladder.detect")
	meter  = otel.Meter("ladder.detect")
)

var (
	primesScanned    metric.Int64Counter
	primesExcluded   metric.Int64Counter
	laddersFound     metric.Int64Counter
	inversionLatency metric.Float64Histogram
	gcdPairs         metric.Int64Counter
	factorFailures   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		primesScanned, err = meter.Int64Counter(
			"ladder_primes_scanned_total",
			metric.WithDescription("Candidate primes whose modular sequence was computed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		primesExcluded, err = meter.Int64Counter(
			"ladder_primes_excluded_total",
			metric.WithDescription("Candidate primes skipped for failing the modular precondition"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		laddersFound, err = meter.Int64Counter(
			"ladder_primes_found_total",
			metric.WithDescription("Ladder primes reported by a detector run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		inversionLatency, err = meter.Float64Histogram(
			"ladder_inversion_duration_seconds",
			metric.WithDescription("Duration of one per-prime modular sequence computation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		gcdPairs, err = meter.Int64Counter(
			"ladder_gcd_pairs_total",
			metric.WithDescription("Numerator pairs checked by the pairwise gcd strategy"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		factorFailures, err = meter.Int64Counter(
			"ladder_factorization_failures_total",
			metric.WithDescription("gcd values whose factorization exceeded its budget"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordScanMetrics records the outcome of one candidate prime.
func recordScanMetrics(ctx context.Context, duration time.Duration, excluded bool) {
	if err := initMetrics(); err != nil {
		return
	}
	if excluded {
		primesExcluded.Add(ctx, 1)
		return
	}
	primesScanned.Add(ctx, 1)
	inversionLatency.Record(ctx, duration.Seconds())
}

// recordRunMetrics records totals at the end of a detector run.
func recordRunMetrics(ctx context.Context, strategy string, res *Result) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("strategy", strategy))
	laddersFound.Add(ctx, int64(res.Ladders.Len()), attrs)
	if res.Stats.Pairs > 0 {
		gcdPairs.Add(ctx, int64(res.Stats.Pairs))
	}
	var failures int64
	for _, d := range res.Diagnostics {
		if d.Kind == KindFactorizationBudget {
			failures++
		}
	}
	if failures > 0 {
		factorFailures.Add(ctx, failures)
	}
}
