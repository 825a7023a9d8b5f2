// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine runs complete ladder jobs from a config.Config: exact
// pairwise runs, table-driven runs, direct scans with persisted evidence,
// cross-mode verification and residue classification.
//
// Each run gets a UUID that tags its log records and its summary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/PrimeLadder/services/ladder/config"
	"github.com/AleutianAI/PrimeLadder/services/ladder/detect"
	"github.com/AleutianAI/PrimeLadder/services/ladder/factor"
	"github.com/AleutianAI/PrimeLadder/services/ladder/modular"
	"github.com/AleutianAI/PrimeLadder/services/ladder/numerator"
	"github.com/AleutianAI/PrimeLadder/services/ladder/recurrence"
	"github.com/AleutianAI/PrimeLadder/services/ladder/report"
	"github.com/AleutianAI/PrimeLadder/services/ladder/residue"
	"github.com/AleutianAI/PrimeLadder/services/ladder/telemetry"
)

var tracer = otel.Tracer("ladder.engine")

// Run modes recorded in summaries.
const (
	ModeExact = "exact"
	ModeTable = "table"
	ModeScan  = "scan"
)

// Evidence is the persistence the engine needs from a store.
type Evidence interface {
	detect.EvidenceSource
	Record(ctx context.Context, familyID string, m *detect.LadderMap) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEvidence attaches a store used as prior evidence for scans and, when
// the config asks for it, as the destination of retained ladders.
func WithEvidence(store Evidence) Option {
	return func(e *Engine) { e.evidence = store }
}

// Engine wires the ladder packages together for one configuration.
//
// Thread Safety: Safe for concurrent use; runs share only the factorization
// cache, which is itself safe.
type Engine struct {
	cfg        config.Config
	family     recurrence.Family
	form       residue.Form
	logger     *slog.Logger
	evidence   Evidence
	series     *recurrence.Engine
	inverter   *modular.Inverter
	factorizer *factor.Factorizer
	extractor  numerator.Extractor
}

// New validates cfg and builds an Engine.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	family, err := cfg.Family.Build()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:       cfg,
		family:    family,
		form:      residue.FormOf(family),
		logger:    slog.Default(),
		extractor: numerator.Extractor{Divisor: cfg.Exact.Divisor},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("family", family.ID()))
	e.series = recurrence.NewEngine(e.logger)

	invOpts := []modular.Option{modular.WithLogger(e.logger)}
	if cfg.Scan.Schoolbook {
		invOpts = append(invOpts, modular.WithSchoolbook())
	}
	e.inverter = modular.NewInverter(invOpts...)
	e.factorizer = factor.New(cfg.Factor.Budget(), factor.NewCache(cfg.Factor.CacheSize))
	return e, nil
}

// Family returns the configured family.
func (e *Engine) Family() recurrence.Family { return e.family }

// Form returns the residue form of the family.
func (e *Engine) Form() residue.Form { return e.form }

// Run is the outcome of one detector run.
type Run struct {
	ID         string
	Mode       string
	Family     string
	StartedAt  time.Time
	FinishedAt time.Time
	Result     *detect.Result
}

// Bundle derives the persisted outputs of the run.
func (r *Run) Bundle(form residue.Form) report.Bundle {
	return report.NewBundle(report.Meta{
		RunID:      r.ID,
		Family:     r.Family,
		Mode:       r.Mode,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}, r.Result, form)
}

func (e *Engine) startRun(ctx context.Context, mode string) (context.Context, trace.Span, *Run, *slog.Logger) {
	run := &Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		Family:    e.family.ID(),
		StartedAt: time.Now(),
	}
	ctx, span := tracer.Start(ctx, "engine."+mode, trace.WithAttributes(
		attribute.String("run_id", run.ID),
		attribute.String("family", run.Family),
	))
	logger := e.logger.With(slog.String("run_id", run.ID), slog.String("mode", mode))
	if id := telemetry.TraceID(ctx); id != "" {
		logger = logger.With(slog.String("trace_id", id))
	}
	logger.Info("run started")
	return ctx, span, run, logger
}

func finishRun(span trace.Span, run *Run, logger *slog.Logger, res *detect.Result, err error) (*Run, error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("run failed", slog.String("error", err.Error()))
		var inv *numerator.InvariantError
		if !errors.As(err, &inv) {
			return nil, err
		}
		run.FinishedAt = time.Now()
		diag := detect.Diagnostic{
			Kind:    detect.KindInvariantViolation,
			Indices: []int{inv.N},
			Detail:  inv.Error(),
		}
		run.Result = &detect.Result{Ladders: detect.NewLadderMap(), Diagnostics: []detect.Diagnostic{diag}}
		return run, err
	}
	run.FinishedAt = time.Now()
	run.Result = res
	span.SetAttributes(
		attribute.Int("ladders", res.Ladders.Len()),
		attribute.Int("diagnostics", len(res.Diagnostics)),
		attribute.Bool("truncated", res.Truncated),
	)
	logger.Info("run finished",
		slog.Int("ladders", res.Ladders.Len()),
		slog.Int("diagnostics", len(res.Diagnostics)),
		slog.Bool("truncated", res.Truncated),
		slog.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	)
	return run, nil
}

// SeriesRow is one coefficient. M is nil below the configured MinIndex.
type SeriesRow struct {
	N int      `json:"n"`
	B string   `json:"b"`
	M *big.Int `json:"m,omitempty"`
}

// Series computes b_0..b_n with their normalized numerators.
//
// An invariant violation at any index >= MinIndex is returned as an error
// and no rows are produced.
func (e *Engine) Series(ctx context.Context, n int) ([]SeriesRow, error) {
	seq, err := e.series.Compute(ctx, e.family, n)
	if err != nil {
		return nil, err
	}
	rows := make([]SeriesRow, 0, seq.Len())
	for i, b := range seq.Terms() {
		row := SeriesRow{N: i, B: b.String()}
		if i >= e.cfg.Exact.MinIndex {
			m, err := e.extractor.Normalize(i, b.Num())
			if err != nil {
				return nil, err
			}
			row.M = m
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// RunExact computes the exact series to Exact.N and runs PairwiseGCD over
// [MinIndex, N].
//
// An invariant violation aborts the run. The error is returned together
// with a Run whose result holds only the invariant_violation diagnostic.
func (e *Engine) RunExact(ctx context.Context) (*Run, error) {
	ctx, span, run, logger := e.startRun(ctx, ModeExact)
	res, err := e.exact(ctx, logger)
	return finishRun(span, run, logger, res, err)
}

func (e *Engine) exact(ctx context.Context, logger *slog.Logger) (*detect.Result, error) {
	seq, err := e.series.Compute(ctx, e.family, e.cfg.Exact.N)
	if err != nil {
		return nil, fmt.Errorf("compute series: %w", err)
	}
	values, err := e.extractor.Extract(seq, e.cfg.Exact.MinIndex, e.cfg.Exact.N)
	if err != nil {
		return nil, fmt.Errorf("extract numerators: %w", err)
	}
	return detect.PairwiseGCD(ctx, values, e.pairwiseOptions(logger))
}

// RunTable reads an n,N_n table and runs PairwiseGCD over rows with
// n >= MinIndex. Invariant violations are reported as in RunExact.
func (e *Engine) RunTable(ctx context.Context, r io.Reader) (*Run, error) {
	ctx, span, run, logger := e.startRun(ctx, ModeTable)
	res, err := e.table(ctx, r, logger)
	return finishRun(span, run, logger, res, err)
}

func (e *Engine) table(ctx context.Context, r io.Reader, logger *slog.Logger) (*detect.Result, error) {
	rows, err := numerator.ReadTable(r)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	values, err := e.extractor.FromRows(rows, e.cfg.Exact.MinIndex)
	if err != nil {
		return nil, fmt.Errorf("normalize table: %w", err)
	}
	logger.Debug("table loaded", slog.Int("rows", len(rows)), slog.Int("values", len(values)))
	return detect.PairwiseGCD(ctx, values, e.pairwiseOptions(logger))
}

func (e *Engine) pairwiseOptions(logger *slog.Logger) detect.PairwiseOptions {
	return detect.PairwiseOptions{
		Workers:    e.cfg.Exact.Workers,
		Factorizer: e.factorizer,
		Logger:     logger,
	}
}

// RunScan runs DirectScan over the configured prime range and window.
//
// With an evidence store attached, stored zeros count as prior evidence
// and, if Store.Record is set and the run completed, retained ladders are
// written back. Truncated runs are never recorded.
func (e *Engine) RunScan(ctx context.Context) (*Run, error) {
	ctx, span, run, logger := e.startRun(ctx, ModeScan)
	var prior detect.EvidenceSource
	if e.evidence != nil {
		prior = e.evidence
	}
	res, err := e.scan(ctx, e.cfg.Scan.PrimeLo, e.cfg.Scan.PrimeHi, e.cfg.Scan.StartN, e.cfg.Scan.EndN, prior, logger)
	if err == nil && e.evidence != nil && e.cfg.Store.Record && !res.Truncated {
		if err = e.evidence.Record(ctx, e.family.ID(), res.Ladders); err == nil {
			logger.Info("evidence recorded", slog.Int("primes", res.Ladders.Len()))
		}
	}
	return finishRun(span, run, logger, res, err)
}

func (e *Engine) scan(ctx context.Context, lo, hi uint64, startN, endN int, prior detect.EvidenceSource, logger *slog.Logger) (*detect.Result, error) {
	opts := detect.ScanOptions{
		PrimeLo:  lo,
		PrimeHi:  hi,
		StartN:   startN,
		EndN:     endN,
		Workers:  e.cfg.Scan.Workers,
		Prune:    e.cfg.Scan.Prune,
		Prior:    prior,
		Inverter: e.inverter,
		Logger:   logger,
	}
	return detect.DirectScan(ctx, e.family, opts)
}
