// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/PrimeLadder/pkg/logging"
	"github.com/AleutianAI/PrimeLadder/services/ladder/config"
	"github.com/AleutianAI/PrimeLadder/services/ladder/engine"
	"github.com/AleutianAI/PrimeLadder/services/ladder/storage"
	"github.com/AleutianAI/PrimeLadder/services/ladder/telemetry"
)

// session holds what setup built for the running command.
type session struct {
	cfg      config.Config
	logger   *logging.Logger
	shutdown func(context.Context) error
	metrics  *http.Server
	db       *badger.DB
	store    *storage.EvidenceStore
}

var current *session

// setup loads configuration, applies flag overrides and starts logging
// and telemetry.
func setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyOverrides(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "ladder",
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger.Slog())

	s := &session{cfg: cfg, logger: logger}
	current = s

	shutdown, err := telemetry.Init(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	s.shutdown = shutdown

	if cfg.Telemetry.MetricsAddr != "" {
		if err := s.serveMetrics(cfg.Telemetry.MetricsAddr); err != nil {
			return err
		}
	}
	return nil
}

func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if changed("log-json") {
		cfg.Logging.JSON = logJSON
	}
	if changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = metricsAddr
	}
	if cfg.Telemetry.MetricsAddr != "" {
		cfg.Telemetry.MetricExporter = telemetry.ExporterPrometheus
	}
	if changed("max-n") {
		cfg.Exact.N = exactN
	}
	if changed("workers") {
		cfg.Exact.Workers = workers
		cfg.Scan.Workers = workers
	}
	if changed("prime-lo") {
		cfg.Scan.PrimeLo = scanPrimeLo
	}
	if changed("prime-hi") {
		cfg.Scan.PrimeHi = scanPrimeHi
	}
	if changed("start-n") {
		cfg.Scan.StartN = scanStartN
	}
	if changed("end-n") {
		cfg.Scan.EndN = scanEndN
	}
	if changed("prune") {
		cfg.Scan.Prune = scanPrune
	}
	if changed("store") {
		cfg.Store.Path = storePath
	}
	if changed("no-record") {
		cfg.Store.Record = !noRecord
	}
}

func (s *session) serveMetrics(addr string) error {
	handler := telemetry.MetricsHandler()
	if handler == nil {
		return errors.New("metrics handler unavailable")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	s.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	s.logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	return nil
}

// engine builds the run engine, opening the evidence store when one is
// configured.
func (s *session) engine() (*engine.Engine, error) {
	opts := []engine.Option{engine.WithLogger(s.logger.Slog())}
	if s.cfg.Store.Enabled() {
		db, err := storage.Open(storage.Config{
			Path:       s.cfg.Store.Path,
			InMemory:   s.cfg.Store.InMemory,
			SyncWrites: true,
			Logger:     s.logger.Slog().With(slog.String("component", "badger")),
		})
		if err != nil {
			return nil, err
		}
		s.db = db
		s.store = storage.NewEvidenceStore(db, s.logger.Slog())
		opts = append(opts, engine.WithEvidence(s.store))
	}
	return engine.New(s.cfg, opts...)
}

// teardown releases everything setup and the command acquired. Cobra
// skips post-run hooks when RunE fails, so execute calls it directly.
func teardown() error {
	s := current
	current = nil
	if s == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if s.store != nil {
		if err := s.store.Compact(0.5); err != nil {
			errs = append(errs, err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if s.metrics != nil {
		if err := s.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
	}
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if err := s.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
