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
	"github.com/spf13/cobra"
)

// --- Global flags ---
var (
	configPath  string
	logLevel    string
	logJSON     bool
	metricsAddr string
	outDir      string

	// --- Command flags ---
	seriesN     int
	exactN      int
	scanPrimeLo uint64
	scanPrimeHi uint64
	scanStartN  int
	scanEndN    int
	scanPrune   bool
	workers     int
	storePath   string
	noRecord    bool
	moduli      []int64
	splitK      int64

	rootCmd = &cobra.Command{
		Use:   "ladder",
		Short: "Find ladder primes of the convolution sequence b_n(s, alpha)",
		Long: `ladder computes the coefficients of B(t) = b_0 / D(t) exactly and
modulo primes, and reports primes dividing the normalized numerators
at two or more indices.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	seriesCmd = &cobra.Command{
		Use:   "series",
		Short: "Print b_0..b_n and the normalized numerators M_n",
		Args:  cobra.NoArgs,
		RunE:  runSeries,
	}

	exactCmd = &cobra.Command{
		Use:   "exact",
		Short: "Find ladder primes by pairwise gcd of exact numerators",
		Args:  cobra.NoArgs,
		RunE:  runExact,
	}

	tableCmd = &cobra.Command{
		Use:   "table [csv file]",
		Short: "Find ladder primes from an n,N_n table (stdin when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTable,
	}

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Find ladder primes by modular zeros over a prime range",
		Args:  cobra.NoArgs,
		RunE:  runScan,
	}

	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Check that pairwise and modular detection agree",
		Args:  cobra.NoArgs,
		RunE:  runVerify,
	}

	classifyCmd = &cobra.Command{
		Use:   "classify [prime_index.json]",
		Short: "Classify the primes and indices of a ladder map by residue",
		Args:  cobra.ExactArgs(1),
		RunE:  runClassify,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML configuration file")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&logJSON, "log-json", false, "log as JSON on stderr")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	pf.StringVar(&outDir, "out", "", "write result files to this directory instead of stdout")

	seriesCmd.Flags().IntVarP(&seriesN, "terms", "n", 10, "highest index")

	exactCmd.Flags().IntVarP(&exactN, "max-n", "n", 0, "highest index (overrides exact.n)")
	exactCmd.Flags().IntVar(&workers, "workers", 0, "worker pool size (0 = GOMAXPROCS)")

	tableCmd.Flags().IntVar(&workers, "workers", 0, "worker pool size (0 = GOMAXPROCS)")

	sf := scanCmd.Flags()
	sf.Uint64Var(&scanPrimeLo, "prime-lo", 0, "smallest candidate prime (overrides scan.prime_lo)")
	sf.Uint64Var(&scanPrimeHi, "prime-hi", 0, "largest candidate prime (overrides scan.prime_hi)")
	sf.IntVar(&scanStartN, "start-n", 0, "first target index (overrides scan.start_n)")
	sf.IntVar(&scanEndN, "end-n", 0, "last target index (overrides scan.end_n)")
	sf.BoolVar(&scanPrune, "prune", false, "stop each prime once it is confirmed")
	sf.IntVar(&workers, "workers", 0, "worker pool size (0 = GOMAXPROCS)")
	sf.StringVar(&storePath, "store", "", "evidence database directory (overrides store.path)")
	sf.BoolVar(&noRecord, "no-record", false, "do not save retained ladders to the store")

	verifyCmd.Flags().IntVarP(&exactN, "max-n", "n", 0, "highest index (overrides exact.n)")
	verifyCmd.Flags().Uint64Var(&scanPrimeHi, "prime-hi", 0, "largest compared prime (overrides scan.prime_hi)")

	classifyCmd.Flags().Int64SliceVar(&moduli, "moduli", nil, "moduli for prime classes (default 4,8,60)")
	classifyCmd.Flags().Int64Var(&splitK, "split", 0, "report the p = 1 mod k split law for this k")

	rootCmd.AddCommand(seriesCmd, exactCmd, tableCmd, scanCmd, verifyCmd, classifyCmd)
}
