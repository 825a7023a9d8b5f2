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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/PrimeLadder/services/ladder/engine"
	"github.com/AleutianAI/PrimeLadder/services/ladder/report"
)

func runSeries(cmd *cobra.Command, _ []string) error {
	e, err := current.engine()
	if err != nil {
		return err
	}
	rows, err := e.Series(cmd.Context(), seriesN)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), rows)
}

func runExact(cmd *cobra.Command, _ []string) error {
	e, err := current.engine()
	if err != nil {
		return err
	}
	run, err := e.RunExact(cmd.Context())
	return emitResult(cmd, e, run, err)
}

func runTable(cmd *cobra.Command, args []string) error {
	e, err := current.engine()
	if err != nil {
		return err
	}
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	run, err := e.RunTable(cmd.Context(), in)
	return emitResult(cmd, e, run, err)
}

func runScan(cmd *cobra.Command, _ []string) error {
	e, err := current.engine()
	if err != nil {
		return err
	}
	run, err := e.RunScan(cmd.Context())
	if err != nil {
		return err
	}
	return emitRun(cmd, e, run)
}

func runVerify(cmd *cobra.Command, _ []string) error {
	e, err := current.engine()
	if err != nil {
		return err
	}
	agreement, err := e.Verify(cmd.Context())
	if err != nil {
		return err
	}
	if err := writeJSON(cmd.OutOrStdout(), agreement); err != nil {
		return err
	}
	if !agreement.Agree {
		return fmt.Errorf("pairwise and modular detection disagree on [%d, %d]", agreement.PrimeLo, agreement.PrimeHi)
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	e, err := current.engine()
	if err != nil {
		return err
	}
	m, err := report.ReadPrimeIndex(args[0])
	if err != nil {
		return err
	}
	var c *engine.Classification
	if cmd.Flags().Changed("split") {
		c, err = engine.Classify(m.Ladders(), e.Form(), moduli, splitK)
	} else {
		c, err = e.Classify(m.Ladders(), moduli)
	}
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), c)
}

// runOutput is the stdout form of a run bundle.
type runOutput struct {
	Summary    report.Summary       `json:"summary"`
	PrimeIndex report.PrimeIndexMap `json:"prime_index"`
	Residues   report.ResidueTable  `json:"residues"`
	Ladders    report.LadderList    `json:"ladder_primes"`
}

// emitResult writes run even when err is set, so an aborted run still
// leaves a summary naming the failure.
func emitResult(cmd *cobra.Command, e *engine.Engine, run *engine.Run, err error) error {
	if run == nil {
		return err
	}
	return errors.Join(err, emitRun(cmd, e, run))
}

func emitRun(cmd *cobra.Command, e *engine.Engine, run *engine.Run) error {
	bundle := run.Bundle(e.Form())
	if outDir != "" {
		if err := bundle.WriteDir(outDir); err != nil {
			return err
		}
		current.logger.Info("results written", "dir", outDir, "run_id", run.ID)
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), runOutput{
		Summary:    bundle.Summary,
		PrimeIndex: bundle.Primes,
		Residues:   bundle.Residues,
		Ladders:    bundle.List,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
