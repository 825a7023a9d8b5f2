// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/PrimeLadder/services/ladder/detect"
	"github.com/AleutianAI/PrimeLadder/services/ladder/residue"
)

// File names written by WriteDir.
const (
	FilePrimeIndex = "prime_index.json"
	FileResidues   = "residues.json"
	FileLadderList = "ladder_primes.json"
	FileSummary    = "summary.json"
)

// Summary describes one run.
type Summary struct {
	RunID       string              `json:"run_id"`
	Family      string              `json:"family"`
	Mode        string              `json:"mode"`
	Form        string              `json:"residue_form"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	Ladders     int                 `json:"ladders"`
	Truncated   bool                `json:"truncated"`
	Stats       detect.Stats        `json:"stats"`
	Diagnostics []detect.Diagnostic `json:"diagnostics"`
}

// Bundle holds every persisted output of a run.
type Bundle struct {
	Summary  Summary
	Primes   PrimeIndexMap
	Residues ResidueTable
	List     LadderList
}

// Meta identifies a run for NewBundle.
type Meta struct {
	RunID      string
	Family     string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewBundle derives all outputs from a detector result.
func NewBundle(meta Meta, res *detect.Result, form residue.Form) Bundle {
	diags := res.Diagnostics
	if diags == nil {
		diags = []detect.Diagnostic{}
	}
	return Bundle{
		Summary: Summary{
			RunID:       meta.RunID,
			Family:      meta.Family,
			Mode:        meta.Mode,
			Form:        form.String(),
			StartedAt:   meta.StartedAt.UTC(),
			FinishedAt:  meta.FinishedAt.UTC(),
			Ladders:     res.Ladders.Len(),
			Truncated:   res.Truncated,
			Stats:       res.Stats,
			Diagnostics: diags,
		},
		Primes:   NewPrimeIndexMap(res.Ladders),
		Residues: BuildResidueTable(res.Ladders, form),
		List:     NewLadderList(res.Ladders),
	}
}

// WriteDir writes the bundle as four JSON files under dir, creating it if
// needed.
func (b Bundle) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	files := []struct {
		name string
		v    any
	}{
		{FilePrimeIndex, b.Primes},
		{FileResidues, b.Residues},
		{FileLadderList, b.List},
		{FileSummary, b.Summary},
	}
	for _, f := range files {
		data, err := json.MarshalIndent(f.v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.name, err)
		}
		data = append(data, '\n')
		if err := os.WriteFile(filepath.Join(dir, f.name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}

// ReadPrimeIndex loads a prime -> index map file.
func ReadPrimeIndex(path string) (PrimeIndexMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PrimeIndexMap{}, err
	}
	var m PrimeIndexMap
	if err := json.Unmarshal(data, &m); err != nil {
		return PrimeIndexMap{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return m, nil
}
