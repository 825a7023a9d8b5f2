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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PrimeLadder/services/ladder/report"
)

// resetFlags restores every flag to its default so commands can run more
// than once in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--log-level", "warn"}, args...))
	err := execute(context.Background())
	return stdout.String(), err
}

func TestSeries(t *testing.T) {
	out, err := runCLI(t, "series", "-n", "3")
	require.NoError(t, err)

	var rows []struct {
		N int         `json:"n"`
		B string      `json:"b"`
		M json.Number `json:"m"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 4)
	assert.Equal(t, "-1/4", rows[0].B)
	assert.Equal(t, "14/2025", rows[2].B)
	assert.Equal(t, "7", rows[2].M.String())
}

func TestExact(t *testing.T) {
	out, err := runCLI(t, "exact", "--max-n", "30")
	require.NoError(t, err)

	var got struct {
		Summary    report.Summary      `json:"summary"`
		PrimeIndex map[string][]int    `json:"prime_index"`
		Residues   map[string][][2]int `json:"residues"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "s2_a1_2", got.Summary.Family)
	assert.Equal(t, "exact", got.Summary.Mode)
	assert.Equal(t, []int{11, 18}, got.PrimeIndex["73"])
	assert.Equal(t, [][2]int{{11, 23}, {18, 37}}, got.Residues["73"])
}

func TestScan_WritesFilesAndEvidence(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	store := filepath.Join(dir, "store")

	_, err := runCLI(t, "scan", "--prime-lo", "70", "--prime-hi", "80", "--end-n", "100",
		"--store", store, "--out", out)
	require.NoError(t, err)

	m, err := report.ReadPrimeIndex(filepath.Join(out, report.FilePrimeIndex))
	require.NoError(t, err)
	assert.Equal(t, []int{11, 18}, m.Ladders().IndicesUint(73))

	// A later window starting past 11 still confirms 73 from one new zero.
	stdout, err := runCLI(t, "scan", "--prime-lo", "73", "--prime-hi", "73",
		"--start-n", "15", "--end-n", "100", "--store", store, "--no-record")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"73": [`)
}

func TestTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coeffs.csv")
	require.NoError(t, os.WriteFile(path, []byte("n,N_n\n4,30\n2,12\n3,-20\n"), 0o600))

	out, err := runCLI(t, "table", path)
	require.NoError(t, err)

	var got struct {
		PrimeIndex map[string][]int `json:"prime_index"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string][]int{"2": {2, 3}, "3": {2, 4}, "5": {3, 4}}, got.PrimeIndex)
}

func TestVerify(t *testing.T) {
	out, err := runCLI(t, "verify", "--max-n", "40", "--prime-hi", "1500")
	require.NoError(t, err)
	assert.Contains(t, out, `"agree": true`)
}

func TestClassify(t *testing.T) {
	path := filepath.Join(t.TempDir(), report.FilePrimeIndex)
	require.NoError(t, os.WriteFile(path, []byte(`{"73":[11,18],"199":[19,22]}`), 0o600))

	out, err := runCLI(t, "classify", path, "--moduli", "4,60", "--split", "3")
	require.NoError(t, err)

	var got struct {
		Form         string                      `json:"form"`
		PrimeClasses map[string]map[string]int64 `json:"prime_classes"`
		Split        struct {
			Split []string `json:"split"`
			Inert []string `json:"inert"`
		} `json:"split"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "2n+1", got.Form)
	assert.Equal(t, int64(19), got.PrimeClasses["199"]["60"])
	assert.Equal(t, []string{"73", "199"}, got.Split.Split)
	assert.Empty(t, got.Split.Inert)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ladder.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
scan:
  prime_lo: 73
  prime_hi: 73
  end_n: 100
`), 0o600))

	out, err := runCLI(t, "--config", cfgPath, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, `"73": [`)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("scan:\n  prime_lo: 9\n  prime_hi: 3\n"), 0o600))
	_, err = runCLI(t, "--config", bad, "scan")
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := runCLI(t, "series", "--log-level", "chatty")
	assert.Error(t, err)
}

func TestFailedCommandReleasesStore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ladder.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
store:
  path: `+filepath.Join(dir, "store")+`
scan:
  prime_lo: 73
  prime_hi: 73
  end_n: 100
`), 0o600))

	_, err := runCLI(t, "--config", cfgPath, "table", filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.Nil(t, current)

	out, err := runCLI(t, "--config", cfgPath, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, `"73": [`)
}

func TestTable_InvariantViolationStillReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coeffs.csv")
	require.NoError(t, os.WriteFile(path, []byte("n,N_n\n2,14\n3,15\n"), 0o600))

	out, err := runCLI(t, "table", path)
	require.Error(t, err)
	assert.Contains(t, out, `"kind": "invariant_violation"`)
}
