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
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PrimeLadder/services/ladder/detect"
	"github.com/AleutianAI/PrimeLadder/services/ladder/residue"
)

func sampleLadders() *detect.LadderMap {
	m := detect.NewLadderMap()
	m.AddUint(199, 19, 22)
	m.AddUint(73, 18, 11)
	m.AddUint(1009, 40, 88)
	return m
}

func TestPrimeIndexMap_NumericKeyOrder(t *testing.T) {
	data, err := json.Marshal(NewPrimeIndexMap(sampleLadders()))
	require.NoError(t, err)
	assert.Equal(t, `{"73":[11,18],"199":[19,22],"1009":[40,88]}`, string(data))

	var back PrimeIndexMap
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, sampleLadders().Equal(back.Ladders()))
}

func TestPrimeIndexMap_Empty(t *testing.T) {
	data, err := json.Marshal(PrimeIndexMap{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestPrimeIndexMap_BadKey(t *testing.T) {
	var m PrimeIndexMap
	err := json.Unmarshal([]byte(`{"seventy":[1,2]}`), &m)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestResidueTable_Encode(t *testing.T) {
	m := detect.NewLadderMap()
	m.AddUint(73, 11, 18)
	table := BuildResidueTable(m, residue.Canonical)

	data, err := json.Marshal(table)
	require.NoError(t, err)
	assert.Equal(t, `{"73":[[11,23],[18,37]]}`, string(data))

	var back ResidueTable
	require.NoError(t, json.Unmarshal(data, &back))
	back.Form = residue.Canonical
	require.NoError(t, back.Verify())
	require.Len(t, back.Rows, 1)
	assert.Equal(t, int64(73), back.Rows[0].Prime.Int64())
}

func TestResidueTable_ConsistentWithDetector(t *testing.T) {
	table := BuildResidueTable(sampleLadders(), residue.Canonical)
	require.NoError(t, table.Verify())

	table.Rows[0].Entries[0].Residue = big.NewInt(0)
	assert.ErrorIs(t, table.Verify(), residue.ErrMismatch)
}

func TestResidueTable_Malformed(t *testing.T) {
	var table ResidueTable
	err := json.Unmarshal([]byte(`{"73":[[11]]}`), &table)
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestLadderList(t *testing.T) {
	data, err := json.Marshal(NewLadderList(sampleLadders()))
	require.NoError(t, err)
	assert.Equal(t, `[73,199,1009]`, string(data))

	data, err = json.Marshal(NewLadderList(detect.NewLadderMap()))
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestBundle_WriteDir(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	res := &detect.Result{
		Ladders: sampleLadders(),
		Diagnostics: []detect.Diagnostic{
			{Kind: detect.KindModularPrecondition, Prime: "2", Detail: "excluded"},
		},
	}
	bundle := NewBundle(Meta{
		RunID:      "run-1",
		Family:     "s2_a1_2",
		Mode:       "scan",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}, res, residue.Canonical)
	require.NoError(t, bundle.WriteDir(dir))

	for _, name := range []string{FilePrimeIndex, FileResidues, FileLadderList, FileSummary} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	m, err := ReadPrimeIndex(filepath.Join(dir, FilePrimeIndex))
	require.NoError(t, err)
	assert.True(t, res.Ladders.Equal(m.Ladders()))

	data, err := os.ReadFile(filepath.Join(dir, FileSummary))
	require.NoError(t, err)
	var summary Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, "2n+1", summary.Form)
	assert.Equal(t, 3, summary.Ladders)
	require.Len(t, summary.Diagnostics, 1)
	assert.Equal(t, detect.KindModularPrecondition, summary.Diagnostics[0].Kind)
}

func TestBundle_ByteIdentical(t *testing.T) {
	res := &detect.Result{Ladders: sampleLadders()}
	meta := Meta{RunID: "r", Family: "f", Mode: "exact"}
	a, b := t.TempDir(), t.TempDir()
	require.NoError(t, NewBundle(meta, res, residue.Canonical).WriteDir(a))
	require.NoError(t, NewBundle(meta, res, residue.Canonical).WriteDir(b))

	for _, name := range []string{FilePrimeIndex, FileResidues, FileLadderList} {
		x, err := os.ReadFile(filepath.Join(a, name))
		require.NoError(t, err)
		y, err := os.ReadFile(filepath.Join(b, name))
		require.NoError(t, err)
		assert.Equal(t, string(x), string(y), name)
	}
}
