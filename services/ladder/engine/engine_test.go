// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PrimeLadder/services/ladder/config"
	"github.com/AleutianAI/PrimeLadder/services/ladder/detect"
	"github.com/AleutianAI/PrimeLadder/services/ladder/numerator"
	"github.com/AleutianAI/PrimeLadder/services/ladder/residue"
	"github.com/AleutianAI/PrimeLadder/services/ladder/storage"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Scan.PrimeHi = 3000
	return cfg
}

func newEngine(t *testing.T, cfg config.Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Family.Alpha = "0"
	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSeries_FirstTerms(t *testing.T) {
	e := newEngine(t, testConfig())
	rows, err := e.Series(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "-1/4", rows[0].B)
	assert.Nil(t, rows[0].M)
	assert.Equal(t, "1/36", rows[1].B)
	assert.Equal(t, "14/2025", rows[2].B)
	require.NotNil(t, rows[2].M)
	assert.Equal(t, int64(7), rows[2].M.Int64())
}

func TestSeries_ParityHoldsToHundred(t *testing.T) {
	e := newEngine(t, testConfig())
	rows, err := e.Series(context.Background(), 100)
	require.NoError(t, err)
	for _, row := range rows[2:] {
		require.NotNil(t, row.M, "n=%d", row.N)
		assert.GreaterOrEqual(t, row.M.Sign(), 0, "n=%d", row.N)
	}
}

func TestRunExact_Prime73(t *testing.T) {
	e := newEngine(t, testConfig())
	run, err := e.RunExact(context.Background())
	require.NoError(t, err)

	_, err = uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, ModeExact, run.Mode)
	assert.Equal(t, "s2_a1_2", run.Family)
	assert.Equal(t, []int{11, 18}, run.Result.Ladders.IndicesUint(73))

	bundle := run.Bundle(e.Form())
	require.NoError(t, bundle.Residues.Verify())
	assert.Equal(t, run.ID, bundle.Summary.RunID)
}

func TestRunTable_MatchesExact(t *testing.T) {
	cfg := testConfig()
	cfg.Exact.N = 30
	e := newEngine(t, cfg)

	rows, err := e.Series(context.Background(), 30)
	require.NoError(t, err)
	var csv strings.Builder
	csv.WriteString("label,N_n,n\n")
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		num := new(big.Int)
		num.SetString(strings.SplitN(r.B, "/", 2)[0], 10)
		fmt.Fprintf(&csv, "b%d,%s,%d\n", r.N, num, r.N)
	}

	fromTable, err := e.RunTable(context.Background(), strings.NewReader(csv.String()))
	require.NoError(t, err)
	exact, err := e.RunExact(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(exact.Result.Ladders.Strings(), fromTable.Result.Ladders.Strings()); diff != "" {
		t.Errorf("table run differs from exact run (-exact +table):\n%s", diff)
	}
}

func TestRunTable_OddNumerator(t *testing.T) {
	e := newEngine(t, testConfig())
	run, err := e.RunTable(context.Background(), strings.NewReader("n,N_n\n2,14\n3,15\n"))
	assert.ErrorIs(t, err, numerator.ErrInvariantViolation)

	require.NotNil(t, run)
	require.Len(t, run.Result.Diagnostics, 1)
	d := run.Result.Diagnostics[0]
	assert.Equal(t, detect.KindInvariantViolation, d.Kind)
	assert.Equal(t, []int{3}, d.Indices)
	assert.Zero(t, run.Result.Ladders.Len())
}

func TestRunScan_RecordsEvidence(t *testing.T) {
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	store := storage.NewEvidenceStore(db, nil)

	cfg := testConfig()
	cfg.Scan.PrimeLo, cfg.Scan.PrimeHi = 70, 110
	e := newEngine(t, cfg, WithEvidence(store))

	run, err := e.RunScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{11, 18}, run.Result.Ladders.IndicesUint(73))

	zeros, err := store.KnownZeros(context.Background(), "s2_a1_2", 73)
	require.NoError(t, err)
	assert.Equal(t, []int{11, 18}, zeros)
}

func TestRunScan_CancelledIsNotRecorded(t *testing.T) {
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	store := storage.NewEvidenceStore(db, nil)

	e := newEngine(t, testConfig(), WithEvidence(store))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := e.RunScan(ctx)
	require.NoError(t, err)
	assert.True(t, run.Result.Truncated)

	all, err := store.Load(context.Background(), "s2_a1_2")
	require.NoError(t, err)
	assert.Equal(t, 0, all.Len())
}

func TestVerify_ModesAgree(t *testing.T) {
	e := newEngine(t, testConfig())
	agreement, err := e.Verify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(202), agreement.PrimeLo)
	assert.True(t, agreement.Agree, "only pairwise %v, only direct %v, mismatched %v",
		agreement.OnlyPairwise, agreement.OnlyDirect, agreement.Mismatched)

	data, err := json.Marshal(agreement)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"agree":true`)
}

func TestVerify_EmptyRange(t *testing.T) {
	cfg := testConfig()
	cfg.Scan.PrimeHi = 150
	_, err := newEngine(t, cfg).Verify(context.Background())
	assert.ErrorIs(t, err, ErrEmptyRange)
}

func TestComparableFloor(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, uint64(202), newEngine(t, cfg).ComparableFloor(100))

	cfg.Family.B0 = "1/1000"
	assert.Equal(t, uint64(1001), newEngine(t, cfg).ComparableFloor(100))
}

func TestClassify(t *testing.T) {
	m := detect.NewLadderMap()
	m.AddUint(73, 11, 18)
	m.AddUint(199, 19, 22)

	c, err := Classify(m, residue.Canonical, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "2n+1", c.Form)
	assert.Equal(t, int64(1), c.PrimeClasses["73"][4])
	assert.Equal(t, int64(19), c.PrimeClasses["199"][60])
	assert.Equal(t, []string{"73"}, c.Groups[4][1])
	assert.Equal(t, []string{"199"}, c.Groups[4][3])
	assert.Nil(t, c.Split)
	require.NoError(t, c.Residues.Verify())

	_, err = json.Marshal(c)
	require.NoError(t, err)
}

func TestEngineClassify_SplitLawForReciprocal(t *testing.T) {
	cfg := testConfig()
	cfg.Family.Alpha = "1/5"
	e := newEngine(t, cfg)

	m := detect.NewLadderMap()
	m.AddUint(11, 1, 2)
	m.AddUint(13, 1, 2)
	c, err := e.Classify(m, []int64{5})
	require.NoError(t, err)
	require.NotNil(t, c.Split)
	assert.Equal(t, []string{"11"}, c.Split.Split)
	assert.Equal(t, []string{"13"}, c.Split.Inert)
	assert.Equal(t, "5n+1", c.Form)
}
