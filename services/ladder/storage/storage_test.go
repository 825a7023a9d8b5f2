// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PrimeLadder/services/ladder/detect"
	"github.com/AleutianAI/PrimeLadder/services/ladder/recurrence"
)

func openTestStore(t *testing.T) *EvidenceStore {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEvidenceStore(db, nil)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorIs(t, err, ErrPathRequired)
}

func TestEvidenceStore_RecordAndKnownZeros(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	m := detect.NewLadderMap()
	m.AddUint(73, 11, 18)
	require.NoError(t, store.Record(ctx, "s2_a1_2", m))

	zeros, err := store.KnownZeros(ctx, "s2_a1_2", 73)
	require.NoError(t, err)
	assert.Equal(t, []int{11, 18}, zeros)

	zeros, err = store.KnownZeros(ctx, "s2_a1_2", 79)
	require.NoError(t, err)
	assert.Nil(t, zeros)

	zeros, err = store.KnownZeros(ctx, "s3_a1_2", 73)
	require.NoError(t, err)
	assert.Nil(t, zeros)
}

func TestEvidenceStore_RecordMerges(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	first := detect.NewLadderMap()
	first.AddUint(73, 11, 18)
	second := detect.NewLadderMap()
	second.AddUint(73, 18, 120)
	second.AddUint(199, 19, 22)

	require.NoError(t, store.Record(ctx, "s2_a1_2", first))
	require.NoError(t, store.Record(ctx, "s2_a1_2", second))
	require.NoError(t, store.Record(ctx, "s2_a1_2", second))

	all, err := store.Load(ctx, "s2_a1_2")
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"73": {11, 18, 120}, "199": {19, 22}}, all.Strings())

	other, err := store.Load(ctx, "s2_a1_2_b1_16")
	require.NoError(t, err)
	assert.Equal(t, 0, other.Len())
}

func TestEvidenceStore_CancelledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.KnownZeros(ctx, "s2_a1_2", 73)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Record(ctx, "s2_a1_2", detect.NewLadderMap()), context.Canceled)
}

func TestEvidenceStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "evidence")

	db, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	store := NewEvidenceStore(db, nil)
	m := detect.NewLadderMap()
	m.AddUint(103, 37, 42)
	require.NoError(t, store.Record(ctx, "s2_a1_2", m))
	require.NoError(t, store.Compact(0.5))
	require.NoError(t, db.Close())

	db, err = Open(DefaultConfig(path))
	require.NoError(t, err)
	defer db.Close()
	zeros, err := NewEvidenceStore(db, nil).KnownZeros(ctx, "s2_a1_2", 103)
	require.NoError(t, err)
	assert.Equal(t, []int{37, 42}, zeros)
}

func TestEvidenceStore_FeedsDirectScan(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	fam := recurrence.Canonical()

	first, err := detect.DirectScan(ctx, fam, detect.ScanOptions{
		PrimeLo: 73, PrimeHi: 73, StartN: 2, EndN: 100, Prior: store,
	})
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, fam.ID(), first.Ladders))

	zeros, err := store.KnownZeros(ctx, fam.ID(), 73)
	require.NoError(t, err)
	assert.Equal(t, []int{11, 18}, zeros)

	second, err := detect.DirectScan(ctx, fam, detect.ScanOptions{
		PrimeLo: 73, PrimeHi: 73, StartN: 15, EndN: 100, Prior: store,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{11, 18}, second.Ladders.IndicesUint(73))
}
