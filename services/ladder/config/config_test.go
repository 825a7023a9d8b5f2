// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PrimeLadder/services/ladder/recurrence"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ladder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	fam, err := cfg.Family.Build()
	require.NoError(t, err)
	assert.Equal(t, recurrence.Canonical().ID(), fam.ID())
}

func TestLoad_PartialOverride(t *testing.T) {
	path := writeConfig(t, `
family:
  s: 3
  alpha: "1/2"
  b0: "1/16"
  scale: "1/2"
scan:
  prime_hi: 50000
  prune: true
factor:
  timeout: 2s
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	fam, err := cfg.Family.Build()
	require.NoError(t, err)
	assert.Equal(t, recurrence.Cubic().ID(), fam.ID())
	assert.Equal(t, uint64(50000), cfg.Scan.PrimeHi)
	assert.Equal(t, uint64(5), cfg.Scan.PrimeLo)
	assert.True(t, cfg.Scan.Prune)
	assert.Equal(t, 2*time.Second, cfg.Factor.Budget().Timeout)
	assert.Equal(t, 100, cfg.Exact.N)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"inverted prime range", "scan:\n  prime_lo: 100\n  prime_hi: 10\n"},
		{"inverted window", "scan:\n  start_n: 50\n  end_n: 10\n"},
		{"bad exponent", "family:\n  s: 0\n"},
		{"bad alpha", "family:\n  alpha: \"x/2\"\n"},
		{"negative alpha", "family:\n  alpha: \"-1/2\"\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"bad exporter", "telemetry:\n  trace_exporter: zipkin\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "family: [unclosed"))
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	data, err := cfg.Marshal()
	require.NoError(t, err)

	loaded, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg.Scan, loaded.Scan)
	assert.Equal(t, cfg.Family, loaded.Family)
}

func TestStoreConfig_Enabled(t *testing.T) {
	assert.False(t, StoreConfig{}.Enabled())
	assert.True(t, StoreConfig{InMemory: true}.Enabled())
	assert.True(t, StoreConfig{Path: "/tmp/x"}.Enabled())
}
