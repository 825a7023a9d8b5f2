// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the YAML configuration of ladder runs.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default. The merged result is validated with struct tags.
//
//	family:
//	  s: 2
//	  alpha: "1/2"
//	scan:
//	  prime_lo: 5
//	  prime_hi: 100000
//	  start_n: 2
//	  end_n: 2000
//	  prune: true
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/PrimeLadder/services/ladder/factor"
	"github.com/AleutianAI/PrimeLadder/services/ladder/numerator"
	"github.com/AleutianAI/PrimeLadder/services/ladder/rational"
	"github.com/AleutianAI/PrimeLadder/services/ladder/recurrence"
	"github.com/AleutianAI/PrimeLadder/services/ladder/telemetry"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Config is the full run configuration.
type Config struct {
	Family    FamilyConfig     `yaml:"family"`
	Exact     ExactConfig      `yaml:"exact"`
	Scan      ScanConfig       `yaml:"scan"`
	Factor    FactorConfig     `yaml:"factor"`
	Store     StoreConfig      `yaml:"store"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// FamilyConfig selects the coefficient family. Rationals are written as
// "a/b" or integers.
type FamilyConfig struct {
	S     int    `yaml:"s" validate:"gte=1,lte=64"`
	Alpha string `yaml:"alpha" validate:"required"`

	// B0 overrides b_0 = -alpha^s when set.
	B0 string `yaml:"b0"`

	// Scale multiplies the recurrence sum. Empty means 1.
	Scale string `yaml:"scale"`
}

// ExactConfig drives the exact pairwise run.
type ExactConfig struct {
	// N is the highest index computed.
	N int `yaml:"n" validate:"gte=2"`

	// MinIndex is the first index admitted into ladder analysis.
	MinIndex int `yaml:"min_index" validate:"gte=0,ltefield=N"`

	// Divisor is removed from every numerator.
	Divisor int64 `yaml:"divisor" validate:"gte=1"`

	// Workers bounds the gcd pool. Zero means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0"`
}

// ScanConfig drives the direct modular-zero scan.
type ScanConfig struct {
	PrimeLo uint64 `yaml:"prime_lo" validate:"gte=2"`
	PrimeHi uint64 `yaml:"prime_hi" validate:"gtefield=PrimeLo,lt=9223372036854775808"`
	StartN  int    `yaml:"start_n" validate:"gte=0"`
	EndN    int    `yaml:"end_n" validate:"gtefield=StartN"`
	Workers int    `yaml:"workers" validate:"gte=0"`

	// Prune stops each prime at the first index that confirms it.
	Prune bool `yaml:"prune"`

	// Schoolbook disables Karatsuba in the Newton inversion.
	Schoolbook bool `yaml:"schoolbook"`
}

// FactorConfig bounds gcd factorization.
type FactorConfig struct {
	TrialLimit    uint64        `yaml:"trial_limit" validate:"gte=2"`
	MaxIterations int           `yaml:"max_iterations" validate:"gte=1"`
	MaxAttempts   int           `yaml:"max_attempts" validate:"gte=1"`
	MaxBits       int           `yaml:"max_bits" validate:"gte=8"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	CacheSize     int           `yaml:"cache_size" validate:"gte=0"`
}

// StoreConfig locates the evidence database.
type StoreConfig struct {
	// Path of the BadgerDB directory. Empty with InMemory false disables
	// the store.
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`

	// Record saves retained ladders after each scan.
	Record bool `yaml:"record"`
}

// Enabled reports whether a store should be opened.
func (s StoreConfig) Enabled() bool {
	return s.InMemory || s.Path != ""
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// Default returns the canonical s=2, alpha=1/2 setup with the window used
// by the regression fixtures.
func Default() Config {
	budget := factor.DefaultBudget()
	return Config{
		Family: FamilyConfig{S: 2, Alpha: "1/2"},
		Exact: ExactConfig{
			N:        100,
			MinIndex: numerator.DefaultMinIndex,
			Divisor:  numerator.DefaultDivisor,
		},
		Scan: ScanConfig{
			PrimeLo: 5,
			PrimeHi: 10000,
			StartN:  2,
			EndN:    100,
		},
		Factor: FactorConfig{
			TrialLimit:    budget.TrialLimit,
			MaxIterations: budget.MaxIterations,
			MaxAttempts:   budget.MaxAttempts,
			MaxBits:       budget.MaxBits,
			CacheSize:     4096,
		},
		Store:     StoreConfig{Record: true},
		Telemetry: telemetry.DefaultConfig(),
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags and that the family parses.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Family.Build(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Build returns the recurrence family described by f.
func (f FamilyConfig) Build() (recurrence.Family, error) {
	alpha, err := rational.Parse(f.Alpha)
	if err != nil {
		return recurrence.Family{}, fmt.Errorf("alpha: %w", err)
	}
	fam := recurrence.Family{S: f.S, Alpha: alpha}
	if f.B0 != "" {
		b0, err := rational.Parse(f.B0)
		if err != nil {
			return recurrence.Family{}, fmt.Errorf("b0: %w", err)
		}
		fam.B0 = &b0
	}
	if f.Scale != "" {
		scale, err := rational.Parse(f.Scale)
		if err != nil {
			return recurrence.Family{}, fmt.Errorf("scale: %w", err)
		}
		fam.Scale = &scale
	}
	if err := fam.Validate(); err != nil {
		return recurrence.Family{}, err
	}
	return fam, nil
}

// Budget converts the factor section.
func (f FactorConfig) Budget() factor.Budget {
	return factor.Budget{
		TrialLimit:    f.TrialLimit,
		MaxIterations: f.MaxIterations,
		MaxAttempts:   f.MaxAttempts,
		MaxBits:       f.MaxBits,
		Timeout:       f.Timeout,
	}
}
