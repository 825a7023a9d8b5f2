// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package numerator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
)

// Column names of the coefficient table.
const (
	ColumnIndex     = "n"
	ColumnNumerator = "N_n"
)

// ErrMissingColumn is returned when the table header lacks n or N_n.
var ErrMissingColumn = errors.New("missing required column")

// Row is one record of the coefficient table: the index n and the signed
// numerator N_n.
type Row struct {
	N         int
	Numerator *big.Int
}

// ReadTable parses a CSV table whose header contains the columns n and N_n.
// Other columns are ignored and rows may appear in any order.
func ReadTable(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	nCol, numCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case ColumnIndex:
			nCol = i
		case ColumnNumerator:
			numCol = i
		}
	}
	if nCol < 0 || numCol < 0 {
		return nil, fmt.Errorf("%w: need %q and %q, got %v", ErrMissingColumn, ColumnIndex, ColumnNumerator, header)
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if len(record) <= max(nCol, numCol) {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, max(nCol, numCol)+1, len(record))
		}
		n, err := strconv.Atoi(strings.TrimSpace(record[nCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: parse n: %w", line, err)
		}
		num, ok := new(big.Int).SetString(strings.TrimSpace(record[numCol]), 10)
		if !ok {
			return nil, fmt.Errorf("line %d: parse N_n %q", line, record[numCol])
		}
		rows = append(rows, Row{N: n, Numerator: num})
	}
	return rows, nil
}
