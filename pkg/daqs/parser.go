// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package daqs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseLastRecord reads a comma separated data file and returns the snapshot of
// its last well-formed row. Rows whose field count differs from the header, or
// that break quoting rules, are skipped. The snapshot is only returned once every
// field has been parsed, so a bad record never yields partial values.
func ParseLastRecord(r io.Reader) (*Snapshot, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}

		return nil, fmt.Errorf("%w: %w", ErrNoHeader, err)
	}

	width := len(header)

	modules, err := ModuleCount(width)
	if err != nil {
		return nil, err
	}

	last, err := lastRow(reader, width)
	if err != nil {
		return nil, err
	}

	if last == nil {
		return nil, ErrNoDataRows
	}

	return buildSnapshot(last, width, modules)
}

// lastRow returns a copy of the last row with exactly width fields, or nil if there is none.
// A quote left open across lines until the end of the file hides every later row,
// so it fails the read instead of falling back to an older row.
func lastRow(reader *csv.Reader, width int) ([]string, error) {
	var (
		last      []string
		openQuote *csv.ParseError
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			if openQuote != nil {
				return nil, fmt.Errorf("%w: started on line %d", ErrUnterminatedQuote, openQuote.StartLine)
			}

			return last, nil
		}

		openQuote = nil

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			if errors.Is(parseErr.Err, csv.ErrQuote) && parseErr.Line > parseErr.StartLine {
				openQuote = parseErr
			}

			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read data rows: %w", err)
		}

		if len(row) != width {
			continue
		}

		last = append(last[:0], row...)
	}
}

func buildSnapshot(row []string, width int, modules int) (*Snapshot, error) {
	ts, ok, err := parseField(row[TimestampColumn])
	if err != nil {
		return nil, &FieldError{Column: TimestampColumn, Module: -1, Value: row[TimestampColumn], Err: err}
	}

	if !ok {
		return nil, ErrMissingTimestamp
	}

	snapshot := &Snapshot{
		Timestamp:   ts,
		Modules:     make([]ModuleReading, modules),
		HeaderWidth: width,
	}

	for i := range snapshot.Modules {
		reading := ModuleReading{Index: i}

		for _, q := range Quantities {
			col := Column(i, q)

			value, present, err := parseField(row[col])
			if err != nil {
				return nil, &FieldError{Column: col, Module: i, Value: row[col], Err: err}
			}

			reading.Values[q] = Measurement{Value: value, Present: present}
		}

		snapshot.Modules[i] = reading
	}

	return snapshot, nil
}

// parseField returns present=false for an empty field.
func parseField(raw string) (float64, bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false, nil
	}

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false, err
	}

	return value, true, nil
}
