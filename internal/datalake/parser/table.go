// Package parser reads instrument files (csv, xls, xlsx) into a Table of
// text cells. The first physical row of every file is a banner and is
// dropped; the second row is the header. No value is ever coerced to a
// number or date.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrDecode marks input whose bytes could not be decoded or whose
	// container format is not what the extension claims.
	ErrDecode = errors.New("decode error")
	// ErrNoColumns is returned when the file has no header row.
	ErrNoColumns = errors.New("no columns to parse from file")
)

// Row maps a column name to its cell; nil means the cell had no value.
type Row map[string]*string

// Table is the parsed content of a file.
type Table struct {
	Columns []string
	Rows    []Row
	// Skipped counts malformed lines dropped while reading.
	Skipped int
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// HasColumn reports whether name is one of the header columns.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// MissingColumns returns the names from required that are absent, in the
// order given.
func (t *Table) MissingColumns(required []string) []string {
	var missing []string
	for _, r := range required {
		if !t.HasColumn(r) {
			missing = append(missing, r)
		}
	}
	return missing
}

// naTokens are the spellings treated as "no value" when they make up a
// whole cell.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// cell converts raw text to a cell value, mapping missing-value tokens to nil.
func cell(raw string) *string {
	if _, ok := naTokens[raw]; ok {
		return nil
	}
	v := raw
	return &v
}

// headerNames resolves blank and repeated header cells: blanks become
// "Unnamed: <i>", repeats get a ".<n>" suffix.
func headerNames(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, name := range raw {
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

// builder accumulates rows against a fixed header.
type builder struct {
	table *Table
}

func newBuilder(header []string) *builder {
	return &builder{table: &Table{Columns: headerNames(header)}}
}

// add appends a row. Short rows are padded with nil cells; rows wider than
// the header are rejected and reported as false.
func (b *builder) add(fields []string) bool {
	if len(fields) > len(b.table.Columns) {
		b.table.Skipped++
		return false
	}
	row := make(Row, len(b.table.Columns))
	for i, col := range b.table.Columns {
		if i < len(fields) {
			row[col] = cell(fields[i])
		} else {
			row[col] = nil
		}
	}
	b.table.Rows = append(b.table.Rows, row)
	return true
}

func blank(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}

// StripTimeOfDay keeps only the date part of every value in column col.
// Spreadsheet readers render date cells with a trailing "00:00:00" or as
// an ISO timestamp.
func (t *Table) StripTimeOfDay(col string) {
	if !t.HasColumn(col) {
		return
	}
	for _, row := range t.Rows {
		v := row[col]
		if v == nil {
			continue
		}
		parts := strings.Fields(*v)
		if len(parts) == 0 {
			row[col] = nil
			continue
		}
		d := parts[0]
		if isoDateTime(d) {
			d = d[:10]
		}
		row[col] = &d
	}
}

// isoDateTime matches "YYYY-MM-DDT...".
func isoDateTime(s string) bool {
	return len(s) > 10 && s[4] == '-' && s[7] == '-' && s[10] == 'T'
}
