// Package table holds decoded tabular data in memory.
package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmpty  = errors.New("table has no data rows")
	ErrNarrow = errors.New("table needs at least two columns")
)

// Table is a read-only, row-major grid of raw cell strings with a header.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New validates and builds a Table. rows are copied.
func New(columns []string, rows [][]string) (*Table, error) {
	if len(columns) < 2 {
		return nil, ErrNarrow
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	cols := cleanHeader(columns)
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c] = i
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, fmt.Errorf("row %d has %d fields, want %d", i+1, len(r), len(cols))
		}
		out[i] = append([]string(nil), r...)
	}
	return &Table{columns: cols, index: idx, rows: out}, nil
}

// Columns returns the header in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Width is the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Index returns the position of a column.
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Value returns the raw cell, trimmed.
func (t *Table) Value(row, col int) string {
	return strings.TrimSpace(t.rows[row][col])
}

// Column returns a copy of a column's raw values.
func (t *Table) Column(name string) ([]string, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.rows))
	for r := range t.rows {
		out[r] = t.Value(r, i)
	}
	return out, true
}

// Float parses a cell as a number. ok is false for missing or non-numeric cells.
func (t *Table) Float(row, col int) (float64, bool) {
	return ParseFloat(t.Value(row, col))
}

var missingTokens = map[string]struct{}{
	"": {}, "na": {}, "n/a": {}, "null": {}, "nan": {}, "none": {}, "-": {},
}

// IsMissing reports whether a raw cell represents a missing value.
func IsMissing(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseFloat parses numeric cells, tolerating thousands separators.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v, err = strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil {
			return 0, false
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func cleanHeader(columns []string) []string {
	out := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		name := strings.Join(strings.Fields(c), " ")
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}
