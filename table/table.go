// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package table implements a column-oriented container of dynamic values.
//
// A Table is an ordered sequence of uniquely named columns. Every element of
// a column has the column's kind and all columns have the same length. A
// table is built column by column and is not modified once it has been
// handed to the transport.
package table

import (
	"fmt"
	"slices"

	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/objerr"
)

// Column is one named, homogeneous column.
type Column struct {
	Name   string
	Kind   flex.Kind
	Values []flex.Value
}

// Table holds columns in insertion order.
type Table struct {
	cols  []Column
	index map[string]int
}

// New returns an empty table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// AddColumn appends a column. It fails if name is empty or already present,
// if kind is not a value kind, if any element has a different kind, or if
// the length differs from the existing columns.
func (t *Table) AddColumn(name string, values []flex.Value, kind flex.Kind) error {
	if name == "" {
		return objerr.New(objerr.ConfigurationError, "column name must not be empty")
	}
	if _, ok := t.index[name]; ok {
		return objerr.New(objerr.ConfigurationError, "column %q already exists", name)
	}
	if !kind.Valid() {
		return objerr.New(objerr.TypeMismatch, "column %q: invalid kind %s", name, kind)
	}
	if len(t.cols) > 0 && len(values) != t.RowCount() {
		return objerr.New(objerr.ConfigurationError,
			"column %q has %d rows, table has %d", name, len(values), t.RowCount())
	}
	for i, v := range values {
		if v.Kind() != kind {
			return objerr.New(objerr.TypeMismatch,
				"column %q row %d: expected %s, got %s", name, i, kind, v.Kind())
		}
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	t.index[name] = len(t.cols)
	t.cols = append(t.cols, Column{Name: name, Kind: kind, Values: slices.Clone(values)})
	return nil
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]flex.Value, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, objerr.New(objerr.KeyNotFound, "column %q not found", name)
	}
	return slices.Clone(t.cols[i].Values), nil
}

// ColumnKind returns the kind of the named column.
func (t *Table) ColumnKind(name string) (flex.Kind, error) {
	i, ok := t.index[name]
	if !ok {
		return flex.Undefined, objerr.New(objerr.KeyNotFound, "column %q not found", name)
	}
	return t.cols[i].Kind, nil
}

// RowCount returns the shared column length, 0 for a table with no columns.
func (t *Table) RowCount() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0].Values)
}

func (t *Table) NumColumns() int { return len(t.cols) }

// ColumnNames returns the column names in insertion order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Row returns row i keyed by column name.
func (t *Table) Row(i int) (map[string]flex.Value, error) {
	if i < 0 || i >= t.RowCount() {
		return nil, objerr.New(objerr.KeyNotFound, "row %d out of range [0,%d)", i, t.RowCount())
	}
	row := make(map[string]flex.Value, len(t.cols))
	for _, c := range t.cols {
		row[c.Name] = c.Values[i]
	}
	return row, nil
}

// Equal reports whether both tables have the same column names, order,
// kinds and element-wise equal values.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.cols) != len(o.cols) {
		return false
	}
	for i, c := range t.cols {
		oc := o.cols[i]
		if c.Name != oc.Name || c.Kind != oc.Kind || len(c.Values) != len(oc.Values) {
			return false
		}
		for j := range c.Values {
			if c.Values[j].Kind() != oc.Values[j].Kind() || !flex.Equal(c.Values[j], oc.Values[j]) {
				return false
			}
		}
	}
	return true
}

// FromRecords converts a host row-oriented structure into a table. Every
// row must have len(names) cells; the kind of each column is taken from its
// first row and every other cell must convert to the same kind. Integers in
// a float column are widened.
func FromRecords(names []string, rows [][]any) (*Table, error) {
	t := New()
	cols := make([][]flex.Value, len(names))
	kinds := make([]flex.Kind, len(names))
	for r, row := range rows {
		if len(row) != len(names) {
			return nil, objerr.New(objerr.ConfigurationError,
				"row %d has %d cells, expected %d", r, len(row), len(names))
		}
		for c, cell := range row {
			v, err := flex.FromGo(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, names[c], err)
			}
			if r == 0 {
				kinds[c] = v.Kind()
			} else if v.Kind() == flex.Int && kinds[c] == flex.Float {
				f, _ := v.AsFloat()
				v = flex.NewFloat(f)
			}
			cols[c] = append(cols[c], v)
		}
	}
	for c, name := range names {
		kind := kinds[c]
		if kind == flex.Undefined {
			// No rows: nothing to infer from.
			kind = flex.String
		}
		if err := t.AddColumn(name, cols[c], kind); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FromColumns builds a table from column definitions in order.
func FromColumns(cols ...Column) (*Table, error) {
	t := New()
	for _, c := range cols {
		if err := t.AddColumn(c.Name, c.Values, c.Kind); err != nil {
			return nil, err
		}
	}
	return t, nil
}
