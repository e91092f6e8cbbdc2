// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package demo

import (
	"context"

	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/table"
)

// Version is reported by globals.version.
var Version = "objrpc-demo/1"

// Globals is stateless and shared by every connection. It is bound to
// GlobalsDescriptor at registration rather than through GlobalsBase: Scale
// hands back an unforced table.Source, which the dispatcher materializes.
type Globals struct{}

func (Globals) Reentrant() bool { return true }

func (Globals) Version(context.Context) (string, error) { return Version, nil }

func (Globals) Echo(_ context.Context, v flex.Value) (flex.Value, error) { return v, nil }

// ColumnSums sums every numeric column. Integer columns sum to an integer;
// other columns are left out.
func (Globals) ColumnSums(_ context.Context, t *table.Table) (map[string]flex.Value, error) {
	out := make(map[string]flex.Value)
	for _, name := range t.ColumnNames() {
		kind, err := t.ColumnKind(name)
		if err != nil {
			return nil, err
		}
		if !kind.Numeric() {
			continue
		}
		values, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		sum := flex.NewInt(0)
		if kind == flex.Float {
			sum = flex.NewFloat(0)
		}
		for _, v := range values {
			if sum, err = flex.Add(sum, v); err != nil {
				return nil, err
			}
		}
		out[name] = sum
	}
	return out, nil
}

// Scale multiplies every numeric column by factor. Scaled columns become
// float columns; the rest are copied. Nothing is computed until the result
// is materialized.
func (Globals) Scale(_ context.Context, t *table.Table, factor float64) (table.Source, error) {
	if t == nil {
		return nil, objerr.New(objerr.TypeMismatch, "nil table")
	}
	return table.Map(t, func(in *table.Table) (*table.Table, error) {
		return scaleTable(in, factor)
	}), nil
}

func scaleTable(in *table.Table, factor float64) (*table.Table, error) {
	f := flex.NewFloat(factor)
	cols := make([]table.Column, 0, in.NumColumns())
	for _, name := range in.ColumnNames() {
		kind, err := in.ColumnKind(name)
		if err != nil {
			return nil, err
		}
		values, err := in.Column(name)
		if err != nil {
			return nil, err
		}
		if kind.Numeric() {
			scaled := make([]flex.Value, len(values))
			for i, v := range values {
				if scaled[i], err = flex.Mul(v, f); err != nil {
					return nil, err
				}
			}
			values, kind = scaled, flex.Float
		}
		cols = append(cols, table.Column{Name: name, Kind: kind, Values: values})
	}
	return table.FromColumns(cols...)
}
