// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package table

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/internal/wire"
	"github.com/luxfi/objrpc/objerr"
)

func ints(ns ...int64) []flex.Value {
	out := make([]flex.Value, len(ns))
	for i, n := range ns {
		out[i] = flex.NewInt(n)
	}
	return out
}

func strs(ss ...string) []flex.Value {
	out := make([]flex.Value, len(ss))
	for i, s := range ss {
		out[i] = flex.NewString(s)
	}
	return out
}

func sample(t *testing.T) *Table {
	t.Helper()
	tbl, err := FromColumns(
		Column{Name: "id", Kind: flex.Int, Values: ints(1, 2, 3)},
		Column{Name: "name", Kind: flex.String, Values: strs("a", "b", "c")},
		Column{Name: "tags", Kind: flex.List, Values: []flex.Value{
			flex.NewList(flex.NewString("x")),
			flex.NewList(),
			flex.NewList(flex.NewDict(map[string]flex.Value{"k": flex.NewFloat(1.5)})),
		}},
	)
	require.NoError(t, err)
	return tbl
}

func TestAddColumn(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddColumn("a", ints(1, 2), flex.Int))

	err := tbl.AddColumn("b", []flex.Value{flex.NewInt(1), flex.NewFloat(2)}, flex.Int)
	assert.True(t, objerr.Is(err, objerr.TypeMismatch), "%v", err)

	err = tbl.AddColumn("a", ints(1, 2), flex.Int)
	assert.True(t, objerr.Is(err, objerr.ConfigurationError))

	err = tbl.AddColumn("c", ints(1), flex.Int)
	assert.True(t, objerr.Is(err, objerr.ConfigurationError))

	err = tbl.AddColumn("", ints(1, 2), flex.Int)
	assert.Error(t, err)

	assert.Equal(t, []string{"a"}, tbl.ColumnNames())
	assert.Equal(t, 2, tbl.RowCount())
}

func TestColumnAccess(t *testing.T) {
	tbl := sample(t)

	col, err := tbl.Column("name")
	require.NoError(t, err)
	assert.Len(t, col, 3)

	// Callers get a copy.
	col[0] = flex.NewString("mutated")
	again, _ := tbl.Column("name")
	s, _ := again[0].Str()
	assert.Equal(t, "a", s)

	_, err = tbl.Column("missing")
	assert.True(t, objerr.Is(err, objerr.KeyNotFound))

	kind, err := tbl.ColumnKind("tags")
	require.NoError(t, err)
	assert.Equal(t, flex.List, kind)

	row, err := tbl.Row(1)
	require.NoError(t, err)
	n, _ := row["id"].Int()
	assert.Equal(t, int64(2), n)

	_, err = tbl.Row(3)
	assert.True(t, objerr.Is(err, objerr.KeyNotFound))
}

func TestCodecRoundTrip(t *testing.T) {
	tbl := sample(t)
	b, err := Marshal(tbl)
	require.NoError(t, err)

	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "tags"}, got.ColumnNames())
	assert.True(t, tbl.Equal(got))

	empty, err := Unmarshal([]byte{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.NumColumns())
	assert.Equal(t, 0, empty.RowCount())
}

func TestCodecRejectsMalformed(t *testing.T) {
	good, err := Marshal(sample(t))
	require.NoError(t, err)
	for i := 0; i < len(good); i++ {
		_, err := Unmarshal(good[:i])
		require.Error(t, err, "prefix %d", i)
		assert.True(t, objerr.Is(err, objerr.DecodeError), "prefix %d: %v", i, err)
	}

	column := func(name string, rows ...int64) []byte {
		var b []byte
		b = wire.AppendString(b, name)
		b = wire.AppendU8(b, uint8(flex.Int))
		b = wire.AppendU32(b, uint32(len(rows)))
		for _, r := range rows {
			b = wire.AppendU64(b, uint64(r))
		}
		return b
	}

	dup := wire.AppendU32(nil, 2)
	dup = append(dup, column("a", 1)...)
	dup = append(dup, column("a", 2)...)
	_, err = Unmarshal(dup)
	assert.ErrorContains(t, err, "duplicate column name")

	ragged := wire.AppendU32(nil, 2)
	ragged = append(ragged, column("a", 1, 2)...)
	ragged = append(ragged, column("b", 1)...)
	_, err = Unmarshal(ragged)
	assert.ErrorContains(t, err, "expected 2")

	badKind := wire.AppendU32(nil, 1)
	badKind = wire.AppendString(badKind, "a")
	badKind = wire.AppendU8(badKind, 0x42)
	badKind = wire.AppendU32(badKind, 0)
	_, err = Unmarshal(badKind)
	assert.ErrorContains(t, err, "unknown column kind")
}

func TestWireFormatGolden(t *testing.T) {
	tbl, err := FromColumns(
		Column{Name: "n", Kind: flex.Int, Values: ints(7)},
		Column{Name: "s", Kind: flex.String, Values: strs("z")},
	)
	require.NoError(t, err)
	b, err := Marshal(tbl)
	require.NoError(t, err)
	goldie.New(t).Assert(t, "table_basic", []byte(hex.EncodeToString(b)+"\n"))
}

func TestFromRecords(t *testing.T) {
	tbl, err := FromRecords([]string{"x", "label"}, [][]any{
		{1.5, "a"},
		{2, "b"},
	})
	require.NoError(t, err)
	kind, _ := tbl.ColumnKind("x")
	assert.Equal(t, flex.Float, kind)
	col, _ := tbl.Column("x")
	f, err := col[1].Float()
	require.NoError(t, err)
	assert.Equal(t, 2.0, f)

	_, err = FromRecords([]string{"x"}, [][]any{{1}, {"nope"}})
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))

	_, err = FromRecords([]string{"x", "y"}, [][]any{{1}})
	assert.True(t, objerr.Is(err, objerr.ConfigurationError))

	_, err = FromRecords([]string{"x"}, [][]any{{nil}})
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	tbl, err := FromColumns(
		Column{Name: "f", Kind: flex.Float, Values: []flex.Value{flex.NewFloat(1), flex.NewFloat(2.5)}},
		Column{Name: "v", Kind: flex.Vector, Values: []flex.Value{flex.NewVector(nil), flex.NewVector([]float64{1})}},
		Column{Name: "d", Kind: flex.Dict, Values: []flex.Value{flex.NewDict(nil), flex.NewDict(map[string]flex.Value{"a": flex.NewInt(1)})}},
	)
	require.NoError(t, err)

	b, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"name":"f","type":"float","values":[1.0,2.5]`)

	var got Table
	require.NoError(t, json.Unmarshal(b, &got))
	assert.True(t, tbl.Equal(&got), string(b))

	// Integers are accepted in float columns.
	require.NoError(t, json.Unmarshal([]byte(`{"columns":[{"name":"f","type":"float","values":[1,2]}]}`), &got))
	k, _ := got.ColumnKind("f")
	assert.Equal(t, flex.Float, k)

	err = json.Unmarshal([]byte(`{"columns":[{"name":"f","type":"integer","values":["x"]}]}`), &got)
	assert.True(t, objerr.Is(err, objerr.TypeMismatch), "%v", err)

	err = json.Unmarshal([]byte(`{"columns":[{"name":"f","type":"bogus","values":[]}]}`), &got)
	assert.Error(t, err)
}

func TestLazyForcesOnce(t *testing.T) {
	var calls atomic.Int32
	src := NewLazy(func(context.Context) (*Table, error) {
		calls.Add(1)
		return FromColumns(Column{Name: "a", Kind: flex.Int, Values: ints(1)})
	})
	assert.False(t, src.Forced())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl, err := src.Materialize(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 1, tbl.RowCount())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, src.Forced())
}

func TestLazyMemoizesError(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	src := NewLazy(func(context.Context) (*Table, error) {
		calls++
		return nil, boom
	})
	_, err := src.Materialize(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = src.Materialize(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestLazyRetriesAfterCancelledCaller(t *testing.T) {
	var calls int
	src := NewLazy(func(ctx context.Context) (*Table, error) {
		calls++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return FromColumns(Column{Name: "a", Kind: flex.Int, Values: ints(7)})
	})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Materialize(cancelled)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, src.Forced())

	tbl, err := src.Materialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.RowCount())
	assert.True(t, src.Forced())
	assert.Equal(t, 2, calls)
}

func TestMap(t *testing.T) {
	base := sample(t)
	projected := Map(base, func(in *Table) (*Table, error) {
		ids, err := in.Column("id")
		if err != nil {
			return nil, err
		}
		return FromColumns(Column{Name: "id", Kind: flex.Int, Values: ids})
	})
	got, err := projected.Materialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, got.ColumnNames())
	assert.Equal(t, 3, got.RowCount())
}
