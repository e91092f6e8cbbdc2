// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/internal/wire"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/table"
)

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.FromRecords([]string{"a", "b"}, [][]any{{1, "x"}, {2, "y"}})
	require.NoError(t, err)
	return tbl
}

func sampleBag(t *testing.T) *Bag {
	t.Helper()
	b := NewBag()
	require.NoError(t, b.Put("x", 41))
	require.NoError(t, b.Put("ratio", 0.5))
	require.NoError(t, b.Put("name", "counter"))
	require.NoError(t, b.Put("vec", []float64{1, 2}))
	require.NoError(t, b.Put("items", []any{"a", 1}))
	require.NoError(t, b.Put("opts", map[string]any{"deep": []any{map[string]any{"k": "v"}}}))
	b.Set("tbl", TableOf(sampleTable(t)))
	b.Set("obj", HandleOf(Handle{TypeName: "counter", ID: 3}))
	b.Set("res", ResultOf(Result{Type: "graph", Payload: []byte{0, 1, 2}}))
	return b
}

func TestSetKeepsPosition(t *testing.T) {
	b := NewBag()
	b.Set("a", MustFrom(1)).Set("b", MustFrom(2)).Set("a", MustFrom(3))
	assert.Equal(t, []string{"a", "b"}, b.Keys())
	n, err := b.GetInt("a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	assert.True(t, b.Delete("a"))
	assert.False(t, b.Delete("a"))
	assert.Equal(t, []string{"b"}, b.Keys())
	assert.Equal(t, 1, b.Len())

	assert.Panics(t, func() { b.Set("z", Variant{}) })
	assert.Panics(t, func() { b.Set("z", TableOf(nil)) })
	assert.False(t, b.Has("z"))

	err = b.Put("z", TableOf(nil))
	assert.True(t, objerr.Is(err, objerr.TypeMismatch), "%v", err)
	err = b.Put("z", (*table.Table)(nil))
	assert.True(t, objerr.Is(err, objerr.TypeMismatch), "%v", err)
	assert.False(t, b.Has("z"))
}

func TestGetErrors(t *testing.T) {
	b := NewBag()
	require.NoError(t, b.Put("x", "not a number"))

	_, err := b.GetInt("x")
	require.Error(t, err)
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))
	assert.Equal(t, "x of invalid type. Expected integer, got string", err.Error())

	_, err = b.GetInt("y")
	assert.True(t, objerr.Is(err, objerr.KeyNotFound))
	assert.Equal(t, "y not found", err.Error())

	_, err = b.TryGet("x", KindTable)
	assert.Equal(t, "x of invalid type. Expected table, got string", err.Error())

	v, err := b.TryGet("x", KindValue)
	require.NoError(t, err)
	assert.Equal(t, Kind(flex.String), v.Kind())

	var nilBag *Bag
	_, err = nilBag.Get("x")
	assert.True(t, objerr.Is(err, objerr.KeyNotFound))
	assert.Equal(t, 0, nilBag.Len())
}

func TestTypedGetters(t *testing.T) {
	b := sampleBag(t)

	f, err := b.GetFloat("x")
	require.NoError(t, err, "integers widen to float")
	assert.Equal(t, 41.0, f)

	_, err = b.GetInt("ratio")
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))

	s, err := b.GetString("name")
	require.NoError(t, err)
	assert.Equal(t, "counter", s)

	vec, err := b.GetVector("vec")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, vec)

	items, err := b.GetList("items")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	d, err := b.GetDict("opts")
	require.NoError(t, err)
	assert.Equal(t, flex.List, d["deep"].Kind())

	tbl, err := b.GetTable("tbl")
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.RowCount())

	h, err := b.GetHandle("obj")
	require.NoError(t, err)
	assert.Equal(t, Handle{TypeName: "counter", ID: 3}, h)

	r, err := b.GetResult("res")
	require.NoError(t, err)
	assert.Equal(t, "graph", r.Type)

	_, err = b.GetValue("tbl")
	assert.Equal(t, "tbl of invalid type. Expected value, got table", err.Error())

	_, err = b.GetFloat("name")
	assert.Equal(t, "name of invalid type. Expected float, got string", err.Error())
}

func TestWithDefaults(t *testing.T) {
	defaults := NewBag()
	require.NoError(t, defaults.Put("x", 0))
	require.NoError(t, defaults.Put("step", 1))

	b := NewBag()
	require.NoError(t, b.Put("x", 10))

	merged := b.WithDefaults(defaults)
	assert.Equal(t, []string{"x", "step"}, merged.Keys())
	x, _ := merged.GetInt("x")
	assert.Equal(t, int64(10), x)
	assert.Equal(t, 1, b.Len(), "receiver is unchanged")

	assert.Equal(t, []string{"x", "step"}, (*Bag)(nil).WithDefaults(defaults).Keys())
}

func TestCloneIsIndependent(t *testing.T) {
	b := sampleBag(t)
	c := b.Clone()
	assert.True(t, b.Equal(c))
	c.Set("x", MustFrom(0))
	assert.False(t, b.Equal(c))
	n, _ := b.GetInt("x")
	assert.Equal(t, int64(41), n)
}

func TestCodecRoundTrip(t *testing.T) {
	b := sampleBag(t)
	data, err := Marshal(b)
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, b.Keys(), got.Keys())
	assert.True(t, b.Equal(got))

	empty, err := Unmarshal([]byte{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestCodecRejectsMalformed(t *testing.T) {
	data, err := Marshal(sampleBag(t))
	require.NoError(t, err)
	for i := 0; i < len(data); i++ {
		_, err := Unmarshal(data[:i])
		require.Error(t, err, "prefix %d", i)
		assert.True(t, objerr.Is(err, objerr.DecodeError), "prefix %d: %v", i, err)
	}

	dup := wire.AppendU32(nil, 2)
	for i := 0; i < 2; i++ {
		dup = wire.AppendString(dup, "k")
		dup, err = AppendVariant(dup, MustFrom(1))
		require.NoError(t, err)
	}
	_, err = Unmarshal(dup)
	assert.ErrorContains(t, err, `duplicate bag key "k"`)

	badTag := wire.AppendU32(nil, 1)
	badTag = wire.AppendString(badTag, "k")
	badTag = append(badTag, 0x7f)
	_, err = Unmarshal(badTag)
	assert.ErrorContains(t, err, "unknown variant tag 0x7f")
}

func TestValueVariantEncodesLikeFlex(t *testing.T) {
	v := flex.NewList(flex.NewInt(1), flex.NewString("a"))
	want, err := flex.Marshal(v)
	require.NoError(t, err)
	got, err := MarshalVariant(ValueOf(v))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJSONRoundTrip(t *testing.T) {
	b := sampleBag(t)
	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"obj":{"$handle":{"type":"counter","id":3}}`)
	assert.Contains(t, string(data), `"res":{"$result":{"type":"graph","payload":"AAEC"}}`)

	var got Bag
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, b.Keys(), got.Keys())
	assert.True(t, b.Equal(&got), string(data))
}

func TestJSONKeepsDocumentOrder(t *testing.T) {
	var b Bag
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":2.5,"m":"s"}`), &b))
	assert.Equal(t, []string{"z", "a", "m"}, b.Keys())
	f, err := b.GetFloat("a")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	err = json.Unmarshal([]byte(`{"a":1,"a":2}`), &b)
	assert.ErrorContains(t, err, "duplicate bag key")

	err = json.Unmarshal([]byte(`{"a":null}`), &b)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`[1]`), &b)
	assert.Error(t, err)

	require.NoError(t, json.Unmarshal([]byte(`null`), &b))
	assert.Equal(t, 0, b.Len())
}

func TestPlainDictIsNotAWrapper(t *testing.T) {
	var v Variant
	require.NoError(t, json.Unmarshal([]byte(`{"$table":1,"other":2}`), &v))
	assert.Equal(t, Kind(flex.Dict), v.Kind())
}
