// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/objrpc/objerr"
)

func TestAccessorsMatchTag(t *testing.T) {
	i, err := NewInt(42).Int()
	require.NoError(t, err)
	assert.Equal(t, int64(42), i)

	f, err := NewFloat(1.5).Float()
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	s, err := NewString("hello").Str()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	vec, err := NewVector([]float64{1, 2}).Vector()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, vec)

	list, err := NewList(NewInt(1)).List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	dict, err := NewDict(map[string]Value{"a": NewInt(1)}).Dict()
	require.NoError(t, err)
	assert.Contains(t, dict, "a")
}

func TestWrongAccessorIsTypeMismatch(t *testing.T) {
	_, err := NewString("x").Int()
	require.Error(t, err)
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))
	assert.Equal(t, "expected integer, got string", err.Error())

	_, err = NewInt(1).Float()
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))

	_, err = NewFloat(1).Vector()
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))
}

func TestZeroValueIsUndefined(t *testing.T) {
	var v Value
	assert.False(t, v.IsValid())
	assert.Equal(t, Undefined, v.Kind())
	_, err := v.Int()
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))
	_, err = v.Str()
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))
}

func TestAsFloatCoercesIntegers(t *testing.T) {
	f, err := NewInt(3).AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	_, err = NewString("3").AsFloat()
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))
}

func TestFromGo(t *testing.T) {
	cases := []struct {
		in   any
		kind Kind
	}{
		{int(1), Int},
		{int32(1), Int},
		{uint16(1), Int},
		{float32(1), Float},
		{2.5, Float},
		{"s", String},
		{[]byte("b"), String},
		{[]float64{1}, Vector},
		{[]any{"a", 1}, List},
		{map[string]any{"k": []any{1.5, "x"}}, Dict},
		{NewInt(1), Int},
	}
	for _, tc := range cases {
		v, err := FromGo(tc.in)
		require.NoError(t, err, "%T", tc.in)
		assert.Equal(t, tc.kind, v.Kind(), "%T", tc.in)
	}
}

func TestFromGoRejectsUnsupported(t *testing.T) {
	_, err := FromGo(struct{}{})
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))

	_, err = FromGo(nil)
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))

	_, err = FromGo(uint64(1 << 63))
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))

	_, err = FromGo([]any{1, true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list[1]")
}

func TestInterfaceRoundTrip(t *testing.T) {
	v := MustFromGo(map[string]any{
		"n":    int64(1),
		"list": []any{"a", map[string]any{"f": 2.5}},
	})
	back, err := FromGo(v.Interface())
	require.NoError(t, err)
	assert.True(t, Equal(v, back))
}

func TestString(t *testing.T) {
	assert.Equal(t, "7", NewInt(7).String())
	assert.Equal(t, "2.5", NewFloat(2.5).String())
	assert.Equal(t, `"hi"`, NewString("hi").String())
	assert.Equal(t, "[1 2.5]", NewVector([]float64{1, 2.5}).String())
	assert.Equal(t, `[1, "a"]`, NewList(NewInt(1), NewString("a")).String())
	assert.Equal(t, `{"a": 1, "b": 2}`, MustFromGo(map[string]any{"b": 2, "a": 1}).String())
	assert.Equal(t, "<undefined>", Value{}.String())
}

func TestParseKind(t *testing.T) {
	for k := Int; k <= Dict; k++ {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("bool")
	assert.Error(t, err)
}
