// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/objerr"
)

func TestVariantAccessors(t *testing.T) {
	v := MustFrom(7)
	assert.True(t, v.IsValue())
	assert.Equal(t, "integer", v.TypeName())

	_, err := v.Table()
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))
	assert.Equal(t, "expected table, got integer", err.Error())

	h := HandleOf(Handle{TypeName: "t", ID: 1})
	_, err = h.Value()
	assert.Equal(t, "expected value, got handle", err.Error())
	assert.Equal(t, "handle(t#1)", h.String())

	var zero Variant
	assert.False(t, zero.IsValid())
	assert.Equal(t, "undefined", zero.TypeName())
	_, err = MarshalVariant(zero)
	assert.Error(t, err)

	assert.False(t, ValueOf(flex.Value{}).IsValid())
	assert.False(t, TableOf(nil).IsValid())
}

func TestVariantEqualKeepsNumericKind(t *testing.T) {
	assert.False(t, MustFrom(2).Equal(MustFrom(2.0)))
	assert.True(t, MustFrom(2.0).Equal(ValueOf(flex.NewFloat(2))))
	assert.True(t, ResultOf(Result{Type: "a", Payload: []byte{1}}).Equal(ResultOf(Result{Type: "a", Payload: []byte{1}})))
	assert.False(t, ResultOf(Result{Type: "a"}).Equal(ResultOf(Result{Type: "b"})))
}

func TestFromRejectsUnsupported(t *testing.T) {
	_, err := From(struct{}{})
	assert.True(t, objerr.Is(err, objerr.TypeMismatch))
	_, err = From(Variant{})
	assert.Error(t, err)
	_, err = From(nil)
	assert.Error(t, err)
}

func TestVariantCodecRoundTrip(t *testing.T) {
	tbl := sampleTable(t)
	for _, v := range []Variant{
		MustFrom(1),
		MustFrom("x"),
		MustFrom(map[string]any{"a": []any{"b", map[string]any{}}}),
		TableOf(tbl),
		HandleOf(Handle{TypeName: "counter", ID: 1 << 40}),
		ResultOf(Result{Type: "opaque", Payload: nil}),
	} {
		data, err := MarshalVariant(v)
		require.NoError(t, err)
		got, err := UnmarshalVariant(data)
		require.NoError(t, err, v.String())
		assert.True(t, v.Equal(got), "%s != %s", got, v)
	}
}
