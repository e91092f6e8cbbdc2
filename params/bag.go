// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import (
	"slices"

	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/table"
)

// Bag is an insertion-ordered map from names to Variants. Read methods are
// safe on a nil *Bag. A Bag is not safe for concurrent mutation.
type Bag struct {
	keys []string
	m    map[string]Variant
}

// NewBag returns an empty bag.
func NewBag() *Bag {
	return &Bag{m: make(map[string]Variant)}
}

// Set stores v under key. Overwriting keeps the key's original position.
// Set panics if v is invalid, such as TableOf(nil); Put reports the same
// mistake as a TypeMismatch error.
func (b *Bag) Set(key string, v Variant) *Bag {
	if !v.IsValid() {
		panic(objerr.New(objerr.TypeMismatch, "%s: cannot store an undefined variant", key))
	}
	if b.m == nil {
		b.m = make(map[string]Variant)
	}
	if _, ok := b.m[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.m[key] = v
	return b
}

// Put converts x with From and stores it under key.
func (b *Bag) Put(key string, x any) error {
	v, err := From(x)
	if err != nil {
		return objerr.New(objerr.KindOf(err), "%s: %v", key, err)
	}
	b.Set(key, v)
	return nil
}

// Get returns the variant stored under key.
func (b *Bag) Get(key string) (Variant, error) {
	if b != nil {
		if v, ok := b.m[key]; ok {
			return v, nil
		}
	}
	return Variant{}, objerr.New(objerr.KeyNotFound, "%s not found", key)
}

// TryGet returns the variant stored under key if it is a member of kind.
func (b *Bag) TryGet(key string, kind Kind) (Variant, error) {
	v, err := b.Get(key)
	if err != nil {
		return v, err
	}
	if !v.Matches(kind) {
		return Variant{}, invalidType(key, kind.String(), v)
	}
	return v, nil
}

func invalidType(key, want string, got Variant) error {
	return objerr.New(objerr.TypeMismatch,
		"%s of invalid type. Expected %s, got %s", key, want, got.TypeName())
}

func (b *Bag) Has(key string) bool {
	if b == nil {
		return false
	}
	_, ok := b.m[key]
	return ok
}

// Delete removes key and reports whether it was present.
func (b *Bag) Delete(key string) bool {
	if !b.Has(key) {
		return false
	}
	delete(b.m, key)
	b.keys = slices.DeleteFunc(b.keys, func(k string) bool { return k == key })
	return true
}

// Keys returns the keys in insertion order.
func (b *Bag) Keys() []string {
	if b == nil {
		return nil
	}
	return slices.Clone(b.keys)
}

func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Clone returns a shallow copy. Tables are shared since they are not
// modified after construction.
func (b *Bag) Clone() *Bag {
	out := NewBag()
	if b == nil {
		return out
	}
	out.keys = slices.Clone(b.keys)
	for k, v := range b.m {
		out.m[k] = v
	}
	return out
}

// WithDefaults returns a copy of b in which every key of defaults that b
// lacks is appended in defaults' order.
func (b *Bag) WithDefaults(defaults *Bag) *Bag {
	out := b.Clone()
	for _, k := range defaults.Keys() {
		if !out.Has(k) {
			out.Set(k, defaults.m[k])
		}
	}
	return out
}

// Equal reports whether both bags hold equal variants under the same keys
// in the same order.
func (b *Bag) Equal(o *Bag) bool {
	if b.Len() != o.Len() {
		return false
	}
	for i, k := range b.Keys() {
		if o.keys[i] != k || !b.m[k].Equal(o.m[k]) {
			return false
		}
	}
	return true
}

// All calls fn for every entry in insertion order until fn returns false.
func (b *Bag) All(fn func(key string, v Variant) bool) {
	if b == nil {
		return
	}
	for _, k := range b.keys {
		if !fn(k, b.m[k]) {
			return
		}
	}
}

func (b *Bag) value(key string, want flex.Kind) (flex.Value, error) {
	v, err := b.Get(key)
	if err != nil {
		return flex.Value{}, err
	}
	if Kind(want) != v.Kind() {
		return flex.Value{}, invalidType(key, want.String(), v)
	}
	return v.val, nil
}

func (b *Bag) GetInt(key string) (int64, error) {
	v, err := b.value(key, flex.Int)
	if err != nil {
		return 0, err
	}
	return v.Int()
}

// GetFloat accepts integer entries and widens them.
func (b *Bag) GetFloat(key string) (float64, error) {
	v, err := b.Get(key)
	if err != nil {
		return 0, err
	}
	if !v.IsValue() || !v.val.Kind().Numeric() {
		return 0, invalidType(key, flex.Float.String(), v)
	}
	return v.val.AsFloat()
}

func (b *Bag) GetString(key string) (string, error) {
	v, err := b.value(key, flex.String)
	if err != nil {
		return "", err
	}
	return v.Str()
}

func (b *Bag) GetVector(key string) ([]float64, error) {
	v, err := b.value(key, flex.Vector)
	if err != nil {
		return nil, err
	}
	return v.Vector()
}

func (b *Bag) GetList(key string) ([]flex.Value, error) {
	v, err := b.value(key, flex.List)
	if err != nil {
		return nil, err
	}
	return v.List()
}

func (b *Bag) GetDict(key string) (map[string]flex.Value, error) {
	v, err := b.value(key, flex.Dict)
	if err != nil {
		return nil, err
	}
	return v.Dict()
}

// GetValue returns any flex value stored under key.
func (b *Bag) GetValue(key string) (flex.Value, error) {
	v, err := b.TryGet(key, KindValue)
	if err != nil {
		return flex.Value{}, err
	}
	return v.val, nil
}

func (b *Bag) GetTable(key string) (*table.Table, error) {
	v, err := b.TryGet(key, KindTable)
	if err != nil {
		return nil, err
	}
	return v.tbl, nil
}

func (b *Bag) GetHandle(key string) (Handle, error) {
	v, err := b.TryGet(key, KindHandle)
	if err != nil {
		return Handle{}, err
	}
	return v.handle, nil
}

func (b *Bag) GetResult(key string) (Result, error) {
	v, err := b.TryGet(key, KindResult)
	if err != nil {
		return Result{}, err
	}
	return v.result, nil
}
