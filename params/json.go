// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/table"
)

type jsonHandle struct {
	Type string `json:"type"`
	ID   uint64 `json:"id"`
}

type jsonResult struct {
	Type    string `json:"type"`
	Payload []byte `json:"payload"`
}

// MarshalJSON renders values as plain JSON and wraps the other members as
// {"$table":...}, {"$handle":{"type","id"}} or {"$result":{"type","payload"}}.
func (v Variant) MarshalJSON() ([]byte, error) {
	switch {
	case v.IsValue():
		return v.val.MarshalJSON()
	case v.kind == KindTable:
		return json.Marshal(map[string]*table.Table{"$table": v.tbl})
	case v.kind == KindHandle:
		return json.Marshal(map[string]jsonHandle{"$handle": {Type: v.handle.TypeName, ID: v.handle.ID}})
	case v.kind == KindResult:
		return json.Marshal(map[string]jsonResult{"$result": {Type: v.result.Type, Payload: v.result.Payload}})
	}
	return nil, objerr.New(objerr.TypeMismatch, "cannot encode invalid variant")
}

// UnmarshalJSON reverses MarshalJSON. A JSON object with exactly one of the
// wrapper keys is read as that member; any other JSON is a flex value.
func (v *Variant) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			return objerr.New(objerr.DecodeError, "invalid JSON variant: %v", err)
		}
		if len(probe) == 1 {
			if raw, ok := probe["$table"]; ok {
				t := table.New()
				if err := t.UnmarshalJSON(raw); err != nil {
					return err
				}
				*v = TableOf(t)
				return nil
			}
			if raw, ok := probe["$handle"]; ok {
				var h jsonHandle
				if err := strictDecode(raw, &h); err != nil {
					return err
				}
				*v = HandleOf(Handle{TypeName: h.Type, ID: h.ID})
				return nil
			}
			if raw, ok := probe["$result"]; ok {
				var r jsonResult
				if err := strictDecode(raw, &r); err != nil {
					return err
				}
				*v = ResultOf(Result{Type: r.Type, Payload: r.Payload})
				return nil
			}
		}
	}
	var fv flex.Value
	if err := fv.UnmarshalJSON(data); err != nil {
		return err
	}
	*v = ValueOf(fv)
	return nil
}

func strictDecode(raw json.RawMessage, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return objerr.New(objerr.DecodeError, "invalid JSON variant: %v", err)
	}
	return nil
}

// MarshalJSON renders b as a JSON object in insertion order.
func (b *Bag) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range b.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := b.m[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object into b, keeping the document's key
// order. null yields an empty bag.
func (b *Bag) UnmarshalJSON(data []byte) error {
	out := NewBag()
	if string(bytes.TrimSpace(data)) == "null" {
		*b = *out
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return objerr.New(objerr.DecodeError, "invalid JSON bag: %v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return objerr.New(objerr.DecodeError, "invalid JSON bag: expected object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return objerr.New(objerr.DecodeError, "invalid JSON bag: %v", err)
		}
		key := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return objerr.New(objerr.DecodeError, "invalid JSON bag: %v", err)
		}
		if out.Has(key) {
			return objerr.New(objerr.DecodeError, "duplicate bag key %q", key)
		}
		var v Variant
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return objerr.New(objerr.DecodeError, "invalid JSON bag: %v", err)
	}
	*b = *out
	return nil
}
