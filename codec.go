// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"bytes"
	"fmt"
)

// frameCodec is the gRPC codec for the Exchange stream. Frames are already
// encoded, so it passes bytes through unchanged.
type frameCodec struct{}

func (frameCodec) Name() string { return "objrpc-frame" }

func (frameCodec) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	}
	return nil, fmt.Errorf("frame codec: cannot marshal %T", v)
}

func (frameCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("frame codec: cannot unmarshal into %T", v)
	}
	*b = bytes.Clone(data)
	return nil
}
