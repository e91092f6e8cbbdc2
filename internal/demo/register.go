// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package demo

import (
	"github.com/luxfi/objrpc/registry"
	"github.com/luxfi/objrpc/toolkit"
)

// Register adds the demo types to reg and the demo toolkits to tk. Either
// may be nil. stats may be nil when lifetimes are not observed.
func Register(reg *registry.Registry, tk *toolkit.Registry, stats *Stats) error {
	if stats == nil {
		stats = new(Stats)
	}
	if reg != nil {
		if err := registry.Register(reg, CounterDescriptor, func() *Counter { return NewCounter(stats) }); err != nil {
			return err
		}
		if err := registry.RegisterSingleton(reg, GlobalsDescriptor, Globals{}); err != nil {
			return err
		}
	}
	if tk != nil {
		for _, s := range Toolkits(stats) {
			if err := tk.Register(s); err != nil {
				return err
			}
		}
	}
	return nil
}
