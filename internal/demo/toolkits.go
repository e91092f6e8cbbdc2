// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package demo

import (
	"context"

	"github.com/luxfi/objrpc/params"
	"github.com/luxfi/objrpc/toolkit"
)

// AddOne returns x+1 under "x".
func AddOne(_ context.Context, in *params.Bag) (*params.Bag, error) {
	x, err := in.GetInt("x")
	if err != nil {
		return nil, err
	}
	out := params.NewBag()
	return out, out.Put("x", x+1)
}

// ScaleValues multiplies the vector "values" by "factor".
func ScaleValues(_ context.Context, in *params.Bag) (*params.Bag, error) {
	values, err := in.GetVector("values")
	if err != nil {
		return nil, err
	}
	factor, err := in.GetFloat("factor")
	if err != nil {
		return nil, err
	}
	scaled := make([]float64, len(values))
	for i, v := range values {
		scaled[i] = v * factor
	}
	out := params.NewBag()
	return out, out.Put("values", scaled)
}

// StatsToolkit reports counter lifetimes.
func StatsToolkit(stats *Stats) toolkit.Func {
	return func(context.Context, *params.Bag) (*params.Bag, error) {
		out := params.NewBag()
		for k, v := range map[string]int64{
			"created":   stats.Created.Load(),
			"destroyed": stats.Destroyed.Load(),
			"live":      stats.Live(),
		} {
			if err := out.Put(k, v); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

// Toolkits returns the demo toolkit specs.
func Toolkits(stats *Stats) []toolkit.Spec {
	return []toolkit.Spec{
		{Name: "demo_addone", Description: "Adds one to the integer x.", Fn: AddOne},
		{
			Name:        "demo_scale",
			Description: "Multiplies the vector values by factor.",
			Defaults:    params.NewBag().Set("factor", params.MustFrom(2.0)),
			Fn:          ScaleValues,
		},
		{Name: "demo_stats", Description: "Reports counters created, destroyed and live.", Fn: StatsToolkit(stats)},
	}
}
