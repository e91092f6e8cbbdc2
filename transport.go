// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"sort"
	"sync"
)

// Transport types
const (
	TransportZAP  = "zap"  // length-prefixed frames over TCP, default
	TransportGRPC = "grpc" // one bidirectional gRPC stream per connection
)

// DefaultTransport is the default transport type (ZAP)
const DefaultTransport = TransportZAP

type dialFunc func(ctx context.Context, addr string, o *dialOptions) (Transport, error)
type listenFunc func(addr string, o *serverOptions) (Listener, error)

type transportEntry struct {
	dial   dialFunc
	listen listenFunc
}

var (
	transportsMu sync.RWMutex
	transports   = map[string]transportEntry{}
)

// registerTransport makes a transport selectable by name.
func registerTransport(name string, dial dialFunc, listen listenFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = transportEntry{dial, listen}
}

func lookupTransport(name string) (transportEntry, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	e, ok := transports[name]
	return e, ok
}

// AvailableTransports returns the registered transport names, sorted.
func AvailableTransports() []string {
	transportsMu.RLock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	transportsMu.RUnlock()
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	_, ok := lookupTransport(name)
	return ok
}
