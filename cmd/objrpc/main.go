// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command objrpc serves Go objects, generates proxies and runs toolkits.
package main

import (
	"os"

	"github.com/luxfi/objrpc/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
}
