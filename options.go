// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"log/slog"
	"net/http"
	"net/url"
)

// Option configures a JSON-RPC request.
type Option func(*Options)

// Options holds per-request settings for SendJSONRequest.
type Options struct {
	headers     http.Header
	queryParams url.Values
	log         *slog.Logger
}

func NewOptions(ops []Option) *Options {
	o := &Options{
		headers:     http.Header{},
		queryParams: url.Values{},
		log:         slog.Default(),
	}
	for _, op := range ops {
		op(o)
	}
	return o
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(o *Options) { o.headers.Add(key, value) }
}

// WithQueryParam adds a URL query parameter.
func WithQueryParam(key, value string) Option {
	return func(o *Options) { o.queryParams.Add(key, value) }
}

// WithRequestLogger sets the logger for retry diagnostics.
func WithRequestLogger(l *slog.Logger) Option {
	return func(o *Options) { o.log = l }
}
